package cache

import (
	"testing"
	"time"

	"github.com/use-agent/postpulse/models"
)

func TestKey(t *testing.T) {
	tests := map[string]string{
		"https://twitter.com/u1/status/1":         "https://x.com/u1/status/1",
		"https://www.X.com/u1/status/1?s=20#frag": "https://x.com/u1/status/1",
		"http://mobile.twitter.com/u1/status/1/":  "https://x.com/u1/status/1",
		"  https://x.com/u1/status/1  ":           "https://x.com/u1/status/1",
		"https://x.com/User_One/Status/1":         "https://x.com/user_one/status/1",
		"not a url":                               "not a url",
	}
	for in, want := range tests {
		if got := Key(in); got != want {
			t.Errorf("Key(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCacheHandleCaseInsensitive(t *testing.T) {
	c, err := New(2, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	r := models.NewRecord("https://x.com/user/status/1")
	r.Status = models.StatusSuccess
	c.Set(r)

	got, ok := c.Get("https://x.com/User/status/1")
	if !ok {
		t.Fatal("handle case produced a separate cache entry")
	}
	if got.URL != "https://x.com/User/status/1" {
		t.Errorf("URL = %q", got.URL)
	}
}

func TestCacheHitUsesInputURL(t *testing.T) {
	c, err := New(2, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	r := models.NewRecord("https://x.com/u1/status/1")
	r.Text = "hello"
	r.Status = models.StatusPartial
	c.Set(r)

	got, ok := c.Get("https://twitter.com/u1/status/1?s=20")
	if !ok {
		t.Fatal("expected a hit for an equivalent URL")
	}
	if got.URL != "https://twitter.com/u1/status/1?s=20" || got.Text != "hello" {
		t.Errorf("got %+v", got)
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 0 {
		t.Errorf("Stats() = %d, %d", hits, misses)
	}
}

func TestCacheSkipsFailedAndExpires(t *testing.T) {
	c, err := New(2, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2025, 4, 16, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(models.FailedRecord("https://x.com/a/status/1", nil))
	if c.Len() != 0 {
		t.Error("failed record was cached")
	}

	r := models.NewRecord("https://x.com/a/status/2")
	r.Text = "t"
	r.Status = models.StatusPartial
	c.Set(r)
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(r.URL); ok {
		t.Error("expired record was served")
	}
}

func TestNilCache(t *testing.T) {
	c, err := New(0, time.Hour)
	if err != nil || c != nil {
		t.Fatalf("New(0) = %v, %v", c, err)
	}
	c.Set(models.NewRecord("https://x.com/a/status/1"))
	if _, ok := c.Get("https://x.com/a/status/1"); ok {
		t.Error("nil cache returned a hit")
	}
}
