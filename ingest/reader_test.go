package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/use-agent/postpulse/models"
)

func TestReadTargets(t *testing.T) {
	input := "\uFEFFid,tweet_url,note\n" +
		"1,https://x.com/a/status/1,first\n" +
		"2,,missing\n" +
		"3, https://twitter.com/b/status/2 ,third\n"

	got, err := ReadTargets(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadTargets: %v", err)
	}
	want := []models.Target{
		{Index: 0, URL: "https://x.com/a/status/1"},
		{Index: 1, URL: ""},
		{Index: 2, URL: "https://twitter.com/b/status/2"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("targets mismatch (-want +got):\n%s", diff)
	}
}

func TestReadTargetsColumnPreference(t *testing.T) {
	got, err := ReadTargets(strings.NewReader("link,URL\nhttps://x.com/a/status/9,https://x.com/a/status/1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].URL != "https://x.com/a/status/1" {
		t.Errorf("got %+v, want the URL column", got)
	}
}

func TestReadTargetsNoURLColumn(t *testing.T) {
	_, err := ReadTargets(strings.NewReader("name,score\na,1\n"))
	if !errors.Is(err, ErrNoURLColumn) {
		t.Errorf("err = %v, want ErrNoURLColumn", err)
	}
}

func TestLoadTargetsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	if err := os.WriteFile(path, []byte("url\nhttps://x.com/a/status/1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadTargets(path)
	if err != nil || len(got) != 1 {
		t.Fatalf("LoadTargets = %v, %v", got, err)
	}
	if _, err := LoadTargets(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestValidPostURL(t *testing.T) {
	valid := []string{
		"https://x.com/a/status/1",
		"http://www.twitter.com/some_user/status/1234567890",
		"https://X.com/a/status/1?s=20",
		"https://x.example/u1/status/1",
	}
	invalid := []string{
		"",
		"https://x.com/a",
		"https://example.com/a/status/1",
		"ftp://x.com/a/status/1",
		"https://x.com/a/status/abc",
	}
	for _, u := range valid {
		if !ValidPostURL(u) {
			t.Errorf("ValidPostURL(%q) = false", u)
		}
	}
	for _, u := range invalid {
		if ValidPostURL(u) {
			t.Errorf("ValidPostURL(%q) = true", u)
		}
	}
}
