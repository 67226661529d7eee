package scraper

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/postpulse/models"
)

func TestHealthRetirement(t *testing.T) {
	now := time.Date(2025, 4, 16, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	h := newHealthAt(3, time.Hour, clock)
	h.RecordSuccess()
	h.RecordSuccess()
	if h.ShouldRetire() {
		t.Fatal("retired before reaching the use limit")
	}
	h.RecordSuccess()
	if !h.ShouldRetire() {
		t.Error("not retired after reaching the use limit")
	}

	h = newHealthAt(0, time.Hour, clock)
	h.RecordFailure()
	h.RecordFailure()
	h.RecordSuccess() // 1.5
	h.RecordFailure() // 2.5
	if h.ShouldRetire() {
		t.Fatal("retired with error score below threshold")
	}
	h.RecordFailure() // 3.5
	if !h.ShouldRetire() {
		t.Error("not retired with error score above threshold")
	}

	h = newHealthAt(0, time.Hour, clock)
	now = now.Add(time.Hour)
	if !h.ShouldRetire() {
		t.Error("not retired after max age")
	}
}

func TestPickProfile(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 20 {
		p := PickProfile(r, "")
		if p.UserAgent == "" || p.Width == 0 || p.Height == 0 {
			t.Fatalf("incomplete profile: %+v", p)
		}
		if p.AcceptLanguage != acceptLanguage {
			t.Errorf("AcceptLanguage = %q", p.AcceptLanguage)
		}
		if strings.Contains(p.UserAgent, "Windows") && p.Platform != "Win32" {
			t.Errorf("platform %q does not match UA %q", p.Platform, p.UserAgent)
		}
		if strings.Contains(p.UserAgent, "Macintosh") && p.Platform != "MacIntel" {
			t.Errorf("platform %q does not match UA %q", p.Platform, p.UserAgent)
		}
	}

	pinned := PickProfile(r, "custom-agent/1.0")
	if pinned.UserAgent != "custom-agent/1.0" || pinned.Platform != "Linux x86_64" {
		t.Errorf("pinned profile = %+v", pinned)
	}
	if pinned.Headers()["Accept-Language"] != acceptLanguage {
		t.Errorf("headers = %v", pinned.Headers())
	}
}

func TestShouldBlock(t *testing.T) {
	blocked := blockedTypes([]string{"Image", "Font", "Bogus"})
	tests := []struct {
		rt   proto.NetworkResourceType
		url  string
		want bool
	}{
		{proto.NetworkResourceTypeImage, "https://pbs.twimg.com/media/a.jpg", true},
		{proto.NetworkResourceTypeFont, "https://abs.twimg.com/f.woff2", true},
		{proto.NetworkResourceTypeScript, "https://abs.twimg.com/main.js", false},
		{proto.NetworkResourceTypeXHR, "https://x.com/i/api/graphql/TweetDetail", false},
		{proto.NetworkResourceTypeScript, "https://www.googletagmanager.com/gtm.js", true},
		{proto.NetworkResourceTypeXHR, "https://pagead2.googlesyndication.com/x", true},
		{proto.NetworkResourceTypePing, "https://analytics.twitter.com/jot", true},
	}
	for _, tt := range tests {
		if got := shouldBlock(blocked, tt.rt, tt.url); got != tt.want {
			t.Errorf("shouldBlock(%s, %s) = %v, want %v", tt.rt, tt.url, got, tt.want)
		}
	}
}

func TestCategorizeError(t *testing.T) {
	alive := func() bool { return true }
	dead := func() bool { return false }
	tests := []struct {
		name  string
		err   error
		alive func() bool
		code  string
	}{
		{"deadline", fmt.Errorf("navigate: %w", context.DeadlineExceeded), dead, models.ErrCodeTimeout},
		{"canceled", context.Canceled, alive, models.ErrCodeInternal},
		{"crash", errors.New("websocket: close 1006"), dead, models.ErrCodeBrowserCrash},
		{"net error", errors.New("net::ERR_NAME_NOT_RESOLVED"), alive, models.ErrCodeNavigation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := categorizeError(tt.err, "navigation failed", tt.alive)
			if err.Code != tt.code {
				t.Errorf("code = %s, want %s", err.Code, tt.code)
			}
			if !errors.Is(err, tt.err) {
				t.Error("original error not wrapped")
			}
		})
	}
}
