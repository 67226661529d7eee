// Package scraper owns the browser: one stealth Chromium session that
// navigates to a post and hands back a frozen DOM snapshot.
package scraper

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/postpulse/config"
	"github.com/use-agent/postpulse/models"
	"github.com/use-agent/postpulse/snapshot"
)

// readyMarkers signal that the post has rendered far enough to extract.
var readyMarkers = []string{
	`[data-testid="tweetText"]`,
	`[data-testid="tweet"]`,
	`article`,
}

const readySelector = `[data-testid="tweetText"], [data-testid="tweet"], article`

// aliveProbeTimeout bounds the Browser.getVersion crash probe.
const aliveProbeTimeout = 5 * time.Second

// Session is one browser process with a single page. Navigations are
// serialized; the session is not meant to be shared between batches.
type Session struct {
	browserCfg config.BrowserConfig
	scraperCfg config.ScraperConfig

	launcher *launcher.Launcher
	launched bool
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
	profile  Profile
	health   *Health
	rng      *rand.Rand

	mu        sync.Mutex // serializes Open
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewSession launches Chromium, opens one page and applies the
// anti-fingerprinting profile to it.
func NewSession(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) (*Session, error) {
	s := &Session{
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
		launcher:   newLauncher(browserCfg),
		health:     NewHealth(browserCfg.MaxUsesPerSession, browserCfg.MaxSessionAge),
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}

	controlURL, err := s.launcher.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeSessionCreate, "failed to launch browser", err)
	}
	s.launched = true
	slog.Info("browser launched", "controlURL", controlURL)

	s.browser = rod.New().ControlURL(controlURL)
	if err := s.browser.Connect(); err != nil {
		_ = s.Close()
		return nil, models.NewScrapeError(models.ErrCodeSessionCreate, "failed to connect to browser", err)
	}

	s.page, err = s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = s.Close()
		return nil, models.NewScrapeError(models.ErrCodeSessionCreate, "failed to create page", err)
	}

	s.profile = PickProfile(s.rng, browserCfg.UserAgent)
	if err := s.profile.apply(s.page); err != nil {
		_ = s.Close()
		return nil, models.NewScrapeError(models.ErrCodeSessionCreate, "failed to apply browser profile", err)
	}
	s.router = setupHijack(s.page, browserCfg.BlockedResourceTypes)

	slog.Info("browser session ready",
		"userAgent", s.profile.UserAgent,
		"viewport", [2]int{s.profile.Width, s.profile.Height},
	)
	return s, nil
}

// Open navigates to url and returns a snapshot once the post has rendered
// or waitBudget has elapsed.
//
// Lifecycle:
//
//  1. Navigate        – bounded by NavigationTimeout
//  2. Ready marker    – wait up to waitBudget for the post to render
//  3. Nudge           – optional scroll past the action bar and back
//  4. Settle          – best-effort DOM stability, bounded by SettleDelay
//  5. Capture         – page.HTML() and the final URL
//  6. Parse           – snapshot; NAV_TIMEOUT if nothing usable rendered
func (s *Session) Open(ctx context.Context, url string, waitBudget time.Duration) (*snapshot.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "session is closed", nil)
	}

	snap, err := s.open(ctx, url, waitBudget)
	if err != nil {
		s.health.RecordFailure()
		return nil, err
	}
	s.health.RecordSuccess()
	return snap, nil
}

func (s *Session) open(ctx context.Context, url string, waitBudget time.Duration) (*snapshot.Snapshot, error) {
	// ── 1. Navigate ──────────────────────────────────────────────────
	navCtx, cancel := context.WithTimeout(ctx, s.scraperCfg.NavigationTimeout)
	defer cancel()
	p := s.page.Context(navCtx)

	if err := p.Navigate(url); err != nil {
		return nil, categorizeError(err, "navigation to target URL failed", s.alive)
	}

	// ── 2. Ready marker ──────────────────────────────────────────────
	ready := true
	if _, err := p.Timeout(waitBudget).Element(readySelector); err != nil {
		if ctx.Err() != nil {
			return nil, categorizeError(ctx.Err(), "navigation canceled", nil)
		}
		slog.Debug("ready marker not found within wait budget", "url", url, "waitBudget", waitBudget, "error", err)
		ready = false
	}

	// ── 3. Nudge ─────────────────────────────────────────────────────
	if ready && s.scraperCfg.ScrollNudge {
		if err := scrollNudge(p, s.rng); err != nil {
			if ctx.Err() != nil {
				return nil, categorizeError(ctx.Err(), "navigation canceled", nil)
			}
			slog.Debug("scroll nudge failed, proceeding", "url", url, "error", err)
		}
	}

	// ── 4. Settle ────────────────────────────────────────────────────
	if ready && s.scraperCfg.SettleDelay > 0 {
		if stableErr := p.Timeout(s.scraperCfg.SettleDelay).WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
			slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
				"error", stableErr,
			)
		}
	}

	// ── 5. Capture ───────────────────────────────────────────────────
	rawHTML, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to extract page HTML", s.alive)
	}
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" || finalURL == "about:blank" {
		finalURL = url
	}

	// ── 6. Parse ─────────────────────────────────────────────────────
	snap, err := snapshot.Parse(rawHTML, finalURL)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "rendered page could not be parsed", err)
	}
	if !ready && !snap.Has(readyMarkers...) {
		return nil, models.NewScrapeError(models.ErrCodeTimeout, "post did not render within wait budget", nil)
	}
	return snap, nil
}

// alive reports whether the browser still answers protocol calls.
func (s *Session) alive() bool {
	if s.browser == nil {
		return false
	}
	_, err := proto.BrowserGetVersion{}.Call(s.browser.Timeout(aliveProbeTimeout))
	return err == nil
}

// ShouldRetire reports whether the session is worn out and should be
// replaced before its next navigation.
func (s *Session) ShouldRetire() bool {
	return s.health.ShouldRetire()
}

// Close stops the page, the browser and the Chromium process. It is safe to
// call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		var errs []error
		if s.router != nil {
			errs = append(errs, s.router.Stop())
		}
		if s.page != nil {
			errs = append(errs, s.page.Close())
		}
		if s.browser != nil {
			errs = append(errs, s.browser.Close())
		}
		if s.launched {
			// Cleanup waits for the process to exit, so it must follow Kill.
			s.launcher.Kill()
			s.launcher.Cleanup()
		}
		s.closeErr = errors.Join(errs...)
		slog.Info("browser session closed", "navigations", s.health.Uses())
	})
	return s.closeErr
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}
