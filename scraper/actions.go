package scraper

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-rod/rod"
)

// nudgeSteps is how many wheel events each scroll is split into.
const nudgeSteps = 3

// scrollNudge scrolls part of a viewport down and back up, the way a reader
// glances at the action bar. Lazily mounted engagement buttons render in
// response; nothing else about the page changes.
func scrollNudge(p *rod.Page, r *rand.Rand) error {
	res, err := p.Eval(`() => window.innerHeight`)
	if err != nil {
		return fmt.Errorf("failed to get viewport height: %w", err)
	}
	delta := float64(res.Value.Int()) * (0.3 + 0.3*r.Float64())

	if err := p.Mouse.Scroll(0, delta, nudgeSteps); err != nil {
		return fmt.Errorf("scroll down failed: %w", err)
	}
	if err := pause(p, 150*time.Millisecond+time.Duration(r.Int64N(int64(200*time.Millisecond)))); err != nil {
		return err
	}
	if err := p.Mouse.Scroll(0, -delta, nudgeSteps); err != nil {
		return fmt.Errorf("scroll up failed: %w", err)
	}
	return nil
}

// pause sleeps for d unless the page's context ends first.
func pause(p *rod.Page, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-p.GetContext().Done():
		return p.GetContext().Err()
	}
}
