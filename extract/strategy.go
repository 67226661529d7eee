// Package extract maps a page snapshot to an EngagementRecord through
// ordered, independent strategy chains, one chain per field.
package extract

import (
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/postpulse/models"
	"github.com/use-agent/postpulse/snapshot"
)

// Page is what strategies see: the snapshot plus the subtree holding the
// focal post (the whole document when it cannot be located).
type Page struct {
	*snapshot.Snapshot
	root *goquery.Selection
}

// NewPage scopes s to its focal post.
func NewPage(s *snapshot.Snapshot) *Page {
	return &Page{Snapshot: s, root: focalPost(s)}
}

// Scoped returns elements matching selector inside the focal post.
func (p *Page) Scoped(selector string) *goquery.Selection {
	return snapshot.Within(p.root, selector)
}

// Strategy is one self-contained way of locating a field's value. Try
// reports a miss with ok == false; it never returns an error.
type Strategy[T any] interface {
	Name() string
	Try(p *Page) (value T, ok bool)
}

type strategyFunc[T any] struct {
	name string
	fn   func(p *Page) (T, bool)
}

func (s strategyFunc[T]) Name() string { return s.name }
func (s strategyFunc[T]) Try(p *Page) (T, bool) { return s.fn(p) }

// StrategyFunc adapts a function to the Strategy interface.
func StrategyFunc[T any](name string, fn func(p *Page) (T, bool)) Strategy[T] {
	return strategyFunc[T]{name: name, fn: fn}
}

// Chain evaluates strategies in order and keeps the first validated value.
type Chain[T any] struct {
	Field      models.Field
	Strategies []Strategy[T]

	// Validate rejects implausible candidates; nil accepts everything.
	Validate func(T) bool
}

// Run returns the first accepted value and the name of the strategy that
// produced it. A strategy that panics counts as a miss.
func (c Chain[T]) Run(p *Page) (value T, source string, ok bool) {
	for _, s := range c.Strategies {
		v, hit := try(s, p)
		if !hit {
			slog.Debug("strategy miss", "field", c.Field, "strategy", s.Name())
			continue
		}
		if c.Validate != nil && !c.Validate(v) {
			slog.Debug("strategy candidate rejected", "field", c.Field, "strategy", s.Name(), "value", v)
			continue
		}
		return v, s.Name(), true
	}
	var zero T
	return zero, "", false
}

func try[T any](s Strategy[T], p *Page) (v T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("strategy panicked", "strategy", s.Name(), "panic", r)
			var zero T
			v, ok = zero, false
		}
	}()
	return s.Try(p)
}
