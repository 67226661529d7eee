// Package snapshot provides an immutable, queryable view of a rendered page.
package snapshot

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Snapshot is a frozen view of one page's DOM at one instant. It is owned by
// a single extraction and never mutated after Parse.
type Snapshot struct {
	url  string
	html string
	doc  *goquery.Document
}

// Parse builds a Snapshot from rendered HTML. pageURL is the final URL the
// browser ended on (after redirects).
func Parse(rawHTML, pageURL string) (*Snapshot, error) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("snapshot: parse html: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)
	if u, err := url.Parse(pageURL); err == nil {
		doc.Url = u
	}
	return &Snapshot{url: pageURL, html: rawHTML, doc: doc}, nil
}

// URL returns the page URL the snapshot was taken from.
func (s *Snapshot) URL() string { return s.url }

// HTML returns the raw HTML the snapshot was parsed from. Consumers that
// need a mutable tree must parse their own copy.
func (s *Snapshot) HTML() string { return s.html }

// Find returns all elements matching selector. An invalid selector matches
// nothing.
func (s *Snapshot) Find(selector string) *goquery.Selection {
	m, ok := compile(selector)
	if !ok {
		return s.doc.FindNodes()
	}
	return s.doc.FindMatcher(m)
}

// Has reports whether any of the selectors matches at least one element.
func (s *Snapshot) Has(selectors ...string) bool {
	for _, sel := range selectors {
		if s.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

// Within returns the elements matching selector under sel.
func Within(sel *goquery.Selection, selector string) *goquery.Selection {
	m, ok := compile(selector)
	if !ok {
		return sel.FindNodes()
	}
	return sel.FindMatcher(m)
}

// Matches reports whether the first element of sel matches selector.
func Matches(sel *goquery.Selection, selector string) bool {
	m, ok := compile(selector)
	if !ok {
		return false
	}
	return sel.IsMatcher(m)
}

var selectorCache sync.Map // selector string -> cascadia.Selector (nil when invalid)

// compile parses a CSS selector (comma groups allowed) once and caches it.
func compile(selector string) (cascadia.Selector, bool) {
	if v, ok := selectorCache.Load(selector); ok {
		m, _ := v.(cascadia.Selector)
		return m, m != nil
	}
	m, err := cascadia.Compile(selector)
	if err != nil {
		selectorCache.Store(selector, cascadia.Selector(nil))
		return nil, false
	}
	selectorCache.Store(selector, m)
	return m, true
}
