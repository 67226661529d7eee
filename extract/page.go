package extract

import (
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/postpulse/snapshot"
)

// Options tunes count validation.
type Options struct {
	// MaxPlausibleCount rejects any count above it.
	MaxPlausibleCount int64
	// ViewsFloor is the smallest value the large-number views scan accepts.
	ViewsFloor int64
}

// DefaultOptions returns the production thresholds.
func DefaultOptions() Options {
	return Options{
		MaxPlausibleCount: 100_000_000_000,
		ViewsFloor:        1_000_000,
	}
}

var statusIDRe = regexp.MustCompile(`/status/(\d+)`)

// statusID returns the numeric post ID in a URL or path, or "".
func statusID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	m := statusIDRe.FindStringSubmatch(u.Path)
	if m == nil {
		return ""
	}
	return m[1]
}

// focalPost finds the article that links to the snapshot's own status ID,
// so replies and recommendations on the same page are ignored. Without a
// match the whole document is used.
func focalPost(s *snapshot.Snapshot) *goquery.Selection {
	doc := s.Find("html")
	id := statusID(s.URL())
	if id == "" {
		return doc
	}
	var focal *goquery.Selection
	s.Find("article a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if statusID(href) != id {
			return true
		}
		focal = a.Closest("article")
		return false
	})
	if focal == nil || focal.Length() == 0 {
		return doc
	}
	return focal
}
