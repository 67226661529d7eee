package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/postpulse/models"
	"github.com/use-agent/postpulse/snapshot"
)

// Strategy names for numeric fields, highest specificity first.
const (
	StrategyAriaLabel   = "aria-label"
	StrategyTestID      = "test-id"
	StrategyRolePattern = "role-pattern"
	StrategyIcon        = "icon"
	StrategyLargeNumber = "large-number"
)

const countPattern = `(\d[\d,]*(?:\.\d+)?\s?[kmb]?)`

// ariaPatterns match "<n> <noun>" in lowercased aria-labels. They cover the
// combined group label ("59334 replies, 60690 reposts, 384624 likes, 11384
// bookmarks, 76743504 views") and single buttons ("1,234 likes. like").
var ariaPatterns = map[models.Field]*regexp.Regexp{
	models.FieldReplies:   regexp.MustCompile(countPattern + `\s+(?:repl(?:y|ies)|comments?)\b`),
	models.FieldRetweets:  regexp.MustCompile(countPattern + `\s+(?:reposts?|retweets?)\b`),
	models.FieldLikes:     regexp.MustCompile(countPattern + `\s+(?:likes?|favorites?)\b`),
	models.FieldBookmarks: regexp.MustCompile(countPattern + `\s+(?:bookmarks?|saves?)\b`),
	models.FieldViews:     regexp.MustCompile(countPattern + `\s+views?\b`),
}

// testIDSelectors locate the action button for each metric by its stable
// test identifier. The toggled variants appear once the viewer has acted.
var testIDSelectors = map[models.Field]string{
	models.FieldReplies:   `[data-testid="reply"]`,
	models.FieldRetweets:  `[data-testid="retweet"], [data-testid="unretweet"]`,
	models.FieldLikes:     `[data-testid="like"], [data-testid="unlike"]`,
	models.FieldBookmarks: `[data-testid="bookmark"], [data-testid="removeBookmark"]`,
	models.FieldViews:     `[data-testid="analyticsButton"], a[href$="/analytics"]`,
}

// metricKeywords classify free text or markup. Entries are checked in order
// and the first keyword hit wins.
var metricKeywords = []struct {
	field    models.Field
	keywords []string
}{
	{models.FieldReplies, []string{"reply", "comment"}},
	{models.FieldRetweets, []string{"retweet", "repost", "share"}},
	{models.FieldLikes, []string{"heart", "like", "favorite"}},
	{models.FieldBookmarks, []string{"bookmark"}},
	{models.FieldViews, []string{"analytics", "view"}},
}

func classify(text string) (models.Field, bool) {
	text = strings.ToLower(text)
	for _, mk := range metricKeywords {
		for _, kw := range mk.keywords {
			if strings.Contains(text, kw) {
				return mk.field, true
			}
		}
	}
	return "", false
}

// largeNumberRe is a whole span reading like "76.7M": suffix required, so
// bare years, dates and IDs never match.
var largeNumberRe = regexp.MustCompile(`^\d+(?:\.\d+)?[KMB]$`)

// countChain builds the ordered strategies for one numeric field.
func countChain(f models.Field, cfg Options) Chain[models.Count] {
	strategies := []Strategy[models.Count]{
		StrategyFunc(StrategyAriaLabel, ariaLabelCount(f)),
		StrategyFunc(StrategyTestID, testIDCount(f)),
		StrategyFunc(StrategyRolePattern, rolePatternCount(f)),
		StrategyFunc(StrategyIcon, iconCount(f)),
	}
	if f == models.FieldViews {
		strategies = append(strategies, StrategyFunc(StrategyLargeNumber, largeNumberCount(cfg.ViewsFloor, cfg.MaxPlausibleCount)))
	}
	return Chain[models.Count]{
		Field:      f,
		Strategies: strategies,
		Validate:   plausible(cfg.MaxPlausibleCount),
	}
}

// maxCount folds candidates, keeping the largest known count.
type maxCount struct {
	best models.Count
}

func newMaxCount() *maxCount { return &maxCount{best: models.Unknown} }

func (m *maxCount) add(c models.Count) {
	if c.Known() && c > m.best {
		m.best = c
	}
}

func (m *maxCount) result() (models.Count, bool) {
	return m.best, m.best.Known()
}

func ariaLabelCount(f models.Field) func(p *Page) (models.Count, bool) {
	re := ariaPatterns[f]
	return func(p *Page) (models.Count, bool) {
		acc := newMaxCount()
		p.Scoped("[aria-label]").Each(func(_ int, s *goquery.Selection) {
			label, _ := s.Attr("aria-label")
			for _, m := range re.FindAllStringSubmatch(strings.ToLower(label), -1) {
				acc.add(ParseCount(m[1]))
			}
		})
		return acc.result()
	}
}

func testIDCount(f models.Field) func(p *Page) (models.Count, bool) {
	sel := testIDSelectors[f]
	return func(p *Page) (models.Count, bool) {
		acc := newMaxCount()
		p.Scoped(sel).Each(func(_ int, s *goquery.Selection) {
			acc.add(firstCount(snapshot.Text(s)))
		})
		return acc.result()
	}
}

func rolePatternCount(f models.Field) func(p *Page) (models.Count, bool) {
	return func(p *Page) (models.Count, bool) {
		acc := newMaxCount()
		p.Scoped(`[role="button"], [role="link"]`).Each(func(_ int, s *goquery.Selection) {
			c := firstCount(snapshot.Text(s))
			if !c.Known() {
				return
			}
			if got, ok := classify(markerText(s)); ok && got == f {
				acc.add(c)
			}
		})
		return acc.result()
	}
}

func iconCount(f models.Field) func(p *Page) (models.Count, bool) {
	return func(p *Page) (models.Count, bool) {
		acc := newMaxCount()
		p.Scoped(`button svg, [role="button"] svg, [role="link"] svg`).Each(func(_ int, svg *goquery.Selection) {
			owner := svg.Closest(`button, [role="button"], [role="link"], a`)
			if owner.Length() == 0 {
				return
			}
			c := firstCount(snapshot.Text(owner))
			if !c.Known() {
				return
			}
			if got, ok := classify(glyphMarker(svg, owner)); ok && got == f {
				acc.add(c)
			}
		})
		return acc.result()
	}
}

// markerAttrs are the attributes that name what a control does.
var markerAttrs = []string{"aria-label", "data-testid", "title"}

// markerText collects the identifying markers of a control and everything
// inside it, plus its visible text. Markup itself is never matched, so
// attribute names such as an svg's viewBox cannot pass for a keyword.
func markerText(s *goquery.Selection) string {
	var parts []string
	collect := func(_ int, el *goquery.Selection) {
		for _, attr := range markerAttrs {
			if v, ok := el.Attr(attr); ok && v != "" {
				parts = append(parts, v)
			}
		}
	}
	collect(0, s)
	s.Find("*").Each(collect)
	parts = append(parts, snapshot.Text(s))
	return strings.Join(parts, " ")
}

// glyphMarker collects the identifying markers of an icon: its title,
// aria-label, test id and classes, falling back to the owning button's
// aria-label.
func glyphMarker(svg, owner *goquery.Selection) string {
	var parts []string
	for _, attr := range []string{"aria-label", "data-testid", "class", "data-icon"} {
		if v, ok := svg.Attr(attr); ok {
			parts = append(parts, v)
		}
	}
	if t := strings.TrimSpace(svg.ChildrenFiltered("title").First().Text()); t != "" {
		parts = append(parts, t)
	}
	if len(parts) == 0 {
		if v, ok := owner.Attr("aria-label"); ok {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

func largeNumberCount(floor, max int64) func(p *Page) (models.Count, bool) {
	return func(p *Page) (models.Count, bool) {
		acc := newMaxCount()
		p.Scoped("span").Each(func(_ int, s *goquery.Selection) {
			if s.Closest("time").Length() > 0 {
				return
			}
			text := strings.TrimSpace(s.Text())
			if !largeNumberRe.MatchString(text) {
				return
			}
			c := ParseCount(text)
			if int64(c) >= floor && int64(c) <= max {
				acc.add(c)
			}
		})
		return acc.result()
	}
}
