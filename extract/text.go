package extract

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/use-agent/postpulse/models"
	"github.com/use-agent/postpulse/snapshot"
)

// Text strategy names.
const (
	StrategyGenericSelectors = "generic-selectors"
	StrategyArticleLine      = "article-longest-line"
	StrategyReadability      = "readability"
)

// Minimum lengths for the looser text strategies; the test-id strategy
// accepts any non-empty body.
const (
	minGenericTextLen = 10
	minLineTextLen    = 20
)

var genericTextSelectors = []string{
	".tweet-text",
	".js-tweet-text",
	"article div[lang]",
}

// timestampPatterns recognise the post timestamp line ("3:44 PM · Apr 16,
// 2025") so it is never mistaken for the body.
var timestampPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\d{1,2}:\d{2}\s*(am|pm)\s*·\s*\d{1,2}\s*\w+\s*\d{4}`),
	regexp.MustCompile(`(?i)\d{1,2}:\d{2}\s*(am|pm)\s*·\s*\w+\s*\d{1,2},?\s*\d{4}`),
	regexp.MustCompile(`(?i)^\d{1,2}:\d{2}\s*(am|pm)$`),
	regexp.MustCompile(`(?i)^\w+\s*\d{1,2},?\s*\d{4}$`),
}

// IsTimestamp reports whether text is shaped like a post timestamp.
func IsTimestamp(text string) bool {
	for _, re := range timestampPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func textChain() Chain[string] {
	return Chain[string]{
		Field: models.FieldText,
		Strategies: []Strategy[string]{
			StrategyFunc(StrategyTestID, testIDText),
			StrategyFunc(StrategyGenericSelectors, genericText),
			StrategyFunc(StrategyArticleLine, articleLongestLine),
			StrategyFunc(StrategyReadability, readabilityText),
		},
		Validate: func(s string) bool {
			return strings.TrimSpace(s) != "" && !IsTimestamp(s)
		},
	}
}

func testIDText(p *Page) (string, bool) {
	return firstText(p, `[data-testid="tweetText"]`, 1)
}

func genericText(p *Page) (string, bool) {
	for _, sel := range genericTextSelectors {
		if t, ok := firstText(p, sel, minGenericTextLen+1); ok {
			return t, true
		}
	}
	return "", false
}

// firstText returns the first element's text under selector that is at
// least minLen runes long and not timestamp-shaped.
func firstText(p *Page, selector string, minLen int) (string, bool) {
	matches := p.Scoped(selector)
	for i := range matches.Length() {
		t := snapshot.Text(matches.Eq(i))
		if len([]rune(t)) >= minLen && !IsTimestamp(t) {
			return t, true
		}
	}
	return "", false
}

// articleLongestLine picks the longest rendered line of the post container.
func articleLongestLine(p *Page) (string, bool) {
	article := p.Scoped("article").First()
	if article.Length() == 0 && snapshot.Matches(p.root, "article") {
		article = p.root
	}
	return longestLine(snapshot.Lines(article))
}

// readabilityText runs Readability over a private parse of the page; the
// algorithm mutates its tree, so the snapshot's own tree is never used.
func readabilityText(p *Page) (string, bool) {
	u, err := url.Parse(p.URL())
	if err != nil {
		return "", false
	}
	article, err := readability.FromReader(strings.NewReader(p.HTML()), u)
	if err != nil {
		return "", false
	}
	var lines []string
	for _, l := range strings.Split(article.TextContent, "\n") {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			lines = append(lines, l)
		}
	}
	return longestLine(lines)
}

func longestLine(lines []string) (string, bool) {
	candidates := make([]string, 0, len(lines))
	for _, l := range lines {
		if len([]rune(l)) > minLineTextLen && !IsTimestamp(l) {
			candidates = append(candidates, l)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len([]rune(candidates[i])) > len([]rune(candidates[j]))
	})
	return candidates[0], true
}
