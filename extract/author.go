package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/postpulse/models"
	"github.com/use-agent/postpulse/snapshot"
)

// Author and handle strategy names.
const (
	StrategyUserNameBlock  = "user-name-block"
	StrategyUserNamesBlock = "user-names-block"
	StrategyOGTitle        = "og-title"
	StrategyHandleLink     = "handle-link"
	StrategyURLPath        = "url-path"
)

var (
	handleRe      = regexp.MustCompile(`^@[A-Za-z0-9_]{1,15}$`)
	profilePathRe = regexp.MustCompile(`^/([A-Za-z0-9_]{1,15})/?$`)
	postPathRe    = regexp.MustCompile(`^/([^/]+)/status/\d+`)
	ogTitleRe     = regexp.MustCompile(`^(.+?) on (?:X|Twitter)\b`)
)

// reservedPaths are first path segments that are never a user.
var reservedPaths = map[string]bool{
	"i": true, "home": true, "status": true, "search": true, "explore": true,
	"hashtag": true, "settings": true, "notifications": true, "messages": true,
}

func authorChain() Chain[string] {
	return Chain[string]{
		Field: models.FieldAuthor,
		Strategies: []Strategy[string]{
			StrategyFunc(StrategyUserNameBlock, blockAuthor(`[data-testid="User-Name"]`)),
			StrategyFunc(StrategyUserNamesBlock, blockAuthor(`[data-testid="User-Names"]`)),
			StrategyFunc(StrategyOGTitle, ogTitleAuthor),
		},
		Validate: nonEmpty,
	}
}

func handleChain() Chain[string] {
	return Chain[string]{
		Field: models.FieldHandle,
		Strategies: []Strategy[string]{
			StrategyFunc(StrategyUserNameBlock, blockHandle),
			StrategyFunc(StrategyHandleLink, linkHandle),
			StrategyFunc(StrategyURLPath, urlHandle),
		},
		Validate: func(s string) bool { return handleRe.MatchString(s) },
	}
}

func nonEmpty(s string) bool { return strings.TrimSpace(s) != "" }

// blockAuthor reads the display name: the first line of the block that is
// neither a handle nor a separator.
func blockAuthor(selector string) func(p *Page) (string, bool) {
	return func(p *Page) (string, bool) {
		for _, line := range snapshot.Lines(p.Scoped(selector).First()) {
			if strings.HasPrefix(line, "@") || line == "·" || IsTimestamp(line) {
				continue
			}
			return line, true
		}
		return "", false
	}
}

// ogTitleAuthor parses "Name on X: ..." from the page's og:title.
func ogTitleAuthor(p *Page) (string, bool) {
	content, ok := p.Find(`meta[property="og:title"]`).First().Attr("content")
	if !ok {
		return "", false
	}
	m := ogTitleRe.FindStringSubmatch(strings.TrimSpace(content))
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func blockHandle(p *Page) (string, bool) {
	for _, line := range snapshot.Lines(p.Scoped(`[data-testid="User-Name"]`).First()) {
		if handleRe.MatchString(line) {
			return line, true
		}
	}
	return "", false
}

// linkHandle takes the first profile link ("/name") in the post.
func linkHandle(p *Page) (string, bool) {
	var handle string
	p.Scoped("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		m := profilePathRe.FindStringSubmatch(href)
		if m == nil || reservedPaths[strings.ToLower(m[1])] {
			return true
		}
		handle = "@" + m[1]
		return false
	})
	return handle, handle != ""
}

// urlHandle derives the handle from "/{handle}/status/{id}".
func urlHandle(p *Page) (string, bool) {
	u, err := url.Parse(p.URL())
	if err != nil {
		return "", false
	}
	m := postPathRe.FindStringSubmatch(u.Path)
	if m == nil || reservedPaths[strings.ToLower(m[1])] {
		return "", false
	}
	return "@" + m[1], true
}
