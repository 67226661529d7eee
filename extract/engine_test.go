package extract

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/use-agent/postpulse/models"
	"github.com/use-agent/postpulse/snapshot"
)

const focalPage = `<html><head>
<meta property="og:title" content="User One on X: &quot;Hello&quot;">
</head><body>
<article data-testid="tweet">
  <div data-testid="User-Name">
    <div><a href="/u1"><span>User One</span></a></div>
    <div><a href="/u1"><span>@u1</span></a></div>
  </div>
  <div data-testid="tweetText" lang="en"><span>Hello world from the focal post</span></div>
  <a href="/u1/status/1"><time datetime="2025-04-16T19:44:00.000Z">3:44 PM · Apr 16, 2025</time></a>
  <div role="group" aria-label="59334 replies, 60690 reposts, 384624 likes, 11384 bookmarks, 76743504 views">
    <button data-testid="reply"><span>59K</span></button>
    <button data-testid="retweet"><span>60K</span></button>
    <button data-testid="like"><span>384K</span></button>
  </div>
</article>
<article data-testid="tweet">
  <div data-testid="User-Name"><div><span>Someone Else</span></div><div><span>@u2</span></div></div>
  <div data-testid="tweetText" lang="en">A reply that must be ignored</div>
  <a href="/u2/status/2"><time datetime="2025-04-17T00:00:00.000Z">Apr 17</time></a>
  <div role="group" aria-label="9 replies, 9 reposts, 999999999 likes, 9 bookmarks, 999999999 views"></div>
</article>
</body></html>`

const fallbackPage = `<html><body>
<article>
  <a href="/u9/status/9"><time datetime="2025-01-02T03:04:05+02:00">Jan 2</time></a>
  <div lang="en">This post body is long enough</div>
  <div>
    <div role="button"><svg data-testid="iconReply"></svg><span>958</span></div>
    <button data-testid="like"><span>12.3K</span></button>
    <button><svg><title>Bookmark</title></svg><span>7</span></button>
    <div><span>76.7M</span></div>
  </div>
</article>
</body></html>`

const mediaOnlyPage = `<html><body>
<article data-testid="tweet">
  <div data-testid="User-Name">
    <div><span>Media Poster</span></div>
    <div><span>@media</span></div>
  </div>
  <div data-testid="tweetPhoto"><img alt="Image" src="p.jpg"></div>
  <a href="/media/status/5"><time datetime="2025-03-01T12:00:00Z">Mar 1</time></a>
  <div role="group" aria-label="0 replies, 2 reposts, 10 likes, 1 bookmark, 1,500 views"></div>
</article>
</body></html>`

func mustParse(t *testing.T, html, url string) *snapshot.Snapshot {
	t.Helper()
	s, err := snapshot.Parse(html, url)
	if err != nil {
		t.Fatalf("parse %s: %v", url, err)
	}
	return s
}

func TestExtractFocalPost(t *testing.T) {
	e := New(DefaultOptions())
	got := e.Extract(mustParse(t, focalPage, "https://x.com/u1/status/1"))

	want := models.EngagementRecord{
		URL:           "https://x.com/u1/status/1",
		Text:          "Hello world from the focal post",
		Author:        "User One",
		AuthorHandle:  "@u1",
		DatePublished: "2025-04-16T19:44:00Z",
		Likes:         384_624,
		Replies:       59_334,
		Retweets:      60_690,
		Bookmarks:     11_384,
		Views:         76_743_504,
		Status:        models.StatusSuccess,
		Sources: map[models.Field]string{
			models.FieldAuthor:    StrategyUserNameBlock,
			models.FieldHandle:    StrategyUserNameBlock,
			models.FieldText:      StrategyTestID,
			models.FieldDate:      StrategyTimeDatetime,
			models.FieldLikes:     StrategyAriaLabel,
			models.FieldReplies:   StrategyAriaLabel,
			models.FieldRetweets:  StrategyAriaLabel,
			models.FieldBookmarks: StrategyAriaLabel,
			models.FieldViews:     StrategyAriaLabel,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractDeterministic(t *testing.T) {
	e := New(DefaultOptions())
	for _, page := range []string{focalPage, fallbackPage, mediaOnlyPage} {
		snap := mustParse(t, page, "https://x.com/u9/status/9")
		first := e.Extract(snap)
		second := e.Extract(snap)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("second extraction differs (-first +second):\n%s", diff)
		}
	}
}

func TestExtractFallbackOrder(t *testing.T) {
	e := New(DefaultOptions())
	got := e.Extract(mustParse(t, fallbackPage, "https://x.com/u9/status/9"))

	want := models.EngagementRecord{
		URL:           "https://x.com/u9/status/9",
		Text:          "This post body is long enough",
		AuthorHandle:  "@u9",
		DatePublished: "2025-01-02T01:04:05Z",
		Likes:         12_300,
		Replies:       958,
		Retweets:      models.Unknown,
		Bookmarks:     7,
		Views:         76_700_000,
		Status:        models.StatusPartial,
		Sources: map[models.Field]string{
			models.FieldHandle:    StrategyURLPath,
			models.FieldText:      StrategyGenericSelectors,
			models.FieldDate:      StrategyTimeDatetime,
			models.FieldLikes:     StrategyTestID,
			models.FieldReplies:   StrategyRolePattern,
			models.FieldBookmarks: StrategyIcon,
			models.FieldViews:     StrategyLargeNumber,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractMediaOnly(t *testing.T) {
	e := New(DefaultOptions())
	got := e.Extract(mustParse(t, mediaOnlyPage, "https://x.com/media/status/5"))

	if got.Text != models.NoText {
		t.Errorf("Text = %q, want %q", got.Text, models.NoText)
	}
	if _, ok := got.Sources[models.FieldText]; ok {
		t.Errorf("text should have no source, got %q", got.Sources[models.FieldText])
	}
	if got.Replies != 0 || got.Views != 1_500 {
		t.Errorf("Replies, Views = %v, %v; want 0, 1500", got.Replies, got.Views)
	}
	if got.Status != models.StatusSuccess {
		t.Errorf("Status = %s, want success", got.Status)
	}
}

func TestExtractEmptyPageIsPartial(t *testing.T) {
	e := New(DefaultOptions())
	got := e.Extract(mustParse(t, "<html><body><p>Oops.</p></body></html>", "https://x.com/u1/status/1"))
	if got.Status != models.StatusPartial {
		t.Errorf("Status = %s, want partial", got.Status)
	}
	if got.Text != models.NoText || got.Likes != models.Unknown {
		t.Errorf("Text, Likes = %q, %v", got.Text, got.Likes)
	}
	if got.AuthorHandle != "@u1" {
		t.Errorf("AuthorHandle = %q, want @u1 from the URL", got.AuthorHandle)
	}
}

func TestExtractRecoversPanics(t *testing.T) {
	snap := mustParse(t, focalPage, "https://x.com/u1/status/1")

	e := New(DefaultOptions())
	e.date.Validate = func(string) bool { panic("boom") }
	got := e.Extract(snap)
	if got.Status != models.StatusPartial {
		t.Errorf("late panic: Status = %s, want partial", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, models.ErrCodeExtraction) {
		t.Errorf("late panic: ErrorMessage = %q", got.ErrorMessage)
	}

	e = New(DefaultOptions())
	e.author.Validate = func(string) bool { panic("boom") }
	got = e.Extract(snap)
	if got.Status != models.StatusFailed {
		t.Errorf("early panic: Status = %s, want failed", got.Status)
	}
}

func TestStrategyPanicIsMiss(t *testing.T) {
	c := Chain[string]{
		Field: models.FieldText,
		Strategies: []Strategy[string]{
			StrategyFunc("explodes", func(*Page) (string, bool) { panic("boom") }),
			StrategyFunc("works", func(*Page) (string, bool) { return "ok", true }),
		},
	}
	v, src, ok := c.Run(NewPage(mustParse(t, "<p>x</p>", "https://x.com/a/status/1")))
	if !ok || v != "ok" || src != "works" {
		t.Errorf("Run() = %q, %q, %v", v, src, ok)
	}
}

func TestLargeNumberBoundary(t *testing.T) {
	const html = `<html><body><article>
<span>2024</span>
<span>999K</span>
<time><span>5.0M</span></time>
<span>1.5M</span>
<span>3M</span>
<span>200B</span>
</article></body></html>`
	p := NewPage(mustParse(t, html, "https://x.com/a/status/1"))
	got, ok := largeNumberCount(1_000_000, 100_000_000_000)(p)
	if !ok || got != 3_000_000 {
		t.Errorf("largeNumberCount() = %v, %v; want 3000000", got, ok)
	}

	p = NewPage(mustParse(t, `<span>999K</span><span>2024</span>`, "https://x.com/a/status/1"))
	if got, ok := largeNumberCount(1_000_000, 100_000_000_000)(p); ok {
		t.Errorf("below-floor candidates accepted: %v", got)
	}
}

func TestIconButtonNotReadAsViews(t *testing.T) {
	const html = `<html><body><article>
<a href="/u/status/1"><time datetime="2025-01-01T00:00:00Z">Jan 1</time></a>
<div role="button" aria-label="Reply"><svg viewBox="0 0 24 24"><path d="M1 1h22"></path></svg><span>42</span></div>
</article></body></html>`
	got := New(DefaultOptions()).Extract(mustParse(t, html, "https://x.com/u/status/1"))

	if got.Replies != 42 || got.Sources[models.FieldReplies] != StrategyRolePattern {
		t.Errorf("replies = %v from %q, want 42 from %q", got.Replies, got.Sources[models.FieldReplies], StrategyRolePattern)
	}
	if got.Views != models.Unknown {
		t.Errorf("reply count read as views = %v (source %q)", got.Views, got.Sources[models.FieldViews])
	}
}

func TestMarkerTextIgnoresMarkup(t *testing.T) {
	s := mustParse(t, `<div role="button" data-testid="like"><svg viewBox="0 0 24 24" class="r-4qtqp9"><title>Heart</title></svg><span>7</span></div>`, "https://x.com/a/status/1")
	got := markerText(s.Find(`[role="button"]`))
	if strings.Contains(strings.ToLower(got), "viewbox") {
		t.Errorf("markerText() = %q includes markup", got)
	}
	if f, ok := classify(got); !ok || f != models.FieldLikes {
		t.Errorf("classify(%q) = %q, %v; want likes", got, f, ok)
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := map[string]string{
		"2025-04-16T19:44:00.000Z":  "2025-04-16T19:44:00Z",
		"2025-01-02T03:04:05+02:00": "2025-01-02T01:04:05Z",
		" Apr 16, 2025 ":            "Apr 16, 2025",
	}
	for in, want := range tests {
		if got := NormalizeDate(in); got != want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", in, got, want)
		}
	}
}
