package scraper

import (
	"math/rand/v2"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
)

const acceptLanguage = "en-US,en;q=0.9"

// userAgents is a pool of current desktop Chrome user agents.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
}

var viewports = []struct{ width, height int }{
	{1920, 1080},
	{1536, 864},
	{1440, 900},
	{1366, 768},
}

// Profile is the browser identity a session presents for its whole life.
type Profile struct {
	UserAgent      string
	Platform       string
	AcceptLanguage string
	Width          int
	Height         int
}

// PickProfile draws a profile from the built-in pools. A non-empty pinnedUA
// replaces the drawn user agent.
func PickProfile(r *rand.Rand, pinnedUA string) Profile {
	ua := userAgents[r.IntN(len(userAgents))]
	if pinnedUA != "" {
		ua = pinnedUA
	}
	vp := viewports[r.IntN(len(viewports))]
	return Profile{
		UserAgent:      ua,
		Platform:       platformFor(ua),
		AcceptLanguage: acceptLanguage,
		Width:          vp.width,
		Height:         vp.height,
	}
}

// platformFor keeps navigator.platform consistent with the user agent.
func platformFor(ua string) string {
	switch {
	case strings.Contains(ua, "Windows"):
		return "Win32"
	case strings.Contains(ua, "Macintosh"):
		return "MacIntel"
	default:
		return "Linux x86_64"
	}
}

// Headers returns the extra request headers sent with every navigation.
func (p Profile) Headers() map[string]string {
	return map[string]string{
		"Accept-Language": p.AcceptLanguage,
		"Referer":         "https://www.google.com/",
	}
}

// apply installs the profile on page. It must run before the first
// navigation: stealth JS and overrides only affect later documents.
func (p Profile) apply(page *rod.Page) error {
	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		return err
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      p.UserAgent,
		AcceptLanguage: p.AcceptLanguage,
		Platform:       p.Platform,
	}); err != nil {
		return err
	}
	if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(p.Headers())}).Call(page); err != nil {
		return err
	}
	return page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             p.Width,
		Height:            p.Height,
		DeviceScaleFactor: 1,
	})
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
