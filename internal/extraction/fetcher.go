// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

// Package extraction implements the dish extractor (SPEC_FULL §4.4):
// headless-browser page fetches, platform-specific menu parsing, a
// brand filter, product-tag mapping, five-factor confidence scoring,
// and a learning hook that feeds the query planner.
package extraction

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/plantedfoods/discovery-engine/internal/domain"
)

// StealthConfig shapes the headless browser's fingerprint so delivery
// platforms see traffic indistinguishable from an ordinary browser.
type StealthConfig struct {
	UserAgents        []string
	AcceptLanguages   map[string]string // country -> Accept-Language value
	ViewportWidth     int
	ViewportHeight    int
	Timeout           time.Duration
}

// DefaultStealthConfig returns the SPEC_FULL-documented defaults: a
// small rotating user-agent pool, per-country language headers for
// the markets the engine operates in, a common laptop viewport, and a
// 30s fetch timeout.
func DefaultStealthConfig() StealthConfig {
	return StealthConfig{
		UserAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
		},
		AcceptLanguages: map[string]string{
			"CH": "de-CH,de;q=0.9,fr-CH;q=0.8,en;q=0.7",
			"DE": "de-DE,de;q=0.9,en;q=0.8",
			"AT": "de-AT,de;q=0.9,en;q=0.8",
			"FR": "fr-FR,fr;q=0.9,en;q=0.8",
		},
		ViewportWidth:  1366,
		ViewportHeight: 768,
		Timeout:        30 * time.Second,
	}
}

func (c StealthConfig) randomUserAgent() string {
	if len(c.UserAgents) == 0 {
		return "Mozilla/5.0"
	}
	return c.UserAgents[rand.Intn(len(c.UserAgents))]
}

func (c StealthConfig) acceptLanguageFor(country string) string {
	if v, ok := c.AcceptLanguages[country]; ok {
		return v
	}
	return "en-US,en;q=0.9"
}

// PageData is what a fetch returns: raw HTML plus, when the platform
// embeds it, a parsed structured-data blob (page-state JSON or
// JSON-LD) the adapter should prefer over HTML scraping.
type PageData struct {
	URL            string
	HTML           string
	StructuredJSON map[string]any
	FetchedAt      time.Time
}

// ErrCAPTCHADetected is a non-retryable failure: the headless session
// was challenged and scripted retries would only make it worse.
var ErrCAPTCHADetected = fmt.Errorf("extraction: captcha detected")

// ErrSelectorNotFound is non-retryable once a scroll-to-bottom has
// already been attempted; the page genuinely doesn't have a menu.
var ErrSelectorNotFound = fmt.Errorf("extraction: expected selector not found after scroll")

// PageFetcher fetches a single URL through a stealth-configured
// headless browser. No Accept-Language header is derived from
// FetchOptions.Country: the chromedp driver masks navigator.webdriver
// and sets the user agent only. ScrollToBottom triggers lazy-loaded
// menu sections before extraction is attempted.
type PageFetcher interface {
	Fetch(ctx context.Context, opts FetchOptions) (*PageData, error)
}

// FetchOptions parameterises a single page fetch.
type FetchOptions struct {
	URL            string
	Country        string
	ScrollToBottom bool
	WaitForSelector string
}

// browserFetcher is the production PageFetcher, driving a real
// headless Chrome instance. The concrete automation driver is
// injected via the launch/navigate/scroll/content hooks so tests can
// substitute a fake without standing up a browser.
type browserFetcher struct {
	stealth StealthConfig
	driver  browserDriver
}

// browserDriver is the narrow seam between this package and whichever
// headless-automation library drives the real browser (chromedp in
// production). Kept deliberately small: navigate, optionally scroll,
// read back the rendered HTML and any embedded structured-data script
// tags.
type browserDriver interface {
	Navigate(ctx context.Context, url, userAgent, acceptLanguage string, width, height int) error
	ScrollToBottom(ctx context.Context) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	RenderedHTML(ctx context.Context) (string, error)
	StructuredDataScripts(ctx context.Context) ([]string, error)
	Close() error
}

// NewPageFetcher builds the production fetcher around driver, which
// is expected to wrap a chromedp allocator configured for stealth
// (automation flags stripped, a rotating user-agent per call).
func NewPageFetcher(stealth StealthConfig, driver browserDriver) PageFetcher {
	return &browserFetcher{stealth: stealth, driver: driver}
}

func (f *browserFetcher) Fetch(ctx context.Context, opts FetchOptions) (*PageData, error) {
	ctx, cancel := context.WithTimeout(ctx, f.stealth.Timeout)
	defer cancel()

	ua := f.stealth.randomUserAgent()
	lang := f.stealth.acceptLanguageFor(opts.Country)

	if err := f.driver.Navigate(ctx, opts.URL, ua, lang, f.stealth.ViewportWidth, f.stealth.ViewportHeight); err != nil {
		return nil, fmt.Errorf("extraction: navigate %s: %w", opts.URL, err)
	}

	if opts.ScrollToBottom {
		if err := f.driver.ScrollToBottom(ctx); err != nil {
			return nil, fmt.Errorf("extraction: scroll %s: %w", opts.URL, err)
		}
	}

	if opts.WaitForSelector != "" {
		if err := f.driver.WaitForSelector(ctx, opts.WaitForSelector, f.stealth.Timeout); err != nil {
			return nil, ErrSelectorNotFound
		}
	}

	html, err := f.driver.RenderedHTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("extraction: read html %s: %w", opts.URL, err)
	}

	page := &PageData{URL: opts.URL, HTML: html, FetchedAt: time.Now()}
	if scripts, err := f.driver.StructuredDataScripts(ctx); err == nil {
		page.StructuredJSON = mergeStructuredData(scripts)
	}
	return page, nil
}
