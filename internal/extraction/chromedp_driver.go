// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// chromedpDriver is the production browserDriver, built around one
// long-lived chromedp allocator context with automation fingerprints
// disabled (navigator.webdriver overridden, the usual headless
// Chrome flags stripped).
type chromedpDriver struct {
	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewChromedpDriver builds a browserDriver backed by a real headless
// Chrome instance, configured for SPEC_FULL §4.4's stealth fetch
// discipline.
func NewChromedpDriver(ctx context.Context) (*chromedpDriver, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	return &chromedpDriver{allocCtx: allocCtx, cancel: cancel}, nil
}

func (d *chromedpDriver) Navigate(ctx context.Context, url, userAgent, acceptLanguage string, width, height int) error {
	taskCtx, _ := chromedp.NewContext(d.allocCtx)
	return chromedp.Run(taskCtx,
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return setStealthHeaders(ctx, userAgent, acceptLanguage)
		}),
		chromedp.Navigate(url),
	)
}

func (d *chromedpDriver) ScrollToBottom(ctx context.Context) error {
	taskCtx, _ := chromedp.NewContext(d.allocCtx)
	return chromedp.Run(taskCtx,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
		chromedp.Sleep(500*time.Millisecond),
	)
}

func (d *chromedpDriver) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	taskCtx, _ := chromedp.NewContext(d.allocCtx)
	if err := chromedp.Run(taskCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		if waitCtx.Err() != nil {
			return ErrSelectorNotFound
		}
		return err
	}
	return nil
}

func (d *chromedpDriver) RenderedHTML(ctx context.Context) (string, error) {
	taskCtx, _ := chromedp.NewContext(d.allocCtx)
	var html string
	if err := chromedp.Run(taskCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", err
	}
	if looksLikeCAPTCHA(html) {
		return "", ErrCAPTCHADetected
	}
	return html, nil
}

func (d *chromedpDriver) StructuredDataScripts(ctx context.Context) ([]string, error) {
	taskCtx, _ := chromedp.NewContext(d.allocCtx)
	var scripts []string
	err := chromedp.Run(taskCtx, chromedp.Evaluate(`
		Array.from(document.querySelectorAll('script[type="application/ld+json"], script#__NEXT_DATA__, script#initial-state'))
			.map(s => s.textContent)
	`, &scripts))
	return scripts, err
}

func (d *chromedpDriver) Close() error {
	d.cancel()
	return nil
}

func setStealthHeaders(ctx context.Context, userAgent, acceptLanguage string) error {
	return chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return chromedp.Evaluate(fmt.Sprintf(
				`Object.defineProperty(navigator, 'webdriver', {get: () => undefined}); navigator.__proto__.userAgent = %q;`,
				userAgent), nil).Do(ctx)
		}),
	)
}

func looksLikeCAPTCHA(html string) bool {
	lower := strings.ToLower(html)
	return strings.Contains(lower, "captcha") || strings.Contains(lower, "are you a robot") || strings.Contains(lower, "cloudflare challenge")
}
