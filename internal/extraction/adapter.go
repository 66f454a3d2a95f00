// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/plantedfoods/discovery-engine

package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/plantedfoods/discovery-engine/internal/domain"
)

// RawDish is one menu item as lifted off a page, before the brand
// filter or product mapping runs.
type RawDish struct {
	Name        string
	Description string
	Category    string
	Price       float64
	Currency    string
	ImageURL    string
}

// PlatformAdapter knows one delivery platform's URL shape, the
// selector to wait for before scraping, and how to turn a fetched
// page into raw menu rows. SPEC_FULL §4.4 models this as a sealed set
// of variants keyed by platform tag; adapterFor dispatches to one.
type PlatformAdapter interface {
	Platform() domain.PlatformTag
	WaitSelector() string
	MarketCountry(url string) string
	ExtractMenu(page *PageData) ([]RawDish, error)
}

var adapters = map[domain.PlatformTag]PlatformAdapter{}

// AdapterFor returns the registered adapter for a platform tag, or
// false if the platform has no adapter yet.
func AdapterFor(p domain.PlatformTag) (PlatformAdapter, bool) {
	a, ok := adapters[p]
	return a, ok
}

// genericAdapter implements the shared structured-data-then-HTML
// fallback every concrete platform adapter reuses; each platform only
// supplies its wait selector, market-country derivation, and (when
// the embedded page-state shape differs enough to need it) a
// bespoke ExtractMenu override.
type genericAdapter struct {
	platform       domain.PlatformTag
	waitSelector   string
	dishSelector   string // CSS selector for one menu-item card in the HTML fallback
	nameSelector   string
	descSelector   string
	priceSelector  string
}

func (a genericAdapter) Platform() domain.PlatformTag { return a.platform }
func (a genericAdapter) WaitSelector() string          { return a.waitSelector }

func (a genericAdapter) ExtractMenu(page *PageData) ([]RawDish, error) {
	if page.StructuredJSON != nil {
		if dishes := dishesFromStructuredData(page.StructuredJSON); len(dishes) > 0 {
			return dishes, nil
		}
	}
	return a.extractFromHTML(page.HTML)
}

func (a genericAdapter) extractFromHTML(html string) ([]RawDish, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("extraction: parse html: %w", err)
	}

	var dishes []RawDish
	doc.Find(a.dishSelector).Each(func(_ int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.Find(a.nameSelector).First().Text())
		if name == "" {
			return
		}
		desc := strings.TrimSpace(sel.Find(a.descSelector).First().Text())
		priceText := strings.TrimSpace(sel.Find(a.priceSelector).First().Text())
		amount, currency := parsePriceText(priceText)
		img, _ := sel.Find("img").First().Attr("src")
		dishes = append(dishes, RawDish{Name: name, Description: desc, Price: amount, Currency: currency, ImageURL: img})
	})
	if len(dishes) == 0 {
		return nil, ErrSelectorNotFound
	}
	return dishes, nil
}

// dishesFromStructuredData walks an embedded page-state or JSON-LD
// blob looking for a "menu"/"itemListElement" shaped array of items
// with name/description/price fields. The exact key names vary by
// platform so this looks for the field names loosely rather than
// requiring one fixed schema.
func dishesFromStructuredData(data map[string]any) []RawDish {
	var dishes []RawDish
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case map[string]any:
			if name, ok := t["name"].(string); ok {
				if _, hasPrice := t["price"]; hasPrice || t["@type"] == "MenuItem" || t["@type"] == "Product" {
					desc, _ := t["description"].(string)
					amount, currency := priceFromAny(t["price"], t["priceCurrency"])
					img, _ := t["image"].(string)
					dishes = append(dishes, RawDish{Name: name, Description: desc, Price: amount, Currency: currency, ImageURL: img})
					return
				}
			}
			for _, child := range t {
				walk(child)
			}
		case []any:
			for _, child := range t {
				walk(child)
			}
		}
	}
	walk(data)
	return dishes
}

func priceFromAny(price, currency any) (float64, string) {
	cur, _ := currency.(string)
	switch p := price.(type) {
	case float64:
		return p, cur
	case string:
		amt, c := parsePriceText(p)
		if cur == "" {
			cur = c
		}
		return amt, cur
	default:
		return 0, cur
	}
}

func mergeStructuredData(scripts []string) map[string]any {
	merged := map[string]any{}
	for i, raw := range scripts {
		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			continue
		}
		merged[fmt.Sprintf("block_%d", i)] = parsed
	}
	if len(merged) == 0 {
		return nil
	}
	return merged
}

type uberEatsAdapter struct{ genericAdapter }
type woltAdapter struct{ genericAdapter }
type lieferandoAdapter struct{ genericAdapter }
type justEatAdapter struct{ genericAdapter }
type deliverooAdapter struct{ genericAdapter }
type smoodAdapter struct{ genericAdapter }
type eatCHAdapter struct{ genericAdapter }

func init() {
	adapters[domain.PlatformUberEats] = uberEatsAdapter{genericAdapter{
		platform: domain.PlatformUberEats, waitSelector: `[data-testid="store-item-list"]`,
		dishSelector: `[data-testid="store-item"]`, nameSelector: `[data-testid="rich-text"]`,
		descSelector: "p", priceSelector: `[data-testid="item-price"]`,
	}}
	adapters[domain.PlatformWolt] = woltAdapter{genericAdapter{
		platform: domain.PlatformWolt, waitSelector: `[data-test-id="MenuItem"]`,
		dishSelector: `[data-test-id="MenuItem"]`, nameSelector: "h3",
		descSelector: "p", priceSelector: `[data-test-id="item-price"]`,
	}}
	adapters[domain.PlatformLieferando] = lieferandoAdapter{genericAdapter{
		platform: domain.PlatformLieferando, waitSelector: ".dish-list",
		dishSelector: ".dish", nameSelector: ".dish-name",
		descSelector: ".dish-description", priceSelector: ".dish-price",
	}}
	adapters[domain.PlatformJustEat] = justEatAdapter{genericAdapter{
		platform: domain.PlatformJustEat, waitSelector: `[data-qa="menu-list"]`,
		dishSelector: `[data-qa="menu-product"]`, nameSelector: `[data-qa="product-name"]`,
		descSelector: `[data-qa="product-description"]`, priceSelector: `[data-qa="product-price"]`,
	}}
	adapters[domain.PlatformDeliveroo] = deliverooAdapter{genericAdapter{
		platform: domain.PlatformDeliveroo, waitSelector: `[data-testid="menu-item"]`,
		dishSelector: `[data-testid="menu-item"]`, nameSelector: `[data-testid="item-name"]`,
		descSelector: `[data-testid="item-description"]`, priceSelector: `[data-testid="item-price"]`,
	}}
	adapters[domain.PlatformSmood] = smoodAdapter{genericAdapter{
		platform: domain.PlatformSmood, waitSelector: ".menu-item",
		dishSelector: ".menu-item", nameSelector: ".item-title",
		descSelector: ".item-desc", priceSelector: ".item-price",
	}}
	adapters[domain.PlatformEatCH] = eatCHAdapter{genericAdapter{
		platform: domain.PlatformEatCH, waitSelector: ".product",
		dishSelector: ".product", nameSelector: ".product-name",
		descSelector: ".product-description", priceSelector: ".product-price",
	}}
}

func (uberEatsAdapter) MarketCountry(url string) string   { return countryFromTLDOrPath(url) }
func (woltAdapter) MarketCountry(url string) string       { return countryFromTLDOrPath(url) }
func (lieferandoAdapter) MarketCountry(string) string     { return "DE" }
func (justEatAdapter) MarketCountry(url string) string    { return countryFromTLDOrPath(url) }
func (deliverooAdapter) MarketCountry(url string) string  { return countryFromTLDOrPath(url) }
func (smoodAdapter) MarketCountry(string) string          { return "CH" }
func (eatCHAdapter) MarketCountry(string) string          { return "CH" }

// countryFromTLDOrPath looks for a two-letter country segment in the
// URL path (delivery platforms commonly route /ch/zurich/... or
// /de/berlin/...); falls back to "" when none is found, leaving the
// caller's own address data as the source of truth.
func countryFromTLDOrPath(url string) string {
	segments := strings.Split(strings.Trim(stripScheme(url), "/"), "/")
	for _, seg := range segments {
		if len(seg) == 2 && strings.ToUpper(seg) == seg {
			return seg
		}
	}
	for _, seg := range segments {
		if len(seg) == 2 {
			return strings.ToUpper(seg)
		}
	}
	return ""
}

func stripScheme(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		url = url[i+3:]
	}
	if i := strings.Index(url, "/"); i >= 0 {
		return url[i:]
	}
	return ""
}

func parsePriceText(s string) (float64, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ""
	}
	currency := ""
	var raw strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			raw.WriteRune(r)
		case r == 'C' || r == 'H' || r == 'F' || r == '€' || r == '$':
			currency += string(r)
		}
	}
	numeric := raw.String()
	lastSep := strings.LastIndexAny(numeric, ".,")
	var digits strings.Builder
	for i, r := range numeric {
		if r == '.' || r == ',' {
			if i == lastSep {
				digits.WriteByte('.')
			}
			continue
		}
		digits.WriteRune(r)
	}
	var amount float64
	_, _ = fmt.Sscanf(digits.String(), "%f", &amount)
	if currency == "" {
		currency = "CHF"
	} else if strings.Contains(currency, "CHF") {
		currency = "CHF"
	} else if currency == "€" {
		currency = "EUR"
	} else if currency == "$" {
		currency = "USD"
	}
	return amount, currency
}
