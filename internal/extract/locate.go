package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

// Attributes some shops use to attach machine-readable product data
// (embedded JSON) to the priced element.
var dataAttrs = []string{"data-product-gtm", "data-product", "data-gtm"}

// attrKeys is the preference order inside attribute JSON.
var attrKeys = []string{"current_price", "price"}

// ldKeys is the field search order inside JSON-LD blocks.
var ldKeys = []string{"price", "current_price", "lowPrice", "highPrice"}

// Locate finds a raw price-like string in page content using an
// explicit selector. Strategies are tried in order, first success wins:
// the matched element's text, embedded JSON in its data attributes, and
// finally any JSON-LD block anywhere in the document.
func Locate(content, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse markup: %w", err)
	}

	sel := doc.Find(selector).First()
	matched := sel.Length() > 0

	if matched {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			if v, perr := ParsePrice(text); perr == nil && v != 0 {
				return text, nil
			}
		}

		for _, attr := range dataAttrs {
			val, ok := sel.Attr(attr)
			if !ok || strings.TrimSpace(val) == "" {
				continue
			}
			for _, key := range attrKeys {
				if r := gjson.Get(val, key); r.Exists() && priceShaped(r) {
					return r.String(), nil
				}
			}
		}
	}

	if raw, ok := jsonLDPrice(doc); ok {
		return raw, nil
	}

	if !matched {
		return "", fmt.Errorf("%w: selector %q", ErrElementNotFound, selector)
	}
	return "", fmt.Errorf("%w: selector %q matched but had no price", ErrPriceNotFound, selector)
}

// jsonLDPrice scans every application/ld+json script for a nested
// price-shaped field, depth-first.
func jsonLDPrice(doc *goquery.Document) (string, bool) {
	var raw string
	var found bool
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		body := strings.TrimSpace(s.Text())
		if body == "" || !gjson.Valid(body) {
			return true
		}
		if v, ok := findPriceField(gjson.Parse(body)); ok {
			raw, found = v, true
			return false
		}
		return true
	})
	return raw, found
}

// findPriceField walks object values first, then list items, returning
// the first field named like a price.
func findPriceField(v gjson.Result) (string, bool) {
	if v.IsObject() {
		for _, key := range ldKeys {
			if f := v.Get(key); f.Exists() && priceShaped(f) {
				return f.String(), true
			}
		}
	}
	if v.IsObject() || v.IsArray() {
		var out string
		var ok bool
		v.ForEach(func(_, child gjson.Result) bool {
			out, ok = findPriceField(child)
			return !ok
		})
		return out, ok
	}
	return "", false
}

func priceShaped(r gjson.Result) bool {
	return r.Type == gjson.String || r.Type == gjson.Number
}
