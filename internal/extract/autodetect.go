package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// A candidate is either a number followed by a currency token, or a
// bare number with a two-digit decimal part. Bare integers alone match
// too much of a page to be useful.
var autoPriceRe = regexp.MustCompile(`(?i)\d[\d\s.,\x{00A0}]*(?:zł|pln|eur|euro|usd|gbp|\$|€|£)|\d+[.,]\d{2}`)

// Elements whose text is markup plumbing, never a visible price.
var invisibleElements = map[string]struct{}{
	"script":   {},
	"style":    {},
	"noscript": {},
	"template": {},
	"head":     {},
}

// LocateAuto finds a price with no selector supplied: JSON-LD blocks
// first, then a scan over visible text nodes. The returned selector is
// a best-effort CSS path to the enclosing element, empty when the price
// came from structured data.
func LocateAuto(content string) (selector, raw string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", "", fmt.Errorf("parse markup: %w", err)
	}

	if raw, ok := jsonLDPrice(doc); ok {
		return "", raw, nil
	}

	for _, root := range doc.Nodes {
		if sel, text, ok := scanTextNodes(root); ok {
			return sel, text, nil
		}
	}
	return "", "", fmt.Errorf("%w: no candidate text on page", ErrPriceNotFound)
}

func scanTextNodes(n *html.Node) (string, string, bool) {
	if n.Type == html.ElementNode {
		if _, skip := invisibleElements[n.Data]; skip {
			return "", "", false
		}
	}
	if n.Type == html.TextNode {
		if m := autoPriceRe.FindString(n.Data); m != "" {
			if v, err := ParsePrice(m); err == nil && v != 0 {
				return cssPath(n.Parent), strings.TrimSpace(m), true
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if sel, text, ok := scanTextNodes(c); ok {
			return sel, text, true
		}
	}
	return "", "", false
}

// cssPath renders "tag#id" when the element has an id, otherwise
// "tag.class1.class2", otherwise just the tag name.
func cssPath(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	var id, class string
	for _, a := range n.Attr {
		switch a.Key {
		case "id":
			id = a.Val
		case "class":
			class = a.Val
		}
	}
	if id != "" {
		return n.Data + "#" + id
	}
	path := n.Data
	for _, c := range strings.Fields(class) {
		path += "." + c
	}
	return path
}
