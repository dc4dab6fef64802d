// Package extract turns a CSS selector plus raw page content into a
// normalized numeric price. With no selector it falls back to a
// heuristic scan that also discovers one. It is pure: retries and I/O
// belong to the caller.
package extract

// Extract locates and normalizes a price using an explicit selector.
func Extract(content, selector string) (float64, error) {
	raw, err := Locate(content, selector)
	if err != nil {
		return 0, err
	}
	return ParsePrice(raw)
}

// AutoExtract locates a price with no selector and reports the selector
// it discovered along with the normalized value.
func AutoExtract(content string) (string, float64, error) {
	sel, raw, err := LocateAuto(content)
	if err != nil {
		return "", 0, err
	}
	v, err := ParsePrice(raw)
	if err != nil {
		return "", 0, err
	}
	return sel, v, nil
}
