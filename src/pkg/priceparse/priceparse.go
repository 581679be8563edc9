/*
Package priceparse extracts a price from noisy OCR output.

Recognized text from product photos mixes Chinese marketing copy, currency
glyphs (often garbled; Tesseract likes to read ￥ as #) and unrelated
numbers. The parser runs an ordered list of pattern rules and the first
rule that matches wins; there is no scoring and no reordering. A last
fallback scans for bare numbers in a plausible price range.
*/
package priceparse

import (
	"regexp"
	"strconv"
)

// decimal is one or more digits, optionally followed by "." and more digits.
const decimal = `([0-9]+(?:\.[0-9]+)?)`

type rule struct {
	name string
	re   *regexp.Regexp
}

// Rules in priority order. The garbled variants ("折后价#", "折 后 约 #")
// come from real OCR output where the ￥ glyph was misread.
var rules = []rule{
	{"discount-marker", regexp.MustCompile(`(?:折后约￥|折后价￥|￥|折后价#|折后约#|#|折 后 约 #)` + decimal)},
	{"currency-symbol", regexp.MustCompile(`(?:¥|\$|€|£)` + decimal)},
	{"price-label", regexp.MustCompile(`价格?[：:]\s*` + decimal)},
	{"yuan-suffix", regexp.MustCompile(decimal + `\s*元`)},
	{"promo-label", regexp.MustCompile(`(?:促销价|现价|特价|优惠价|活动价)(?:[:：])?\s*` + decimal)},
}

// Bare 2-4 digit tokens with up to two decimal places, not embedded in a
// longer number. Candidates are value-filtered by the fallback range.
var bareNumberRe = regexp.MustCompile(`(?:^|[^0-9.])([0-9]{2,4}(?:\.[0-9]{1,2})?)(?:[^0-9.]|$)`)

const (
	fallbackMin = 10
	fallbackMax = 9999
)

/*
ExtractPrice returns the price found in text as a decimal string, or
ok=false when no rule matches. It never panics, empty input included.
*/
func ExtractPrice(text string) (price string, ok bool) {
	for _, r := range rules {
		match := r.re.FindStringSubmatch(text)
		if match != nil && match[1] != "" {
			return match[1], true
		}
	}

	return fallbackScan(text)
}

// fallbackScan picks the first standalone number whose value lies in
// [fallbackMin, fallbackMax]. Anything outside that range is assumed to be
// a weight, a count or recognition noise rather than a price.
func fallbackScan(text string) (price string, ok bool) {
	for _, match := range bareNumberRe.FindAllStringSubmatch(text, -1) {
		candidate := match[1]
		value, parseErr := strconv.ParseFloat(candidate, 64)
		if parseErr != nil {
			continue
		}
		if value >= fallbackMin && value <= fallbackMax {
			return candidate, true
		}
	}
	return "", false
}
