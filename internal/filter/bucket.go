package filter

import (
	"regexp"
	"strconv"
	"strings"
)

// Bucket is a predefined budget range.
type Bucket struct {
	Upper float64 // exclusive; 0 means unbounded
	Label string
}

// Buckets are the only budget representations shown to ranges-only roles.
var Buckets = []Bucket{
	{Upper: 100_000, Label: "Under $100k tier"},
	{Upper: 300_000, Label: "$100k–$300k tier"},
	{Upper: 1_000_000, Label: "$300k–$1M tier"},
	{Upper: 5_000_000, Label: "$1M–$5M tier"},
	{Upper: 0, Label: "$5M+ tier"},
}

// BucketLabel returns the label of the range containing amount.
func BucketLabel(amount float64) string {
	for _, b := range Buckets {
		if b.Upper == 0 || amount < b.Upper {
			return b.Label
		}
	}
	return Buckets[len(Buckets)-1].Label
}

// IsBucketLabel reports whether s is one of the predefined labels.
func IsBucketLabel(s string) bool {
	for _, b := range Buckets {
		if b.Label == s {
			return true
		}
	}
	return false
}

var moneyPattern = regexp.MustCompile(`(?i)\$\s?(\d{1,3}(?:,\d{3})+|\d+)(\.\d+)?(?:\s*(million|thousand|billion|bn|mm|k|m|b)\b)?`)

// ParseAmount extracts the first dollar figure in text.
func ParseAmount(text string) (float64, bool) {
	m := moneyPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "")+m[2], 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToLower(m[3]) {
	case "k", "thousand":
		v *= 1_000
	case "m", "mm", "million":
		v *= 1_000_000
	case "b", "bn", "billion":
		v *= 1_000_000_000
	}
	return v, true
}
