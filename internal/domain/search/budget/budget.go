// Package budget extracts implicit price bounds from Russian-language queries.
//
// Patterns run independently in a fixed order: "до N тысяч", "до N млн", "бюджет N"
// (only while no upper bound is set) and "от N тысяч". A later match overwrites an
// earlier upper bound. The extractor is heuristic and never fails; unparsed bounds stay nil.
package budget

import (
	"regexp"
	"strconv"
	"strings"
)

// Go's \b is ASCII-only, so a trailing word boundary after Cyrillic units is spelled out.
const wordEnd = `(?:$|[^\p{L}\p{N}_])`

// RE2 \s is ASCII-only; \p{Zs} adds NBSP and narrow NBSP used as digit-group separators.
const (
	ws     = `[\s\p{Zs}]`
	digits = `(\d[\d\s\p{Zs}]*`
)

var (
	upToThousands = regexp.MustCompile(`(?i)до` + ws + `+` + digits + `)` + ws + `*(тысяч|тыс|к|000)` + wordEnd)
	upToMillions  = regexp.MustCompile(`(?i)до` + ws + `+` + digits + `(?:[.,]\d+)?)` + ws + `*(млн|миллион)` + wordEnd)
	budgetAmount  = regexp.MustCompile(`(?i)бюджет` + ws + `+` + digits + `)`)
	fromThousands = regexp.MustCompile(`(?i)от` + ws + `+` + digits + `)` + ws + `*(тысяч|тыс|к)` + wordEnd)
	spaces        = regexp.MustCompile(ws)
)

// Budget holds the extracted bounds.
type Budget struct {
	Min *float64
	Max *float64
}

// IsEmpty reports whether neither bound was found.
func (b Budget) IsEmpty() bool { return b.Min == nil && b.Max == nil }

// Parse extracts price bounds from query.
func Parse(query string) Budget {
	text := strings.ToLower(strings.TrimSpace(query))
	if text == "" {
		return Budget{}
	}

	var b Budget

	if n, ok := matchInt(upToThousands, text); ok {
		b.Max = scaled(n, 1000)
	}

	if m := upToMillions.FindStringSubmatch(text); m != nil {
		digits := strings.ReplaceAll(spaces.ReplaceAllString(m[1], ""), ",", ".")
		if n, err := strconv.ParseFloat(digits, 64); err == nil {
			v := n * 1_000_000
			b.Max = &v
		}
	}

	if n, ok := matchInt(budgetAmount, text); ok && b.Max == nil {
		b.Max = scaled(n, 10000)
	}

	if n, ok := matchInt(fromThousands, text); ok {
		b.Min = scaled(n, 1000)
	}

	return b
}

// scaled treats n below threshold as thousands and anything else as an absolute amount.
func scaled(n int64, threshold int64) *float64 {
	v := float64(n)
	if n < threshold {
		v = float64(n * 1000)
	}
	return &v
}

func matchInt(re *regexp.Regexp, text string) (int64, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(spaces.ReplaceAllString(m[1], ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
