// Package terms extracts significant words from free-text queries and category names.
package terms

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Minimum word lengths, in runes.
const (
	MinQueryTerm    = 3
	MinCategoryTerm = 3
	MinProductTerm  = 4
	MinMentionWord  = 4
)

// searchStopwords carry no product type: units, prepositions, filler verbs.
var searchStopwords = newSet(
	"до", "для", "тысяч", "тыс", "бюджет", "млн", "миллион", "от", "и", "в", "на", "с", "по", "не",
	"какой", "какая", "какие", "нужен", "нужна", "нужно", "хочу", "ищу", "подскажите", "кофейни", "кофейня",
	"руб", "тг", "тенге", "цена", "стоимость", "примерно", "около",
)

// productStopwords is the rerank list. It also drops generic shop words ("кофе", "магазин").
var productStopwords = newSet(
	"до", "для", "тысяч", "тыс", "бюджет", "млн", "миллион", "от", "и", "в", "на", "с", "по", "не",
	"что", "какой", "какая", "какие", "нужен", "нужна", "нужно", "хочу", "ищу", "подскажите",
	"кофейни", "кофейня", "кофе", "магазин", "руб", "тг", "тенге",
)

type set map[string]struct{}

func newSet(words ...string) set {
	s := make(set, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

func (s set) has(w string) bool {
	_, ok := s[w]
	return ok
}

// Words lowercases s, replaces every rune that is neither a word rune nor whitespace
// with a space, and splits on whitespace.
func Words(s string) []string {
	lowered := strings.Map(func(r rune) rune {
		if isWordRune(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Fields(lowered)
}

// Query returns the significant terms used by the category matcher and reversed-order search.
func Query(query string) []string {
	return filter(Words(query), MinQueryTerm, searchStopwords)
}

// Category returns the terms of a category name. No stopword filtering.
func Category(name string) []string {
	return filter(Words(name), MinCategoryTerm, nil)
}

// Product returns the stricter product-type terms used by the reranker.
func Product(query string) []string {
	return filter(Words(query), MinProductTerm, productStopwords)
}

// MentionWords splits a name on runs of non-word runes and keeps words of at least MinMentionWord runes.
func MentionWords(name string) []string {
	parts := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool { return !isWordRune(r) })
	out := parts[:0]
	for _, p := range parts {
		if utf8.RuneCountInString(p) >= MinMentionWord {
			out = append(out, p)
		}
	}
	return out
}

// Reversed joins terms in reverse order with single spaces.
func Reversed(ts []string) string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[len(ts)-1-i] = t
	}
	return strings.Join(out, " ")
}

// Prefix returns the first n runes of s, or s when it is shorter.
func Prefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func filter(words []string, minLen int, stop set) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) < minLen {
			continue
		}
		if stop.has(w) || isDigits(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func isDigits(w string) bool {
	if w == "" {
		return false
	}
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
