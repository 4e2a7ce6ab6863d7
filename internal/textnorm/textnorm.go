// File: internal/textnorm/textnorm.go
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldMap covers letters that carry a diacritic but have no canonical
// decomposition, so stripping combining marks alone would leave them intact.
var foldMap = map[rune]rune{
	'đ': 'd',
	'ø': 'o',
	'ł': 'l',
}

// Normalize lowercases s and strips diacritics so that keyword matching is
// case and accent insensitive ("Tìm kiếm" and "tim kiem" normalize equally).
// The result is in NFC form. Normalize never fails; on a transform error it
// falls back to the lowercased input.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	lowered := strings.Map(func(r rune) rune {
		r = unicode.ToLower(r)
		if f, ok := foldMap[r]; ok {
			return f
		}
		return r
	}, s)

	// A transform.Transformer carries state, so the chain is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, lowered)
	if err != nil {
		return lowered
	}
	return out
}

// ContainsAny reports whether the normalized haystack contains any of the
// normalized keywords. Empty keywords never match.
func ContainsAny(haystack string, keywords []string) bool {
	return MatchFirst(haystack, keywords) != ""
}

// shortKeyword is the length up to which an ASCII keyword must match a
// whole token. "otp" would otherwise hit generated class names like "x1otp9q".
const shortKeyword = 3

// MatchFirst returns the first keyword (as given) whose normalized form occurs
// in the normalized haystack, or "" when none does. Short ASCII keywords only
// match whole tokens.
func MatchFirst(haystack string, keywords []string) string {
	if haystack == "" {
		return ""
	}
	h := Normalize(haystack)
	for _, kw := range keywords {
		nk := Normalize(kw)
		if nk == "" {
			continue
		}
		if isShort(nk) {
			if containsToken(h, nk) {
				return kw
			}
			continue
		}
		if strings.Contains(h, nk) {
			return kw
		}
	}
	return ""
}

func isShort(kw string) bool {
	if len(kw) > shortKeyword {
		return false
	}
	for i := 0; i < len(kw); i++ {
		if kw[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// containsToken reports whether kw occurs in h with no letter or digit
// directly on either side.
func containsToken(h, kw string) bool {
	for from := 0; from <= len(h)-len(kw); {
		i := strings.Index(h[from:], kw)
		if i < 0 {
			return false
		}
		start, end := from+i, from+i+len(kw)
		before, _ := utf8.DecodeLastRuneInString(h[:start])
		after, _ := utf8.DecodeRuneInString(h[end:])
		if !isWordRune(before) && !isWordRune(after) {
			return true
		}
		from = start + 1
	}
	return false
}

func isWordRune(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
