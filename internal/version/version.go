// Package version parses plugin version strings into a comparable form.
//
// Plugin vendors are wildly inconsistent: "1.2.0", "1.2.0b3", "12.0 (Build
// 4512)", or nothing at all. A version string is tokenized into numeric and
// alphabetic runs; numeric runs compare numerically, alphabetic runs compare
// case-insensitively, and a numeric token always orders before an alphabetic
// token at the same position. A string that yields no tokens is Unparsed.
// Total ordering is defined only over parsed versions — a parsed version is
// always preferred over an unparsed one, and two unparsed versions compare
// equal.
package version

import "strings"

// Unknown is the sentinel recorded when a bundle carries no usable version.
const Unknown = "unknown"

type tokenKind int

const (
	kindNumeric tokenKind = iota
	kindAlpha
)

type token struct {
	kind tokenKind
	num  int64
	text string
}

// Version is the parse result of one version string. The zero value is
// unparsed with an empty raw string.
type Version struct {
	raw    string
	tokens []token
}

// Parse tokenizes raw into a Version. The Unknown sentinel and strings
// containing no digits or letters produce an unparsed Version.
func Parse(raw string) Version {
	if raw == "" || raw == Unknown {
		return Version{raw: raw}
	}
	return Version{raw: raw, tokens: tokenize(raw)}
}

// Raw returns the original version string.
func (v Version) Raw() string { return v.raw }

// IsParsed reports whether the version yielded at least one comparable token.
func (v Version) IsParsed() bool { return len(v.tokens) > 0 }

// Compare orders two versions. It returns -1 when a orders before b, +1 when
// a orders after b, and 0 when they are equivalent. A parsed version always
// orders after an unparsed one; two unparsed versions are equivalent
// regardless of raw text.
func Compare(a, b Version) int {
	switch {
	case a.IsParsed() && !b.IsParsed():
		return 1
	case !a.IsParsed() && b.IsParsed():
		return -1
	case !a.IsParsed() && !b.IsParsed():
		return 0
	}

	n := len(a.tokens)
	if len(b.tokens) < n {
		n = len(b.tokens)
	}
	for i := 0; i < n; i++ {
		if c := compareToken(a.tokens[i], b.tokens[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a.tokens) < len(b.tokens):
		return -1
	case len(a.tokens) > len(b.tokens):
		return 1
	}
	return 0
}

// Preferred picks the version used for fleet comparison: the short (marketing)
// version when present, the build version otherwise. Both unknown yields an
// unparsed Version.
func Preferred(short, bundle string) Version {
	if short != "" && short != Unknown {
		return Parse(short)
	}
	if bundle != "" && bundle != Unknown {
		return Parse(bundle)
	}
	return Version{raw: Unknown}
}

// Label formats the human-readable version for a record carrying both a short
// and a build version. Returns "" when neither is known.
func Label(short, bundle string) string {
	shortKnown := short != "" && short != Unknown
	bundleKnown := bundle != "" && bundle != Unknown
	switch {
	case !shortKnown && !bundleKnown:
		return ""
	case !shortKnown:
		return bundle
	case !bundleKnown || short == bundle:
		return short
	default:
		return short + " (" + bundle + ")"
	}
}

func compareToken(a, b token) int {
	if a.kind != b.kind {
		// Numeric tokens order before alphabetic ones.
		if a.kind == kindNumeric {
			return -1
		}
		return 1
	}
	if a.kind == kindNumeric {
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
		return 0
	}
	return strings.Compare(a.text, b.text)
}

func tokenize(raw string) []token {
	var tokens []token
	i := 0
	for i < len(raw) {
		c := raw[i]
		switch {
		case c >= '0' && c <= '9':
			j := i
			for j < len(raw) && raw[j] >= '0' && raw[j] <= '9' {
				j++
			}
			var n int64
			for _, d := range raw[i:j] {
				// Saturate instead of overflowing on absurd digit runs.
				if n > (1<<62)/10 {
					n = 1 << 62
					break
				}
				n = n*10 + int64(d-'0')
			}
			tokens = append(tokens, token{kind: kindNumeric, num: n})
			i = j
		case isAlpha(c):
			j := i
			for j < len(raw) && isAlpha(raw[j]) {
				j++
			}
			tokens = append(tokens, token{kind: kindAlpha, text: strings.ToLower(raw[i:j])})
			i = j
		default:
			i++
		}
	}
	return tokens
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
