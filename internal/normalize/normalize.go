package normalize

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// dashes are folded to spaces so "Mathematik-GK" and "Mathematik GK" share a key.
var dashes = strings.NewReplacer(
	"-", " ",
	"‐", " ", // hyphen
	"‑", " ", // non-breaking hyphen
	"‒", " ", // figure dash
	"–", " ", // en dash
	"—", " ", // em dash
	"―", " ", // horizontal bar
)

var brackets = strings.NewReplacer(
	"(", " ", ")", " ",
	"[", " ", "]", " ",
	"{", " ", "}", " ",
)

// letters that do not decompose into base letter + combining mark.
var ligatures = strings.NewReplacer(
	"ß", "ss",
	"æ", "ae",
	"ø", "o",
	"œ", "oe",
	"ł", "l",
)

// Canonicalize maps a raw subject or room label to the lookup key used by the
// mapping files, the seen-label tracker and the debug output.
//
// Course tags such as "GK" or "LK" are kept: "Mathematik" and "Mathematik GK"
// are different courses.
func Canonicalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	s = strings.ToLower(s)
	s = foldAccents(s)
	s = ligatures.Replace(s)
	s = collapse(s)

	s = brackets.Replace(s)
	s = dashes.Replace(s)

	return collapse(s)
}

// GroupVariants groups raw labels by canonical key. Each key maps to the
// sorted, de-duplicated raw spellings behind it. Labels with an empty key are
// dropped.
func GroupVariants(labels []string) map[string][]string {
	seen := make(map[string]map[string]struct{})
	for _, label := range labels {
		key := Canonicalize(label)
		if key == "" {
			continue
		}
		if seen[key] == nil {
			seen[key] = make(map[string]struct{})
		}
		seen[key][label] = struct{}{}
	}

	out := make(map[string][]string, len(seen))
	for key, set := range seen {
		variants := make([]string, 0, len(set))
		for v := range set {
			variants = append(variants, v)
		}
		sort.Strings(variants)
		out[key] = variants
	}
	return out
}

// SortedKeys returns the keys of a grouping in ascending order.
func SortedKeys(groups map[string][]string) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
