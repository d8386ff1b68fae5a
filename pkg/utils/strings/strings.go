package strings

import "strings"

// SupplySuffix returns text ending with suffix.
//
// If text has the suffix already, text is returned as it is.
func SupplySuffix(text, suffix string) string {
	if strings.HasSuffix(text, suffix) {
		return text
	}
	return text + suffix
}

// SplitFields splits s by sep, trims spaces around each field and drops empty fields.
//
// example:
//
//	SplitFields("a, b,,c ", ",")  // -> ["a", "b", "c"]
//	SplitFields("", ",")          // -> []
func SplitFields(s string, sep string) []string {
	ret := []string{}
	for _, f := range strings.Split(s, sep) {
		if f = strings.TrimSpace(f); f != "" {
			ret = append(ret, f)
		}
	}
	return ret
}
