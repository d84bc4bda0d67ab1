package xmldoc

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/hpungsan/arbor/internal/errors"
)

// Attr returns the value of attribute name, or "" when absent.
func Attr(el *etree.Element, name string) string {
	return el.SelectAttrValue(name, "")
}

// BoolAttr reports whether attribute name holds "1" or "true" (any case).
func BoolAttr(el *etree.Element, name string) bool {
	return ParseBool(Attr(el, name))
}

// ParseBool reports whether s is "1" or "true" (any case).
func ParseBool(s string) bool {
	return s == "1" || strings.EqualFold(s, "true")
}

// FormatBool renders b the way node and widget flags are written.
func FormatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Int64Attr parses the leading integer of attribute name. Absent or
// unparsable values yield 0.
func Int64Attr(el *etree.Element, name string) int64 {
	return ParseInt64Lenient(Attr(el, name))
}

// ParseInt64Lenient parses an optional sign and leading digits of s,
// ignoring leading whitespace and any trailing text. It returns 0 when no
// digits are found or the value overflows.
func ParseInt64Lenient(s string) int64 {
	s = strings.TrimLeft(s, " \t\n\r")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	v, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// IntAttrStrict parses attribute name as an integer. An absent or malformed
// value is a MALFORMED_NUMERIC error.
func IntAttrStrict(el *etree.Element, name string) (int, error) {
	raw := Attr(el, name)
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, errors.NewMalformedNumeric(el.Tag, name, raw)
	}
	return v, nil
}

// SplitInts parses a comma-separated integer list, skipping empty items.
func SplitInts(csv string) []int64 {
	var out []int64
	for _, item := range strings.Split(csv, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, ParseInt64Lenient(item))
	}
	return out
}

// JoinInts renders values as a comma-separated list.
func JoinInts[T ~int | ~int64](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatInt(int64(v), 10)
	}
	return strings.Join(parts, ",")
}
