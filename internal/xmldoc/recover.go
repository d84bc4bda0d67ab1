package xmldoc

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
)

// declRegex matches the encoding pseudo-attribute of an XML declaration.
var declRegex = regexp.MustCompile(`^(\s*<\?xml[^>]*?encoding\s*=\s*["'])([A-Za-z0-9._:\-]+)(["'])`)

// DetectEncoding returns the character encoding name of data.
// A byte-order mark wins, then the declared encoding, then UTF-8 if the bytes
// are valid UTF-8, then a best-effort guess.
func DetectEncoding(data []byte) string {
	if _, name, certain := charset.DetermineEncoding(data, "text/xml"); certain {
		return name
	}
	if m := declRegex.FindSubmatch(data); m != nil {
		return string(m[2])
	}
	if utf8.Valid(data) {
		return "utf-8"
	}
	_, name, _ := charset.DetermineEncoding(data, "text/xml")
	return name
}

// IsUTF8 reports whether codeset names UTF-8.
func IsUTF8(codeset string) bool {
	return strings.EqualFold(codeset, "utf-8") || strings.EqualFold(codeset, "utf8")
}

// Transcode converts data to UTF-8 from its detected encoding and rewrites the
// declaration to match. Undecodable sequences become U+FFFD. It returns the
// source codeset, or "" when data was already UTF-8 or the encoding is unknown.
func Transcode(data []byte) ([]byte, string) {
	codeset := DetectEncoding(data)
	if IsUTF8(codeset) {
		return data, ""
	}

	enc, err := htmlindex.Get(codeset)
	if err != nil {
		return data, ""
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return data, ""
	}
	out = bytes.TrimPrefix(out, []byte("\uFEFF"))
	out = declRegex.ReplaceAll(out, []byte("${1}UTF-8${3}"))
	return out, codeset
}

// Sanitize strips characters that are illegal in XML 1.0, replaces invalid
// UTF-8 with U+FFFD and escapes ampersands that do not start a reference.
func Sanitize(content []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(content))

	for i := 0; i < len(content); {
		r, size := utf8.DecodeRune(content[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			buf.WriteRune(utf8.RuneError)
		case r == '&':
			if isReference(content[i:]) {
				buf.WriteByte('&')
			} else {
				buf.WriteString("&amp;")
			}
		case isLegalXMLChar(r):
			buf.Write(content[i : i+size])
		}
		i += size
	}
	return buf.Bytes()
}

// isLegalXMLChar reports whether r is allowed by the XML 1.0 Char production.
func isLegalXMLChar(r rune) bool {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

// isReference reports whether s starts with a character or entity reference.
func isReference(s []byte) bool {
	if len(s) < 3 || s[0] != '&' {
		return false
	}
	end := bytes.IndexByte(s, ';')
	if end < 2 || end > 32 {
		return false
	}
	name := s[1:end]
	if name[0] == '#' {
		digits := name[1:]
		if len(digits) > 0 && (digits[0] == 'x' || digits[0] == 'X') {
			digits = digits[1:]
			return len(digits) > 0 && allBytes(digits, isHexDigit)
		}
		return len(digits) > 0 && allBytes(digits, isDigit)
	}
	if !isNameStart(name[0]) {
		return false
	}
	return allBytes(name[1:], isNameByte)
}

func allBytes(b []byte, pred func(byte) bool) bool {
	for _, c := range b {
		if !pred(c) {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool    { return c >= '0' && c <= '9' }
func isHexDigit(c byte) bool { return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') }
func isNameStart(c byte) bool {
	return c == '_' || c == ':' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isNameByte(c byte) bool { return isNameStart(c) || isDigit(c) || c == '-' || c == '.' }
