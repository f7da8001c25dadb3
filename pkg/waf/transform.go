package waf

import (
	"encoding/base64"
	"html"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Transformation is one value-decoding step applied before signature
// matching, so that encoded payloads cannot slip past the scan.
type Transformation string

const (
	TransformBase64  Transformation = "base64"
	TransformHTML    Transformation = "html"
	TransformUnicode Transformation = "unicode"
	TransformURL     Transformation = "url"
)

// Decode runs one transformation over a value. A value the
// transformation does not apply to comes back unchanged.
func (t Transformation) Decode(v string) string {
	switch t {
	case TransformBase64:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			decoded, err = base64.RawStdEncoding.DecodeString(v)
		}
		if err != nil || !utf8.Valid(decoded) {
			return v
		}
		return string(decoded)

	case TransformHTML:
		return html.UnescapeString(v)

	case TransformUnicode:
		return decodeUnicodeEscapes(v)

	case TransformURL:
		decoded, err := url.QueryUnescape(v)
		if err != nil {
			return v
		}
		return decoded

	default:
		return v
	}
}

// DecodeChain applies the transformations in order, feeding each step's
// output to the next.
func DecodeChain(chain []Transformation, v string) string {
	for _, t := range chain {
		v = t.Decode(v)
	}
	return v
}

// decodeUnicodeEscapes rewrites \uXXXX escape sequences into their
// runes, leaving malformed sequences untouched.
func decodeUnicodeEscapes(v string) string {
	if !strings.Contains(v, `\u`) {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); {
		if v[i] == '\\' && i+5 < len(v) && (v[i+1] == 'u' || v[i+1] == 'U') {
			if code, err := strconv.ParseUint(v[i+2:i+6], 16, 32); err == nil {
				b.WriteRune(rune(code))
				i += 6
				continue
			}
		}
		b.WriteByte(v[i])
		i++
	}
	return b.String()
}
