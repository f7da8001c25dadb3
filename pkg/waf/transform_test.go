package waf

import "testing"

func TestTransformDecode(t *testing.T) {
	cases := []struct {
		name string
		tf   Transformation
		in   string
		want string
	}{
		{"base64 padded", TransformBase64, "c2VsZWN0IDE=", "select 1"},
		{"base64 raw", TransformBase64, "c2VsZWN0IDE", "select 1"},
		{"base64 invalid unchanged", TransformBase64, "not base64!", "not base64!"},
		{"base64 binary unchanged", TransformBase64, "/////w==", "/////w=="},
		{"html entities", TransformHTML, "&lt;script&gt;", "<script>"},
		{"unicode escape", TransformUnicode, `aAb`, "aAb"},
		{"unicode malformed unchanged", TransformUnicode, `a\uZZZZb`, `a\uZZZZb`},
		{"url escape", TransformURL, "a%20b%3D1", "a b=1"},
		{"url invalid unchanged", TransformURL, "100%", "100%"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.tf.Decode(tc.in); got != tc.want {
				t.Errorf("Decode(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestDecodeChain(t *testing.T) {
	// url decoding first exposes the base64 payload underneath
	chain := []Transformation{TransformURL, TransformBase64}
	got := DecodeChain(chain, "c2VsZWN0IDE%3D")
	if got != "select 1" {
		t.Fatalf("DecodeChain = %q, want %q", got, "select 1")
	}
}
