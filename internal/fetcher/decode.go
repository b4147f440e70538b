package fetcher

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// utf8Replacement is the UTF-8 encoding of U+FFFD; used to tell replacement
// runes introduced by a lossy decode apart from ones already in the input.
var utf8Replacement = []byte{0xEF, 0xBF, 0xBD}

// decodeBody applies the decode ladder: declared charset, then strict UTF-8,
// then Latin-1 (which cannot fail). Returns the text, the charset that decoded
// it, and false only when every rung fails.
func decodeBody(raw []byte, declared string) (string, string, bool) {
	if declared != "" {
		if text, ok := decodeDeclared(raw, declared); ok {
			return text, strings.ToLower(declared), true
		}
	}

	if utf8.Valid(raw) {
		return string(raw), "utf-8", true
	}

	text, err := charmap.ISO8859_1.NewDecoder().String(string(raw))
	if err != nil {
		return "", "", false
	}
	return text, "latin-1", true
}

// decodeDeclared attempts a strict decode with the charset the response
// declared. Unknown charsets and lossy decodes count as failure so the ladder
// can fall through.
func decodeDeclared(raw []byte, declared string) (string, bool) {
	enc, err := htmlindex.Get(declared)
	if err != nil {
		return "", false
	}
	if enc == unicode.UTF8 {
		if !utf8.Valid(raw) {
			return "", false
		}
		return string(raw), true
	}
	text, err := enc.NewDecoder().String(string(raw))
	if err != nil {
		return "", false
	}
	// x/text decoders substitute U+FFFD instead of erroring; a replacement
	// rune that was not already in the input means the decode was lossy.
	if strings.ContainsRune(text, utf8.RuneError) && !bytes.Contains(raw, utf8Replacement) {
		return "", false
	}
	return text, true
}
