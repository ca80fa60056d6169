package handler

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf16"
)

// asciiJSON encodes v as JSON with every non-ASCII rune escaped, so the
// result is safe to place in an HTTP header.
func asciiJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, r := range string(data) {
		switch {
		case r < 0x80:
			b.WriteRune(r)
		case r > 0xffff:
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&b, `\u%04x\u%04x`, r1, r2)
		default:
			fmt.Fprintf(&b, `\u%04x`, r)
		}
	}
	return b.String(), nil
}
