package byteutil

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Utf16leDecode decodes the first len bytes of src (UTF-16LE, no BOM
// expected) to UTF-8, substituting the replacement character for
// ill-formed code units instead of failing the whole decode. This backs
// the GPT partition-name field.
func Utf16leDecode(src []byte, length int) string {
	if length > len(src) {
		length = len(src)
	}
	src = src[:length]

	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	out, _, err := transform.Bytes(dec, src)
	if err != nil {
		// Decoder failed outright (truncated surrogate pair at EOF, etc.);
		// fall back to decoding the largest even-length even prefix.
		if len(src)%2 != 0 {
			src = src[:len(src)-1]
		}
		out, _, _ = transform.Bytes(dec, src)
	}
	return strings.TrimRight(string(out), "\x00")
}
