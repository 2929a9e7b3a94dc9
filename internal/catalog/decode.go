package catalog

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Supported catalog encodings.
const (
	EncodingLatin1      = "latin1"
	EncodingWindows1252 = "windows-1252"
	EncodingUTF8        = "utf-8"
)

// NormalizeEncoding maps common spellings to a supported encoding name.
// It returns "" for unknown encodings.
func NormalizeEncoding(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return EncodingLatin1
	case "windows-1252", "cp1252":
		return EncodingWindows1252
	case "utf-8", "utf8", "":
		return EncodingUTF8
	default:
		return ""
	}
}

// NewDecoder wraps r so it yields valid UTF-8 text. For utf-8 input a
// leading BOM is dropped and ill-formed bytes become U+FFFD.
func NewDecoder(r io.Reader, encoding string) (io.Reader, error) {
	switch NormalizeEncoding(encoding) {
	case EncodingLatin1:
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case EncodingWindows1252:
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	case EncodingUTF8:
		t := transform.Chain(xunicode.UTF8BOM.NewDecoder(), runes.ReplaceIllFormed())
		return transform.NewReader(r, t), nil
	default:
		return nil, fmt.Errorf("unsupported catalog encoding %q", encoding)
	}
}
