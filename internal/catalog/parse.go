package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/JonMunkholm/munihash/internal/schema"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrParse wraps failures to read the delimited stream itself.
var ErrParse = errors.New("catalog parse failed")

// DefaultHeaderSearchRows is how many leading rows are searched for the header.
const DefaultHeaderSearchRows = 10

// catalogColumns lists, by position, the accepted header spellings after
// cleanHeader.
var catalogColumns = [][]string{
	{"codigo do municipio - tom", "codigo tom", "codigo_tom", "tom"},
	{"codigo do municipio - ibge", "codigo ibge", "codigo_ibge", "ibge"},
	{"municipio - tom", "municipio tom", "nome tom", "nome_tom"},
	{"municipio - ibge", "municipio ibge", "nome ibge", "nome_ibge"},
	{"uf"},
}

var regionCode = regexp.MustCompile(`^[A-Z]{2}$`)

// ValidationError describes a rejected catalog row.
type ValidationError struct {
	Line   int
	Reason string
	Row    []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Options configures Parse.
type Options struct {
	// Delimiter separates cells. Defaults to ';'.
	Delimiter rune
	// HeaderSearchRows bounds the header search. Defaults to DefaultHeaderSearchRows.
	HeaderSearchRows int
}

// ParseResult holds the accepted records in source order and the rejections.
type ParseResult struct {
	Records  []schema.Record
	Rejected []*ValidationError
	// HeaderLine is the 1-based line of the detected header, 0 when the
	// catalog has none.
	HeaderLine int
}

type row struct {
	line  int
	cells []string
}

// Parse reads delimited catalog text. Only an unreadable stream is an error;
// bad rows land in ParseResult.Rejected.
func Parse(r io.Reader, opts Options) (*ParseResult, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ';'
	}
	if opts.HeaderSearchRows <= 0 {
		opts.HeaderSearchRows = DefaultHeaderSearchRows
	}

	cr := csv.NewReader(r)
	cr.Comma = opts.Delimiter
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	var rows []row
	for {
		cells, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		line, _ := cr.FieldPos(0)
		rows = append(rows, row{line: line, cells: cells})
	}

	result := &ParseResult{}
	start := 0
	if idx := findHeader(rows, opts.HeaderSearchRows); idx >= 0 {
		result.HeaderLine = rows[idx].line
		start = idx + 1
	}

	for _, rw := range rows[start:] {
		if isBlank(rw.cells) {
			continue
		}
		rec, verr := toRecord(rw)
		if verr != nil {
			result.Rejected = append(result.Rejected, verr)
			continue
		}
		result.Records = append(result.Records, rec)
	}

	return result, nil
}

func toRecord(rw row) (schema.Record, *ValidationError) {
	if len(rw.cells) < len(catalogColumns) {
		return schema.Record{}, &ValidationError{
			Line:   rw.line,
			Reason: fmt.Sprintf("row has %d columns, expected %d", len(rw.cells), len(catalogColumns)),
			Row:    rw.cells,
		}
	}

	rec := schema.Record{
		Tom:      strings.TrimSpace(rw.cells[0]),
		IBGE:     strings.TrimSpace(rw.cells[1]),
		NameTom:  strings.TrimSpace(rw.cells[2]),
		NameIBGE: strings.TrimSpace(rw.cells[3]),
		Region:   strings.ToUpper(strings.TrimSpace(rw.cells[4])),
	}

	if missing := rec.Missing(); len(missing) > 0 {
		return schema.Record{}, &ValidationError{
			Line:   rw.line,
			Reason: fmt.Sprintf("empty required field %s", strings.Join(missing, ", ")),
			Row:    rw.cells,
		}
	}
	if !regionCode.MatchString(rec.Region) {
		return schema.Record{}, &ValidationError{
			Line:   rw.line,
			Reason: fmt.Sprintf("invalid region code %q", rec.Region),
			Row:    rw.cells,
		}
	}
	return rec, nil
}

func findHeader(rows []row, limit int) int {
	for i := 0; i < len(rows) && i < limit; i++ {
		if isHeader(rows[i].cells) {
			return i
		}
	}
	return -1
}

func isHeader(cells []string) bool {
	if len(cells) < len(catalogColumns) {
		return false
	}
	for i, accepted := range catalogColumns {
		h := cleanHeader(cells[i])
		ok := false
		for _, a := range accepted {
			if h == a {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// cleanHeader lowercases, strips accents and collapses whitespace so
// "CÓDIGO DO MUNICÍPIO - TOM" matches "codigo do municipio - tom".
func cleanHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, s); err == nil {
		s = stripped
	}
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
