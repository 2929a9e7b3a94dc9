package emit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/munihash/internal/schema"
)

// WriteTable writes the header line and one line per result, cells joined by
// delim. Cells are not quoted or escaped.
func WriteTable(w io.Writer, delim string, results []schema.Result) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(schema.TableHeader(), delim) + "\n"); err != nil {
		return err
	}
	for _, r := range results {
		if _, err := bw.WriteString(strings.Join(r.Values(), delim) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteJSON writes results as an indented JSON array. An empty or nil slice
// is written as [].
func WriteJSON(w io.Writer, indent string, results []schema.Result) error {
	if results == nil {
		results = []schema.Result{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", indent)
	enc.SetEscapeHTML(false)
	return enc.Encode(results)
}

// ReadJSON decodes a JSON artifact written by WriteJSON.
func ReadJSON(r io.Reader) ([]schema.Result, error) {
	var results []schema.Result
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&results); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	return results, nil
}
