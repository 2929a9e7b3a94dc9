// Package schema defines the municipality record types shared by the catalog
// parser, the derivation pipeline and the artifact serializers.
package schema

import "strings"

// Record is one municipality row of the catalog. All fields are trimmed and
// Region is uppercase.
type Record struct {
	Tom      string `json:"tom"`
	IBGE     string `json:"ibge"`
	NameTom  string `json:"nomeTom"`
	NameIBGE string `json:"nomeIbge"`
	Region   string `json:"uf"`
}

// PreferredName returns the name used to order records within a region.
// The IBGE name wins; the TOM name is the fallback.
func (r Record) PreferredName() string {
	if r.NameIBGE != "" {
		return r.NameIBGE
	}
	return r.NameTom
}

// Missing returns the JSON names of required fields that are empty.
func (r Record) Missing() []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"tom", r.Tom},
		{"ibge", r.IBGE},
		{"nomeTom", r.NameTom},
		{"nomeIbge", r.NameIBGE},
		{"uf", r.Region},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Batch is the ordered list of records of a single region.
type Batch []Record

// Result is a Record plus its derived hash. Embedding keeps the JSON object
// flat: tom, ibge, nomeTom, nomeIbge, uf, hash.
type Result struct {
	Record
	Hash string `json:"hash"`
}

// Column describes one column of the delimited table.
type Column struct {
	Header string
	Value  func(Result) string
}

// ResultColumns is the fixed column order of the delimited table. Changing it
// changes the artifact format.
var ResultColumns = []Column{
	{Header: "codigo_tom", Value: func(r Result) string { return r.Tom }},
	{Header: "codigo_ibge", Value: func(r Result) string { return r.IBGE }},
	{Header: "nome_tom", Value: func(r Result) string { return r.NameTom }},
	{Header: "nome_ibge", Value: func(r Result) string { return r.NameIBGE }},
	{Header: "uf", Value: func(r Result) string { return r.Region }},
	{Header: "hash", Value: func(r Result) string { return r.Hash }},
}

// TableHeader returns the header cells of the delimited table.
func TableHeader() []string {
	out := make([]string, len(ResultColumns))
	for i, c := range ResultColumns {
		out[i] = c.Header
	}
	return out
}

// Values returns the cells of r in ResultColumns order.
func (r Result) Values() []string {
	out := make([]string, len(ResultColumns))
	for i, c := range ResultColumns {
		out[i] = c.Value(r)
	}
	return out
}
