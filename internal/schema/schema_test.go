package schema

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestPreferredName(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want string
	}{
		{"ibge name wins", Record{NameTom: "SAO PAULO", NameIBGE: "São Paulo"}, "São Paulo"},
		{"falls back to tom name", Record{NameTom: "SAO PAULO"}, "SAO PAULO"},
		{"both empty", Record{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rec.PreferredName(); got != tt.want {
				t.Errorf("PreferredName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMissing(t *testing.T) {
	rec := Record{Tom: "7107", IBGE: " ", NameTom: "SAO PAULO", Region: "SP"}
	want := []string{"ibge", "nomeIbge"}
	if got := rec.Missing(); !reflect.DeepEqual(got, want) {
		t.Errorf("Missing() = %v, want %v", got, want)
	}

	full := Record{Tom: "7107", IBGE: "3550308", NameTom: "SAO PAULO", NameIBGE: "São Paulo", Region: "SP"}
	if got := full.Missing(); len(got) != 0 {
		t.Errorf("Missing() on full record = %v, want none", got)
	}
}

func TestResultJSONFieldOrder(t *testing.T) {
	res := Result{
		Record: Record{Tom: "7107", IBGE: "3550308", NameTom: "SAO PAULO", NameIBGE: "São Paulo", Region: "SP"},
		Hash:   "ab",
	}
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"tom":"7107","ibge":"3550308","nomeTom":"SAO PAULO","nomeIbge":"São Paulo","uf":"SP","hash":"ab"}`
	if string(b) != want {
		t.Errorf("json = %s\nwant   %s", b, want)
	}
}

func TestValuesMatchHeader(t *testing.T) {
	res := Result{
		Record: Record{Tom: "5850", IBGE: "3304557", NameTom: "RIO DE JANEIRO", NameIBGE: "Rio de Janeiro", Region: "RJ"},
		Hash:   "ff",
	}
	header := TableHeader()
	values := res.Values()
	if len(header) != len(values) {
		t.Fatalf("header has %d cells, values %d", len(header), len(values))
	}
	wantHeader := []string{"codigo_tom", "codigo_ibge", "nome_tom", "nome_ibge", "uf", "hash"}
	if !reflect.DeepEqual(header, wantHeader) {
		t.Errorf("TableHeader() = %v, want %v", header, wantHeader)
	}
	wantValues := []string{"5850", "3304557", "RIO DE JANEIRO", "Rio de Janeiro", "RJ", "ff"}
	if !reflect.DeepEqual(values, wantValues) {
		t.Errorf("Values() = %v, want %v", values, wantValues)
	}
}
