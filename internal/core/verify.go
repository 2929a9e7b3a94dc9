package core

import (
	"fmt"
	"os"

	"github.com/JonMunkholm/munihash/internal/emit"
	"github.com/JonMunkholm/munihash/internal/kdf"
	"github.com/JonMunkholm/munihash/internal/schema"
)

// Mismatch is an artifact entry whose stored hash differs from the
// recomputed one.
type Mismatch struct {
	Index int    `json:"index"`
	IBGE  string `json:"ibge"`
	Want  string `json:"want"`
	Got   string `json:"got"`
}

// Verifier recomputes artifact hashes. Salts are re-derived from ibge, so
// nothing but the artifact and the parameters is needed.
type Verifier struct {
	params kdf.Params
}

// NewVerifier returns a Verifier for the given parameters.
func NewVerifier(params kdf.Params) (*Verifier, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Verifier{params: params}, nil
}

// Verify returns the entries whose hash does not match. Want is the
// recomputed hash, Got the stored one.
func (v *Verifier) Verify(results []schema.Result) ([]Mismatch, error) {
	var mismatches []Mismatch
	for i, r := range results {
		want, err := v.params.HashHex(r.Record)
		if err != nil {
			return nil, fmt.Errorf("entry %d (ibge %s): %w", i, r.IBGE, err)
		}
		if want != r.Hash {
			mismatches = append(mismatches, Mismatch{Index: i, IBGE: r.IBGE, Want: want, Got: r.Hash})
		}
	}
	return mismatches, nil
}

// VerifyFile reads a JSON artifact and verifies every entry. It also returns
// the number of entries checked.
func (v *Verifier) VerifyFile(path string) ([]Mismatch, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	results, err := emit.ReadJSON(f)
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", path, err)
	}

	mismatches, err := v.Verify(results)
	return mismatches, len(results), err
}
