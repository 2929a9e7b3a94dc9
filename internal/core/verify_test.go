package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/munihash/internal/emit"
	"github.com/JonMunkholm/munihash/internal/kdf"
)

func TestVerifier_DetectsTamperedHash(t *testing.T) {
	c := newTestCoordinator(t, CoordinatorConfig{Workers: 2})
	results, err := c.DeriveBatch(context.Background(), "SP", sampleBatch())
	if err != nil {
		t.Fatalf("DeriveBatch() error = %v", err)
	}

	original := results[1].Hash
	flipped := byte('0')
	if original[0] == '0' {
		flipped = '1'
	}
	results[1].Hash = string(flipped) + original[1:]

	dir := t.TempDir()
	e, err := emit.New(emit.Options{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	arts, err := e.Emit(context.Background(), "SP", results)
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	v, err := NewVerifier(testParams)
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	mismatches, n, err := v.VerifyFile(arts.JSON)
	if err != nil {
		t.Fatalf("VerifyFile() error = %v", err)
	}
	if n != 3 {
		t.Errorf("checked %d entries, want 3", n)
	}
	if len(mismatches) != 1 {
		t.Fatalf("mismatches = %+v, want 1", mismatches)
	}
	m := mismatches[0]
	if m.Index != 1 || m.IBGE != "3304557" || m.Want != original || m.Got != results[1].Hash {
		t.Errorf("mismatch = %+v", m)
	}
}

func TestVerifier_WrongParameters(t *testing.T) {
	c := newTestCoordinator(t, CoordinatorConfig{})
	results, err := c.DeriveBatch(context.Background(), "DF", sampleBatch())
	if err != nil {
		t.Fatalf("DeriveBatch() error = %v", err)
	}

	v, err := NewVerifier(kdf.Params{Iterations: testParams.Iterations + 1, KeyLength: 32})
	if err != nil {
		t.Fatal(err)
	}
	mismatches, err := v.Verify(results)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(mismatches) != len(results) {
		t.Errorf("mismatches = %d, want %d", len(mismatches), len(results))
	}
}

func TestVerifier_Errors(t *testing.T) {
	if _, err := NewVerifier(kdf.Params{}); !errors.Is(err, kdf.ErrInvalidParameter) {
		t.Errorf("NewVerifier(zero) error = %v, want ErrInvalidParameter", err)
	}

	v, err := NewVerifier(testParams)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := v.VerifyFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("VerifyFile(missing) expected error")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"not":"an array"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := v.VerifyFile(bad); err == nil {
		t.Error("VerifyFile(bad) expected error")
	}
}
