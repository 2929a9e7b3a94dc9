package core

import (
	"context"
	"testing"

	"github.com/JonMunkholm/munihash/internal/kdf"
)

// BenchmarkDeriveBatch measures a region-sized batch at production cost.
func BenchmarkDeriveBatch(b *testing.B) {
	c, err := NewCoordinator(CoordinatorConfig{Params: kdf.DefaultParams()})
	if err != nil {
		b.Fatal(err)
	}
	batch := syntheticBatch(64)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.DeriveBatch(context.Background(), "SP", batch); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkDeriveBatch_SingleWorker is the serial baseline.
func BenchmarkDeriveBatch_SingleWorker(b *testing.B) {
	c, err := NewCoordinator(CoordinatorConfig{Params: kdf.DefaultParams(), Workers: 1})
	if err != nil {
		b.Fatal(err)
	}
	batch := syntheticBatch(64)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.DeriveBatch(context.Background(), "SP", batch); err != nil {
			b.Fatal(err)
		}
	}
}
