package core

import (
	"errors"
	"fmt"
)

var (
	// ErrDerivation marks a batch that failed because one of its units did.
	ErrDerivation = errors.New("derivation failed")

	// ErrRunInProgress is returned when a run is requested while another
	// one still holds the output directory.
	ErrRunInProgress = errors.New("run already in progress")

	// ErrUnknownRegion is returned for region codes with no artifacts.
	ErrUnknownRegion = errors.New("unknown region")

	// ErrEmptyCatalog is returned when a catalog yields no usable records.
	ErrEmptyCatalog = errors.New("empty catalog")
)

// DerivationError identifies the unit that failed a batch.
type DerivationError struct {
	Region string
	Index  int
	IBGE   string
	Err    error
}

func (e *DerivationError) Error() string {
	return fmt.Sprintf("%s: region %s record %d (ibge %s): %v",
		ErrDerivation.Error(), e.Region, e.Index, e.IBGE, e.Err)
}

// Unwrap exposes both ErrDerivation and the cause to errors.Is/As.
func (e *DerivationError) Unwrap() []error {
	return []error{ErrDerivation, e.Err}
}

// RegionError reports the region whose processing failed.
type RegionError struct {
	Region string
	Err    error
}

func (e *RegionError) Error() string {
	return fmt.Sprintf("region %s: %v", e.Region, e.Err)
}

func (e *RegionError) Unwrap() error {
	return e.Err
}
