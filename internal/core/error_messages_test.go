package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/munihash/internal/catalog"
	"github.com/JonMunkholm/munihash/internal/emit"
	"github.com/JonMunkholm/munihash/internal/history"
	"github.com/JonMunkholm/munihash/internal/kdf"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name:        "nil error returns empty",
			err:         nil,
			wantCode:    "",
			wantMessage: "",
		},
		{
			name:        "invalid parameter",
			err:         fmt.Errorf("create coordinator: %w", kdf.ErrInvalidParameter),
			wantCode:    "KDF001",
			wantMessage: "Hash parameters are invalid",
		},
		{
			name:        "encoding error inside a derivation error",
			err:         &DerivationError{Region: "SP", Index: 1, IBGE: "1", Err: kdf.ErrEncoding},
			wantCode:    "KDF002",
			wantMessage: "A record contains invalid characters",
		},
		{
			name:        "derivation error",
			err:         &DerivationError{Region: "SP", Index: 0, IBGE: "1", Err: errors.New("boom")},
			wantCode:    "DRV001",
			wantMessage: "A hash could not be computed",
		},
		{
			name:        "unit timeout wins over derivation",
			err:         &DerivationError{Region: "SP", Err: fmt.Errorf("unit timeout: %w", context.DeadlineExceeded)},
			wantCode:    "RUN003",
			wantMessage: "The run timed out",
		},
		{
			name:        "write error inside a region error",
			err:         &RegionError{Region: "RJ", Err: fmt.Errorf("%w: publish", emit.ErrWrite)},
			wantCode:    "IO001",
			wantMessage: "Region artifacts could not be written",
		},
		{
			name:        "fetch error",
			err:         fmt.Errorf("%w: status 404", catalog.ErrFetch),
			wantCode:    "CAT001",
			wantMessage: "The catalog could not be fetched",
		},
		{
			name:        "parse error",
			err:         fmt.Errorf("%w: bare quote", catalog.ErrParse),
			wantCode:    "CAT002",
			wantMessage: "The catalog could not be parsed",
		},
		{
			name:        "empty catalog",
			err:         ErrEmptyCatalog,
			wantCode:    "CAT003",
			wantMessage: "The catalog has no usable records",
		},
		{
			name:        "run in progress",
			err:         ErrRunInProgress,
			wantCode:    "RUN001",
			wantMessage: "Another run is in progress",
		},
		{
			name:        "cancelled",
			err:         fmt.Errorf("region AC: %w", context.Canceled),
			wantCode:    "RUN002",
			wantMessage: "The run was cancelled",
		},
		{
			name:        "run not found",
			err:         fmt.Errorf("get run: %w", history.ErrRunNotFound),
			wantCode:    "RUN004",
			wantMessage: "Run not found",
		},
		{
			name:        "unknown region",
			err:         fmt.Errorf("%w: ZZ", ErrUnknownRegion),
			wantCode:    "REG001",
			wantMessage: "Region not found",
		},
		{
			name:        "pattern fallback for stored message",
			err:         errors.New("region RJ: Artifact Write Failed: publish municipios_RJ.csv"),
			wantCode:    "IO001",
			wantMessage: "Region artifacts could not be written",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrRunInProgress)

	expected := "Another run is in progress (Code: RUN001). Wait for the current run to finish"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil error is not user facing",
			err:  nil,
			want: false,
		},
		{
			name: "known error is user facing",
			err:  ErrEmptyCatalog,
			want: true,
		},
		{
			name: "unknown error is not user facing",
			err:  errors.New("random internal error xyz"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsUserFacing(tt.err)
			if got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}
