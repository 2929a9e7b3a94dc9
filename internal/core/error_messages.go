package core

// error_messages.go maps technical errors to user-facing messages with codes
// for support reference.
//
// # Error Codes Reference
//
// # Derivation Errors (KDF001-KDF099, DRV001-DRV099)
//
//	KDF001 - Invalid parameter: iteration count or key length is not positive
//	         Action: Set HASH_ITERATIONS and HASH_KEY_LENGTH to positive values
//
//	KDF002 - Encoding error: a record is not valid UTF-8
//	         Action: Check CATALOG_ENCODING matches the catalog file
//
//	DRV001 - Derivation failed: a hash could not be computed for a region
//	         Action: Check the logs for the failing record
//
// # Output Errors (IO001-IO099)
//
//	IO001 - Write failed: a region's artifacts could not be written
//	        Action: Check OUTPUT_DIR exists and is writable
//
// # Catalog Errors (CAT001-CAT099)
//
//	CAT001 - Fetch failed: the catalog could not be downloaded or read
//	         Action: Check CATALOG_URL or CATALOG_PATH
//
//	CAT002 - Parse failed: the catalog is not readable delimited text
//	         Action: Check CATALOG_DELIMITER and CATALOG_ENCODING
//
//	CAT003 - Empty catalog: no usable records were found
//	         Action: Verify the catalog has data rows with all five columns
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Run in progress: another run holds the output directory
//	         Action: Wait for the current run to finish
//
//	RUN002 - Cancelled: the run was cancelled
//	         Action: Start a new run when ready
//
//	RUN003 - Timeout: the run or a unit timed out
//	         Action: Raise HASH_UNIT_TIMEOUT or lower HASH_ITERATIONS
//
//	RUN004 - Run not found: no run with that id is in history
//	         Action: List recent runs and retry with one of their ids
//
// # Region Errors (REG001-REG099)
//
//	REG001 - Unknown region: no artifacts exist for the region
//	         Action: List regions and retry with one of them
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or check the logs
//
// # Matching
//
// Sentinel errors are matched with errors.Is first, in table order. Errors
// that lost their chain (for example, messages read back from run history)
// fall back to case-insensitive substring patterns.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/munihash/internal/catalog"
	"github.com/JonMunkholm/munihash/internal/emit"
	"github.com/JonMunkholm/munihash/internal/history"
	"github.com/JonMunkholm/munihash/internal/kdf"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorRule maps a sentinel and its message patterns to a user message.
type errorRule struct {
	target   error
	patterns []string
	msg      UserMessage
}

// errorRules is ordered: the first match wins, so specific causes come
// before the wrappers that carry them.
var errorRules = []errorRule{
	{
		target:   kdf.ErrInvalidParameter,
		patterns: []string{"invalid derivation parameter"},
		msg: UserMessage{
			Message: "Hash parameters are invalid",
			Action:  "Set HASH_ITERATIONS and HASH_KEY_LENGTH to positive values",
			Code:    "KDF001",
		},
	},
	{
		target:   kdf.ErrEncoding,
		patterns: []string{"password encoding error"},
		msg: UserMessage{
			Message: "A record contains invalid characters",
			Action:  "Check CATALOG_ENCODING matches the catalog file",
			Code:    "KDF002",
		},
	},
	{
		target:   ErrRunInProgress,
		patterns: []string{"run already in progress"},
		msg: UserMessage{
			Message: "Another run is in progress",
			Action:  "Wait for the current run to finish",
			Code:    "RUN001",
		},
	},
	{
		target:   context.DeadlineExceeded,
		patterns: []string{"context deadline exceeded", "timeout"},
		msg: UserMessage{
			Message: "The run timed out",
			Action:  "Raise HASH_UNIT_TIMEOUT or lower HASH_ITERATIONS",
			Code:    "RUN003",
		},
	},
	{
		target:   context.Canceled,
		patterns: []string{"context canceled"},
		msg: UserMessage{
			Message: "The run was cancelled",
			Action:  "Start a new run when ready",
			Code:    "RUN002",
		},
	},
	{
		target:   ErrDerivation,
		patterns: []string{"derivation failed"},
		msg: UserMessage{
			Message: "A hash could not be computed",
			Action:  "Check the logs for the failing record",
			Code:    "DRV001",
		},
	},
	{
		target:   emit.ErrWrite,
		patterns: []string{"artifact write failed"},
		msg: UserMessage{
			Message: "Region artifacts could not be written",
			Action:  "Check OUTPUT_DIR exists and is writable",
			Code:    "IO001",
		},
	},
	{
		target:   catalog.ErrFetch,
		patterns: []string{"catalog fetch failed"},
		msg: UserMessage{
			Message: "The catalog could not be fetched",
			Action:  "Check CATALOG_URL or CATALOG_PATH",
			Code:    "CAT001",
		},
	},
	{
		target:   catalog.ErrParse,
		patterns: []string{"catalog parse failed"},
		msg: UserMessage{
			Message: "The catalog could not be parsed",
			Action:  "Check CATALOG_DELIMITER and CATALOG_ENCODING",
			Code:    "CAT002",
		},
	},
	{
		target:   ErrEmptyCatalog,
		patterns: []string{"empty catalog"},
		msg: UserMessage{
			Message: "The catalog has no usable records",
			Action:  "Verify the catalog has data rows with all five columns",
			Code:    "CAT003",
		},
	},
	{
		target:   history.ErrRunNotFound,
		patterns: []string{"run not found"},
		msg: UserMessage{
			Message: "Run not found",
			Action:  "List recent runs and retry with one of their ids",
			Code:    "RUN004",
		},
	},
	{
		target:   ErrUnknownRegion,
		patterns: []string{"unknown region", "invalid region code"},
		msg: UserMessage{
			Message: "Region not found",
			Action:  "List regions and retry with one of them",
			Code:    "REG001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the logs",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// A nil error yields the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, r := range errorRules {
		if errors.Is(err, r.target) {
			return r.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, r := range errorRules {
		for _, p := range r.patterns {
			if strings.Contains(errStr, p) {
				return r.msg
			}
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
