package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/munihash/internal/core"
	"github.com/JonMunkholm/munihash/internal/kdf"
)

var (
	verifyIterations int
	verifyKeyLength  int
	verifyJSON       bool
)

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().IntVar(&verifyIterations, "iterations", 0, "PBKDF2 iterations (overrides HASH_ITERATIONS)")
	verifyCmd.Flags().IntVar(&verifyKeyLength, "key-length", 0, "Derived key length in bytes (overrides HASH_KEY_LENGTH)")
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "Print results as JSON")
}

var verifyCmd = &cobra.Command{
	Use:   "verify <file.json>...",
	Short: "Recompute the hashes stored in JSON artifacts",
	Long: `Reads each JSON artifact and recomputes every hash with HASH_ITERATIONS
and HASH_KEY_LENGTH. Exits with status 3 when any hash does not match.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

// mismatchError reports artifacts whose hashes did not verify.
type mismatchError struct {
	files      int
	mismatches int
}

func (e *mismatchError) Error() string {
	return fmt.Sprintf("%d mismatching hashes in %d files", e.mismatches, e.files)
}

// VerifyResult is the outcome for one artifact.
type VerifyResult struct {
	File       string          `json:"file"`
	Entries    int             `json:"entries"`
	Mismatches []core.Mismatch `json:"mismatches"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	params := kdf.Params{
		Iterations: cfg.Hash.Iterations,
		KeyLength:  cfg.Hash.KeyLength,
	}
	if verifyIterations > 0 {
		params.Iterations = verifyIterations
	}
	if verifyKeyLength > 0 {
		params.KeyLength = verifyKeyLength
	}

	verifier, err := core.NewVerifier(params)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	results := make([]VerifyResult, 0, len(args))
	failed := &mismatchError{}

	for _, path := range args {
		mismatches, n, err := verifier.VerifyFile(path)
		if err != nil {
			return err
		}
		if mismatches == nil {
			mismatches = []core.Mismatch{}
		}
		results = append(results, VerifyResult{File: path, Entries: n, Mismatches: mismatches})

		if len(mismatches) > 0 {
			failed.files++
			failed.mismatches += len(mismatches)
		}

		if verifyJSON {
			continue
		}
		if len(mismatches) == 0 {
			fmt.Fprintf(out, "OK    %s (%d entries)\n", path, n)
			continue
		}
		fmt.Fprintf(out, "FAIL  %s (%d of %d entries)\n", path, len(mismatches), n)
		for _, m := range mismatches {
			fmt.Fprintf(out, "  [%d] ibge %s: stored %s, expected %s\n", m.Index, m.IBGE, m.Got, m.Want)
		}
	}

	if verifyJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal results: %w", err)
		}
		fmt.Fprintln(out, string(data))
	}

	if failed.mismatches > 0 {
		return failed
	}
	return nil
}
