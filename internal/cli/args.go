package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RequireBatchDir validates that exactly one batch_dir argument is provided.
// Returns a helpful error message with usage and examples if missing or too many.
func RequireBatchDir(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf(`missing required argument: <batch_dir>

Usage: %s

Example:
  %s ./batches --stream public.users`, cmd.UseLine(), cmd.CommandPath())
	}
	if len(args) > 1 {
		return fmt.Errorf("accepts 1 arg(s), received %d", len(args))
	}
	return nil
}

// RequireRecordsFile validates that exactly one records_file argument is provided.
func RequireRecordsFile(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf(`missing required argument: <records_file>

Usage: %s

Example:
  %s records.jsonl --stream public.users --out ./batches`, cmd.UseLine(), cmd.CommandPath())
	}
	if len(args) > 1 {
		return fmt.Errorf("accepts 1 arg(s), received %d", len(args))
	}
	return nil
}
