package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the warehouse accepts the statements a load needs",
	Long: `Check connects to the warehouse and creates, then drops, a probe table
and (in staging mode) a probe stage in the destination database.

Examples:
  bendsink check --dsn databend://user@localhost:3307/default
  bendsink check --schema analytics`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

type checkFlagValues struct {
	schema  string
	timeout time.Duration
}

var checkFlags checkFlagValues

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkFlags.schema, "schema", "", "Destination database (overrides schema in config)")
	checkCmd.Flags().DurationVar(&checkFlags.timeout, "timeout", time.Minute, "Timeout for the whole check")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	logger, err := newLogger(getVerboseFlag(cmd))
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(checkFlags.timeout)
	defer cancel()

	stack, err := openSink(ctx, cfg, logger, sinkOptions{schema: checkFlags.schema}, 1)
	if err != nil {
		return err
	}
	defer stack.Close()

	if err := stack.sink.Check(ctx); err != nil {
		return fmt.Errorf("check failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "OK")
	return nil
}
