package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bendsink",
	Short: "Stage buffered batches into a Databend-compatible warehouse",
	Long: `bendsink moves locally buffered CSV batches into warehouse tables.

Each batch is uploaded to a warehouse stage through a presigned URL, then
loaded with a single COPY INTO per stream. The stage is cleared after the
load; a failed cleanup never fails the load.

Configuration is read from bendsink.yaml (or --config). The connection
string is resolved from --dsn, $BENDSINK_DSN, connection.dsn and
$DATABASE_URL, in that order. Passwords belong in $BENDSINK_PASSWORD or
an --env-file, never on the command line.

Exit Codes:
  0  - Success
  1  - General error
  2  - CLI usage error (invalid arguments or flags)
  3  - Panic or unexpected system error
  10 - Invalid configuration
  11 - Warehouse connection failed
  12 - Stage creation or file upload failed
  13 - COPY INTO or table statement failed
  14 - Invalid namespace, stream or connection identity`,
	SilenceUsage: true,
}

type globalFlagValues struct {
	configPath string
	envFiles   []string
	dsn        string
	logFormat  string
	verbose    bool
}

var globalFlags globalFlagValues

// Execute runs the root command
func Execute() error {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		printVersionInfo(os.Stdout, os.Stderr)
		return nil
	}
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&globalFlags.configPath, "config", "",
		"Path to the configuration file (default: ./bendsink.yaml if present)")
	pf.StringSliceVar(&globalFlags.envFiles, "env-file", nil,
		"Load environment variables from .env files (can be specified multiple times)\n"+
			"Variables already set in the environment are not overridden")
	pf.StringVar(&globalFlags.dsn, "dsn", "",
		"Warehouse connection string (postgres://, mysql:// or databend:// URI, or key=value)\n"+
			"Precedence: --dsn > $BENDSINK_DSN > connection.dsn > $DATABASE_URL")
	pf.StringVar(&globalFlags.logFormat, "log-format", "auto",
		"Log output format: auto|json|console")
	pf.BoolVarP(&globalFlags.verbose, "verbose", "v", false, "Enable verbose output for all commands")

	_ = rootCmd.RegisterFlagCompletionFunc("log-format", completeLogFormats)
}

// getVerboseFlag safely retrieves the verbose flag value
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to get verbose flag: %v\n", err)
		return false
	}
	return verbose
}
