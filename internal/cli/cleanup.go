package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/bendsink/pkg/bendsink"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Drop the stage of one or more streams",
	Long: `Cleanup drops each stream's stage together with every file left in it,
for example after a load ran with --keep-stage or failed mid-way.

With --path the stage is kept and only objects under that staging path are
removed; add --file to remove single files from it.

Examples:
  bendsink cleanup --stream public.users
  bendsink cleanup --stream public.users --stream public.orders
  bendsink cleanup --stream public.users --path 2024/01/02/03/6f1c2d3e-4a5b-4c6d-8e7f-901234567890/
  bendsink cleanup --stream public.users --path 2024/01/02/03/6f1c.../ --file users_public_1.csv`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

type cleanupFlagValues struct {
	streams []string
	path    string
	files   []string
	timeout time.Duration
}

var cleanupFlags cleanupFlagValues

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().StringSliceVar(&cleanupFlags.streams, "stream", nil,
		"Stream whose stage is dropped, as namespace.name (can be specified multiple times)\n"+
			"Default: every stream listed in the configuration file")
	cleanupCmd.Flags().StringVar(&cleanupFlags.path, "path", "",
		"Remove only objects under this staging path (YYYY/MM/DD/HH/<connection_id>/) instead of dropping the stage")
	cleanupCmd.Flags().StringSliceVar(&cleanupFlags.files, "file", nil,
		"Staged file to remove under --path (can be specified multiple times)")
	cleanupCmd.Flags().DurationVar(&cleanupFlags.timeout, "timeout", 5*time.Minute, "Timeout for the whole cleanup")

	_ = cleanupCmd.RegisterFlagCompletionFunc("stream", completeStreams)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if len(cleanupFlags.files) > 0 && cleanupFlags.path == "" {
		return fmt.Errorf("--file requires --path: %w", bendsink.ErrInvalidConfig)
	}
	if cleanupFlags.path != "" && len(cleanupFlags.streams) != 1 {
		return fmt.Errorf("--path requires exactly one --stream: %w", bendsink.ErrInvalidConfig)
	}

	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	streams, err := selectStreams(cfg, cleanupFlags.streams, false)
	if err != nil {
		return err
	}
	logger, err := newLogger(getVerboseFlag(cmd))
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cleanupFlags.timeout)
	defer cancel()

	stack, err := openSink(ctx, cfg, logger, sinkOptions{}, 1)
	if err != nil {
		return err
	}
	defer stack.Close()

	if cleanupFlags.path != "" {
		stage, err := stack.sink.RemoveStaged(ctx, streams[0], cleanupFlags.path, cleanupFlags.files)
		if err != nil {
			return fmt.Errorf("stream %s: %w", streams[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\n", stage, cleanupFlags.path)
		return nil
	}

	for _, s := range streams {
		stage, err := stack.sink.DropStage(ctx, s)
		if err != nil {
			return fmt.Errorf("stream %s: %w", s, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), stage)
	}
	return nil
}
