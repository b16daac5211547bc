package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/vvka-141/bendsink/internal/config"
	"github.com/vvka-141/bendsink/internal/logging"
	"github.com/vvka-141/bendsink/pkg/bendsink"
)

var (
	logFormats = []string{string(logging.FormatAuto), string(logging.FormatJSON), string(logging.FormatConsole)}
	loadModes  = []string{string(bendsink.LoadModeStaging), string(bendsink.LoadModeInsert)}
)

func completeFromList(values []string, toComplete string) []string {
	var matches []string
	for _, v := range values {
		if strings.HasPrefix(v, toComplete) {
			matches = append(matches, v)
		}
	}
	return matches
}

// completeLogFormats provides shell completion for --log-format.
func completeLogFormats(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return completeFromList(logFormats, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeLoadModes provides shell completion for --mode.
func completeLoadModes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return completeFromList(loadModes, toComplete), cobra.ShellCompDirectiveNoFileComp
}

// completeStreams offers the streams listed in the configuration file.
func completeStreams(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	path := globalFlags.configPath
	if path == "" {
		path = config.ConfigFileName
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	refs := make([]string, len(cfg.Streams))
	for i, s := range cfg.Streams {
		refs[i] = s.String()
	}
	return completeFromList(refs, toComplete), cobra.ShellCompDirectiveNoFileComp
}
