// Package cmd holds the aptchat command line.
package cmd

import (
	"github.com/spf13/cobra"

	"aptchat/logging"
)

// Version is overridden at build time with -ldflags "-X aptchat/cmd.Version=...".
var Version = "dev"

type rootOptions struct {
	configFile string
	verbose    bool
}

// NewRootCommand builds the aptchat command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "aptchat",
		Short:         "Conversational onboarding service: assessment, scenarios, chat and training quiz",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "info"
			if opts.verbose {
				level = "debug"
			}
			_, err := logging.Init(level)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync()
		},
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "path to config file (default: ./config/config.yaml)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCommand(opts),
		newCheckStepsCommand(),
		newVersionCommand(),
	)
	return root
}
