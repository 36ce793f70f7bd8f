package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"aptchat/repository"
)

func newCheckStepsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check-steps <catalog>",
		Short: "Validate a local step catalog (yaml or json)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := repository.LoadStepCatalog(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			problems := catalog.Validate()
			for _, p := range problems {
				fmt.Fprintf(out, "  - %v\n", p)
			}
			if len(problems) > 0 {
				return fmt.Errorf("%s: %d problem(s) in %d steps", args[0], len(problems), catalog.Len())
			}
			fmt.Fprintf(out, "%s: %d steps OK\n", args[0], catalog.Len())
			return nil
		},
	}
}
