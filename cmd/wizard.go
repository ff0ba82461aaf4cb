package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zdunecki/matchfund/pkg/cli"
	"github.com/zdunecki/matchfund/pkg/flows"
)

var wizardCmd = &cobra.Command{
	Use:       "wizard [flow]",
	Short:     "Run a wizard in the terminal",
	Long:      `Run one of the step-by-step flows (campaign, onboarding, company-application, nonprofit-application) in the terminal.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: flows.Names(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFlow(cmd.Context(), args[0])
	},
}

var listFlowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "List available wizards",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Available wizards:")
		for _, info := range flows.List() {
			fmt.Printf("  - %s: %s (%d steps)\n", info.Name, info.Title, info.Steps)
		}
	},
}

func init() {
	rootCmd.AddCommand(wizardCmd)
	rootCmd.AddCommand(listFlowsCmd)
}

func runFlow(ctx context.Context, name string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	fl, err := flows.Build(name, a.deps())
	if err != nil {
		return err
	}

	out, err := cli.RunWizard(ctx, fl, a.logger)
	if errors.Is(err, cli.ErrCancelled) {
		fmt.Println("Cancelled.")
		return nil
	}
	if err != nil {
		return err
	}
	a.logger.Debug("wizard finished", zap.String("flow", name), zap.String("id", out.ID))
	fmt.Println(cli.Summary(fl.Title, out))
	return nil
}
