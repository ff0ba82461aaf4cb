package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zdunecki/matchfund/pkg/wizard"
)

var fundAmount float64

var campaignCmd = &cobra.Command{
	Use:   "campaign",
	Short: "Manage matching campaigns",
}

var completeFundingCmd = &cobra.Command{
	Use:   "complete-funding [campaign-id]",
	Short: "Fund and launch a campaign whose creation stopped part way",
	Long: `Resume a campaign that was created but not funded or launched. The escrow stored on
the campaign is used unless --amount is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		progress := func(format string, vals ...any) { fmt.Printf(format, vals...) }
		res, err := a.deps().Launcher.CompleteFunding(cmd.Context(), args[0], fundAmount, progress)
		if err != nil {
			return fmt.Errorf("%s: %w", wizard.UserMessage(err), err)
		}
		fmt.Printf("🎉 Campaign %s is %s\n", args[0], res.Stage)
		return nil
	},
}

func init() {
	completeFundingCmd.Flags().Float64Var(&fundAmount, "amount", 0, "Escrow amount to fund (defaults to the campaign's stored escrow)")
	campaignCmd.AddCommand(completeFundingCmd)
	rootCmd.AddCommand(campaignCmd)
}
