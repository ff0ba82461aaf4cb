package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zdunecki/matchfund/pkg/cli"
	"github.com/zdunecki/matchfund/pkg/dashboard"
)

var noFallback bool

var dashboardCmd = &cobra.Command{
	Use:   "dashboard [kind...]",
	Short: "Show campaigns, donations, rewards or payments",
	Long: `Load one or more dashboard lists (campaigns, donations, rewards, payments) from the
backend. Without arguments every list is shown. When a load fails, sample data is shown
unless --no-fallback is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds := make([]dashboard.Kind, 0, len(args))
		for _, arg := range args {
			k, err := dashboard.ParseKind(arg)
			if err != nil {
				return err
			}
			kinds = append(kinds, k)
		}
		if len(kinds) == 0 {
			kinds = dashboard.Kinds()
		}

		a, err := setup()
		if err != nil {
			return err
		}
		defer a.close()

		loader := dashboard.NewLoader(a.client, a.logger, a.cfg.Dashboard.FallbackEnabled() && !noFallback)
		views, err := loader.LoadAll(cmd.Context(), kinds...)
		if err != nil {
			return err
		}

		failed := 0
		for i, k := range kinds {
			if i > 0 {
				fmt.Println()
			}
			v := views[k]
			cli.PrintDashboard(os.Stdout, v)
			if v.Err != nil && !v.UsingFallback {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d lists failed to load", failed, len(kinds))
		}
		return nil
	},
}

func init() {
	dashboardCmd.Flags().BoolVar(&noFallback, "no-fallback", false, "Do not show sample data when a load fails")
	rootCmd.AddCommand(dashboardCmd)
}
