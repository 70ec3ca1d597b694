package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(verifyCmd)

	resetCmd.Flags().Bool("yes", false, "confirm discarding all data")
	verifyCmd.Flags().Bool("repair", false, "store recomputed balances for drifted customers")
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Replace all data with the demo seed dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return errors.New("reset discards every customer, transaction and order; re-run with --yes to confirm")
		}

		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.svc.ResetAll(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ledger reset to seed data")
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check every stored balance against its transactions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repair, _ := cmd.Flags().GetBool("repair")

		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		mismatches, err := a.svc.VerifyBalances(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(mismatches) == 0 {
			fmt.Fprintln(out, "all balances consistent")
			return nil
		}
		for _, m := range mismatches {
			fmt.Fprintf(out, "%s: stored %s, computed %s\n", m.CustomerID, m.Stored.StringFixed(2), m.Computed.StringFixed(2))
		}
		if !repair {
			return fmt.Errorf("%d balance(s) inconsistent", len(mismatches))
		}
		for _, m := range mismatches {
			if _, err := a.svc.RecomputeBalance(cmd.Context(), m.CustomerID); err != nil {
				return err
			}
		}
		fmt.Fprintf(out, "repaired %d balance(s)\n", len(mismatches))
		return nil
	},
}
