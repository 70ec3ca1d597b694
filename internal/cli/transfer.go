package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)

	exportCmd.Flags().StringP("out", "o", "", "write to this file instead of stdout")
	importCmd.Flags().StringP("file", "f", "", "file to import")
	importCmd.Flags().Bool("yes", false, "confirm replacing existing data")
	importCmd.MarkFlagRequired("file")
}

var exportCmd = &cobra.Command{
	Use:       "export csv|json",
	Short:     "Export customers as CSV or the full ledger as JSON",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"csv", "json"},
	RunE:      runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("out")

	a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	var w io.Writer = cmd.OutOrStdout()
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}

	switch args[0] {
	case "csv":
		err = a.svc.ExportCustomersCSV(cmd.Context(), w)
	default:
		err = a.svc.ExportSnapshotJSON(cmd.Context(), w)
	}
	if err != nil {
		return err
	}
	if out != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
	}
	return nil
}

var importCmd = &cobra.Command{
	Use:   "import csv|json",
	Short: "Replace customers from CSV, or the full ledger from a JSON export",
	Long: `Importing a CSV replaces every customer and permanently discards all
transactions; each imported balance becomes that customer's opening balance.
Importing JSON replaces customers, transactions and orders.`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"csv", "json"},
	RunE:      runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		return fmt.Errorf("import %s replaces existing data; re-run with --yes to confirm", args[0])
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if args[0] == "csv" {
		customers, err := a.svc.ImportCustomersCSV(cmd.Context(), f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d customers; all transactions were discarded\n", len(customers))
		return nil
	}

	report, err := a.svc.ImportSnapshotJSON(cmd.Context(), f)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
