package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var RootCmd = newRootCommand()

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "travelbook",
		Short: "keep travel agency orders in sync with their store",
		Long: `travelbook records travel orders, computes their revenue, cost and profit,
and keeps them in a CSV file, a remote spreadsheet or PostgreSQL.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", os.Getenv("TRAVELBOOK_CONFIG"), "YAML config file path")
	root.PersistentFlags().String("backend", "", "storage backend override (file, sheet, pg, mem)")

	root.AddCommand(ordersCommand())
	root.AddCommand(serverCommand())
	root.AddCommand(migrateCommand())
	return root
}
