package main // Entry point package

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var autoMigrate bool

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and chat server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), autoMigrate)
		},
	}
	serve.Flags().BoolVar(&autoMigrate, "migrate", true, "apply pending migrations before serving")

	root := &cobra.Command{
		Use:           "podcast-live",
		Short:         "Live podcast sessions with chat and archival",
		SilenceUsage:  true,
		SilenceErrors: false,
		// serve is the default
		RunE: serve.RunE,
	}
	root.Flags().AddFlagSet(serve.Flags())
	root.AddCommand(serve, newMigrateCmd())
	return root
}
