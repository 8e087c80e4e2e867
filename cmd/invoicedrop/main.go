package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	asJSON    bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "invoicedrop: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoicedrop",
		Short: "InvoiceDrop server and client CLI",
		Long: `InvoiceDrop runs the invoice intake server and talks to a running instance:
upload PDFs, list or fetch invoices, and watch them move through processing.`,
		SilenceUsage: true,
	}
	defaultURL := os.Getenv("INVOICEDROP_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	cmd.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultURL, "Base URL of the InvoiceDrop server")
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print raw JSON instead of a table")
	cmd.AddCommand(
		newServeCmd(),
		newUploadCmd(),
		newListCmd(),
		newGetCmd(),
		newWatchCmd(),
	)
	return cmd
}
