package main

import (
	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/InvoiceDrop/internal/app"
	"github.com/dharsanguruparan/InvoiceDrop/internal/config"
	"github.com/dharsanguruparan/InvoiceDrop/internal/logging"
)

func newServeCmd() *cobra.Command {
	var configPath, address string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Address = address
			}
			logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults to $"+config.ConfigEnv+")")
	cmd.Flags().StringVarP(&address, "addr", "a", "", "Listen address, overrides config")
	return cmd
}
