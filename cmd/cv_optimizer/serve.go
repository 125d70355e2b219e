package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/cv-optimizer/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long:  `Start an HTTP server that exposes document, posting, keyword and task endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.close()

			if cmd.Flags().Changed("port") {
				a.cfg.Port = port
			}

			srv := server.New(a.pipeline, server.Config{
				Port:           a.cfg.Port,
				MaxUploadBytes: a.cfg.MaxUploadBytes,
				Logger:         a.logger,
			})
			return srv.Start(cmd.Context())
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "Port to listen on (overrides config and PORT)")
	return cmd
}
