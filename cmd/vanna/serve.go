package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/martinemde/vanna/server"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API and web UI",
		Long: `Starts the HTTP server with the streaming chat endpoints:

  POST /api/vanna/v2/chat_sse   Server-Sent Events, one component per event
  POST /api/vanna/v2/chat_poll  all components in one JSON response
  GET  /health
  GET  /metrics                 when metrics are enabled`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			opts := []server.Option{server.WithLogger(a.logger), server.WithCORS(a.cfg.Server.CORS)}
			if a.metrics != nil {
				opts = append(opts, server.WithMetrics(a.metrics))
			}
			srv := server.New(a.agent, opts...)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return srv.ListenAndServe(ctx, addr, a.cfg.Server.ShutdownTimeout)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}
