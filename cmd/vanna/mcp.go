package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/martinemde/vanna/mcpserver"
	"github.com/martinemde/vanna/user"
)

func newMCPCmd(flags *rootFlags) *cobra.Command {
	var (
		transport string
		addr      string
		baseURL   string
		userID    string
		groups    []string
	)
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Expose the tools as a Model Context Protocol server",
		Long: `Starts an MCP server whose tools are the agent's tools. Calls run as the
user given by --user and --groups, so group restrictions still apply.

Supported transports:
- stdio (default): standard input and output, for local clients.
- sse: Server-Sent Events over HTTP, for remote clients.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			u := &user.User{ID: userID, Username: userID, GroupMemberships: groups}
			opts := []mcpserver.Option{mcpserver.WithLogger(a.logger)}
			if a.memory != nil {
				opts = append(opts, mcpserver.WithMemory(a.memory))
			}
			srv, err := mcpserver.New("vanna", version, a.registry, u, opts...)
			if err != nil {
				return err
			}

			switch transport {
			case "stdio":
				a.logger.Info("starting mcp server (stdio)")
				return srv.ServeStdio()
			case "sse":
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				if baseURL == "" {
					baseURL = "http://localhost" + addr
				}
				return srv.ServeSSE(ctx, addr, baseURL)
			default:
				return fmt.Errorf("unknown transport %q (supported: stdio, sse)", transport)
			}
		},
	}
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio or sse")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address for sse")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Public base URL for sse (default http://localhost<addr>)")
	cmd.Flags().StringVar(&userID, "user", "mcp", "User ID tool calls run as")
	cmd.Flags().StringSliceVar(&groups, "groups", []string{"user"}, "Groups of the MCP user")
	return cmd
}
