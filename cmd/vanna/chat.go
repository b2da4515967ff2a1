package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/martinemde/vanna/agent"
	"github.com/martinemde/vanna/server"
	"github.com/martinemde/vanna/user"
)

func newChatCmd(flags *rootFlags) *cobra.Command {
	var (
		email string
		plain bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the agent in the terminal",
		Long: `Starts an interactive session with the agent. Each line is sent as a
message in one conversation. Type "exit" or press Ctrl-D to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			reqCtx := &user.RequestContext{
				Cookies:  map[string]string{},
				Metadata: map[string]any{},
			}
			if email != "" {
				reqCtx.Cookies[a.cfg.Auth.CookieName] = email
			}
			r := newTerminalRenderer(cmd.OutOrStdout(), !plain)
			return chatLoop(cmd.Context(), a.agent, reqCtx, cmd.InOrStdin(), r, !plain)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Chat as this user (sets the identity cookie)")
	cmd.Flags().BoolVar(&plain, "plain", false, "Disable markdown rendering and the prompt")
	return cmd
}

// chatLoop sends each input line to the agent until EOF or "exit".
func chatLoop(ctx context.Context, a *agent.Agent, reqCtx *user.RequestContext, in io.Reader, r *terminalRenderer, prompt bool) error {
	convID := server.NewConversationID()
	scanner := bufio.NewScanner(in)
	for {
		if prompt {
			fmt.Fprint(r.out, titleStyle.Render("> "))
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}
		for c := range a.SendMessage(ctx, reqCtx, line, convID) {
			r.Render(c)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}
