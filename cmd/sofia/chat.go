package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ent0n29/sofia/internal/assistant"
)

type responder interface {
	Respond(ctx context.Context, turn assistant.Turn) assistant.Reply
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	var userID, userName string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to Sofia in the terminal, one message per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, logger, err := build(ctx, opts, true)
			if err != nil {
				return err
			}
			defer func() {
				if err := res.Cleanup(); err != nil {
					logger.Warn("cleanup failed", zap.Error(err))
				}
				_ = logger.Sync()
			}()
			return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), res.Assistant, userID, userName)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "terminal", "user id for session state and history")
	cmd.Flags().StringVar(&userName, "name", "", "display name of the user")
	return cmd
}

// runChat reads one message per line and prints each reply. It stops on
// sair or exit, at end of input, or when ctx ends.
func runChat(ctx context.Context, in io.Reader, out io.Writer, r responder, userID, userName string) error {
	fmt.Fprintln(out, "Sofia pronta. Digite 'sair' para encerrar.")
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "sair", "exit":
			fmt.Fprintln(out, "Até logo! 👋")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return nil
		}
		reply := r.Respond(ctx, assistant.Turn{UserID: userID, UserName: userName, Message: line})
		fmt.Fprintf(out, "Sofia: %s\n", reply.Text)
	}
}
