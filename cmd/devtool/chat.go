package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"order-agent/internal/domain"
	"order-agent/internal/usecase"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant in the terminal",
	Long: `Start an interactive chat. Commands:
  /reset   start a new session
  /state   show the session state and order
  /quit    exit`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	conv, alerts, err := buildConversation(cfg)
	if err != nil {
		return err
	}
	defer alerts.Wait()
	return chatLoop(cmd.Context(), conv, cmd.InOrStdin(), cmd.OutOrStdout())
}

type messageProcessor interface {
	ProcessMessage(ctx context.Context, text string, session *domain.Session) (usecase.Reply, error)
}

func chatLoop(ctx context.Context, conv messageProcessor, in io.Reader, out io.Writer) error {
	var session *domain.Session
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "Type a message, or /quit to exit.")
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			session = nil
			fmt.Fprintln(out, "Started a new session.")
			continue
		case "/state":
			printState(out, session)
			continue
		}

		reply, err := conv.ProcessMessage(ctx, line, session)
		if err != nil {
			var ucErr *usecase.Error
			if errors.As(err, &ucErr) {
				fmt.Fprintf(out, "[%s] %s\n", ucErr.Code, ucErr.Reason)
				continue
			}
			return err
		}
		session = reply.Session
		fmt.Fprintln(out, reply.Response)
	}
}

func printState(out io.Writer, s *domain.Session) {
	if s == nil {
		fmt.Fprintln(out, "No session yet.")
		return
	}
	fmt.Fprintf(out, "session %s state %s\n", s.ID, s.State)
	for _, l := range s.Order.Lines {
		fmt.Fprintf(out, "  %d x %s @ %.2f\n", l.Quantity, l.Flavor, l.UnitPrice)
	}
	fmt.Fprintf(out, "  total %.2f\n", s.Order.Total)
	if s.Order.CustomerName != "" || s.Order.CustomerEmail != "" {
		fmt.Fprintf(out, "  customer %s <%s>\n", s.Order.CustomerName, s.Order.CustomerEmail)
	}
}
