package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gmsas95/myrai-care/internal/actions"
	"github.com/gmsas95/myrai-care/internal/agent"
)

// OneShot sends a single message and prints the reply
func (a *App) OneShot(ctx context.Context, out io.Writer, userID, msg string) error {
	resp, err := a.Agent.Chat(ctx, agent.ChatRequest{UserID: userID, Message: msg})
	if err != nil {
		return err
	}
	printReply(out, resp)
	return nil
}

// Interactive runs a read-eval loop until EOF or an exit command. Slash
// commands answer pending confirmations.
func (a *App) Interactive(ctx context.Context, in io.Reader, out io.Writer, userID string) error {
	fmt.Fprintln(out, "Myrai - Interactive Mode")
	fmt.Fprintln(out, "Type 'exit' to leave, '/help' for commands")
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "exit", "quit", "q":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}

		if strings.HasPrefix(input, "/") {
			if err := a.command(ctx, out, userID, input); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			}
			continue
		}

		resp, err := a.Agent.Chat(ctx, agent.ChatRequest{UserID: userID, Message: input})
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		printReply(out, resp)
	}
}

func (a *App) command(ctx context.Context, out io.Writer, userID, input string) error {
	fields := strings.Fields(input)
	switch fields[0] {
	case "/help":
		PrintInteractiveHelp(out)
		return nil

	case "/pending":
		pending, err := a.Agent.Pending(ctx, userID)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Fprintln(out, "Nothing waiting for confirmation.")
			return nil
		}
		for _, p := range pending {
			fmt.Fprintf(out, "  %s  %s\n", p.RequestID, p.Prompt)
		}
		return nil

	case "/confirm", "/yes":
		id, err := requestID(ctx, a, userID, fields)
		if err != nil {
			return err
		}
		res, err := a.Agent.Confirm(ctx, userID, id, nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Myrai: %s\n\n", res.Message)
		return nil

	case "/reject", "/no":
		id, err := requestID(ctx, a, userID, fields)
		if err != nil {
			return err
		}
		if err := a.Agent.Reject(ctx, userID, id); err != nil {
			return err
		}
		fmt.Fprintln(out, "Myrai: Okay, I won't do that.")
		fmt.Fprintln(out)
		return nil

	case "/safe":
		if err := a.Agent.ResolveEmergency(ctx, userID); err != nil {
			return err
		}
		fmt.Fprintln(out, "Myrai: I'm glad you're safe.")
		fmt.Fprintln(out)
		return nil
	}
	return fmt.Errorf("unknown command %s", fields[0])
}

// requestID takes the id argument, or the only pending request when there is
// exactly one.
func requestID(ctx context.Context, a *App, userID string, fields []string) (string, error) {
	if len(fields) > 1 {
		return fields[1], nil
	}
	pending, err := a.Agent.Pending(ctx, userID)
	if err != nil {
		return "", err
	}
	switch len(pending) {
	case 0:
		return "", fmt.Errorf("nothing waiting for confirmation")
	case 1:
		return pending[0].RequestID, nil
	}
	return "", fmt.Errorf("%d requests are waiting, name one (see /pending)", len(pending))
}

func printReply(out io.Writer, resp *agent.ChatResponse) {
	fmt.Fprintf(out, "Myrai: %s\n", resp.Reply)
	for _, p := range resp.Pending {
		fmt.Fprintf(out, "  [%s] waiting: /confirm %s or /reject %s\n", p.DisplayName, p.RequestID, p.RequestID)
	}
	if failed := failedCount(resp.Results); failed > 0 {
		fmt.Fprintf(out, "  (%d action(s) not recorded)\n", failed)
	}
	fmt.Fprintln(out)
}

func failedCount(results []actions.ExecutionResult) int {
	n := 0
	for _, r := range results {
		if !r.Success && !r.RequiresConfirmation {
			n++
		}
	}
	return n
}

func PrintInteractiveHelp(out io.Writer) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Interactive Commands:")
	fmt.Fprintln(out, "  /pending        - List actions waiting for confirmation")
	fmt.Fprintln(out, "  /confirm [id]   - Approve a waiting action")
	fmt.Fprintln(out, "  /reject [id]    - Drop a waiting action")
	fmt.Fprintln(out, "  /safe           - Clear the emergency flag")
	fmt.Fprintln(out, "  exit, quit      - Exit the program")
	fmt.Fprintln(out)
}
