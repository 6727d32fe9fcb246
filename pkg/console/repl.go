// Package console is the terminal front end: one session per run, with a few
// slash commands for the prompt override and the reflection toggle.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"fyuchan/pkg/fyu"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const banner = `Fyu-chan is here! ✨ Type a message to chat.
Commands: /prompt <text>, /prompt show, /prompt clear, /reflect on|off, /new, /quit`

type TurnHandler interface {
	HandleTurn(ctx context.Context, turn fyu.Turn) (string, error)
	EffectivePrompt(customPrompt string) string
}

type REPL struct {
	core         TurnHandler
	in           *bufio.Reader
	out          io.Writer
	sessionID    string
	customPrompt string
	reflect      bool
	logger       *zap.Logger
}

func NewREPL(core TurnHandler, in io.Reader, out io.Writer, reflect bool, logger *zap.Logger) *REPL {
	return &REPL{
		core:      core,
		in:        bufio.NewReader(in),
		out:       out,
		sessionID: uuid.NewString(),
		reflect:   reflect,
		logger:    logger,
	}
}

// Run reads lines until EOF, /quit or ctx is cancelled. Failed turns are
// reported to the user and the loop continues.
func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintln(r.out, banner)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		fmt.Fprint(r.out, "\n> ")

		line, err := r.in.ReadString('\n')
		input := strings.TrimSpace(line)
		if input != "" {
			if done := r.handleLine(ctx, input); done {
				return nil
			}
		}
		if err == io.EOF {
			fmt.Fprintln(r.out)
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
	}
}

func (r *REPL) handleLine(ctx context.Context, input string) bool {
	if strings.HasPrefix(input, "/") {
		return r.command(input)
	}

	reply, err := r.core.HandleTurn(ctx, fyu.Turn{
		SessionID:    r.sessionID,
		Input:        input,
		CustomPrompt: r.customPrompt,
		Reflect:      r.reflect,
	})
	if err != nil {
		r.logger.Error("turn failed", zap.String("session", r.sessionID), zap.Error(err))
		fmt.Fprintf(r.out, "Fyu-chan: (error) %v\n", err)
		return false
	}
	fmt.Fprintf(r.out, "Fyu-chan: %s\n", reply)
	return false
}

func (r *REPL) command(input string) bool {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		fmt.Fprintln(r.out, "Bye for now! 👋")
		return true

	case "/new":
		r.sessionID = uuid.NewString()
		r.logger.Info("started session", zap.String("session", r.sessionID))
		fmt.Fprintln(r.out, "Fresh start! History cleared.")

	case "/reflect":
		switch arg {
		case "on":
			r.reflect = true
		case "off":
			r.reflect = false
		default:
			fmt.Fprintln(r.out, "Usage: /reflect on|off")
			return false
		}
		fmt.Fprintf(r.out, "Reflection %s.\n", arg)

	case "/prompt":
		switch arg {
		case "":
			fmt.Fprintln(r.out, "Usage: /prompt <text>, /prompt show, /prompt clear")
		case "show":
			label := "Default prompt"
			if r.customPrompt != "" {
				label = "Custom prompt"
			}
			fmt.Fprintf(r.out, "🧠 %s in use:\n%s\n", label, r.core.EffectivePrompt(r.customPrompt))
		case "clear":
			r.customPrompt = ""
			fmt.Fprintln(r.out, "Custom prompt cleared.")
		default:
			r.customPrompt = arg
			fmt.Fprintln(r.out, "Custom prompt set.")
		}

	default:
		fmt.Fprintf(r.out, "Unknown command %s\n", name)
	}
	return false
}
