package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/condohub/condofee/internal/client/api"
	"github.com/condohub/condofee/internal/client/session"
)

// REPL reads command lines with line editing and history and feeds them to
// a Shell
type REPL struct {
	rl    *readline.Instance
	shell *Shell
	state *session.State
}

// NewREPL opens the terminal. historyFile may be empty.
func NewREPL(historyFile string) (*REPL, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          promptFor(nil),
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(),
	})
	if err != nil {
		return nil, fmt.Errorf("open terminal failed: %w", err)
	}
	return &REPL{rl: rl}, nil
}

// Stdout is the terminal writer that cooperates with the prompt
func (r *REPL) Stdout() io.Writer { return r.rl.Stdout() }

// Prompt implements Prompter
func (r *REPL) Prompt(label string, secret bool) (string, error) {
	if secret {
		b, err := r.rl.ReadPassword(label + ": ")
		return strings.TrimSpace(string(b)), err
	}

	old := r.rl.Config.Prompt
	defer r.rl.SetPrompt(old)
	r.rl.SetPrompt(label + ": ")
	line, err := r.rl.Readline()
	return strings.TrimSpace(line), err
}

// Attach connects the shell and keeps the prompt in sync with the session
func (r *REPL) Attach(shell *Shell, state *session.State) {
	r.shell = shell
	r.state = state
	r.rl.SetPrompt(promptFor(state.User()))
	state.Subscribe(func(snap session.Snapshot) {
		r.rl.SetPrompt(promptFor(snap.User))
		r.rl.Refresh()
	})
}

// Run loops until exit, EOF or ctx is done
func (r *REPL) Run(ctx context.Context) error {
	defer r.rl.Close()

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := r.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input failed: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		err = r.shell.Execute(ctx, line)
		if errors.Is(err, ErrExit) {
			return nil
		}
		if err != nil {
			fmt.Fprintln(r.rl.Stderr(), Describe(err))
		}
	}
}

func promptFor(u *session.User) string {
	if u == nil {
		return "condofee> "
	}
	return fmt.Sprintf("condofee(%s)> ", u.Email)
}

func completer() *readline.PrefixCompleter {
	actions := []readline.PrefixCompleterInterface{
		readline.PcItem("list"),
		readline.PcItem("get"),
		readline.PcItem("create"),
		readline.PcItem("update"),
		readline.PcItem("delete"),
	}

	items := []readline.PrefixCompleterInterface{
		readline.PcItem("login"),
		readline.PcItem("register"),
		readline.PcItem("logout"),
		readline.PcItem("whoami"),
		readline.PcItem("token", readline.PcItem("show")),
		readline.PcItem("me", readline.PcItem("profile"), readline.PcItem("invoices"), readline.PcItem("notifications")),
		readline.PcItem("pay"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	}
	for _, name := range api.Names() {
		items = append(items, readline.PcItem(name, actions...))
	}
	return readline.NewPrefixCompleter(items...)
}
