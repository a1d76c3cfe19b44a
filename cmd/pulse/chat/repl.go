package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/papercomputeco/pulse/pkg/chat"
	"github.com/papercomputeco/pulse/pkg/cliui"
	"github.com/papercomputeco/pulse/pkg/llm"
	"github.com/papercomputeco/pulse/pkg/session"
	"github.com/papercomputeco/pulse/pkg/stream"
	"github.com/papercomputeco/pulse/pkg/utils"
)

// maxLineSize bounds a single line of input.
const maxLineSize = 1024 * 1024

const replHelp = `Commands:
  /new [title]     start a new session
  /sessions        list sessions
  /select <n|id>   switch to a session
  /delete [n|id]   delete a session (default: current)
  /mode [mode]     set the mode, or cycle when no mode is given
  /history         show the current session
  /help            show this help
  /exit            quit`

// repl reads lines from in and runs each one as a command or a turn.
type repl struct {
	svc      *chat.Service
	endpoint string
	userID   string

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// interactive enables prompts and markdown rendering.
	interactive bool

	// turnContext derives the context for one turn. It lets Ctrl+C stop
	// the current response without ending the session.
	turnContext func(context.Context) (context.Context, context.CancelFunc)
}

func (r *repl) run(ctx context.Context) error {
	if r.interactive {
		fmt.Fprintf(r.out, "%s %s %s %s\n",
			cliui.KeyStyle.Render("Connected to"),
			cliui.ValueStyle.Render(r.endpoint),
			cliui.KeyStyle.Render("as"),
			cliui.NameStyle.Render(r.userID),
		)
		fmt.Fprintln(r.out, cliui.DimStyle.Render("Mode: "+r.svc.Mode().Label()+". Type /help for commands."))
	}

	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		if r.interactive {
			fmt.Fprint(r.out, cliui.UserPrompt)
		}

		if !scanner.Scan() {
			if r.interactive {
				fmt.Fprintln(r.out)
			}
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := r.command(line); quit {
				return nil
			}
			continue
		}

		r.turn(ctx, line)
	}
}

// turn streams one response, printing only the text each snapshot adds.
func (r *repl) turn(ctx context.Context, text string) {
	turnCtx, cancel := context.WithCancel(ctx)
	if r.turnContext != nil {
		turnCtx, cancel = r.turnContext(ctx)
	}
	defer cancel()

	fmt.Fprint(r.out, cliui.AssistantPrompt)

	printed := 0
	obs := stream.ObserverFuncs{
		OnSnapshot: func(s string) {
			if len(s) <= printed {
				return
			}
			fmt.Fprint(r.out, s[printed:])
			printed = len(s)
		},
		OnNotice: func(msg string) {
			fmt.Fprintln(r.errOut, cliui.Notice(msg))
		},
	}

	_, _, err := r.svc.SubmitCurrent(turnCtx, text, obs)
	fmt.Fprintln(r.out)

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) && ctx.Err() == nil:
		fmt.Fprintln(r.errOut, cliui.Notice("Response interrupted"))
	default:
		fmt.Fprintln(r.errOut, cliui.StreamFailure(err))
	}
}

// command runs a slash command and reports whether the REPL should exit.
func (r *repl) command(line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	store := r.svc.Store()

	switch strings.ToLower(name) {
	case "/exit", "/quit":
		return true

	case "/help":
		fmt.Fprintln(r.out, replHelp)

	case "/new":
		id := store.Create(arg)
		sess, err := store.Get(id)
		if err != nil {
			r.fail(err)
			return false
		}
		fmt.Fprintf(r.out, "%s Started %s\n", cliui.SuccessMark, cliui.NameStyle.Render(sess.Title))

	case "/sessions":
		r.listSessions()

	case "/select":
		if arg == "" {
			r.fail(errors.New("usage: /select <n|id>"))
			return false
		}
		id, err := r.resolve(arg)
		if err == nil {
			err = store.Select(id)
		}
		if err != nil {
			r.fail(err)
			return false
		}
		sess, _ := store.Get(id)
		fmt.Fprintf(r.out, "%s Switched to %s\n", cliui.SuccessMark, cliui.NameStyle.Render(sess.Title))

	case "/delete":
		var (
			id  session.ID
			err error
		)
		if arg == "" {
			var ok bool
			if id, ok = store.Selected(); !ok {
				r.fail(errors.New("no session selected"))
				return false
			}
		} else if id, err = r.resolve(arg); err != nil {
			r.fail(err)
			return false
		}

		sess, err := store.Get(id)
		if err == nil {
			err = store.Delete(id)
		}
		if err != nil {
			r.fail(err)
			return false
		}
		fmt.Fprintf(r.out, "%s Deleted %s\n", cliui.SuccessMark, cliui.NameStyle.Render(sess.Title))

	case "/mode":
		mode := r.svc.Mode().Next()
		if arg != "" {
			mode = llm.Mode(arg)
		}
		if err := r.svc.SetMode(mode); err != nil {
			r.fail(err)
			return false
		}
		fmt.Fprintf(r.out, "%s %s\n", cliui.KeyStyle.Render("Mode:"), cliui.ValueStyle.Render(r.svc.Mode().Label()))

	case "/history":
		r.history()

	default:
		r.fail(fmt.Errorf("unknown command %s (try /help)", name))
	}

	return false
}

func (r *repl) listSessions() {
	summaries := r.svc.Store().List()
	if len(summaries) == 0 {
		fmt.Fprintln(r.out, cliui.DimStyle.Render("No sessions yet. Send a message or use /new."))
		return
	}

	for i, s := range summaries {
		marker := " "
		if s.Selected {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %2d. %s %s\n",
			marker,
			i+1,
			cliui.NameStyle.Render(s.Label(i)),
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages, %s)", s.MessageCount, utils.Truncate(string(s.ID), 8))),
		)
	}
}

func (r *repl) history() {
	sess, ok := r.svc.Store().Current()
	if !ok {
		r.fail(errors.New("no session selected"))
		return
	}
	if len(sess.Messages) == 0 {
		fmt.Fprintln(r.out, cliui.DimStyle.Render("No messages yet."))
		return
	}

	if !r.interactive {
		for _, m := range sess.Messages {
			fmt.Fprintf(r.out, "%s: %s\n", m.Role, m.Content)
		}
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", sess.Title)
	for _, m := range sess.Messages {
		fmt.Fprintf(&b, "**%s**\n\n%s\n\n", m.Role, m.Content)
	}

	rendered, err := cliui.RenderMarkdown(b.String())
	if err != nil {
		fmt.Fprintln(r.out, b.String())
		return
	}
	fmt.Fprint(r.out, rendered)
}

// resolve maps a 1-based list position or a (prefix of a) session ID to an ID.
func (r *repl) resolve(arg string) (session.ID, error) {
	summaries := r.svc.Store().List()

	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(summaries) {
			return "", fmt.Errorf("no session at position %d", n)
		}
		return summaries[n-1].ID, nil
	}

	var match session.ID
	for _, s := range summaries {
		if !strings.HasPrefix(string(s.ID), arg) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("ambiguous session id %q", arg)
		}
		match = s.ID
	}
	if match == "" {
		return "", session.NotFoundError{ID: session.ID(arg)}
	}
	return match, nil
}

func (r *repl) fail(err error) {
	fmt.Fprintf(r.errOut, "%s %s\n", cliui.FailMark, cliui.ErrorStyle.Render(err.Error()))
}
