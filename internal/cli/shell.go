package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/ringstore/pkg/ringstore"
)

// ShellCmd returns the shell command.
func ShellCmd(sess *session, stdin io.Reader, env map[string]string) *Command {
	return &Command{
		Flags: flag.NewFlagSet("shell", flag.ContinueOnError),
		Usage: "shell",
		Short: "Interactive session on one ring",
		Long: "Open the ring once and run commands against it. The cursor and the\n" +
			"consecutive-failure count live for the whole session, the way they do in\n" +
			"a long-running process. The ring's writer lock is held until the shell exits.\n" +
			"Reads commands from stdin when it is not a terminal.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			st, err := sess.openRing()
			if err != nil {
				return err
			}

			lk, err := sess.lockRing()
			if err != nil {
				return err
			}

			defer func() { _ = lk.Close() }()

			r := &REPL{sess: sess, st: st, o: o}

			return r.Run(ctx, newPrompter(stdin, env))
		},
	}
}

// prompter reads one command line at a time.
type prompter interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// newPrompter uses liner on an interactive terminal and a plain line reader
// otherwise.
func newPrompter(stdin io.Reader, env map[string]string) prompter {
	if f, ok := stdin.(*os.File); ok && isTerminal(f) && liner.TerminalSupported() {
		return newLinePrompter(historyFile(env))
	}

	if stdin == nil {
		stdin = strings.NewReader("")
	}

	return &scanPrompter{sc: bufio.NewScanner(stdin)}
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}

	return info.Mode()&os.ModeCharDevice != 0
}

// historyFile returns the path to the history file, or "" without $HOME.
func historyFile(env map[string]string) string {
	home := env["HOME"]
	if home == "" {
		return ""
	}

	return filepath.Join(home, ".ringctl_history")
}

type linePrompter struct {
	state   *liner.State
	history string
}

func newLinePrompter(history string) *linePrompter {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	state.SetCompleter(completer)

	if history != "" {
		if f, err := os.Open(history); err == nil {
			_, _ = state.ReadHistory(f)
			_ = f.Close()
		}
	}

	return &linePrompter{state: state, history: history}
}

func (p *linePrompter) Prompt(prompt string) (string, error) {
	line, err := p.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}

	return line, err
}

func (p *linePrompter) AppendHistory(line string) {
	p.state.AppendHistory(line)
}

func (p *linePrompter) Close() error {
	if p.history != "" {
		if f, err := os.Create(p.history); err == nil {
			_, _ = p.state.WriteHistory(f)
			_ = f.Close()
		}
	}

	return p.state.Close()
}

type scanPrompter struct {
	sc *bufio.Scanner
}

func (p *scanPrompter) Prompt(string) (string, error) {
	if !p.sc.Scan() {
		if err := p.sc.Err(); err != nil {
			return "", err
		}

		return "", io.EOF
	}

	return p.sc.Text(), nil
}

func (*scanPrompter) AppendHistory(string) {}

func (*scanPrompter) Close() error { return nil }

var shellCommands = []string{
	"load", "show", "get", "set", "unset", "save",
	"advance", "status", "info", "help", "exit", "quit", "q",
}

// completer provides tab completion for commands.
func completer(line string) []string {
	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range shellCommands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

// REPL is the interactive command loop of "ringctl shell".
type REPL struct {
	sess *session
	st   *ringstore.Storage[*Document]
	o    *IO
}

// Run reads and executes commands until EOF, quit or ctx is done.
func (r *REPL) Run(ctx context.Context, p prompter) error {
	defer func() { _ = p.Close() }()

	for ctx.Err() == nil {
		line, err := p.Prompt("ringctl> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		if cmd == "exit" || cmd == "quit" || cmd == "q" {
			return nil
		}

		err = r.exec(cmd, args)
		if err != nil {
			r.o.ErrPrintln("error:", err)
		}
	}

	return nil
}

func (r *REPL) exec(cmd string, args []string) error {
	switch cmd {
	case "help", "?":
		r.printHelp()
	case "load":
		return r.cmdLoad()
	case "show":
		return printDocument(r.o, r.st, false)
	case "get":
		return r.cmdGet(args)
	case "set":
		return r.cmdSet(args)
	case "unset":
		return r.cmdUnset(args)
	case "save":
		return r.cmdSave(args)
	case "advance":
		r.st.AdvanceToNextFile()
		r.cmdInfo()
	case "status":
		return printStatus(r.o, r.st.Inspect())
	case "info":
		r.cmdInfo()
	default:
		return fmt.Errorf("%w: %s (type 'help' for commands)", ErrUnknownCommand, cmd)
	}

	return nil
}

func (r *REPL) cmdLoad() error {
	res := r.st.LoadResult()
	if !res.OK {
		return res.Err
	}

	if res.Err != nil {
		r.o.Println("warning:", res.Err)
	}

	r.o.Printf("loaded %s (sequence %d)\n", res.Path, res.Sequence)

	return nil
}

func (r *REPL) cmdGet(args []string) error {
	if len(args) != 1 {
		return ErrKeyRequired
	}

	v, ok := r.st.Object().Get(args[0])
	if !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, args[0])
	}

	r.o.Println(v)

	return nil
}

func (r *REPL) cmdSet(args []string) error {
	assignments, err := parseAssignments(args)
	if err != nil {
		return err
	}

	if len(assignments) == 0 {
		return ErrBadAssignment
	}

	for _, kv := range assignments {
		r.st.Object().Set(kv[0], kv[1])
	}

	return nil
}

func (r *REPL) cmdUnset(args []string) error {
	if len(args) == 0 {
		return ErrKeyRequired
	}

	for _, k := range args {
		if !r.st.Object().Delete(k) {
			return fmt.Errorf("%w: %s", ErrKeyNotFound, k)
		}
	}

	return nil
}

func (r *REPL) cmdSave(args []string) error {
	if len(args) > 0 {
		err := r.cmdSet(args)
		if err != nil {
			return err
		}
	}

	res, err := r.sess.commit(r.st, r.st.Object())
	if err != nil {
		return err
	}

	r.o.Printf("saved %s (sequence %d)\n", res.Path, res.Sequence)

	return nil
}

func (r *REPL) cmdInfo() {
	paths := r.st.Paths()
	cfg := r.st.Config()

	r.o.Printf("cursor=%s (%s)\n", cfg.SlotLabels[r.st.Cursor()], paths[r.st.Cursor()])
	r.o.Printf("sequence=%d\n", r.st.LastSequenceNumber())

	if path := r.st.LastObjectFilePath(); path != "" {
		r.o.Println("last_path=" + path)
	}

	if err := r.st.LastError(); err != nil {
		r.o.Println("last_error=" + err.Error())
	}
}

func (r *REPL) printHelp() {
	r.o.Println("Commands:")
	r.o.Println("  load                   Load the freshest slot")
	r.o.Println("  show                   Print the document in memory")
	r.o.Println("  get <key>              Print one value")
	r.o.Println("  set <key=value>...     Change values in memory")
	r.o.Println("  unset <key>...         Remove values in memory")
	r.o.Println("  save [key=value]...    Save the document to the next slot")
	r.o.Println("  advance                Skip the cursor to the next slot")
	r.o.Println("  status                 Show every slot")
	r.o.Println("  info                   Show cursor, sequence and last error")
	r.o.Println("  help                   Show this help")
	r.o.Println("  exit / quit / q        Exit")
}
