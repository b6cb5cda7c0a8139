package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
)

// Run is the main entry point. Returns exit code.
//
// A signal on sigCh cancels the context handed to the command; the shell
// stops at the next prompt. sigCh may be nil.
func Run(stdin io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	if len(args) < 2 {
		printUsage(out, nil)

		return 0
	}

	globals, err := parseGlobalFlags(args[1:])
	if err != nil {
		fprintln(errOut, "error:", err)
		fprintln(errOut)
		printUsage(errOut, nil)

		return 1
	}

	if globals.help || len(globals.remaining) == 0 {
		printUsage(out, nil)

		return 0
	}

	cfg, err := LoadConfig(LoadConfigInput{
		WorkDirOverride: globals.workDir,
		ConfigPath:      globals.configPath,
		Overrides:       globals.overrides,
		OverrideNames:   globals.changed,
		Env:             env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	logger, err := newLogger(errOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	sess := newSession(cfg, logger)
	commands := allCommands(sess, &cfg, stdin, env)

	name, cmdArgs := globals.remaining[0], globals.remaining[1:]

	if name == "help" {
		return runHelp(out, errOut, commands, cmdArgs)
	}

	cmd, ok := findCommand(commands, name)
	if !ok {
		fprintln(errOut, "error:", fmt.Errorf("%w: %s", ErrUnknownCommand, name))
		fprintln(errOut)
		printUsage(errOut, commands)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	return cmd.Run(ctx, NewIO(out, errOut), cmdArgs)
}

func allCommands(sess *session, cfg *Config, stdin io.Reader, env map[string]string) []*Command {
	return []*Command{
		InitCmd(sess),
		LoadCmd(sess),
		GetCmd(sess),
		SaveCmd(sess),
		StatusCmd(sess),
		ShellCmd(sess, stdin, env),
		PrintConfigCmd(cfg),
	}
}

func findCommand(commands []*Command, name string) (*Command, bool) {
	for _, c := range commands {
		if c.Name() == name {
			return c, true
		}
	}

	return nil, false
}

func runHelp(out, errOut io.Writer, commands []*Command, args []string) int {
	if len(args) == 0 {
		printUsage(out, commands)

		return 0
	}

	cmd, ok := findCommand(commands, args[0])
	if !ok {
		fprintln(errOut, "error:", fmt.Errorf("%w: %s", ErrUnknownCommand, args[0]))

		return 1
	}

	cmd.PrintHelp(NewIO(out, errOut))

	return 0
}

type globalFlags struct {
	workDir    string
	configPath string
	help       bool
	overrides  layer
	changed    []string
	remaining  []string
}

// parseGlobalFlags parses the flags before the command name. Ring settings
// given here override every config layer.
func parseGlobalFlags(args []string) (globalFlags, error) {
	var g globalFlags

	fs := flag.NewFlagSet("ringctl", flag.ContinueOnError)
	fs.SetOutput(&strings.Builder{}) // discard pflag output
	fs.SetInterspersed(false)

	fs.StringVarP(&g.workDir, "cwd", "C", "", "Run as if started in `dir`")
	fs.StringVarP(&g.configPath, "config", "c", "", "Use config `file` instead of "+ConfigFileName)
	fs.BoolVarP(&g.help, "help", "h", false, "Show help")

	dir := fs.String("dir", "", "Ring `directory`")
	name := fs.String("name", "", "Ring file base `name`")
	ext := fs.String("ext", "", "Ring file `extension`, including the dot")
	slots := fs.String("slots", "", "Slot `labels`, one per character")
	durability := fs.String("durability", "", "buffered, write-through or commit-to-disk")
	advance := fs.String("advance", "", "always, on-success or on-success-or-n-failures")
	threshold := fs.Int("failure-threshold", 0, "Failed saves before the cursor advances anyway")
	strict := fs.Bool("strict", false, "Fail a load on any corrupt or suspicious slot")
	autoSave := fs.String("auto-save", "", "Auto-save flags: no-files, any-failure, flip-result")
	codec := fs.String("codec", "", "json, yaml, json+snappy or yaml+snappy")
	bufferSize := fs.Int("buffer-size", 0, "Expected encoded size in `bytes`")
	logLevel := fs.String("log-level", "", "trace, debug, info, warn or error")
	logFormat := fs.String("log-format", "", "text, json or color")
	lockTimeout := fs.String("lock-timeout", "", "How long to wait for the ring's writer lock")

	err := fs.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			g.help = true

			return g, nil
		}

		return globalFlags{}, err
	}

	strPtrs := map[string]**string{
		"dir": &g.overrides.Dir, "name": &g.overrides.Name, "ext": &g.overrides.Extension,
		"slots": &g.overrides.Slots, "durability": &g.overrides.Durability,
		"advance": &g.overrides.Advance, "auto-save": &g.overrides.AutoSave,
		"codec": &g.overrides.Codec, "log-level": &g.overrides.LogLevel,
		"log-format": &g.overrides.LogFormat, "lock-timeout": &g.overrides.LockTimeout,
	}
	strVals := map[string]*string{
		"dir": dir, "name": name, "ext": ext, "slots": slots, "durability": durability,
		"advance": advance, "auto-save": autoSave, "codec": codec,
		"log-level": logLevel, "log-format": logFormat, "lock-timeout": lockTimeout,
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "cwd", "config", "help":
			return
		case "failure-threshold":
			g.overrides.FailureThreshold = threshold
		case "buffer-size":
			g.overrides.BufferSize = bufferSize
		case "strict":
			g.overrides.Strict = strict
		default:
			*strPtrs[f.Name] = strVals[f.Name]
		}

		g.changed = append(g.changed, "--"+f.Name)
	})

	g.remaining = fs.Args()

	return g, nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, commands []*Command) {
	fprintln(w, `ringctl - inspect and edit a rotating file ring

Usage: ringctl [options] <command> [args]

Options:
  -C, --cwd <dir>              Run as if started in <dir>
  -c, --config <file>          Use specified config file
      --dir <dir>              Ring directory (default .ring)
      --name <name>            Ring file base name (default state)
      --ext <ext>              Ring file extension (default .json)
      --slots <labels>         Slot labels, one per character (default abc)
      --durability <tier>      buffered, write-through, commit-to-disk
      --advance <rule>         always, on-success, on-success-or-n-failures
      --failure-threshold <n>  Failed saves before the cursor advances anyway
      --strict                 Fail a load on any corrupt or suspicious slot
      --auto-save <flags>      no-files, any-failure, flip-result (joined by |)
      --codec <name>           json, yaml, json+snappy, yaml+snappy
      --buffer-size <bytes>    Expected encoded size
      --log-level <level>      Log level (default warn)
      --log-format <format>    text, json or color
      --lock-timeout <dur>     Wait for the ring's writer lock (default 5s)

Commands:`)

	if commands == nil {
		commands = allCommands(&session{}, &Config{}, nil, nil)
	}

	for _, c := range commands {
		fprintln(w, c.HelpLine())
	}

	fprintln(w, "  help [command]           Show help")
}
