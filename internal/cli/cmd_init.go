package cli

import (
	"context"
	"fmt"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/ringstore/pkg/fs"
)

// InitCmd returns the init command.
func InitCmd(sess *session) *Command {
	flags := flag.NewFlagSet("init", flag.ContinueOnError)
	force := flags.BoolP("force", "f", false, "Overwrite an existing "+ConfigFileName)

	return &Command{
		Flags: flags,
		Usage: "init [flags]",
		Short: "Write " + ConfigFileName + " with the resolved config",
		Long: "Write the resolved configuration to " + ConfigFileName + " in the working directory,\n" +
			"so later invocations pick it up without flags. The ring directory is created too.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			return execInit(o, sess, fs.NewReal(), *force)
		},
	}
}

func execInit(o *IO, sess *session, fsys fs.FS, force bool) error {
	path := filepath.Join(sess.cfg.EffectiveCwd, ConfigFileName)

	exists, err := fsys.Exists(path)
	if err != nil {
		return fmt.Errorf("checking %s: %w", path, err)
	}

	if exists && !force {
		return fmt.Errorf("%w: %s (use --force to overwrite)", ErrConfigExists, path)
	}

	formatted, err := FormatConfig(sess.cfg)
	if err != nil {
		return err
	}

	err = fsys.WriteFileAtomic(path, []byte(formatted+"\n"), 0o644)
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	err = fsys.MkdirAll(sess.cfg.DirAbs, 0o755)
	if err != nil {
		return fmt.Errorf("creating %s: %w", sess.cfg.DirAbs, err)
	}

	o.Println("wrote", path)

	return nil
}
