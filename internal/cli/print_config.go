package cli

import (
	"context"
	"strconv"

	flag "github.com/spf13/pflag"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(cfg *Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which layers it was built from.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			execPrintConfig(io, cfg)

			return nil
		},
	}
}

func execPrintConfig(io *IO, cfg *Config) {
	io.Println("effective_cwd=" + cfg.EffectiveCwd)
	io.Println("dir=" + cfg.DirAbs)
	io.Println("name=" + cfg.Name)
	io.Println("extension=" + cfg.Extension)
	io.Println("slots=" + cfg.Slots)
	io.Println("durability=" + cfg.Durability)
	io.Println("advance=" + cfg.Advance)
	io.Println("failure_threshold=" + strconv.Itoa(cfg.FailureThreshold))
	io.Println("strict=" + strconv.FormatBool(cfg.Strict))
	io.Println("auto_save=" + cfg.AutoSave)
	io.Println("codec=" + cfg.Codec)
	io.Println("buffer_size=" + strconv.Itoa(cfg.BufferSize))
	io.Println("log_level=" + cfg.LogLevel)
	io.Println("log_format=" + cfg.LogFormat)
	io.Println("lock_timeout=" + cfg.LockTimeout)

	io.Println("")
	io.Println("# sources")

	for _, line := range formatSources(cfg.Sources) {
		io.Println(line)
	}
}
