package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/ringstore/pkg/ringstore"
)

// StatusCmd returns the status command.
func StatusCmd(sess *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("status", flag.ContinueOnError),
		Usage: "status",
		Short: "Show every slot of the ring",
		Long: "Read every slot without changing anything and print a table of sequence\n" +
			"numbers, sizes and ages. The slot a load would pick is marked with '*'.\n" +
			"Unreadable slots are reported as warnings (exit 1).",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: %v", ErrTooManyArgs, args)
			}

			st, err := sess.openRing()
			if err != nil {
				return err
			}

			return printStatus(o, st.Inspect())
		},
	}
}

func printStatus(o *IO, slots []ringstore.SlotStatus) error {
	for _, s := range slots {
		if s.Err != nil {
			o.Warn(fmt.Sprintf("slot %s: %v", s.Label, s.Err), "the next saves will overwrite it")
		}
	}

	table := tablewriter.NewWriter(o.Out())
	table.Header("", "Slot", "File", "Sequence", "Size", "Modified", "State")

	for _, s := range slots {
		var (
			mark     string
			seq      = "-"
			size     = "-"
			modified = "-"
			state    = "missing"
		)

		if s.Authoritative {
			mark = "*"
		}

		if s.Exists {
			size = humanize.IBytes(uint64(s.Size))
			modified = humanize.Time(s.ModTime)
			state = "ok"
		}

		if s.Sequence != 0 {
			seq = strconv.FormatUint(s.Sequence, 10)
		}

		if s.Err != nil {
			state = ringstore.KindOf(s.Err).String()
		}

		err := table.Append([]string{mark, s.Label, filepath.Base(s.Path), seq, size, modified, state})
		if err != nil {
			return fmt.Errorf("status table: %w", err)
		}
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("status table: %w", err)
	}

	return nil
}
