package cli

import (
	"context"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// SaveCmd returns the save command.
func SaveCmd(sess *session) *Command {
	flags := flag.NewFlagSet("save", flag.ContinueOnError)
	unset := flags.StringArrayP("unset", "u", nil, "Remove `key` from the document (repeatable)")
	force := flags.Bool("force", false, "Save even if the ring could not be loaded")

	return &Command{
		Flags: flags,
		Usage: "save [flags] [key=value]...",
		Short: "Update the document and write it to the next slot",
		Long: "Load the freshest document, apply the assignments and removals, and save\n" +
			"it with the next sequence number. The slot holding the freshest copy is\n" +
			"never the one overwritten. An empty ring starts from an empty document.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			assignments, err := parseAssignments(args)
			if err != nil {
				return err
			}

			lk, err := sess.lockRing()
			if err != nil {
				return err
			}

			defer func() { _ = lk.Close() }()

			st, err := sess.loadForWrite(o, *force)
			if err != nil {
				return err
			}

			doc := st.Object()

			for _, kv := range assignments {
				doc.Set(kv[0], kv[1])
			}

			for _, k := range *unset {
				if !doc.Delete(k) {
					o.Warn(fmt.Sprintf("%s: %s", ErrKeyNotFound, k), "nothing to unset")
				}
			}

			res, err := sess.commit(st, doc)
			if err != nil {
				return err
			}

			o.Printf("saved %s (sequence %d)\n", res.Path, res.Sequence)

			return nil
		},
	}
}

func parseAssignments(args []string) ([][2]string, error) {
	out := make([][2]string, 0, len(args))

	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrBadAssignment, arg)
		}

		if strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: %q", ErrKeyRequired, arg)
		}

		out = append(out, [2]string{k, v})
	}

	return out, nil
}
