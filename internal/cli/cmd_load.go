package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/ringstore/pkg/ringstore"
)

// LoadCmd returns the load command.
func LoadCmd(sess *session) *Command {
	flags := flag.NewFlagSet("load", flag.ContinueOnError)
	asJSON := flags.Bool("json", false, "Print the document as JSON")

	return &Command{
		Flags: flags,
		Usage: "load [flags]",
		Short: "Print the freshest document in the ring",
		Long: "Scan every slot, pick the copy with the highest sequence number and print it.\n" +
			"Corrupt or suspicious slots are reported as warnings (exit 1) unless the\n" +
			"load itself fails.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: %v", ErrTooManyArgs, args)
			}

			st, err := sess.loadRing(o)
			if err != nil {
				return err
			}

			return printDocument(o, st, *asJSON)
		},
	}
}

// GetCmd returns the get command.
func GetCmd(sess *session) *Command {
	return &Command{
		Flags: flag.NewFlagSet("get", flag.ContinueOnError),
		Usage: "get <key>",
		Short: "Print one value of the freshest document",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return ErrKeyRequired
			}

			if len(args) > 1 {
				return fmt.Errorf("%w: %v", ErrTooManyArgs, args[1:])
			}

			st, err := sess.loadRing(o)
			if err != nil {
				return err
			}

			v, ok := st.Object().Get(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", ErrKeyNotFound, args[0])
			}

			o.Println(v)

			return nil
		},
	}
}

func printDocument(o *IO, st *ringstore.Storage[*Document], asJSON bool) error {
	doc := st.Object()

	if asJSON {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("format document: %w", err)
		}

		o.Println(string(data))

		return nil
	}

	o.Printf("# sequence=%d\n", st.LastSequenceNumber())
	o.Printf("# path=%s\n", st.LastObjectFilePath())

	if doc.Writer != "" {
		o.Printf("# writer=%s\n", doc.Writer)
	}

	if !doc.UpdatedAt.IsZero() {
		o.Printf("# updated_at=%s\n", doc.UpdatedAt.Format(time.RFC3339))
	}

	for _, k := range doc.Keys() {
		o.Printf("%s=%s\n", k, doc.Values[k])
	}

	return nil
}
