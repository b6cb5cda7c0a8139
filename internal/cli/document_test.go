package cli_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/ringstore/internal/cli"
	"github.com/calvinalkan/ringstore/pkg/ringstore"
)

var _ ringstore.Object = (*cli.Document)(nil)

func Test_Document_Set_Get_Delete_When_Used_Together(t *testing.T) {
	t.Parallel()

	doc := &cli.Document{}
	doc.Set("b", "2")
	doc.Set("a", "1")

	if v, ok := doc.Get("a"); !ok || v != "1" {
		t.Errorf("Get(a)=(%q, %v), want=(\"1\", true)", v, ok)
	}

	if diff := cmp.Diff([]string{"a", "b"}, doc.Keys()); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}

	if !doc.Delete("a") {
		t.Error("Delete(a)=false, want=true")
	}

	if doc.Delete("a") {
		t.Error("second Delete(a)=true, want=false")
	}

	if _, ok := doc.Get("a"); ok {
		t.Error("Get(a) after delete: ok=true, want=false")
	}
}

func Test_Document_Round_Trips_Through_Ring(t *testing.T) {
	t.Parallel()

	cfg := ringstore.DefaultConfig(t.TempDir(), "doc", cli.NewDocument)
	cfg.Durability = ringstore.Buffered

	st, err := ringstore.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	doc := cli.NewDocument()
	doc.Set("k", "v")
	doc.UpdatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := st.SaveObject(doc); err != nil {
		t.Fatalf("SaveObject: %v", err)
	}

	reader, err := ringstore.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := reader.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if diff := cmp.Diff(doc, reader.Object()); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}
}
