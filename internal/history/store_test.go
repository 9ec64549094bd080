package history

import (
	"path/filepath"
	"testing"

	"github.com/Klingon-tech/klingnet-miner/internal/storage"
)

func TestStore_ApplyReportsChange(t *testing.T) {
	s := NewStore(storage.NewMemory())

	out, changed := s.Apply([]Transaction{tx("a", 10)}, true)
	if !changed || len(out) != 1 {
		t.Fatalf("first apply: changed=%v out=%v", changed, ids(out))
	}
	if _, changed = s.Apply([]Transaction{tx("a", 10)}, true); changed {
		t.Fatal("identical apply reported a change")
	}
	if _, changed = s.Apply([]Transaction{tx("b", 5)}, false); changed {
		t.Fatal("update-only apply of unknown record reported a change")
	}
}

func TestStore_Page(t *testing.T) {
	s := NewStore(storage.NewMemory())
	s.Apply([]Transaction{tx("a", 1), tx("b", 2), tx("c", 3), tx("d", 4)}, true)

	equalIDs(t, s.Page(0, 2), "d", "c")
	equalIDs(t, s.Page(2, 10), "b", "a")
	if got := s.Page(10, 2); got != nil {
		t.Fatalf("out of range page = %v", ids(got))
	}
	if got := s.Page(0, 0); got != nil {
		t.Fatalf("zero limit page = %v", ids(got))
	}
}

func TestStore_Pending(t *testing.T) {
	s := NewStore(storage.NewMemory())
	pending := Transaction{ID: "p", Blockchain: Blockchain{Timestamp: 5}}
	s.Apply([]Transaction{tx("a", 1), pending}, true)

	got := s.Pending()
	if len(got) != 1 || got[0] != "p" {
		t.Fatalf("pending = %v", got)
	}
}

func TestStore_PersistsAcrossRestart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ui")

	db, err := storage.NewBadger(dir)
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	s := NewStore(db)
	bridged := tx("a", 10)
	bridged.Bridge = &BridgeDetails{SourceChain: "klingnet", DestinationChain: "eth"}
	s.Apply([]Transaction{bridged, tx("b", 20)}, true)
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err = storage.NewBadger(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	s = NewStore(db)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	equalIDs(t, s.List(), "b", "a")

	// A fresher record without enrichment keeps the restored bridge details.
	in := tx("a", 10)
	in.Status = "confirmed"
	out, changed := s.Apply([]Transaction{in}, false)
	if !changed {
		t.Fatal("expected change")
	}
	for _, got := range out {
		if got.ID == "a" && (got.Bridge == nil || got.Bridge.DestinationChain != "eth") {
			t.Fatalf("bridge details lost after restart: %+v", got)
		}
	}
}

func TestStore_IgnoresOtherNamespaces(t *testing.T) {
	db := storage.NewMemory()
	if err := db.Put([]byte("settings/theme"), []byte("dark")); err != nil {
		t.Fatal(err)
	}
	s := NewStore(db)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.List()) != 0 {
		t.Fatalf("loaded foreign keys: %v", ids(s.List()))
	}
}
