package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/op/go-logging"
)

func init() {
	logging.SetLevel(logging.ERROR, "checkpoint")
}

func TestSaveLoad(tst *testing.T) {
	db, err := Open(filepath.Join(tst.TempDir(), "run.ckpt"))
	if err != nil {
		tst.Fatal("Error opening database:", err)
	}
	defer db.Close()

	io := NewIO(db, []byte("in.fst\x00out.csv"))
	if data, err := io.Load(); err != nil || data != nil {
		tst.Fatal("Expected no checkpoint, got", data, err)
	}

	if err := io.Save(&Data{RunID: "r1", Records: 10, SORFs: 1001, Batches: 1}); err != nil {
		tst.Fatal("Error saving:", err)
	}
	if err := io.Save(&Data{RunID: "r1", Records: 20, SORFs: 2002, Batches: 2, Position: 4096, Final: true}); err != nil {
		tst.Fatal("Error saving:", err)
	}
	data, err := io.Load()
	if err != nil || data == nil {
		tst.Fatal("Error loading:", err)
	}
	if data.RunID != "r1" || data.Records != 20 || data.SORFs != 2002 || data.Batches != 2 ||
		data.Position != 4096 || !data.Final {
		tst.Error("Wrong checkpoint:", data)
	}
	if data.Saved.IsZero() {
		tst.Error("Save time is not set")
	}

	other := NewIO(db, []byte("other"))
	if data, err := other.Load(); err != nil || data != nil {
		tst.Error("Checkpoints of different keys are mixed:", data, err)
	}
}

func TestNilDB(tst *testing.T) {
	io := NewIO(nil, []byte("key"))
	if err := io.Save(&Data{Records: 1}); err != nil {
		tst.Error("Unexpected error:", err)
	}
	if data, err := io.Load(); err != nil || data != nil {
		tst.Error("Expected no checkpoint, got", data, err)
	}
}
