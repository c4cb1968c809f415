package pipeline

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mdobak/go-xerrors"
	"github.com/op/go-logging"

	"bitbucket.org/Davydov/mipepid/bio"
	"bitbucket.org/Davydov/mipepid/checkpoint"
	"bitbucket.org/Davydov/mipepid/kmer"
	"bitbucket.org/Davydov/mipepid/model"
	"bitbucket.org/Davydov/mipepid/sink"
)

func init() {
	logging.SetLevel(logging.ERROR, "pipeline")
	logging.SetLevel(logging.ERROR, "checkpoint")
}

func testModel(tst *testing.T) *model.Model {
	w := make([]float64, kmer.Size(4))
	for i := range w {
		w[i] = math.Sin(float64(i)) * 20
	}
	m, err := model.New(4, w, 0.1, 0.5)
	if err != nil {
		tst.Fatal(err)
	}
	return m
}

func randomRecords(n int) bio.Sequences {
	r := rand.New(rand.NewSource(3))
	seqs := make(bio.Sequences, n)
	for i := range seqs {
		var b strings.Builder
		l := 30 + r.Intn(400)
		for j := 0; j < l; j++ {
			b.WriteByte(bio.Alphabet[r.Intn(4)])
		}
		seqs[i] = bio.Sequence{Name: fmt.Sprintf("tr%d", i+1), Sequence: b.String()}
	}
	return seqs
}

func strings2(rows []sink.Row) [][]string {
	res := make([][]string, len(rows))
	for i, r := range rows {
		res[i] = r.Strings()
	}
	return res
}

func TestRunExample(tst *testing.T) {
	m, err := model.New(4, make([]float64, 256), 0, 0.5)
	if err != nil {
		tst.Fatal(err)
	}
	recs := bio.Sequences{{Name: "tr1", Sequence: "ATGAAATAAGGATGCCCTAG"}}
	t := &sink.Table{}
	summary, err := Run(recs.Source(), m, t, DefaultConfig())
	if err != nil {
		tst.Fatal("Error running pipeline:", err)
	}
	exp := [][]string{
		{"tr1_ORF1", "ATGAAATAA", "tr1", "1", "9", "noncoding", "0.5"},
		{"tr1_ORF2", "ATGCCCTAG", "tr1", "12", "20", "noncoding", "0.5"},
	}
	if !t.Header {
		tst.Error("Header was not written")
	}
	if diff := cmp.Diff(exp, strings2(t.Rows)); diff != "" {
		tst.Error("Wrong rows (-want +got):\n", diff)
	}
	if summary.Records != 1 || summary.SORFs != 2 || summary.Coding != 0 || summary.Batches != 1 {
		tst.Error("Wrong summary:", summary)
	}
}

func TestRunEmpty(tst *testing.T) {
	t := &sink.Table{}
	summary, err := Run(bio.Sequences{}.Source(), testModel(tst), t, DefaultConfig())
	if err != nil {
		tst.Fatal(err)
	}
	if !t.Header || len(t.Rows) != 0 || summary.Batches != 0 {
		tst.Error("Expected header only output, got", len(t.Rows), "rows")
	}
}

func TestBatchingInvariance(tst *testing.T) {
	m := testModel(tst)
	recs := randomRecords(60)

	cfg := DefaultConfig()
	cfg.FlushThreshold = math.MaxInt32
	ref := &sink.Table{}
	refSummary, err := Run(recs.Source(), m, ref, cfg)
	if err != nil {
		tst.Fatal(err)
	}
	if len(ref.Rows) < 20 || refSummary.Batches != 1 {
		tst.Fatal("Too few sORFs for the test:", len(ref.Rows), refSummary.Batches)
	}
	if refSummary.Coding == 0 || refSummary.Coding == len(ref.Rows) {
		tst.Fatal("Expected both coding and noncoding sORFs")
	}
	exp := strings2(ref.Rows)

	for _, threshold := range []int{0, 1, 7, 50, 1000} {
		for _, workers := range []int{1, 3} {
			cfg := DefaultConfig()
			cfg.FlushThreshold = threshold
			cfg.Workers = workers
			t := &sink.Table{}
			summary, err := Run(recs.Source(), m, t, cfg)
			if err != nil {
				tst.Fatal(err)
			}
			if diff := cmp.Diff(exp, strings2(t.Rows)); diff != "" {
				tst.Errorf("threshold=%d, workers=%d: output differs (-want +got):\n%s", threshold, workers, diff)
			}
			if summary.SORFs != refSummary.SORFs || summary.Coding != refSummary.Coding {
				tst.Error("Summary differs:", summary, refSummary)
			}
		}
	}
}

func TestRunRowProperties(tst *testing.T) {
	t := &sink.Table{}
	if _, err := Run(randomRecords(30).Source(), testModel(tst), t, DefaultConfig()); err != nil {
		tst.Fatal(err)
	}
	for _, r := range t.Rows {
		if len(r.Seq) > 303 || len(r.Seq)%3 != 0 || r.EndAt-r.StartAt+1 != len(r.Seq) {
			tst.Error("Wrong sORF:", r.ShortORF)
		}
		if r.Probability < 0.5 || r.Probability > 1 {
			tst.Error("Confidence of a binary decision with threshold 0.5 must be >= 0.5:", r.Probability)
		}
	}
}

func TestRunBadNucleotide(tst *testing.T) {
	recs := bio.Sequences{
		{Name: "good", Sequence: "ATGAAATAA"},
		{Name: "bad", Sequence: "ATGNAATAA"},
		{Name: "later", Sequence: "ATGCCCTAG"},
	}
	cfg := DefaultConfig()
	cfg.FlushThreshold = 0
	t := &sink.Table{}
	_, err := Run(recs.Source(), testModel(tst), t, cfg)
	if !errors.Is(err, bio.ErrBadNucleotide) {
		tst.Fatal("Expected ErrBadNucleotide, got", err)
	}
	if !strings.Contains(err.Error(), "bad_ORF1") {
		tst.Error("Error doesn't name the sORF:", err)
	}
	// the first batch is already written
	if len(t.Rows) != 1 || t.Rows[0].ID != "good_ORF1" {
		tst.Error("Expected the first batch to be kept, got", strings2(t.Rows))
	}
}

func TestRunModelMismatch(tst *testing.T) {
	cfg := DefaultConfig()
	cfg.K = 3
	t := &sink.Table{}
	if _, err := Run(randomRecords(1).Source(), testModel(tst), t, cfg); err == nil {
		tst.Error("Expected error for k mismatch")
	}
	if t.Header {
		tst.Error("Nothing must be written on a configuration error")
	}
}

// failingSource returns an error after n records.
type failingSource struct {
	src RecordSource
	n   int
}

func (f *failingSource) Next() (bio.Sequence, error) {
	if f.n == 0 {
		return bio.Sequence{}, errors.New("read error")
	}
	f.n--
	return f.src.Next()
}

func TestResume(tst *testing.T) {
	m := testModel(tst)
	recs := randomRecords(40)
	cfg := DefaultConfig()
	cfg.FlushThreshold = 5

	ref := &sink.Table{}
	if _, err := Run(recs.Source(), m, ref, cfg); err != nil {
		tst.Fatal(err)
	}

	db, err := checkpoint.Open(filepath.Join(tst.TempDir(), "run.ckpt"))
	if err != nil {
		tst.Fatal(err)
	}
	defer db.Close()
	ckpt := checkpoint.NewIO(db, []byte("test"))

	t := &sink.Table{}
	cfg.Checkpoint = ckpt
	cfg.RunID = "run1"
	if _, err := Run(&failingSource{recs.Source(), 23}, m, t, cfg); err == nil {
		tst.Fatal("Expected read error")
	}
	data, err := ckpt.Load()
	if err != nil || data == nil {
		tst.Fatal("No checkpoint:", err)
	}
	if data.Final || data.Records == 0 || data.Records > 23 || data.SORFs != len(t.Rows) {
		tst.Fatal("Wrong checkpoint:", data, len(t.Rows))
	}

	cfg.Resume = data
	summary, err := Run(recs.Source(), m, t, cfg)
	if err != nil {
		tst.Fatal(err)
	}
	if summary.Skipped != data.Records {
		tst.Error("Skipped", summary.Skipped, "records, expected", data.Records)
	}
	if diff := cmp.Diff(strings2(ref.Rows), strings2(t.Rows)); diff != "" {
		tst.Error("Resumed output differs (-want +got):\n", diff)
	}
	final, _ := ckpt.Load()
	if !final.Final || final.Records != len(recs) || final.SORFs != len(ref.Rows) {
		tst.Error("Wrong final checkpoint:", final)
	}
}

// partialSink writes half of the rows of the batch number fail and
// returns an error.
type partialSink struct {
	*sink.Table
	batch, fail int
}

func (s *partialSink) WriteRows(rows []sink.Row) error {
	s.batch++
	if s.batch == s.fail {
		s.Table.WriteRows(rows[:len(rows)/2])
		return errors.New("disk full")
	}
	return s.Table.WriteRows(rows)
}

func TestResumeAfterFailedWrite(tst *testing.T) {
	m := testModel(tst)
	recs := randomRecords(40)
	cfg := DefaultConfig()
	cfg.FlushThreshold = 5

	ref := &sink.Table{}
	if _, err := Run(recs.Source(), m, ref, cfg); err != nil {
		tst.Fatal(err)
	}

	db, err := checkpoint.Open(filepath.Join(tst.TempDir(), "run.ckpt"))
	if err != nil {
		tst.Fatal(err)
	}
	defer db.Close()
	ckpt := checkpoint.NewIO(db, []byte("test"))

	t := &sink.Table{}
	cfg.Checkpoint = ckpt
	_, err = Run(recs.Source(), m, &partialSink{Table: t, fail: 3}, cfg)
	if err == nil {
		tst.Fatal("Expected write error")
	}
	if xerrors.StackTrace(err) == nil {
		tst.Error("Write error has no stack trace")
	}
	data, err := ckpt.Load()
	if err != nil || data == nil {
		tst.Fatal("No checkpoint:", err)
	}
	if data.Batches != 2 || data.Position != int64(data.SORFs) || len(t.Rows) <= data.SORFs {
		tst.Fatal("Wrong checkpoint:", data, len(t.Rows))
	}

	cfg.Resume = data
	if _, err := Run(recs.Source(), m, t, cfg); err != nil {
		tst.Fatal(err)
	}
	if diff := cmp.Diff(strings2(ref.Rows), strings2(t.Rows)); diff != "" {
		tst.Error("Resumed output differs (-want +got):\n", diff)
	}
}

func TestRunCheckpointError(tst *testing.T) {
	db, err := checkpoint.Open(filepath.Join(tst.TempDir(), "run.ckpt"))
	if err != nil {
		tst.Fatal(err)
	}
	db.Close()

	cfg := DefaultConfig()
	cfg.FlushThreshold = 0
	cfg.Checkpoint = checkpoint.NewIO(db, []byte("test"))
	t := &sink.Table{}
	if _, err := Run(randomRecords(10).Source(), testModel(tst), t, cfg); err == nil {
		tst.Fatal("Expected checkpoint error")
	}
	if len(t.Rows) == 0 {
		tst.Error("The first batch is not written")
	}

	// checkpoints need an output which can be truncated
	cfg.Checkpoint = checkpoint.NewIO(nil, []byte("test"))
	plain := struct{ sink.Sink }{&sink.Table{}}
	if _, err := Run(randomRecords(1).Source(), testModel(tst), plain, cfg); !errors.Is(err, sink.ErrNotResumable) {
		tst.Error("Expected ErrNotResumable, got", err)
	}
}

func TestRunReadError(tst *testing.T) {
	_, err := Run(&failingSource{bio.Sequences{}.Source(), 0}, testModel(tst), &sink.Table{}, DefaultConfig())
	if err == nil || errors.Is(err, io.EOF) {
		tst.Error("Expected read error, got", err)
	}
}
