package sink

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

func init() {
	Register("csv", func(path string, appending bool) (Sink, error) {
		return openDelimited(path, appending, ',')
	})
	Register("tsv", func(path string, appending bool) (Sink, error) {
		return openDelimited(path, appending, '\t')
	})
	Register("jsonl", func(path string, appending bool) (Sink, error) {
		f, err := openFile(path, appending)
		if err != nil {
			return nil, err
		}
		return newJSONL(f), nil
	})
}

// openFile opens an output file, "-" is the standard output. When
// appending, writes start at the end of the existing file.
func openFile(path string, appending bool) (*output, error) {
	if path == "-" {
		return &output{Writer: os.Stdout}, nil
	}
	flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if appending {
		flag = os.O_WRONLY | os.O_CREATE
	}
	f, err := os.OpenFile(path, flag, 0666)
	if err != nil {
		return nil, err
	}
	if appending {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &output{Writer: f, f: f}, nil
}

// output is an output stream, only files can be truncated.
type output struct {
	io.Writer
	f *os.File
}

// Position returns the current file offset.
func (o *output) Position() (int64, error) {
	if o.f == nil {
		return 0, ErrNotResumable
	}
	return o.f.Seek(0, io.SeekCurrent)
}

// Truncate cuts the file at pos and moves the offset there.
func (o *output) Truncate(pos int64) error {
	if o.f == nil {
		return ErrNotResumable
	}
	fi, err := o.f.Stat()
	if err != nil {
		return err
	}
	if pos < 0 || pos > fi.Size() {
		return fmt.Errorf("cannot truncate %s of %d bytes to %d", o.f.Name(), fi.Size(), pos)
	}
	if err := o.f.Truncate(pos); err != nil {
		return err
	}
	_, err = o.f.Seek(pos, io.SeekStart)
	return err
}

// Close closes the file, the standard output is left open.
func (o *output) Close() error {
	if o.f == nil {
		return nil
	}
	return o.f.Close()
}

func openDelimited(path string, appending bool, comma rune) (Sink, error) {
	f, err := openFile(path, appending)
	if err != nil {
		return nil, err
	}
	return newDelimited(f, comma), nil
}

// Delimited writes comma or tab separated rows.
type Delimited struct {
	w   *csv.Writer
	out *output
}

// newDelimited creates a delimited sink writing to out.
func newDelimited(out *output, comma rune) *Delimited {
	d := &Delimited{out: out}
	d.reset(comma)
	return d
}

func (d *Delimited) reset(comma rune) {
	d.w = csv.NewWriter(d.out)
	d.w.Comma = comma
}

// WriteHeader writes the column names.
func (d *Delimited) WriteHeader() error {
	if err := d.w.Write(Columns); err != nil {
		return err
	}
	d.w.Flush()
	return d.w.Error()
}

// WriteRows writes and flushes rows.
func (d *Delimited) WriteRows(rows []Row) error {
	for _, r := range rows {
		if err := d.w.Write(r.Strings()); err != nil {
			return err
		}
	}
	d.w.Flush()
	return d.w.Error()
}

// Position returns the file offset after the last flushed row.
func (d *Delimited) Position() (int64, error) {
	return d.out.Position()
}

// Truncate drops the rows written after pos. Unflushed rows are
// discarded.
func (d *Delimited) Truncate(pos int64) error {
	if err := d.out.Truncate(pos); err != nil {
		return err
	}
	d.reset(d.w.Comma)
	return nil
}

// Close closes the output.
func (d *Delimited) Close() error {
	d.w.Flush()
	if err := d.w.Error(); err != nil {
		d.out.Close()
		return err
	}
	return d.out.Close()
}

// jsonRow is a row in JSON lines output, keys are the column names.
type jsonRow struct {
	ID             string  `json:"sORF_ID"`
	Seq            string  `json:"sORF_seq"`
	TranscriptID   string  `json:"transcript_DNA_sequence_ID"`
	StartAt        int     `json:"start_at"`
	EndAt          int     `json:"end_at"`
	Classification string  `json:"classification"`
	Probability    float64 `json:"probability"`
}

// JSONL writes a JSON object per row. It has no header line.
type JSONL struct {
	enc *json.Encoder
	out *output
}

// newJSONL creates a JSON lines sink writing to out.
func newJSONL(out *output) *JSONL {
	return &JSONL{enc: json.NewEncoder(out), out: out}
}

// WriteHeader does nothing, JSON lines are self-describing.
func (j *JSONL) WriteHeader() error {
	return nil
}

// WriteRows writes rows.
func (j *JSONL) WriteRows(rows []Row) error {
	for _, r := range rows {
		err := j.enc.Encode(jsonRow{
			ID:             r.ID,
			Seq:            r.Seq,
			TranscriptID:   r.TranscriptID,
			StartAt:        r.StartAt,
			EndAt:          r.EndAt,
			Classification: r.Classification.String(),
			Probability:    r.Probability,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Position returns the file offset after the last row.
func (j *JSONL) Position() (int64, error) {
	return j.out.Position()
}

// Truncate drops the rows written after pos.
func (j *JSONL) Truncate(pos int64) error {
	return j.out.Truncate(pos)
}

// Close closes the output.
func (j *JSONL) Close() error {
	return j.out.Close()
}
