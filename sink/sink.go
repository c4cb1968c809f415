// Package sink writes classified short ORFs as table rows.
package sink

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/mipepid/model"
	"bitbucket.org/Davydov/mipepid/orf"
)

// log is the global logging variable.
var log = logging.MustGetLogger("sink")

// Columns is the table header.
var Columns = []string{
	"sORF_ID",
	"sORF_seq",
	"transcript_DNA_sequence_ID",
	"start_at",
	"end_at",
	"classification",
	"probability",
}

// Row is a classified short ORF.
type Row struct {
	orf.ShortORF
	Classification model.Label
	// Probability is the probability of the assigned classification.
	Probability float64
	// CodingProbability is the probability of being coding, it is not
	// written to the output.
	CodingProbability float64
}

// NewRow creates a row from a short ORF and its classification.
func NewRow(s orf.ShortORF, r model.Result) Row {
	return Row{
		ShortORF:       s,
		Classification: r.Label,
		Probability:    r.Confidence,

		CodingProbability: r.Probability,
	}
}

// Strings returns row fields in the Columns order.
func (r Row) Strings() []string {
	return []string{
		r.ID,
		r.Seq,
		r.TranscriptID,
		strconv.Itoa(r.StartAt),
		strconv.Itoa(r.EndAt),
		r.Classification.String(),
		FormatProbability(r.Probability),
	}
}

// FormatProbability formats a probability with the shortest
// representation which reads back to the same value.
func FormatProbability(p float64) string {
	return strconv.FormatFloat(p, 'g', -1, 64)
}

// Sink is an append-only table. WriteHeader is called once before
// any rows unless the sink was opened to append.
type Sink interface {
	WriteHeader() error
	WriteRows(rows []Row) error
	Close() error
}

// Factory opens a sink at path. If appending is true, existing
// content is kept.
type Factory func(path string, appending bool) (Sink, error)

var factories = map[string]Factory{}

// Register registers a sink format, last registration wins.
func Register(format string, f Factory) {
	factories[format] = f
}

// Formats returns the names of all the registered formats.
func Formats() []string {
	fs := make([]string, 0, len(factories))
	for f := range factories {
		fs = append(fs, f)
	}
	sort.Strings(fs)
	return fs
}

// Open opens a sink of a registered format.
func Open(format, path string, appending bool) (Sink, error) {
	f, ok := factories[format]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q", format)
	}
	log.Debugf("Opening %s output %s (append=%v)", format, path, appending)
	return f(path, appending)
}

// Resumable is a sink which can be rolled back to an earlier state.
// Position is only meaningful right after WriteHeader or WriteRows
// returned.
type Resumable interface {
	Sink
	// Position returns the current end of the written content.
	Position() (int64, error)
	// Truncate drops everything written after pos. The following
	// writes continue from pos.
	Truncate(pos int64) error
}

// ErrNotResumable is returned by sinks writing to a stream which
// cannot be rewound.
var ErrNotResumable = errors.New("output cannot be resumed")

// Table keeps rows in memory.
type Table struct {
	Header bool
	Rows   []Row
}

// WriteHeader marks the header as written.
func (t *Table) WriteHeader() error {
	t.Header = true
	return nil
}

// WriteRows appends rows.
func (t *Table) WriteRows(rows []Row) error {
	t.Rows = append(t.Rows, rows...)
	return nil
}

// Position returns the number of rows.
func (t *Table) Position() (int64, error) {
	return int64(len(t.Rows)), nil
}

// Truncate keeps the first pos rows.
func (t *Table) Truncate(pos int64) error {
	if pos < 0 || pos > int64(len(t.Rows)) {
		return fmt.Errorf("cannot truncate %d rows to %d", len(t.Rows), pos)
	}
	t.Rows = t.Rows[:pos]
	return nil
}

// Close does nothing.
func (t *Table) Close() error {
	return nil
}
