// Package pipeline finds short ORFs in a stream of transcripts,
// classifies them in batches and writes the results.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/op/go-logging"

	"bitbucket.org/Davydov/mipepid/bio"
	"bitbucket.org/Davydov/mipepid/checkpoint"
	"bitbucket.org/Davydov/mipepid/kmer"
	"bitbucket.org/Davydov/mipepid/model"
	"bitbucket.org/Davydov/mipepid/orf"
	"bitbucket.org/Davydov/mipepid/sink"
)

// log is the global logging variable.
var log = logging.MustGetLogger("pipeline")

// RecordSource yields input transcripts, io.EOF marks the end.
type RecordSource interface {
	Next() (bio.Sequence, error)
}

// Config stores pipeline settings.
type Config struct {
	// K is the k-mer size, it must be equal to the model k.
	K int
	// FlushThreshold is the number of buffered sORFs which triggers
	// classification once exceeded.
	FlushThreshold int
	// MaxORFLength is the maximum length of a short ORF.
	MaxORFLength int
	// RawCounts uses k-mer counts instead of frequencies.
	RawCounts bool
	// Scan holds start and stop codons, nil sets mean the standard
	// ones.
	Scan orf.ScanOptions
	// Workers is the number of goroutines classifying a batch.
	Workers int

	// Resume is the checkpoint of an interrupted run. The output is
	// truncated to the checkpoint position, records it has written
	// are skipped and no header is written.
	Resume *checkpoint.Data
	// Checkpoint receives progress after every batch if not nil. The
	// output must be a sink.Resumable.
	Checkpoint *checkpoint.IO
	// RunID identifies the run in checkpoints.
	RunID string
	// KeepProbabilities stores coding probabilities in the Summary.
	KeepProbabilities bool
}

// DefaultConfig returns the settings the model was trained for.
func DefaultConfig() Config {
	return Config{
		K:              4,
		FlushThreshold: 1000,
		MaxORFLength:   orf.MaxShortLength,
		Scan:           orf.DefaultScanOptions(),
		Workers:        1,
	}
}

// Summary describes a finished run.
type Summary struct {
	RunID string `json:"runID,omitempty"`
	// Records is the number of records processed by this run.
	Records int `json:"records"`
	// Skipped is the number of records skipped when resuming.
	Skipped int `json:"skipped"`
	SORFs   int `json:"sorfs"`
	Coding  int `json:"coding"`
	Batches int `json:"batches"`
	// Probabilities are the coding probabilities of all the sORFs.
	Probabilities []float64 `json:"-"`
	// Time is the running time in seconds.
	Time float64 `json:"time"`
}

// Run reads all the records from src, finds short ORFs, classifies
// them with m and writes them to out. The result doesn't depend on
// the FlushThreshold. If a batch fails, already written batches are
// kept.
func Run(src RecordSource, m *model.Model, out sink.Sink, cfg Config) (*Summary, error) {
	startTime := time.Now()
	if cfg.K != m.K {
		return nil, fmt.Errorf("k-mer size %d doesn't match the model (k=%d)", cfg.K, m.K)
	}
	if cfg.Scan.StartCodons == nil || cfg.Scan.StopCodons == nil {
		cfg.Scan = orf.DefaultScanOptions()
	}
	f, err := kmer.NewFeaturizer(cfg.K)
	if err != nil {
		return nil, err
	}

	p := &run{
		cfg:     cfg,
		model:   m,
		f:       f,
		out:     out,
		summary: &Summary{RunID: cfg.RunID},
	}
	if cfg.Checkpoint != nil || cfg.Resume != nil {
		rs, ok := out.(sink.Resumable)
		if !ok {
			return nil, fmt.Errorf("%T: %w", out, sink.ErrNotResumable)
		}
		p.resumable = rs
	}

	skip := 0
	if cfg.Resume != nil {
		skip = cfg.Resume.Records
		log.Noticef("Resuming, skipping %d records", skip)
		if err := p.resumable.Truncate(cfg.Resume.Position); err != nil {
			return nil, xerrors.New(fmt.Errorf("error truncating output: %w", err))
		}
	} else if err := out.WriteHeader(); err != nil {
		return nil, xerrors.New(fmt.Errorf("error writing header: %w", err))
	}

	nrec := 0
	for ; ; nrec++ {
		rec, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return p.summary, xerrors.New(fmt.Errorf("error reading record %d: %w", nrec+1, err))
		}
		if nrec < skip {
			p.summary.Skipped++
			continue
		}
		orfs := orf.Scan(rec.Sequence, cfg.Scan)
		p.buffer = append(p.buffer, orf.FilterAndName(orfs, rec.Name, cfg.MaxORFLength)...)
		p.summary.Records++

		if len(p.buffer) > cfg.FlushThreshold {
			if err := p.flush(); err != nil {
				return p.summary, err
			}
			if err := p.save(nrec+1, false); err != nil {
				return p.summary, err
			}
			log.Infof("Wrote another %d sORFs.", p.last)
		}
	}
	if nrec < skip {
		log.Warningf("Input has %d records, fewer than %d to skip", nrec, skip)
	}

	if len(p.buffer) > 0 {
		if err := p.flush(); err != nil {
			return p.summary, err
		}
	}
	if err := p.save(nrec, true); err != nil {
		return p.summary, err
	}
	p.summary.Time = time.Since(startTime).Seconds()
	log.Noticef("Finished writing all the sORFs: %d records, %d sORFs, %d coding",
		p.summary.Records, p.summary.SORFs, p.summary.Coding)
	return p.summary, nil
}

// run is the state of a single Run call.
type run struct {
	cfg     Config
	model   *model.Model
	f       *kmer.Featurizer
	out     sink.Sink
	buffer  []orf.ShortORF
	summary *Summary
	// last is the size of the last written batch.
	last int

	// resumable is out if checkpoints are used.
	resumable sink.Resumable
}

// flush classifies the buffered sORFs and writes them.
func (p *run) flush() error {
	rows, err := p.classify(p.buffer)
	if err != nil {
		return err
	}
	if err := p.out.WriteRows(rows); err != nil {
		return xerrors.New(fmt.Errorf("error writing batch %d: %w", p.summary.Batches+1, err))
	}
	for _, r := range rows {
		if r.Classification == model.Coding {
			p.summary.Coding++
		}
	}
	p.summary.SORFs += len(rows)
	p.summary.Batches++
	p.last = len(rows)
	p.buffer = p.buffer[:0]
	return nil
}

// classify featurizes and classifies sORFs, splitting them between
// workers. Rows are in the sORF order.
func (p *run) classify(sorfs []orf.ShortORF) ([]sink.Row, error) {
	rows := make([]sink.Row, len(sorfs))
	nw := p.cfg.Workers
	if nw < 1 {
		nw = 1
	}
	chunk := (len(sorfs) + nw - 1) / nw
	if chunk == 0 {
		return rows, nil
	}
	nchunks := (len(sorfs) + chunk - 1) / chunk

	errs := make([]error, nchunks)
	var wg sync.WaitGroup
	for c := 0; c < nchunks; c++ {
		start := c * chunk
		end := start + chunk
		if end > len(sorfs) {
			end = len(sorfs)
		}
		wg.Add(1)
		go func(c, start, end int) {
			defer wg.Done()
			errs[c] = p.classifyChunk(sorfs[start:end], rows[start:end])
		}(c, start, end)
	}
	wg.Wait()
	// the earliest failing sORF is reported
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	if p.cfg.KeepProbabilities {
		for _, r := range rows {
			p.summary.Probabilities = append(p.summary.Probabilities, r.CodingProbability)
		}
	}
	return rows, nil
}

// classifyChunk fills rows for sorfs.
func (p *run) classifyChunk(sorfs []orf.ShortORF, rows []sink.Row) error {
	seqs := make([]string, len(sorfs))
	for i, s := range sorfs {
		seqs[i] = s.Seq
	}
	vs, err := p.f.FeaturizeBatch(seqs, p.cfg.RawCounts)
	if err != nil {
		var be *kmer.BatchError
		if errors.As(err, &be) {
			s := sorfs[be.Index]
			return xerrors.New(fmt.Errorf("transcript %s, %s: %w", s.TranscriptID, s.ID, be.Err))
		}
		return xerrors.New(err)
	}
	res, err := model.Classify(p.model, vs)
	if err != nil {
		return xerrors.New(err)
	}
	for i := range rows {
		rows[i] = sink.NewRow(sorfs[i], res[i])
	}
	return nil
}

// save stores the progress: records is the number of input records
// (including skipped ones) written to the output. A failed save stops
// the run.
func (p *run) save(records int, final bool) error {
	if p.cfg.Checkpoint == nil {
		return nil
	}
	pos, err := p.resumable.Position()
	if err != nil {
		return xerrors.New(fmt.Errorf("error getting output position: %w", err))
	}
	data := &checkpoint.Data{
		RunID:    p.cfg.RunID,
		Records:  records,
		SORFs:    p.summary.SORFs,
		Batches:  p.summary.Batches,
		Position: pos,
		Final:    final,
	}
	if prev := p.cfg.Resume; prev != nil {
		data.SORFs += prev.SORFs
		data.Batches += prev.Batches
	}
	if err := p.cfg.Checkpoint.Save(data); err != nil {
		return xerrors.New(fmt.Errorf("error saving checkpoint: %w", err))
	}
	return nil
}
