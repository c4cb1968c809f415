package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"bitbucket.org/Davydov/mipepid/bio"
	"bitbucket.org/Davydov/mipepid/checkpoint"
	"bitbucket.org/Davydov/mipepid/model"
	"bitbucket.org/Davydov/mipepid/orf"
	"bitbucket.org/Davydov/mipepid/pipeline"
	"bitbucket.org/Davydov/mipepid/report"
	"bitbucket.org/Davydov/mipepid/sink"
)

// defaultModelName is the model file looked up next to the executable.
const defaultModelName = "mipepid.model"

// defaultModel returns the path of the model installed with the
// executable.
func defaultModel() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("cannot locate the default model: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), defaultModelName), nil
}

// predictSettings stores settings of a prediction run.
type predictSettings struct {
	input  string
	output string
	format string
	modelF string

	cfg pipeline.Config

	resume      bool
	checkpointF string

	jsonF string
	histF string
}

// newPredictSettings creates predictSettings from the command line
// parameters (global variables).
func newPredictSettings() (*predictSettings, error) {
	startCodons, err := bio.NewCodonSet(*starts)
	if err != nil {
		return nil, fmt.Errorf("start codons: %w", err)
	}
	stopCodons, err := bio.NewCodonSet(*stops)
	if err != nil {
		return nil, fmt.Errorf("stop codons: %w", err)
	}
	if *maxLen < 6 {
		return nil, fmt.Errorf("maximum sORF length %d is too small", *maxLen)
	}
	mf := *modelF
	if mf == "" {
		if mf, err = defaultModel(); err != nil {
			return nil, err
		}
	}

	cfg := pipeline.DefaultConfig()
	cfg.K = *k
	cfg.FlushThreshold = *batch
	cfg.MaxORFLength = *maxLen
	cfg.RawCounts = *rawCounts
	cfg.Scan = orf.ScanOptions{StartCodons: startCodons, StopCodons: stopCodons}
	cfg.Workers = *nThreads

	return &predictSettings{
		input:  *inputF,
		output: *outputF,
		format: *format,
		modelF: mf,

		cfg: cfg,

		resume:      *resume,
		checkpointF: *checkpointF,

		jsonF: *jsonF,
		histF: *histF,
	}, nil
}

// checkpointKey identifies a run in the checkpoint database.
func (ps *predictSettings) checkpointKey() []byte {
	return []byte(ps.input + "\x00" + ps.output)
}

// predict runs the prediction.
func (ps *predictSettings) predict() error {
	m, err := model.Load(ps.modelF)
	if err != nil {
		return err
	}
	log.Infof("Model: k=%d, threshold=%v", m.K, m.Threshold)
	if m.K != ps.cfg.K {
		return fmt.Errorf("model k=%d doesn't match k=%d", m.K, ps.cfg.K)
	}

	ps.cfg.RunID = uuid.NewString()
	if (ps.resume || ps.checkpointF != "") && ps.output == "-" {
		return fmt.Errorf("standard output: %w", sink.ErrNotResumable)
	}
	if ps.resume && ps.checkpointF == "" {
		ps.checkpointF = ps.output + ".ckpt"
	}
	if ps.checkpointF != "" {
		db, err := checkpoint.Open(ps.checkpointF)
		if err != nil {
			return fmt.Errorf("error opening checkpoint: %w", err)
		}
		defer db.Close()
		ps.cfg.Checkpoint = checkpoint.NewIO(db, ps.checkpointKey())

		if ps.resume {
			data, err := ps.cfg.Checkpoint.Load()
			if err != nil {
				return fmt.Errorf("error reading checkpoint: %w", err)
			}
			switch {
			case data == nil:
				log.Warning("No checkpoint found, starting from the beginning")
			case data.Final:
				log.Notice("The run has already finished")
				return nil
			default:
				ps.cfg.Resume = data
				ps.cfg.RunID = data.RunID
			}
		}
	}
	log.Infof("Run id: %s", ps.cfg.RunID)

	in, err := bio.OpenFasta(ps.input)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := sink.Open(ps.format, ps.output, ps.cfg.Resume != nil)
	if err != nil {
		return err
	}
	log.Noticef("Begin writing the output file: %s", ps.output)

	ps.cfg.KeepProbabilities = ps.histF != ""
	summary, err := pipeline.Run(bio.NewFastaReader(in), m, out, ps.cfg)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if ps.histF != "" {
		if len(summary.Probabilities) == 0 {
			log.Warning("No sORFs found, histogram is not plotted")
		} else if err := report.Histogram(summary.Probabilities, m.Threshold, ps.histF); err != nil {
			log.Error("Error plotting histogram:", err)
		}
	}

	if ps.jsonF != "" {
		rs := &report.Summary{
			Version:        version,
			CommandLine:    os.Args,
			Input:          ps.input,
			Output:         ps.output,
			Format:         ps.format,
			Model:          ps.modelF,
			K:              ps.cfg.K,
			FlushThreshold: ps.cfg.FlushThreshold,
			Resumed:        ps.cfg.Resume != nil,
			Run:            summary,
		}
		if err := rs.WriteJSON(ps.jsonF); err != nil {
			log.Error("Error creating json output file:", err)
		}
	}
	log.Noticef("Running time: %.2fs", summary.Time)
	return nil
}
