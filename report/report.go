// Package report writes run summaries and probability plots.
package report

import (
	"encoding/json"
	"errors"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"bitbucket.org/Davydov/mipepid/pipeline"
)

// Summary is storing mipepid run summary information.
type Summary struct {
	// Version stores mipepid version.
	Version string `json:"version"`
	// CommandLine is an array storing binary name and all command-line parameters.
	CommandLine []string `json:"commandLine"`
	// Input is the input FASTA file name.
	Input string `json:"input"`
	// Output is the output file name.
	Output string `json:"output"`
	// Format is the output format.
	Format string `json:"format"`
	// Model is the model file name.
	Model string `json:"model"`
	// K is the k-mer size.
	K int `json:"k"`
	// FlushThreshold is the batch size threshold.
	FlushThreshold int `json:"flushThreshold"`
	// Resumed is true if the run continued an interrupted one.
	Resumed bool `json:"resumed,omitempty"`
	// Run is the pipeline summary.
	Run *pipeline.Summary `json:"run"`
}

// WriteJSON writes the summary to a file.
func (s *Summary) WriteJSON(fn string) error {
	j, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(fn, append(j, '\n'), 0666)
}

// Histogram plots the distribution of coding probabilities with a
// vertical line at the decision threshold and saves it. The image
// format is chosen by the file extension (png, svg, pdf, ...).
func Histogram(probs []float64, threshold float64, fn string) error {
	if len(probs) == 0 {
		return errors.New("no probabilities to plot")
	}
	p := plot.New()
	p.Title.Text = "sORF coding probability"
	p.X.Label.Text = "probability"
	p.Y.Label.Text = "sORFs"
	p.X.Min = 0
	p.X.Max = 1

	h, err := plotter.NewHist(plotter.Values(probs), 20)
	if err != nil {
		return err
	}
	p.Add(h)

	line, err := plotter.NewLine(plotter.XYs{{X: threshold, Y: 0}, {X: threshold, Y: maxCount(h)}})
	if err != nil {
		return err
	}
	line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(line)
	p.Legend.Add("threshold", line)

	return p.Save(6*vg.Inch, 4*vg.Inch, fn)
}

// maxCount returns the height of the highest histogram bin.
func maxCount(h *plotter.Histogram) (m float64) {
	for _, b := range h.Bins {
		if b.Weight > m {
			m = b.Weight
		}
	}
	return
}
