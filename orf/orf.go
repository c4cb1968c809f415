// Package orf finds open reading frames in nucleotide sequences and
// selects the short ones.
package orf

import (
	"fmt"

	"bitbucket.org/Davydov/mipepid/bio"
)

// MaxShortLength is the maximum length (in nucleotides, including the
// stop codon) of a short ORF.
const MaxShortLength = 303

// CandidateORF is an open reading frame found by Scan. It starts with
// a start codon, ends with a stop codon and has no other in-frame stop
// codon.
type CandidateORF struct {
	// Start is the 0-based position of the start codon.
	Start int
	// Stop is the 0-based position of the first nucleotide of the
	// stop codon.
	Stop int
	// Frame is the reading frame (0, 1 or 2).
	Frame int
	// Seq is the ORF nucleotide sequence.
	Seq string
}

// Len returns the ORF length in nucleotides.
func (o CandidateORF) Len() int {
	return len(o.Seq)
}

// StartCodon returns the first codon.
func (o CandidateORF) StartCodon() string {
	return o.Seq[:3]
}

// StopCodon returns the last codon.
func (o CandidateORF) StopCodon() string {
	return o.Seq[len(o.Seq)-3:]
}

func (o CandidateORF) String() string {
	return fmt.Sprintf("<ORF: frame=%d, %d-%d, %s>", o.Frame, o.Start, o.Stop+3, o.Seq)
}

// ScanOptions holds codon sets used by Scan.
type ScanOptions struct {
	StartCodons bio.CodonSet
	StopCodons  bio.CodonSet
}

// DefaultScanOptions returns ATG as the only start codon and the
// standard stop codons.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		StartCodons: bio.MustCodonSet(bio.StandardStartCodons),
		StopCodons:  bio.MustCodonSet(bio.StandardStopCodons),
	}
}

// Scan finds all the ORFs in the three forward reading frames.
//
// Every frame is split into segments each ending with a stop codon;
// nucleotides after the last stop codon of a frame are ignored, so an
// ORF without a stop codon is never reported. Every start codon of a
// segment gives a separate ORF ending at the segment stop codon, thus
// nested ORFs sharing a stop codon are all returned.
//
// ORFs are ordered by frame, then by segment, then by start position.
func Scan(seq string, opts ScanOptions) (orfs []CandidateORF) {
	for frame := 0; frame < 3; frame++ {
		orfs = scanFrame(seq, frame, opts, orfs)
	}
	return
}

// scanFrame appends ORFs found in one reading frame to orfs.
func scanFrame(seq string, frame int, opts ScanOptions, orfs []CandidateORF) []CandidateORF {
	// start codons of the current segment
	var starts []int
	for i := frame; i+3 <= len(seq); i += 3 {
		codon := seq[i : i+3]
		if opts.StopCodons.Has(codon) {
			for _, s := range starts {
				orfs = append(orfs, CandidateORF{
					Start: s,
					Stop:  i,
					Frame: frame,
					Seq:   seq[s : i+3],
				})
			}
			starts = starts[:0]
			continue
		}
		if opts.StartCodons.Has(codon) {
			starts = append(starts, i)
		}
	}
	return orfs
}
