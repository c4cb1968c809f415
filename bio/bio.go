// Package bio provides nucleotide sequences, codon sets and FASTA
// input.
package bio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// StandardStartCodons is the start codon set used by default.
	StandardStartCodons = []string{"ATG"}
	// StandardStopCodons is the stop codon set of the standard
	// genetic code.
	StandardStopCodons = []string{"TAA", "TAG", "TGA"}
)

// CodonSet is a set of codons (DNA alphabet, capital letters).
type CodonSet map[string]struct{}

// NewCodonSet creates a codon set. Every codon must be three
// nucleotides long and use only A, T, C and G.
func NewCodonSet(codons []string) (CodonSet, error) {
	if len(codons) == 0 {
		return nil, errors.New("empty codon set")
	}
	cs := make(CodonSet, len(codons))
	for _, c := range codons {
		c = strings.ToUpper(c)
		if len(c) != 3 {
			return nil, fmt.Errorf("codon %q is not three nucleotides long", c)
		}
		if err := Validate(c); err != nil {
			return nil, err
		}
		cs[c] = struct{}{}
	}
	return cs, nil
}

// MustCodonSet is like NewCodonSet but panics on error.
func MustCodonSet(codons []string) CodonSet {
	cs, err := NewCodonSet(codons)
	if err != nil {
		panic(err)
	}
	return cs
}

// Has tests if the codon belongs to the set.
func (cs CodonSet) Has(codon string) bool {
	_, ok := cs[codon]
	return ok
}

// Sequence is a type which is intended for storing nucleotide
// sequence with it's name.
type Sequence struct {
	Name     string
	Sequence string
}

// Sequences stores multiple sequences.
type Sequences []Sequence

// Source returns a record source iterating over the sequences.
func (seqs Sequences) Source() *SliceSource {
	return &SliceSource{seqs: seqs}
}

// SliceSource yields sequences from a slice. It returns io.EOF when
// all the sequences were consumed.
type SliceSource struct {
	seqs Sequences
	pos  int
}

// Next returns the next sequence.
func (s *SliceSource) Next() (Sequence, error) {
	if s.pos >= len(s.seqs) {
		return Sequence{}, io.EOF
	}
	seq := s.seqs[s.pos]
	s.pos++
	return seq, nil
}

// FastaReader reads FASTA records one by one. Sequence lines are
// uppercased and spaces are removed. The record name is the first
// whitespace-delimited word of the header line.
type FastaReader struct {
	scanner *bufio.Scanner
	header  string
	started bool
	done    bool
}

// NewFastaReader creates a new FastaReader.
func NewFastaReader(rd io.Reader) *FastaReader {
	scanner := bufio.NewScanner(rd)
	// transcripts may be written on a single very long line
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024*1024)
	return &FastaReader{scanner: scanner}
}

// Next returns the next record or io.EOF.
func (fr *FastaReader) Next() (Sequence, error) {
	if fr.done {
		return Sequence{}, io.EOF
	}
	var b strings.Builder
	for fr.scanner.Scan() {
		line := strings.TrimSpace(fr.scanner.Text())
		if line == "" {
			continue
		}
		if line[0] == '>' {
			name := recordName(line[1:])
			if !fr.started {
				fr.started = true
				fr.header = name
				continue
			}
			seq := Sequence{Name: fr.header, Sequence: b.String()}
			fr.header = name
			return seq, nil
		}
		if !fr.started {
			return Sequence{}, errors.New("sequence w/o prefix")
		}
		b.WriteString(strings.ToUpper(strings.Replace(line, " ", "", -1)))
	}
	fr.done = true
	if err := fr.scanner.Err(); err != nil {
		return Sequence{}, err
	}
	if !fr.started {
		return Sequence{}, io.EOF
	}
	return Sequence{Name: fr.header, Sequence: b.String()}, nil
}

// recordName returns the record identifier from a header line.
func recordName(header string) string {
	fields := strings.Fields(header)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
