package model

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"

	"github.com/mdobak/go-xerrors"
)

// Model file layout (little-endian):
//
//	magic     [4]byte "MPMD"
//	version   uint16
//	k         uint16
//	n         uint32, number of weights (4^k)
//	weights   n x float64
//	bias      float64
//	threshold float64
//	crc       uint32, CRC-32 (IEEE) of everything above
const (
	// Version is the current model file format version.
	Version = 1

	magic      = "MPMD"
	headerSize = 4 + 2 + 2 + 4
)

// ErrFormat is returned for malformed or inconsistent models.
var ErrFormat = errors.New("bad model format")

// Write serializes the model.
func (m *Model) Write(w io.Writer) error {
	if err := m.Check(); err != nil {
		return err
	}
	buf := make([]byte, 0, headerSize+8*(len(m.Weights)+2)+4)
	buf = append(buf, magic...)
	buf = binary.LittleEndian.AppendUint16(buf, Version)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(m.K))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Weights)))
	for _, v := range m.Weights {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(m.Bias))
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(m.Threshold))
	buf = binary.LittleEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf))
	_, err := w.Write(buf)
	return err
}

// Read deserializes a model.
func Read(r io.Reader) (*Model, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < headerSize || string(data[:4]) != magic {
		return nil, fmt.Errorf("%w: not a model file", ErrFormat)
	}
	le := binary.LittleEndian
	if v := le.Uint16(data[4:]); v != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrFormat, v)
	}
	k := int(le.Uint16(data[6:]))
	n := int(le.Uint32(data[8:]))
	size := headerSize + 8*(n+2) + 4
	if n > 1<<30 || len(data) != size {
		return nil, fmt.Errorf("%w: file size %d, expected %d", ErrFormat, len(data), size)
	}
	body, sum := data[:size-4], le.Uint32(data[size-4:])
	if crc32.ChecksumIEEE(body) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrFormat)
	}

	rd := bytes.NewReader(body[headerSize:])
	weights := make([]float64, n)
	var tail [2]float64
	if err := binary.Read(rd, le, weights); err != nil {
		return nil, err
	}
	if err := binary.Read(rd, le, tail[:]); err != nil {
		return nil, err
	}
	return New(k, weights, tail[0], tail[1])
}

// Load reads a model from a file.
func Load(fn string) (*Model, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, xerrors.New(err)
	}
	defer f.Close()
	m, err := Read(f)
	if err != nil {
		return nil, xerrors.New(fmt.Errorf("loading model %s: %w", fn, err))
	}
	return m, nil
}

// Save writes a model to a file.
func (m *Model) Save(fn string) error {
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	if err := m.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
