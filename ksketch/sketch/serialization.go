// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package sketch

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"github.com/shenwei356/ksketch/ksketch/util"
	"github.com/shenwei356/xopen"
	"github.com/twotwotwo/sorts/sortutil"
	"github.com/zeebo/wyhash"
)

var be = binary.BigEndian

// Magic number for checking file format
var Magic = [8]byte{'.', 'k', 's', 'k', 'e', 't', 'c', 'h'}

// MainVersion is use for checking compatibility
var MainVersion uint8 = 0

// MinorVersion is less important
var MinorVersion uint8 = 1

// Sketch types
const (
	TypeGenome    uint8 = 1
	TypeSequences uint8 = 2
)

// seed of the checksum of marker data
const checksumSeed uint64 = 1

// MaxNameLength is the maximum length of the file name and the contig name.
const MaxNameLength = 1 << 20

// the maximum number of markers to preallocate space for, before reading them
const maxPrealloc = 1 << 20

// ErrInvalidFileFormat means invalid file format.
var ErrInvalidFileFormat = errors.New("sketch: invalid binary format")

// ErrBrokenFile means the file is not complete.
var ErrBrokenFile = errors.New("sketch: broken file")

// ErrKOverflow means K < 1 or K > 32.
var ErrKOverflow = errors.New("sketch: k-mer size [1, 32] overflow")

// ErrInvalidC means the compression factor is smaller than 1.
var ErrInvalidC = errors.New("sketch: invalid compression factor")

// ErrVersionMismatch means version mismatch between files and program
var ErrVersionMismatch = errors.New("sketch: version mismatch")

// ErrChecksumMismatch means the marker data is corrupted.
var ErrChecksumMismatch = errors.New("sketch: checksum mismatch")

// ErrSketchTypeMismatch means the file stores another type of sketch.
var ErrSketchTypeMismatch = errors.New("sketch: sketch type mismatch")

// ErrNameTooLong means the file name or contig name is longer than MaxNameLength.
var ErrNameTooLong = errors.New("sketch: name too long")

// Sketch is a *GenomeSketch or a *SequencesSketch.
type Sketch interface {
	Type() uint8
	Name() string
	Params() (c, k int)
}

// Type returns TypeGenome.
func (s *GenomeSketch) Type() uint8 { return TypeGenome }

// Name returns the file name.
func (s *GenomeSketch) Name() string { return s.FileName }

// Params returns the compression factor and k-mer size.
func (s *GenomeSketch) Params() (int, int) { return s.C, s.K }

// Type returns TypeSequences.
func (s *SequencesSketch) Type() uint8 { return TypeSequences }

// Name returns the file name.
func (s *SequencesSketch) Name() string { return s.FileName }

// Params returns the compression factor and k-mer size.
func (s *SequencesSketch) Params() (int, int) { return s.C, s.K }

var poolBuf = &sync.Pool{New: func() interface{} {
	return &bytes.Buffer{}
}}

// Write writes the genome sketch to a writer.
//
// Header:
//
//	Magic number, 8 bytes, .ksketch
//	Main and minor versions, sketch type, k, 4 blank bytes
//	C, 8 bytes
//	Length of the file name, 4 bytes, and the file name
//	Length of the first contig name, 4 bytes, and the contig name
//	Number of markers, 8 bytes
//
// Data: markers are sorted, and every two markers are saved as deltas
// with a control byte, e.g., 1 + 2-16 bytes. A zero is appended to an odd list.
//
//	Checksum of the data, 8 bytes
func (s *GenomeSketch) Write(w io.Writer) (int, error) {
	N, err := writeHeader(w, TypeGenome, s.C, s.K, s.FileName, s.FirstContigName, len(s.Markers))
	if err != nil {
		return N, err
	}

	markers := s.Markers
	if !isSorted(markers) {
		markers = make([]uint64, len(s.Markers))
		copy(markers, s.Markers)
		sortutil.Uint64s(markers)
	}

	data := poolBuf.Get().(*bytes.Buffer)
	data.Reset()
	defer poolBuf.Put(data)

	buf := make([]byte, 17)
	var ctrl byte
	var n int
	var prev, v1, v2 uint64
	for i := 0; i < len(markers); i += 2 {
		v1 = markers[i] - prev
		if i+1 < len(markers) {
			v2 = markers[i+1] - markers[i]
			prev = markers[i+1]
		} else {
			v2 = 0
			prev = markers[i]
		}

		ctrl, n = util.PutUint64s(buf[1:], v1, v2)
		buf[0] = ctrl
		data.Write(buf[:n+1])
	}

	n, err = writeData(w, data.Bytes())
	return N + n, err
}

// Write writes the sequences sketch to a writer.
// The header is the same as the one of GenomeSketch, with an empty contig name.
//
// Data: markers are sorted, every marker is saved as the delta
// along with its count, with a control byte.
//
//	Checksum of the data, 8 bytes
func (s *SequencesSketch) Write(w io.Writer) (int, error) {
	N, err := writeHeader(w, TypeSequences, s.C, s.K, s.FileName, "", len(s.Counts))
	if err != nil {
		return N, err
	}

	markers := make([]uint64, 0, len(s.Counts))
	for m := range s.Counts {
		markers = append(markers, m)
	}
	sortutil.Uint64s(markers)

	data := poolBuf.Get().(*bytes.Buffer)
	data.Reset()
	defer poolBuf.Put(data)

	buf := make([]byte, 17)
	var ctrl byte
	var n int
	var prev uint64
	for _, m := range markers {
		ctrl, n = util.PutUint64s(buf[1:], m-prev, s.Counts[m])
		buf[0] = ctrl
		data.Write(buf[:n+1])
		prev = m
	}

	n, err = writeData(w, data.Bytes())
	return N + n, err
}

// WriteToFile writes the sketch to a file,
// optional with file extension of .gz, .xz, .zst, .bz2.
func (s *GenomeSketch) WriteToFile(file string) (int, error) {
	return writeToFile(s, file)
}

// WriteToFile writes the sketch to a file,
// optional with file extension of .gz, .xz, .zst, .bz2.
func (s *SequencesSketch) WriteToFile(file string) (int, error) {
	return writeToFile(s, file)
}

func writeToFile(s interface{ Write(io.Writer) (int, error) }, file string) (int, error) {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		return 0, err
	}

	N, err := s.Write(outfh)
	if err != nil {
		outfh.Close()
		return N, err
	}
	return N, outfh.Close()
}

func isSorted(list []uint64) bool {
	for i := 1; i < len(list); i++ {
		if list[i] < list[i-1] {
			return false
		}
	}
	return true
}

func writeHeader(w io.Writer, t uint8, c, k int, name, contig string, nMarkers int) (int, error) {
	if k < 1 || k > 32 {
		return 0, ErrKOverflow
	}
	if c < 1 {
		return 0, ErrInvalidC
	}

	if len(name) > MaxNameLength || len(contig) > MaxNameLength {
		return 0, ErrNameTooLong
	}

	var N int
	var err error

	// 8-byte magic number
	err = binary.Write(w, be, Magic)
	if err != nil {
		return N, err
	}
	N += 8

	// 8-byte meta info
	err = binary.Write(w, be, [8]uint8{MainVersion, MinorVersion, t, uint8(k)})
	if err != nil {
		return N, err
	}
	N += 8

	// 8-byte compression factor
	err = binary.Write(w, be, uint64(c))
	if err != nil {
		return N, err
	}
	N += 8

	// names
	for _, s := range [2]string{name, contig} {
		err = binary.Write(w, be, uint32(len(s)))
		if err != nil {
			return N, err
		}
		N += 4

		_, err = io.WriteString(w, s)
		if err != nil {
			return N, err
		}
		N += len(s)
	}

	// 8-byte the number of markers
	err = binary.Write(w, be, uint64(nMarkers))
	if err != nil {
		return N, err
	}
	N += 8

	return N, nil
}

func writeData(w io.Writer, data []byte) (int, error) {
	n, err := w.Write(data)
	if err != nil {
		return n, err
	}

	err = binary.Write(w, be, wyhash.Hash(data, checksumSeed))
	if err != nil {
		return n, err
	}
	return n + 8, nil
}

type header struct {
	t        uint8
	c, k     int
	name     string
	contig   string
	nMarkers uint64
}

func readHeader(r io.Reader) (*header, error) {
	buf := make([]byte, 24)

	// check the magic number
	_, err := io.ReadFull(r, buf[:8])
	if err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, ErrBrokenFile
		}
		return nil, err
	}
	if !bytes.Equal(buf[:8], Magic[:]) {
		return nil, ErrInvalidFileFormat
	}

	// meta data and c
	_, err = io.ReadFull(r, buf[:16])
	if err != nil {
		return nil, ErrBrokenFile
	}
	if buf[0] != MainVersion {
		return nil, ErrVersionMismatch
	}
	h := &header{t: buf[2], k: int(buf[3]), c: int(be.Uint64(buf[8:16]))}
	if h.t != TypeGenome && h.t != TypeSequences {
		return nil, ErrInvalidFileFormat
	}
	if h.k < 1 || h.k > 32 {
		return nil, ErrKOverflow
	}
	if h.c < 1 {
		return nil, ErrInvalidC
	}

	// names
	var names [2]string
	for i := range names {
		_, err = io.ReadFull(r, buf[:4])
		if err != nil {
			return nil, ErrBrokenFile
		}
		l := be.Uint32(buf[:4])
		if l > MaxNameLength {
			return nil, ErrInvalidFileFormat
		}
		s := make([]byte, l)
		_, err = io.ReadFull(r, s)
		if err != nil {
			return nil, ErrBrokenFile
		}
		names[i] = string(s)
	}
	h.name, h.contig = names[0], names[1]

	// the number of markers
	_, err = io.ReadFull(r, buf[:8])
	if err != nil {
		return nil, ErrBrokenFile
	}
	h.nMarkers = be.Uint64(buf[:8])

	return h, nil
}

// readData reads n pairs of varint-encoded values, and checks the checksum.
func readData(r io.Reader, n uint64, fn func(v1, v2 uint64)) error {
	data := poolBuf.Get().(*bytes.Buffer)
	data.Reset()
	defer poolBuf.Put(data)

	buf := make([]byte, 17)
	var ctrl byte
	var lens [2]uint8
	var nBytes, nDecoded int
	var v1, v2 uint64
	var err error
	for i := uint64(0); i < n; i++ {
		_, err = io.ReadFull(r, buf[:1])
		if err != nil {
			return ErrBrokenFile
		}
		ctrl = buf[0]
		if ctrl > 63 {
			return ErrInvalidFileFormat
		}
		lens = util.CtrlByte2ByteLengths[ctrl]
		nBytes = int(lens[0] + lens[1])

		_, err = io.ReadFull(r, buf[1:nBytes+1])
		if err != nil {
			return ErrBrokenFile
		}

		v1, v2, nDecoded = util.Uint64s(ctrl, buf[1:nBytes+1])
		if nDecoded == 0 {
			return ErrBrokenFile
		}
		data.Write(buf[:nBytes+1])

		fn(v1, v2)
	}

	_, err = io.ReadFull(r, buf[:8])
	if err != nil {
		return ErrBrokenFile
	}
	if be.Uint64(buf[:8]) != wyhash.Hash(data.Bytes(), checksumSeed) {
		return ErrChecksumMismatch
	}
	return nil
}

// prealloc limits the space preallocated for n markers, as n comes from the file.
func prealloc(n uint64) int {
	if n > maxPrealloc {
		return maxPrealloc
	}
	return int(n)
}

func readGenomeData(r io.Reader, h *header) (*GenomeSketch, error) {
	s := &GenomeSketch{
		C:               h.c,
		K:               h.k,
		FileName:        h.name,
		FirstContigName: h.contig,
		Markers:         make([]uint64, 0, prealloc(h.nMarkers)),
	}

	var prev uint64
	err := readData(r, h.nMarkers/2+h.nMarkers%2, func(v1, v2 uint64) {
		prev += v1
		s.Markers = append(s.Markers, prev)
		if uint64(len(s.Markers)) < h.nMarkers {
			prev += v2
			s.Markers = append(s.Markers, prev)
		}
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func readSequencesData(r io.Reader, h *header) (*SequencesSketch, error) {
	s := &SequencesSketch{
		FileName: h.name,
		C:        h.c,
		K:        h.k,
		Counts:   make(map[uint64]uint64, prealloc(h.nMarkers)),
	}

	var prev uint64
	err := readData(r, h.nMarkers, func(v1, v2 uint64) {
		prev += v1
		s.Counts[prev] = v2
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Read reads a sketch of any type from an io.Reader.
func Read(r io.Reader) (Sketch, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	if h.t == TypeGenome {
		g, err := readGenomeData(r, h)
		if err != nil {
			return nil, err
		}
		return g, nil
	}

	s, err := readSequencesData(r, h)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ReadGenomeSketch reads a genome sketch from an io.Reader.
func ReadGenomeSketch(r io.Reader) (*GenomeSketch, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if h.t != TypeGenome {
		return nil, ErrSketchTypeMismatch
	}
	return readGenomeData(r, h)
}

// ReadSequencesSketch reads a sequences sketch from an io.Reader.
func ReadSequencesSketch(r io.Reader) (*SequencesSketch, error) {
	h, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	if h.t != TypeSequences {
		return nil, ErrSketchTypeMismatch
	}
	return readSequencesData(r, h)
}

// NewFromFile reads a sketch of any type from a file.
func NewFromFile(file string) (Sketch, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	return Read(fh)
}

// NewGenomeSketchFromFile reads a genome sketch from a file.
func NewGenomeSketchFromFile(file string) (*GenomeSketch, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	return ReadGenomeSketch(fh)
}

// NewSequencesSketchFromFile reads a sequences sketch from a file.
func NewSequencesSketchFromFile(file string) (*SequencesSketch, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	return ReadSequencesSketch(fh)
}
