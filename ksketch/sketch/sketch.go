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

// Package sketch defines sketches of genomes and sequencing samples,
// and supports merging, mate-pair grouping and serialization.
package sketch

import (
	"errors"
	"fmt"
)

// ErrIncompatible means two sketches have different compression factors or k-mer sizes.
var ErrIncompatible = errors.New("sketch: incompatible c or k")

// GenomeSketch is the sketch of a reference genome.
// Markers are sorted and unique, markers occurring more than once
// in the genome are not included.
type GenomeSketch struct {
	C int
	K int

	FileName        string
	FirstContigName string

	Markers []uint64
}

func (s *GenomeSketch) String() string {
	return fmt.Sprintf("%s, c:%d, k:%d, markers:%d", s.FileName, s.C, s.K, len(s.Markers))
}

// SequencesSketch is the sketch of a sequencing sample,
// a multiset of markers with strictly positive counts.
type SequencesSketch struct {
	FileName string
	C        int
	K        int

	Counts map[uint64]uint64
}

// NewSequencesSketch creates an empty SequencesSketch.
func NewSequencesSketch(file string, c, k int) *SequencesSketch {
	return &SequencesSketch{
		FileName: file,
		C:        c,
		K:        k,
		Counts:   make(map[uint64]uint64, 1024),
	}
}

func (s *SequencesSketch) String() string {
	return fmt.Sprintf("%s, c:%d, k:%d, markers:%d", s.FileName, s.C, s.K, len(s.Counts))
}

// Total returns the sum of all counts.
func (s *SequencesSketch) Total() (n uint64) {
	for _, v := range s.Counts {
		n += v
	}
	return n
}

// CheckCompatibility checks if the compression factors and k-mer sizes match.
func CheckCompatibility(c1, k1, c2, k2 int) error {
	if c1 != c2 || k1 != k2 {
		return fmt.Errorf("%w: c=%d, k=%d vs c=%d, k=%d", ErrIncompatible, c1, k1, c2, k2)
	}
	return nil
}

// Combine merges sketches of a mate-pair group by summing counts of markers,
// the first sketch is used as the accumulator and returned.
// If the file name matches the mate-pair pattern, the pair digit
// (and a separator before it) is removed from the name.
//
// Combine panics if no sketches are given.
func Combine(sketches []*SequencesSketch) *SequencesSketch {
	if len(sketches) == 0 {
		panic("sketch: no sketches to combine")
	}

	first := sketches[0]
	if first.Counts == nil {
		first.Counts = make(map[uint64]uint64, 1024)
	}
	for _, s := range sketches[1:] {
		for m, n := range s.Counts {
			first.Counts[m] += n
		}
	}

	if name, ok := MatePairSampleName(first.FileName); ok {
		first.FileName = name
	}
	return first
}
