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

package cmd

import (
	"math"
	"testing"

	"github.com/shenwei356/ksketch/ksketch/sketch"
)

func TestSketchStats(t *testing.T) {
	g := &sketch.GenomeSketch{C: 1, K: 21, FileName: "g.fa", FirstContigName: "ctg1", Markers: []uint64{1, 5, 9}}
	st := newSketchStats(g)
	if st.Type != "genome" || st.FirstContig != "ctg1" || st.Markers != 3 || st.Total != 3 || st.Mean != 1 || st.Stdev != 0 {
		t.Errorf("unexpected stats: %+v", st)
	}

	s := &sketch.SequencesSketch{C: 1, K: 21, FileName: "s.fq", Counts: map[uint64]uint64{1: 2, 2: 4, 3: 6}}
	st = newSketchStats(s)
	if st.Type != "sample" || st.Markers != 3 || st.Total != 12 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if math.Abs(st.Mean-4) > 1e-9 || math.Abs(st.Stdev-2) > 1e-9 {
		t.Errorf("unexpected mean and stdev: %f, %f", st.Mean, st.Stdev)
	}

	s = &sketch.SequencesSketch{C: 1, K: 21, FileName: "s.fq", Counts: map[uint64]uint64{1: 5}}
	st = newSketchStats(s)
	if st.Mean != 5 || st.Stdev != 0 {
		t.Errorf("unexpected mean and stdev: %f, %f", st.Mean, st.Stdev)
	}
}
