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
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/ksketch/ksketch/marker"
	"github.com/shenwei356/ksketch/ksketch/sketch"
	"github.com/shenwei356/ksketch/ksketch/util"
)

// sketchGenome computes the sketch of a genome file, which might contain multiple
// contigs. Markers appearing more than once in the genome, including occurrences
// on both strands, are removed.
// The full header of the first record is saved as the contig name.
//
// It returns nil if the file can not be read or parsed.
func sketchGenome(file string, c, k int) *sketch.GenomeSketch {
	sampler, err := marker.New(c, k)
	if err != nil {
		log.Errorf("%s: %s", file, err)
		return nil
	}

	s := &sketch.GenomeSketch{C: c, K: k, FileName: file}

	markers := make([]uint64, 0, 1024)
	first := true
	_, err = readSeqFile(file, func(record *fastx.Record) {
		if first {
			s.FirstContigName = string(record.Name)
			first = false
		}
		sampler.Extract(record.Seq.Seq, &markers)
	})
	if err != nil {
		log.Warningf("%s: skipped: %s", file, err)
		return nil
	}

	util.SingletonUint64s(&markers)
	s.Markers = markers
	return s
}
