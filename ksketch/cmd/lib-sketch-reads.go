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
	"sync"

	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/ksketch/ksketch/marker"
	"github.com/shenwei356/ksketch/ksketch/sketch"
)

// ReadBatchSize is the number of reads in a batch for computing markers.
var ReadBatchSize = 100

// readBatch is a batch of reads and markers computed from them.
type readBatch struct {
	seqs    [][]byte // buffers are reused, only the first n are valid
	n       int
	markers []uint64
}

func (b *readBatch) add(s []byte) {
	if b.n < len(b.seqs) {
		b.seqs[b.n] = append(b.seqs[b.n][:0], s...)
	} else {
		b.seqs = append(b.seqs, append(make([]byte, 0, len(s)), s...))
	}
	b.n++
}

func (b *readBatch) reset() {
	b.n = 0
	b.markers = b.markers[:0]
}

var poolReadBatch = &sync.Pool{New: func() interface{} {
	return &readBatch{
		seqs:    make([][]byte, 0, ReadBatchSize),
		markers: make([]uint64, 0, 1024),
	}
}}

// sketchReads computes the sketch of a read file, i.e., the occurrence counts of
// markers across all reads. Reads are read in batches, markers of batches
// are computed by at most threads goroutines, and a single goroutine
// accumulates the counts. So the result does not depend on the thread number.
//
// It returns nil if the file can not be read or parsed.
func sketchReads(file string, c, k, threads int) *sketch.SequencesSketch {
	sampler, err := marker.New(c, k)
	if err != nil {
		log.Errorf("%s: %s", file, err)
		return nil
	}
	if threads < 1 {
		threads = 1
	}

	s := sketch.NewSequencesSketch(file, c, k)

	// the only writer of the counts
	ch := make(chan *readBatch, threads)
	done := make(chan int)
	go func() {
		counts := s.Counts
		for b := range ch {
			for _, m := range b.markers {
				counts[m]++
			}
			b.reset()
			poolReadBatch.Put(b)
		}
		done <- 1
	}()

	var wg sync.WaitGroup
	tokens := make(chan int, threads)
	submit := func(b *readBatch) {
		tokens <- 1
		wg.Add(1)
		go func(b *readBatch) {
			defer func() {
				wg.Done()
				<-tokens
			}()

			for _, _seq := range b.seqs[:b.n] {
				sampler.Extract(_seq, &b.markers)
			}
			ch <- b
		}(b)
	}

	batch := poolReadBatch.Get().(*readBatch)
	_, err = readSeqFile(file, func(record *fastx.Record) {
		batch.add(record.Seq.Seq)
		if batch.n == ReadBatchSize {
			submit(batch)
			batch = poolReadBatch.Get().(*readBatch)
		}
	})
	if batch.n > 0 {
		submit(batch)
	} else {
		poolReadBatch.Put(batch)
	}

	wg.Wait()
	close(ch)
	<-done

	if err != nil {
		log.Warningf("%s: skipped: %s", file, err)
		return nil
	}
	return s
}
