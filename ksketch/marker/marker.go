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

// Package marker extracts markers, i.e., hash values of subsampled canonical k-mers,
// from DNA sequences.
//
// A k-mer is encoded in 2 bits per base (A 00, C 01, G 10, T/U 11). The canonical
// code is the smaller one of the forward and reverse complement codes, and the marker
// is the Hash64 value of it. A marker is retained only if it is not greater than
// MaxUint64/c, so about 1/c of distinct k-mers are kept. Any base other than
// ACGTU (case-insensitive) breaks the k-mers covering it.
package marker

import (
	"errors"
	"math"

	"github.com/shenwei356/kmers"
	"github.com/shenwei356/ksketch/ksketch/util"
)

// ErrKOverflow means K < 1 or K > 32.
var ErrKOverflow = errors.New("marker: k-mer size [1, 32] overflow")

// ErrInvalidC means the compression factor is smaller than 1.
var ErrInvalidC = errors.New("marker: compression factor should be >= 1")

// Sampler extracts markers with a fixed compression factor and k-mer size.
// It has no mutable state and is safe for concurrent use.
type Sampler struct {
	c uint64
	k int

	maxHash uint64 // threshold of the subsampling
	mask    uint64 // mask of 2k bits
	shift   uint   // 2(k-1), for the reverse complement code
}

// New creates a Sampler with a compression factor c and k-mer size k.
func New(c, k int) (*Sampler, error) {
	if k < 1 || k > 32 {
		return nil, ErrKOverflow
	}
	if c < 1 {
		return nil, ErrInvalidC
	}
	return &Sampler{
		c:       uint64(c),
		k:       k,
		maxHash: MaxHash(c),
		mask:    ^uint64(0) >> (64 - uint(k)<<1),
		shift:   uint(k-1) << 1,
	}, nil
}

// MaxHash returns the largest retained hash value for a compression factor.
func MaxHash(c int) uint64 {
	return math.MaxUint64 / uint64(c)
}

// C returns the compression factor.
func (s *Sampler) C() int { return int(s.c) }

// K returns the k-mer size.
func (s *Sampler) K() int { return s.k }

// Keep tells whether a hash value passes the subsampling.
func (s *Sampler) Keep(hash uint64) bool { return hash <= s.maxHash }

// Extract appends markers of a sequence to buf, in the order of k-mer positions.
// The forward and reverse complement codes are updated with a rolling window,
// the result is identical to ExtractScalar.
func (s *Sampler) Extract(seq []byte, buf *[]uint64) {
	k := s.k
	if len(seq) < k {
		return
	}

	mask, shift, maxHash := s.mask, s.shift, s.maxHash
	var fwd, rc, code, hash uint64
	var b uint8
	var valid int // number of consecutive valid bases ending at the current one

	for _, base := range seq {
		b = base2bit[base]
		if b > 3 {
			valid = 0
			fwd, rc = 0, 0
			continue
		}

		fwd = (fwd<<2 | uint64(b)) & mask
		rc = rc>>2 | uint64(3-b)<<shift

		valid++
		if valid < k {
			continue
		}

		code = fwd
		if rc < fwd {
			code = rc
		}
		hash = util.Hash64(code)
		if hash <= maxHash {
			*buf = append(*buf, hash)
		}
	}
}

// ExtractScalar is the scalar reference of Extract: every k-mer is encoded
// from scratch, and the reverse complement is computed from the forward code.
func (s *Sampler) ExtractScalar(seq []byte, buf *[]uint64) {
	k := s.k
	if len(seq) < k {
		return
	}

	var fwd, rc, code, hash uint64
	var ok bool
	for i := 0; i+k <= len(seq); i++ {
		fwd, ok = encode(seq[i : i+k])
		if !ok {
			continue
		}
		rc = kmers.RevComp(fwd, k)

		code = fwd
		if rc < fwd {
			code = rc
		}
		hash = util.Hash64(code)
		if s.Keep(hash) {
			*buf = append(*buf, hash)
		}
	}
}

// encode returns the 2-bit code of a k-mer, false for k-mers with invalid bases.
func encode(kmer []byte) (code uint64, ok bool) {
	var b uint8
	for _, base := range kmer {
		b = base2bit[base]
		if b > 3 {
			return 0, false
		}
		code = code<<2 | uint64(b)
	}
	return code, true
}

// 4 for invalid bases.
var base2bit = [256]uint8{
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 0, 4, 1, 4, 4, 4, 2, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 3, 3, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 0, 4, 1, 4, 4, 4, 2, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 3, 3, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
	4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4, 4,
}
