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

package marker

import (
	"math"
	"math/rand"
	"testing"

	"github.com/shenwei356/kmers"
	"github.com/shenwei356/ksketch/ksketch/util"
)

var bases = []byte("ACGT")

func randSeq(r *rand.Rand, n int, alphabet []byte) []byte {
	s := make([]byte, n)
	for i := range s {
		s[i] = alphabet[r.Intn(len(alphabet))]
	}
	return s
}

func revComp(s []byte) []byte {
	rc := make([]byte, len(s))
	for i, b := range s {
		var c byte
		switch b {
		case 'A':
			c = 'T'
		case 'C':
			c = 'G'
		case 'G':
			c = 'C'
		case 'T':
			c = 'A'
		default:
			c = 'N'
		}
		rc[len(s)-1-i] = c
	}
	return rc
}

func equalUint64s(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if v != b[i] {
			return false
		}
	}
	return true
}

func TestNew(t *testing.T) {
	if _, err := New(1, 0); err != ErrKOverflow {
		t.Errorf("k=0 should be rejected")
	}
	if _, err := New(1, 33); err != ErrKOverflow {
		t.Errorf("k=33 should be rejected")
	}
	if _, err := New(0, 21); err != ErrInvalidC {
		t.Errorf("c=0 should be rejected")
	}
	s, err := New(200, 31)
	if err != nil {
		t.Error(err)
		return
	}
	if s.C() != 200 || s.K() != 31 {
		t.Errorf("unexpected c and k: %d, %d", s.C(), s.K())
	}
	if MaxHash(1) != math.MaxUint64 {
		t.Errorf("c=1 should keep all hashes")
	}
}

// k=21, c=1, no repeated k-mers: all L-k+1 k-mers are kept,
// and match the codes computed by the kmers package.
func TestScalarParity(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	k := 21
	L := 10000
	s := randSeq(r, L, bases)

	sampler, err := New(1, k)
	if err != nil {
		t.Error(err)
		return
	}

	markers := make([]uint64, 0, L)
	sampler.Extract(s, &markers)
	if len(markers) != L-k+1 {
		t.Errorf("unexpected number of markers: %d, answer: %d", len(markers), L-k+1)
		return
	}

	ref := make([]uint64, 0, L)
	sampler.ExtractScalar(s, &ref)
	if !equalUint64s(markers, ref) {
		t.Errorf("rolling and scalar markers differ")
		return
	}

	var code, rc uint64
	for i := 0; i+k <= L; i++ {
		code, err = kmers.Encode(s[i : i+k])
		if err != nil {
			t.Error(err)
			return
		}
		rc = kmers.RevComp(code, k)
		if rc < code {
			code = rc
		}
		if util.Hash64(code) != markers[i] {
			t.Errorf("marker #%d of %s differs", i, kmers.MustDecode(code, k))
			return
		}
	}
}

func TestExtractDifferential(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	alphabets := [][]byte{
		[]byte("ACGT"),
		[]byte("ACGTacgtN"),
		[]byte("ACGTUNRYacgtu-"),
		[]byte("AAAAAAAAAACGTN"),
	}
	ks := []int{1, 2, 3, 5, 11, 15, 21, 27, 31, 32}
	cs := []int{1, 2, 7, 50, 200}

	var fast, ref []uint64
	for _, alphabet := range alphabets {
		for _, k := range ks {
			for _, c := range cs {
				sampler, err := New(c, k)
				if err != nil {
					t.Error(err)
					return
				}
				for round := 0; round < 20; round++ {
					s := randSeq(r, r.Intn(600), alphabet)

					fast = fast[:0]
					ref = ref[:0]
					sampler.Extract(s, &fast)
					sampler.ExtractScalar(s, &ref)
					if !equalUint64s(fast, ref) {
						t.Errorf("k=%d, c=%d, seq=%s: rolling (%d markers) and scalar (%d markers) differ",
							k, c, s, len(fast), len(ref))
						return
					}
				}
			}
		}
	}
}

func TestAmbiguousBases(t *testing.T) {
	sampler, _ := New(1, 4)

	var markers []uint64
	sampler.Extract([]byte("ACGNACGT"), &markers)
	if len(markers) != 1 {
		t.Errorf("k-mers covering N should be skipped, got %d markers", len(markers))
	}

	markers = markers[:0]
	sampler.Extract([]byte("ACG"), &markers)
	if len(markers) != 0 {
		t.Errorf("sequences shorter than k should yield nothing")
	}

	// case-insensitive
	var upper, lower []uint64
	sampler.Extract([]byte("ACGTTGCA"), &upper)
	sampler.Extract([]byte("acgttgca"), &lower)
	if !equalUint64s(upper, lower) {
		t.Errorf("markers of lower-case sequences differ")
	}
}

func TestStrandInvariance(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	s := randSeq(r, 5000, []byte("ACGTN"))
	sampler, _ := New(3, 21)

	var fwd, rev []uint64
	sampler.Extract(s, &fwd)
	sampler.Extract(revComp(s), &rev)

	counts := make(map[uint64]int, len(fwd))
	for _, h := range fwd {
		counts[h]++
	}
	for _, h := range rev {
		counts[h]--
	}
	for h, n := range counts {
		if n != 0 {
			t.Errorf("marker %d differs between two strands: %d", h, n)
			return
		}
	}
}

func TestDeterminism(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	s := randSeq(r, 20000, bases)
	sampler, _ := New(10, 31)

	var a, b []uint64
	sampler.Extract(s, &a)
	sampler.Extract(s, &b)
	if !equalUint64s(a, b) {
		t.Errorf("markers of two runs differ")
	}
}

func TestSubsamplingRate(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	k := 31
	L := 2000000
	s := randSeq(r, L, bases)

	for _, c := range []int{10, 50, 200} {
		sampler, _ := New(c, k)
		markers := make([]uint64, 0, L/c*2)
		sampler.Extract(s, &markers)

		expected := float64(L-k+1) / float64(c)
		ratio := float64(len(markers)) / expected
		if ratio < 0.9 || ratio > 1.1 {
			t.Errorf("c=%d: %d markers retained, expected about %.0f", c, len(markers), expected)
		}
	}
}

var _markers []uint64

func BenchmarkExtract(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	s := randSeq(r, 1<<20, bases)
	sampler, _ := New(200, 31)
	markers := make([]uint64, 0, 1<<14)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		markers = markers[:0]
		sampler.Extract(s, &markers)
	}
	_markers = markers
}

func BenchmarkExtractScalar(b *testing.B) {
	r := rand.New(rand.NewSource(1))
	s := randSeq(r, 1<<20, bases)
	sampler, _ := New(200, 31)
	markers := make([]uint64, 0, 1<<14)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		markers = markers[:0]
		sampler.ExtractScalar(s, &markers)
	}
	_markers = markers
}
