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
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/ksketch/ksketch/marker"
	"github.com/shenwei356/xopen"
)

func randSeq(r *rand.Rand, n int) []byte {
	s := make([]byte, n)
	for i := range s {
		s[i] = "ACGT"[r.Intn(4)]
	}
	return s
}

// writeFile writes a file, gzipped if the file has a ".gz" suffix.
func writeFile(t *testing.T, file string, data []byte) {
	outfh, err := xopen.Wopen(file)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = outfh.Write(data); err != nil {
		t.Fatal(err)
	}
	if err = outfh.Close(); err != nil {
		t.Fatal(err)
	}
}

func fasta(names []string, seqs [][]byte) []byte {
	var buf bytes.Buffer
	for i, s := range seqs {
		fmt.Fprintf(&buf, ">%s\n%s\n", names[i], s)
	}
	return buf.Bytes()
}

func fastq(seqs [][]byte) []byte {
	var buf bytes.Buffer
	for i, s := range seqs {
		fmt.Fprintf(&buf, "@read%d\n%s\n+\n%s\n", i, s, bytes.Repeat([]byte{'I'}, len(s)))
	}
	return buf.Bytes()
}

// singletonMarkers returns sorted markers appearing once in all sequences.
func singletonMarkers(t *testing.T, c, k int, seqs ...[]byte) []uint64 {
	sampler, err := marker.New(c, k)
	if err != nil {
		t.Fatal(err)
	}
	counts := make(map[uint64]int)
	var buf []uint64
	for _, s := range seqs {
		buf = buf[:0]
		sampler.ExtractScalar(s, &buf)
		for _, m := range buf {
			counts[m]++
		}
	}
	markers := make([]uint64, 0, len(counts))
	for m, n := range counts {
		if n == 1 {
			markers = append(markers, m)
		}
	}
	sort.Slice(markers, func(i, j int) bool { return markers[i] < markers[j] })
	return markers
}

func equalUint64s(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSketchGenome(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	dir := t.TempDir()
	c, k := 1, 21

	ctg1 := randSeq(r, 5000)
	ctg2 := append(append([]byte{}, ctg1[1000:2000]...), randSeq(r, 3000)...) // shares a region with ctg1
	ctg3 := []byte("nnnnACGTACGTACGTACGTACGTACGTacgtacgtNNNN")

	for _, file := range []string{"g.fasta", "g.fasta.gz"} {
		file = filepath.Join(dir, file)
		writeFile(t, file, fasta([]string{"ctg1 first contig", "ctg2", "ctg3"}, [][]byte{ctg1, ctg2, ctg3}))

		s := sketchGenome(file, c, k)
		if s == nil {
			t.Fatalf("%s: unexpected nil sketch", file)
		}
		if s.FirstContigName != "ctg1 first contig" {
			t.Errorf("unexpected first contig name: %s", s.FirstContigName)
		}
		if s.C != c || s.K != k || s.FileName != file {
			t.Errorf("unexpected parameters: %s", s)
		}

		expected := singletonMarkers(t, c, k, ctg1, ctg2, ctg3)
		if !equalUint64s(s.Markers, expected) {
			t.Errorf("%s: markers mismatch: %d vs %d", file, len(s.Markers), len(expected))
		}

		// markers of the shared region are removed
		shared := singletonMarkers(t, c, k, ctg1[1000:2000])
		m := make(map[uint64]struct{}, len(s.Markers))
		for _, v := range s.Markers {
			m[v] = struct{}{}
		}
		for _, v := range shared {
			if _, ok := m[v]; ok {
				t.Errorf("marker of a repeated region kept: %d", v)
				break
			}
		}
	}
}

func TestSketchGenomeRepeat(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	dir := t.TempDir()

	s1 := randSeq(r, 1000)
	file := filepath.Join(dir, "repeat.fa")
	writeFile(t, file, fasta([]string{"a", "b"}, [][]byte{s1, s1}))

	s := sketchGenome(file, 1, 21)
	if s == nil {
		t.Fatal("unexpected nil sketch")
	}
	if len(s.Markers) != 0 {
		t.Errorf("all markers should be removed, %d left", len(s.Markers))
	}
}

func TestSketchGenomeInvalidFiles(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.fa")
	writeFile(t, empty, []byte{})

	text := filepath.Join(dir, "text.fa")
	writeFile(t, text, []byte("this is not a sequence file\n"))

	for _, file := range []string{filepath.Join(dir, "missing.fa"), empty, text} {
		if s := sketchGenome(file, 1, 21); s != nil {
			t.Errorf("%s: nil sketch expected", file)
		}
	}
}

func TestSketchGenomeBadRecord(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	dir := t.TempDir()

	good := randSeq(r, 2000)
	bad := append(append(randSeq(r, 500), "!!@@"...), randSeq(r, 500)...)
	good2 := randSeq(r, 2000)
	expected := singletonMarkers(t, 1, 21, good, good2)

	tests := []struct {
		name  string
		names []string
		seqs  [][]byte
	}{
		{"middle.fa", []string{"good", "bad", "good2"}, [][]byte{good, bad, good2}},
		{"first.fa", []string{"bad", "good", "good2"}, [][]byte{bad, good, good2}},
		{"last.fa.gz", []string{"good", "good2", "bad"}, [][]byte{good, good2, bad}},
	}
	for _, test := range tests {
		file := filepath.Join(dir, test.name)
		writeFile(t, file, fasta(test.names, test.seqs))

		s := sketchGenome(file, 1, 21)
		if s == nil {
			t.Fatalf("%s: the sketch of valid records should be kept", test.name)
		}
		if !equalUint64s(s.Markers, expected) {
			t.Errorf("%s: markers mismatch: %d vs %d", test.name, len(s.Markers), len(expected))
		}
	}
}

// readCounts counts markers of reads directly.
func readCounts(c, k int, reads [][]byte) map[uint64]uint64 {
	sampler, _ := marker.New(c, k)
	counts := make(map[uint64]uint64)
	var buf []uint64
	for _, s := range reads {
		buf = buf[:0]
		sampler.Extract(s, &buf)
		for _, m := range buf {
			counts[m]++
		}
	}
	return counts
}

func equalCounts(a, b map[uint64]uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for m, n := range a {
		if b[m] != n {
			return false
		}
	}
	return true
}

func TestSketchReadsBadRecord(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	dir := t.TempDir()
	c, k := 1, 21

	reads := make([][]byte, 0, 251)
	for i := 0; i < 250; i++ {
		reads = append(reads, randSeq(r, 150))
	}
	bad := append(append(randSeq(r, 70), "!!"...), randSeq(r, 78)...)

	// invalid letters in the middle of the file
	withBad := make([][]byte, 0, len(reads)+1)
	withBad = append(withBad, reads[:120]...)
	withBad = append(withBad, bad)
	withBad = append(withBad, reads[120:]...)

	file := filepath.Join(dir, "bad-letters.fq")
	writeFile(t, file, fastq(withBad))

	expected := readCounts(c, k, reads)
	for _, threads := range []int{1, 4} {
		s := sketchReads(file, c, k, threads)
		if s == nil {
			t.Fatal("unexpected nil sketch")
		}
		if !equalCounts(s.Counts, expected) {
			t.Errorf("threads: %d: counts mismatch, markers: %d vs %d", threads, len(s.Counts), len(expected))
		}
	}

	// a broken FASTQ record: records before it are kept
	var buf bytes.Buffer
	buf.Write(fastq(reads[:5]))
	fmt.Fprintf(&buf, "@broken\n%s\n+\n%s\n", reads[5], bytes.Repeat([]byte{'I'}, 200))
	buf.Write(fastq(reads[6:10]))

	file = filepath.Join(dir, "broken.fq")
	writeFile(t, file, buf.Bytes())

	s := sketchReads(file, c, k, 2)
	if s == nil {
		t.Fatal("the sketch of records before the broken one should be kept")
	}
	if !equalCounts(s.Counts, readCounts(c, k, reads[:5])) {
		t.Errorf("counts mismatch, markers: %d", len(s.Counts))
	}
}

func TestSketchReads(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	dir := t.TempDir()
	c, k := 1, 15

	genome := randSeq(r, 3000)
	reads := make([][]byte, 0, 350)
	for i := 0; i < 350; i++ { // not a multiple of the batch size
		start := r.Intn(len(genome) - 150)
		reads = append(reads, genome[start:start+150])
	}
	reads = append(reads, []byte("ACGT")) // shorter than k

	sampler, _ := marker.New(c, k)
	expected := make(map[uint64]uint64)
	var buf []uint64
	var total uint64
	for _, s := range reads {
		buf = buf[:0]
		sampler.Extract(s, &buf)
		for _, m := range buf {
			expected[m]++
		}
		total += uint64(len(buf))
	}

	for _, file := range []string{"r.fq", "r.fq.gz"} {
		file = filepath.Join(dir, file)
		writeFile(t, file, fastq(reads))

		for _, threads := range []int{1, 2, 8} {
			s := sketchReads(file, c, k, threads)
			if s == nil {
				t.Fatalf("%s: unexpected nil sketch", file)
			}
			if s.Total() != total {
				t.Errorf("%s, threads: %d: total count %d != %d", file, threads, s.Total(), total)
			}
			if len(s.Counts) != len(expected) {
				t.Errorf("%s, threads: %d: markers %d != %d", file, threads, len(s.Counts), len(expected))
			}
			for m, n := range expected {
				if s.Counts[m] != n {
					t.Errorf("%s, threads: %d: count of %d: %d != %d", file, threads, m, s.Counts[m], n)
					break
				}
			}
		}
	}

	if s := sketchReads(filepath.Join(dir, "missing.fq"), c, k, 2); s != nil {
		t.Errorf("nil sketch expected for a missing file")
	}
}

func TestSketchReadsEmptyRecords(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "short.fa")
	writeFile(t, file, fasta([]string{"r1", "r2"}, [][]byte{[]byte("ACGT"), []byte("NNNNNNNNNNNNNNNNNNNNNNNNN")}))

	s := sketchReads(file, 1, 21, 2)
	if s == nil {
		t.Fatal("unexpected nil sketch")
	}
	if len(s.Counts) != 0 {
		t.Errorf("no markers expected, %d found", len(s.Counts))
	}
}

func TestMain(m *testing.M) {
	seq.ValidateSeq = false
	os.Exit(m.Run())
}
