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
	"path/filepath"
	"regexp"
	"strings"
)

// reMatePair matches file names like sample_1.fastq.gz:
// a non-empty prefix, a digit of 1 or 2, and an extension.
var reMatePair = regexp.MustCompile(`(.+)(1|2)(\..+)`)

// separators removed from the end of the prefix in the sample name.
const matePairSeparators = "_-."

// matchMatePair applies the pattern to the base name only, so digits in
// directories, e.g., data/v1.2/a.fq, are not regarded as pair digits.
func matchMatePair(file string) (dir string, m []string) {
	dir, base := filepath.Split(file)
	return dir, reMatePair.FindStringSubmatch(base)
}

// MatePairPrefix returns the directory and the prefix before the pair digit,
// which is the key for grouping mate-pair files.
func MatePairPrefix(file string) (string, bool) {
	dir, m := matchMatePair(file)
	if m == nil {
		return "", false
	}
	return dir + m[1], true
}

// MatePairSampleName removes the pair digit from a file name,
// e.g., sample_1.fastq -> sample.fastq, sample2.fq.gz -> sample.fq.gz.
func MatePairSampleName(file string) (string, bool) {
	dir, m := matchMatePair(file)
	if m == nil {
		return file, false
	}
	stem := m[1]
	if last := stem[len(stem)-1]; len(stem) > 1 && strings.IndexByte(matePairSeparators, last) >= 0 {
		stem = stem[:len(stem)-1]
	}
	return dir + stem + m[3], true
}

// GroupMatePairs groups sample files into mate-pair groups.
// Files matching the mate-pair pattern are grouped by the prefix,
// and others are treated as single-file groups.
// A group with more than two files can not be paired reliably, it is split
// into single-file groups and also returned in collisions.
//
// Groups are ordered by the position of their first file in the input,
// and files in a group keep the input order.
func GroupMatePairs(files []string) (groups [][]string, collisions [][]string) {
	type group struct {
		files []string
	}

	ordered := make([]*group, 0, len(files))
	byPrefix := make(map[string]*group, len(files))

	for _, file := range files {
		prefix, ok := MatePairPrefix(file)
		if !ok {
			ordered = append(ordered, &group{files: []string{file}})
			continue
		}
		g, ok := byPrefix[prefix]
		if !ok {
			g = &group{files: make([]string, 0, 2)}
			byPrefix[prefix] = g
			ordered = append(ordered, g)
		}
		g.files = append(g.files, file)
	}

	groups = make([][]string, 0, len(ordered))
	for _, g := range ordered {
		if len(g.files) <= 2 {
			groups = append(groups, g.files)
			continue
		}

		collisions = append(collisions, g.files)
		for _, file := range g.files {
			groups = append(groups, []string{file})
		}
	}
	return groups, collisions
}
