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
	"strings"

	"github.com/shenwei356/ksketch/ksketch/sketch"
)

// groupSampleFiles groups read files of the same sample, i.e., paired-end reads.
// Files involved in a naming collision are treated as separate samples, with a warning.
func groupSampleFiles(files []string) [][]string {
	groups, collisions := sketch.GroupMatePairs(files)
	for _, files := range collisions {
		log.Warningf("unexpected paired-end file names, treated as separate samples: %s",
			strings.Join(files, ", "))
	}
	return groups
}

// sketchSampleGroup computes sketches of all files in a group and combines them,
// the sample is named after the first file, with the pair digit removed.
// Files that can not be read are ignored, and nil is returned if none is left.
func sketchSampleGroup(files []string, c, k, threads int) *sketch.SequencesSketch {
	sketches := make([]*sketch.SequencesSketch, 0, len(files))
	for _, file := range files {
		s := sketchReads(file, c, k, threads)
		if s == nil {
			continue
		}
		sketches = append(sketches, s)
	}
	if len(sketches) == 0 {
		return nil
	}
	s := sketch.Combine(sketches)
	s.FileName = sampleName(files)
	return s
}

// sampleName returns the name of a sample, i.e., the first file name
// with the pair digit removed if it looks like a paired-end read file.
func sampleName(files []string) string {
	if name, ok := sketch.MatePairSampleName(files[0]); ok {
		return name
	}
	return files[0]
}
