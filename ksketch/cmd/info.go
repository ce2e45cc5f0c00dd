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
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shenwei356/ksketch/ksketch/sketch"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show information of sketch files",
	Long: `Show information of sketch files

Columns:
  file         sketch file
  type         genome or sample
  c            compression factor
  k            k-mer size
  name         file name of the genome or sample
  first_contig header of the first sequence of a genome
  markers      number of distinct markers
  total        total count of markers
  mean         mean count of markers
  stdev        standard deviation of counts of markers

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		files := getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)
		if len(files) == 0 {
			checkError(fmt.Errorf("sketch files needed"))
		}
		checkCompat := getFlagBool(cmd, "check-compatibility")

		outFile := getFlagString(cmd, "out-file")

		outfh, gw, w, err := outStream(outFile, strings.HasSuffix(outFile, ".gz"), opt.CompressionLevel)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			w.Close()
		}()

		var c0, k0 int
		var total uint64
		outfh.WriteString("file\ttype\tc\tk\tname\tfirst_contig\tmarkers\ttotal\tmean\tstdev\n")
		for i, file := range files {
			s, err := sketch.NewFromFile(file)
			checkError(err)

			c, k := s.Params()
			if checkCompat {
				if i == 0 {
					c0, k0 = c, k
				} else {
					checkError(sketch.CheckCompatibility(c0, k0, c, k))
				}
			}

			st := newSketchStats(s)
			total += st.Total
			fmt.Fprintf(outfh, "%s\t%s\t%d\t%d\t%s\t%s\t%d\t%d\t%.2f\t%.2f\n",
				file, st.Type, c, k, s.Name(), st.FirstContig, st.Markers, st.Total, st.Mean, st.Stdev)
		}

		if opt.Verbose {
			log.Infof("%s markers in %d sketch file(s)", humanize.Comma(int64(total)), len(files))
		}
	},
}

// sketchStats is the summary of a sketch.
type sketchStats struct {
	Type        string
	FirstContig string
	Markers     int
	Total       uint64
	Mean, Stdev float64
}

func newSketchStats(s sketch.Sketch) sketchStats {
	var st sketchStats
	switch s := s.(type) {
	case *sketch.GenomeSketch:
		st.Type = "genome"
		st.FirstContig = s.FirstContigName
		st.Markers = len(s.Markers)
		st.Total = uint64(len(s.Markers))
		if st.Markers > 0 {
			st.Mean = 1
		}
	case *sketch.SequencesSketch:
		st.Type = "sample"
		st.Markers = len(s.Counts)
		counts := make([]float64, 0, len(s.Counts))
		for _, n := range s.Counts {
			counts = append(counts, float64(n))
			st.Total += n
		}
		if len(counts) > 0 {
			st.Mean, st.Stdev = stat.MeanStdDev(counts, nil)
			if math.IsNaN(st.Stdev) {
				st.Stdev = 0
			}
		}
	}
	return st
}

func init() {
	RootCmd.AddCommand(infoCmd)

	infoCmd.Flags().StringP("infile-list", "X", "",
		formatFlagUsage(`File of input files list (one file per line). If given, they are appended to files from CLI arguments.`))

	infoCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports the ".gz" suffix ("-" for stdout).`))

	infoCmd.Flags().BoolP("check-compatibility", "C", false,
		formatFlagUsage(`Check if all sketches share the same compression factor and k-mer size.`))

	infoCmd.SetUsageTemplate(usageTemplate("[-C] <sketch files> [-o out.tsv]"))
}
