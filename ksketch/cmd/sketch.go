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
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
)

var reIgnoreCaseStr = "(?i)"
var reIgnoreCase = regexp.MustCompile(`\(\?i\)`)

var sketchCmd = &cobra.Command{
	Use:   "sketch",
	Short: "Sketch genomes and sequencing samples",
	Long: `Sketch genomes and sequencing samples

Input:
  1. Plain or compressed FASTA/Q files can be given via positional arguments
     or the flag -X/--infile-list with the list of input files.
     FASTQ files (.fq, .fastq, optionally compressed) are treated as reads
     of samples, and others are treated as genomes, unless --sample-force
     or --db-force is given.
  2. Genome files and read files can also be given explicitly via
     -g/--genomes and -r/--reads, respectively.
  3. A directory containing genome files can be given via -I/--genome-dir,
     with multiple-level sub-directories allowed. A regular expression
     for matching genome files is available via -R/--file-regexp.

Sketches:
  1. A genome sketch contains subsampled canonical k-mer hashes (markers)
     appearing only once in the genome. Multiple sequences in a file
     are regarded as contigs of one genome.
  2. A sample sketch contains markers of all reads and their counts.
  3. A k-mer hash h is kept only if h <= 2^64/c, c is the compression factor.

Paired-end reads:
  Read files with names like "s_1.fq" and "s_2.fq", matching the regular
  expression "(.+)(1|2)(\..+)", are merged into one sample "s.fq".
  Files are treated as separate samples if more than two files share a prefix.

Output:
  Genome sketches:  ${genome-out-dir}/${genome file name}.prg
  Sample sketches:  ${sample-out-dir}/${sample name}.prs
  A ".gz" suffix is appended with -z/--compress.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		seq.ValidateSeq = false

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}
		timeStart := time.Now()
		defer func() {
			if opt.Verbose || opt.Log2File {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
				log.Info()
			}
			if opt.Log2File {
				fhLog.Close()
			}
		}()

		// ---------------------------------------------------------------
		// basic flags

		k := getFlagPositiveInt(cmd, "kmer")
		if k > 32 {
			checkError(fmt.Errorf("the value of flag -k/--kmer should be in range of [1, 32]"))
		}
		c := getFlagPositiveInt(cmd, "compression")

		sampleForce := getFlagBool(cmd, "sample-force")
		genomeForce := getFlagBool(cmd, "db-force")
		if sampleForce && genomeForce {
			checkError(fmt.Errorf("flags --sample-force and --db-force are incompatible"))
		}

		genomeOutDir := expandPath(getFlagString(cmd, "genome-out-dir"))
		sampleOutDir := expandPath(getFlagString(cmd, "sample-out-dir"))
		compress := getFlagBool(cmd, "compress")

		var err error

		inDir := getFlagString(cmd, "genome-dir")
		readFromDir := inDir != ""
		if readFromDir {
			inDir = expandPath(inDir)
			var isDir bool
			isDir, err = pathutil.IsDir(inDir)
			if err != nil {
				checkError(errors.Wrapf(err, "checking -I/--genome-dir"))
			}
			if !isDir {
				checkError(fmt.Errorf("value of -I/--genome-dir should be a directory: %s", inDir))
			}
		}

		reFileStr := getFlagString(cmd, "file-regexp")
		var reFile *regexp.Regexp
		if readFromDir {
			if !reIgnoreCase.MatchString(reFileStr) {
				reFileStr = reIgnoreCaseStr + reFileStr
			}
			reFile, err = regexp.Compile(reFileStr)
			checkError(errors.Wrapf(err, "failed to parse regular expression for matching file: %s", reFileStr))
		}

		sopt := &SketchOptions{
			NumCPUs:     opt.NumCPUs,
			Verbose:     opt.Verbose || opt.Log2File,
			ProgressBar: opt.Verbose && isatty.IsTerminal(os.Stderr.Fd()),

			C: c,
			K: k,

			GenomeOutDir: filepath.Clean(genomeOutDir),
			SampleOutDir: filepath.Clean(sampleOutDir),

			Compress:         compress,
			CompressionLevel: opt.CompressionLevel,
		}
		checkError(CheckSketchOptions(sopt))

		// ---------------------------------------------------------------
		// input files

		if opt.Verbose || opt.Log2File {
			log.Infof("ksketch v%s", VERSION)
			log.Info()
			log.Info("checking input files ...")
		}

		files := getFileListFromArgsAndFile(cmd, args, false, "infile-list", false)
		genomes, samples := classifySeqFiles(files, sampleForce, genomeForce)

		genomes = append(genomes, getFlagStringSlice(cmd, "genomes")...)
		samples = append(samples, getFlagStringSlice(cmd, "reads")...)

		if readFromDir {
			_files, err := getFileListFromDir(inDir, reFile, opt.NumCPUs)
			if err != nil {
				checkError(errors.Wrapf(err, "walking dir: %s", inDir))
			}
			if len(_files) == 0 {
				log.Warningf("  no files matching regular expression: %s", reFileStr)
			}
			genomes = append(genomes, _files...)
		}

		if len(genomes)+len(samples) == 0 {
			checkError(fmt.Errorf("FASTA/Q files needed"))
		} else if opt.Verbose || opt.Log2File {
			log.Infof("  %d genome file(s) and %d read file(s) given", len(genomes), len(samples))
		}

		// ---------------------------------------------------------------
		// out dir

		if len(genomes) > 0 {
			makeOutDir(sopt.GenomeOutDir, "-o/--genome-out-dir")
		}
		if len(samples) > 0 {
			makeOutDir(sopt.SampleOutDir, "-d/--sample-out-dir")
		}

		// ---------------------------------------------------------------
		// log

		if opt.Verbose || opt.Log2File {
			log.Info()
			log.Infof("-------------------- [main parameters] --------------------")
			log.Info()
			log.Infof("k-mer size: %d", k)
			log.Infof("compression factor: %d", c)
			log.Info()
			log.Infof("genome sketches directory: %s", sopt.GenomeOutDir)
			log.Infof("sample sketches directory: %s", sopt.SampleOutDir)
			log.Infof("gzip-compressed output: %v", compress)
			log.Info()
			log.Infof("-------------------- [main parameters] --------------------")
			log.Info()
			log.Infof("sketching ...")
		}

		// ---------------------------------------------------------------

		summary := RunSketching(genomes, samples, sopt, NewFileSaver(compress, opt.CompressionLevel))

		if opt.Verbose || opt.Log2File {
			log.Infof("finished sketching in %s: %s", time.Since(timeStart), summary)
			log.Infof("  %s sketch(es) saved", humanize.Comma(int64(summary.Genomes+summary.Samples)))
		}
		if summary.GenomesFailed+summary.SamplesFailed > 0 {
			log.Warningf("%d sketch(es) failed to save", summary.GenomesFailed+summary.SamplesFailed)
		}
	},
}

func init() {
	RootCmd.AddCommand(sketchCmd)

	// -----------------------------  input  -----------------------------

	sketchCmd.Flags().StringP("infile-list", "X", "",
		formatFlagUsage(`File of input files list (one file per line). If given, they are appended to files from CLI arguments.`))

	sketchCmd.Flags().StringSliceP("genomes", "g", []string{},
		formatFlagUsage(`Genome files (FASTA/Q), comma-separated or multiple values.`))

	sketchCmd.Flags().StringSliceP("reads", "r", []string{},
		formatFlagUsage(`Read files (FASTA/Q) of samples, comma-separated or multiple values. Paired-end files are merged.`))

	sketchCmd.Flags().StringP("genome-dir", "I", "",
		formatFlagUsage(`Directory containing genome files. Directory symlinks are followed.`))

	sketchCmd.Flags().StringP("file-regexp", "R", `\.(f[aq](st[aq])?|fna)(.gz)?$`,
		formatFlagUsage(`Regular expression for matching genome files in -I/--genome-dir, case ignored.`))

	sketchCmd.Flags().BoolP("sample-force", "", false,
		formatFlagUsage(`Treat all positional input files as reads of samples.`))

	sketchCmd.Flags().BoolP("db-force", "", false,
		formatFlagUsage(`Treat all positional input files as genomes.`))

	// -----------------------------  output  -----------------------------

	sketchCmd.Flags().StringP("genome-out-dir", "o", ".",
		formatFlagUsage(`Output directory of genome sketches.`))

	sketchCmd.Flags().StringP("sample-out-dir", "d", ".",
		formatFlagUsage(`Output directory of sample sketches.`))

	sketchCmd.Flags().BoolP("compress", "z", false,
		formatFlagUsage(`Compress sketch files with gzip.`))

	// -----------------------------  sketching   -----------------------------

	sketchCmd.Flags().IntP("kmer", "k", 31,
		formatFlagUsage(`K-mer size. K needs to be <= 32.`))

	sketchCmd.Flags().IntP("compression", "c", 200,
		formatFlagUsage(`Compression factor, about 1/c of k-mers are kept.`))

	sketchCmd.SetUsageTemplate(usageTemplate("[-k <k>] [-c <c>] { <seq files> | -X <file list> | -g <genomes> | -r <reads> | -I <genome dir> } [-o <genome out dir>] [-d <sample out dir>]"))
}
