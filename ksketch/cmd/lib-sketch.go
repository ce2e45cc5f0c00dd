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
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/shenwei356/ksketch/ksketch/marker"
	"github.com/shenwei356/ksketch/ksketch/sketch"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// file extensions of sketch files
const (
	ExtGenomeSketch    = ".prg"
	ExtSequencesSketch = ".prs"
)

// SketchOptions contains the options for sketching.
type SketchOptions struct {
	NumCPUs     int
	Verbose     bool // show log
	ProgressBar bool // show progress bar, or log every finished item in verbose mode

	C int // compression factor
	K int // k-mer size

	GenomeOutDir string
	SampleOutDir string

	Compress         bool
	CompressionLevel int
}

// CheckSketchOptions checks the important options.
func CheckSketchOptions(opt *SketchOptions) error {
	if opt.K < 1 || opt.K > 32 {
		return fmt.Errorf("invalid k value: %d, valid range: [1, 32]", opt.K)
	}
	if opt.C < 1 {
		return fmt.Errorf("invalid compression factor: %d, should be >= 1", opt.C)
	}
	if opt.NumCPUs < 1 {
		return fmt.Errorf("invalid number of CPUs: %d, should be >= 1", opt.NumCPUs)
	}
	if opt.GenomeOutDir == "" {
		return fmt.Errorf("output directory of genome sketches should not be empty")
	}
	if opt.SampleOutDir == "" {
		return fmt.Errorf("output directory of sample sketches should not be empty")
	}
	if _, err := marker.New(opt.C, opt.K); err != nil {
		return err
	}
	return nil
}

// SketchSaver saves sketches to the given paths.
type SketchSaver interface {
	SaveGenomeSketch(file string, s *sketch.GenomeSketch) error
	SaveSequencesSketch(file string, s *sketch.SequencesSketch) error
}

// fileSaver writes sketches to local files, optionally gzipped.
type fileSaver struct {
	compress bool
	level    int
}

// NewFileSaver returns a SketchSaver writing local files.
func NewFileSaver(compress bool, level int) SketchSaver {
	return &fileSaver{compress: compress, level: level}
}

func (fs *fileSaver) SaveGenomeSketch(file string, s *sketch.GenomeSketch) error {
	return fs.save(file, s)
}

func (fs *fileSaver) SaveSequencesSketch(file string, s *sketch.SequencesSketch) error {
	return fs.save(file, s)
}

func (fs *fileSaver) save(file string, s interface{ Write(io.Writer) (int, error) }) error {
	outfh, gw, w, err := outStream(file, fs.compress, fs.level)
	if err != nil {
		return err
	}

	_, err = s.Write(outfh)

	if _err := outfh.Flush(); err == nil {
		err = _err
	}
	if gw != nil {
		if _err := gw.Close(); err == nil {
			err = _err
		}
	}
	if _err := w.Close(); err == nil {
		err = _err
	}
	if err != nil {
		os.Remove(file)
		return errors.Wrap(err, file)
	}
	return nil
}

// sketchFile returns the path of a sketch file in the output directory,
// named after the base name of the input file.
func sketchFile(outDir, file, ext string, compress bool) string {
	file = filepath.Join(outDir, filepath.Base(file)+ext)
	if compress {
		return file + ".gz"
	}
	return file
}

// GenomeSketchFile returns the path of the sketch file of a genome.
func GenomeSketchFile(outDir, file string, compress bool) string {
	return sketchFile(outDir, file, ExtGenomeSketch, compress)
}

// SampleSketchFile returns the path of the sketch file of a sample,
// which is named after the combined sketch.
func SampleSketchFile(outDir, name string, compress bool) string {
	return sketchFile(outDir, name, ExtSequencesSketch, compress)
}

// SketchSummary counts the sketching results of genomes and samples.
type SketchSummary struct {
	Genomes        int // saved genome sketches
	GenomesSkipped int // unreadable genome files, or ones sharing a sketch file path with another
	GenomesFailed  int // genome sketches failed to save

	Samples        int
	SamplesSkipped int
	SamplesFailed  int
}

func (s SketchSummary) String() string {
	return fmt.Sprintf("genomes: %d saved, %d skipped, %d failed; samples: %d saved, %d skipped, %d failed",
		s.Genomes, s.GenomesSkipped, s.GenomesFailed, s.Samples, s.SamplesSkipped, s.SamplesFailed)
}

const (
	taskDone = iota
	taskSkipped
	taskFailed
)

type taskResult struct {
	genome  bool
	status  int
	source  string // input file or the first file of a sample
	outFile string
	markers int

	t time.Duration
}

// sketchTask is a genome file or a sample, with the path of its sketch file.
type sketchTask struct {
	genome  bool
	files   []string
	outFile string
}

// sketchTasks creates tasks of genomes and samples. An item whose sketch file
// would be the same as that of a previous one is skipped with a warning,
// e.g., genomes a/x.fa and b/x.fa, or samples s_1.fq + s_2.fq and s.fq.
func sketchTasks(genomes []string, groups [][]string, opt *SketchOptions) (tasks []*sketchTask, nGenomesDup, nSamplesDup int) {
	tasks = make([]*sketchTask, 0, len(genomes)+len(groups))
	owners := make(map[string]string, len(genomes)+len(groups))

	add := func(t *sketchTask) bool {
		if owner, ok := owners[t.outFile]; ok {
			log.Warningf("skipped %s: its sketch file %s would overwrite that of %s",
				strings.Join(t.files, ", "), t.outFile, owner)
			return false
		}
		owners[t.outFile] = strings.Join(t.files, ", ")
		tasks = append(tasks, t)
		return true
	}

	for _, file := range genomes {
		if !add(&sketchTask{
			genome:  true,
			files:   []string{file},
			outFile: GenomeSketchFile(opt.GenomeOutDir, file, opt.Compress),
		}) {
			nGenomesDup++
		}
	}
	for _, files := range groups {
		if !add(&sketchTask{
			files:   files,
			outFile: SampleSketchFile(opt.SampleOutDir, sampleName(files), opt.Compress),
		}) {
			nSamplesDup++
		}
	}
	return tasks, nGenomesDup, nSamplesDup
}

// RunSketching sketches all genome files and read files, and saves the sketches with saver.
// Read files are grouped into samples by mate-pair names first.
// Every genome file and sample is a task, at most opt.NumCPUs tasks are run simultaneously.
// Items sharing a sketch file path with a previous one are skipped.
// A task failure never affects other tasks.
func RunSketching(genomes []string, samples []string, opt *SketchOptions, saver SketchSaver) *SketchSummary {
	groups := groupSampleFiles(samples)
	tasks, nGenomesDup, nSamplesDup := sketchTasks(genomes, groups, opt)
	total := len(tasks)

	summary := &SketchSummary{GenomesSkipped: nGenomesDup, SamplesSkipped: nSamplesDup}
	if total == 0 {
		return summary
	}

	// process bar
	var pbs *mpb.Progress
	var bar *mpb.Bar
	if opt.ProgressBar {
		pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar = pbs.AddBar(int64(total),
			mpb.PrependDecorators(
				decor.Name("processed files: ", decor.WC{W: len("processed files: "), C: decor.DindentRight}),
				decor.Name("", decor.WCSyncSpaceR),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
				decor.EwmaETA(decor.ET_STYLE_GO, 10),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)
	}

	// collect results
	ch := make(chan *taskResult, opt.NumCPUs)
	done := make(chan int)
	go func() {
		for r := range ch {
			switch r.status {
			case taskDone:
				if r.genome {
					summary.Genomes++
				} else {
					summary.Samples++
				}
				if opt.Verbose && !opt.ProgressBar {
					log.Infof("  %s: %s markers, saved to %s",
						r.source, humanize.Comma(int64(r.markers)), r.outFile)
				}
			case taskSkipped:
				if r.genome {
					summary.GenomesSkipped++
				} else {
					summary.SamplesSkipped++
				}
			case taskFailed:
				if r.genome {
					summary.GenomesFailed++
				} else {
					summary.SamplesFailed++
				}
			}

			if opt.ProgressBar {
				bar.EwmaIncrBy(1, r.t)
			}
		}
		done <- 1
	}()

	var wg sync.WaitGroup
	tokens := make(chan int, opt.NumCPUs)

	for _, task := range tasks {
		tokens <- 1
		wg.Add(1)
		go func(task *sketchTask) {
			defer func() {
				wg.Done()
				<-tokens
			}()
			if task.genome {
				ch <- sketchAndSaveGenome(task.files[0], task.outFile, opt, saver)
			} else {
				ch <- sketchAndSaveSample(task.files, task.outFile, opt, saver)
			}
		}(task)
	}

	wg.Wait()
	close(ch)
	<-done

	if opt.ProgressBar {
		pbs.Wait()
	}

	return summary
}

func sketchAndSaveGenome(file, outFile string, opt *SketchOptions, saver SketchSaver) *taskResult {
	timeStart := time.Now()
	r := &taskResult{genome: true, source: file, outFile: outFile}

	s := sketchGenome(file, opt.C, opt.K)
	if s == nil {
		r.status = taskSkipped
		r.t = time.Since(timeStart)
		return r
	}

	r.markers = len(s.Markers)
	if err := saver.SaveGenomeSketch(r.outFile, s); err != nil {
		log.Errorf("failed to save the sketch of %s: %s", file, err)
		r.status = taskFailed
	} else {
		r.status = taskDone
	}
	r.t = time.Since(timeStart)
	return r
}

func sketchAndSaveSample(files []string, outFile string, opt *SketchOptions, saver SketchSaver) *taskResult {
	timeStart := time.Now()
	r := &taskResult{genome: false, source: files[0], outFile: outFile}

	s := sketchSampleGroup(files, opt.C, opt.K, opt.NumCPUs)
	if s == nil {
		r.status = taskSkipped
		r.t = time.Since(timeStart)
		return r
	}

	r.markers = len(s.Counts)
	if err := saver.SaveSequencesSketch(r.outFile, s); err != nil {
		log.Errorf("failed to save the sketch of %s: %s", s.FileName, err)
		r.status = taskFailed
	} else {
		r.status = taskDone
	}
	r.t = time.Since(timeStart)
	return r
}
