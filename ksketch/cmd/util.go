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
	"runtime"
	"strings"

	"github.com/iafan/cwalk"
	"github.com/pkg/errors"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"
	"github.com/twotwotwo/sorts"
	"github.com/twotwotwo/sorts/sortutil"
)

// Options contains the global flags
type Options struct {
	NumCPUs int
	Verbose bool

	LogFile  string
	Log2File bool

	Config *Config // nil if no config file is given

	CompressionLevel int
}

func getOptions(cmd *cobra.Command) *Options {
	var cfg *Config
	configFile := getFlagString(cmd, "config")
	if configFile != "" {
		var err error
		cfg, err = readConfig(configFile)
		checkError(err)
		checkError(applyConfig(cmd, cfg))
	}

	threads := getFlagNonNegativeInt(cmd, "threads")
	if threads == 0 {
		threads = runtime.NumCPU()
	}

	sorts.MaxProcs = threads
	runtime.GOMAXPROCS(threads)

	logfile := getFlagString(cmd, "log")
	return &Options{
		NumCPUs: threads,
		Verbose: !getFlagBool(cmd, "quiet"),

		LogFile:  logfile,
		Log2File: logfile != "",

		Config: cfg,

		CompressionLevel: -1,
	}
}

// makeOutDir creates the output directory if it does not exist.
// Existing files in the directory are kept, and might be overwritten.
func makeOutDir(outDir string, logname string) {
	existed, err := pathutil.Exists(outDir)
	checkError(errors.Wrap(err, outDir))
	if existed {
		isDir, err := pathutil.IsDir(outDir)
		checkError(errors.Wrap(err, outDir))
		if !isDir {
			checkError(fmt.Errorf("%s should be a directory: %s", logname, outDir))
		}
		return
	}
	checkError(os.MkdirAll(outDir, 0777))
}

func getFileListFromDir(path string, pattern *regexp.Regexp, threads int) ([]string, error) {
	files := make([]string, 0, 512)
	ch := make(chan string, threads)
	done := make(chan int)
	go func() {
		for file := range ch {
			files = append(files, file)
		}
		done <- 1
	}()

	cwalk.NumWorkers = threads
	err := cwalk.WalkWithSymlinks(path, func(_path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && pattern.MatchString(info.Name()) {
			ch <- filepath.Join(path, _path)
		}
		return nil
	})
	close(ch)
	<-done
	if err != nil {
		return nil, err
	}

	// cwalk visits files concurrently
	sortutil.Strings(files)

	return files, err
}

var defaultExts = []string{".gz", ".xz", ".zst", ".bz2", ".bz"}

// filepathTrimExtension splits a file name into the name, the format extension,
// and the compression extension, e.g., a.fq.gz => (a, .fq, .gz).
func filepathTrimExtension(file string, suffixes []string) (string, string, string) {
	if suffixes == nil {
		suffixes = defaultExts
	}

	var e, e1, e2 string
	f := strings.ToLower(file)
	for _, s := range suffixes {
		e = s
		if strings.HasSuffix(f, e) {
			e2 = e
			file = file[0 : len(file)-len(e)]
			break
		}
	}

	e1 = filepath.Ext(file)
	name := file[0 : len(file)-len(e1)]

	return name, e1, e2
}

var fastqExts = map[string]struct{}{
	".fq":    {},
	".fastq": {},
}

// isFastqFile tells if a file is a FASTQ file by the extension.
func isFastqFile(file string) bool {
	_, e1, _ := filepathTrimExtension(file, nil)
	_, ok := fastqExts[strings.ToLower(e1)]
	return ok
}

// classifySeqFiles splits sequence files into genome files and sample files:
// FASTQ files are regarded as samples and others as genomes,
// unless all files are forced to be samples or genomes.
func classifySeqFiles(files []string, sampleForce, genomeForce bool) (genomes, samples []string) {
	genomes = make([]string, 0, len(files))
	samples = make([]string, 0, len(files))
	for _, file := range files {
		switch {
		case sampleForce:
			samples = append(samples, file)
		case genomeForce:
			genomes = append(genomes, file)
		case isFastqFile(file):
			samples = append(samples, file)
		default:
			genomes = append(genomes, file)
		}
	}
	return genomes, samples
}
