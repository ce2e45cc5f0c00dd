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
	"os"
	"strconv"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Config holds default values of flags, read from a TOML file like:
//
//	threads = 16
//	compression = 200
//	kmer = 31
//	genome-out-dir = "~/sketches/genomes"
//	sample-out-dir = "~/sketches/samples"
//	compress = true
//
// Zero values are ignored.
type Config struct {
	Threads     int `toml:"threads"`
	Compression int `toml:"compression"`
	Kmer        int `toml:"kmer"`

	GenomeOutDir string `toml:"genome-out-dir"`
	SampleOutDir string `toml:"sample-out-dir"`
	Compress     bool   `toml:"compress"`
}

func readConfig(file string) (*Config, error) {
	file, err := homedir.Expand(file)
	if err != nil {
		return nil, errors.Wrapf(err, "config file: %s", file)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "config file: %s", file)
	}

	var cfg Config
	if err = toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config file: %s", file)
	}
	return &cfg, nil
}

// applyConfig sets values of flags that are not given in the command line.
// Flags not defined for the command are ignored.
func applyConfig(cmd *cobra.Command, cfg *Config) error {
	flags := cmd.Flags()
	set := func(flag, value string) error {
		f := flags.Lookup(flag)
		if f == nil || f.Changed {
			return nil
		}
		return errors.Wrapf(flags.Set(flag, value), "config value of %s", flag)
	}

	var err error
	if cfg.Threads > 0 {
		if err = set("threads", strconv.Itoa(cfg.Threads)); err != nil {
			return err
		}
	}
	if cfg.Compression > 0 {
		if err = set("compression", strconv.Itoa(cfg.Compression)); err != nil {
			return err
		}
	}
	if cfg.Kmer > 0 {
		if err = set("kmer", strconv.Itoa(cfg.Kmer)); err != nil {
			return err
		}
	}
	if cfg.GenomeOutDir != "" {
		if err = set("genome-out-dir", cfg.GenomeOutDir); err != nil {
			return err
		}
	}
	if cfg.SampleOutDir != "" {
		if err = set("sample-out-dir", cfg.SampleOutDir); err != nil {
			return err
		}
	}
	if cfg.Compress {
		if err = set("compress", "true"); err != nil {
			return err
		}
	}
	return nil
}

// expandPath expands the leading "~" of a path.
func expandPath(path string) string {
	_path, err := homedir.Expand(path)
	checkError(errors.Wrap(err, path))
	return _path
}
