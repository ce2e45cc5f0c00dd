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
	"io"

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
)

// maxConsecutiveBadRecords is the maximum number of consecutive invalid records
// before giving up the remaining part of a file.
var maxConsecutiveBadRecords = 16

// ErrNoValidRecords means no valid FASTA/Q records are found in a file.
var ErrNoValidRecords = errors.New("no valid FASTA/Q records")

// readSeqFile calls fn for every valid record of a FASTA/Q file (plain or compressed).
// Records with letters out of the DNA alphabet (IUPAC codes allowed) are skipped
// with warnings. A broken FASTQ record ends the reading, with the records
// before it kept, as the parser can not go on after it.
// The record is reused by the reader, so please copy the data if needed.
//
// An error is returned if the file can not be opened or it has no valid records.
func readSeqFile(file string, fn func(record *fastx.Record)) (int, error) {
	fastxReader, err := fastx.NewReader(seq.DNAredundant, file, "")
	if err != nil {
		return 0, err
	}
	defer fastxReader.Close()

	var record *fastx.Record
	var nValid, nConsecutiveBad int
	var lastErr error
	for {
		record, err = fastxReader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}

			lastErr = err
			if err == fastx.ErrNotFASTXFormat || err == fastx.ErrNoContent || err == fastx.ErrBadFASTQFormat {
				if nValid > 0 {
					log.Warningf("%s: %s, the remaining part is ignored", file, err)
				}
				break
			}

			// the reader checks the alphabet of the last record
			nConsecutiveBad++
			log.Warningf("%s: invalid record skipped: %s", file, err)
			if nConsecutiveBad >= maxConsecutiveBadRecords {
				log.Warningf("%s: %d consecutive invalid records, the remaining part is ignored",
					file, nConsecutiveBad)
				break
			}
			continue
		}

		if err = seq.DNAredundant.IsValid(record.Seq.Seq); err != nil {
			lastErr = err
			log.Warningf("%s: invalid record skipped: %s: %s", file, record.Name, err)
			continue
		}

		nConsecutiveBad = 0
		nValid++
		fn(record)
	}

	if nValid == 0 {
		if lastErr != nil {
			return 0, errors.Wrap(ErrNoValidRecords, lastErr.Error())
		}
		return 0, ErrNoValidRecords
	}
	return nValid, nil
}
