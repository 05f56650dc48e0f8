// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Command jsonbstatsctl drives the aggregation core end to end without a
// real host: it reads newline-delimited JSON documents from stdin, each
// one a stats document (a JSON object mapping variable name to a
// {type, value} stat), folds every one through an agg-from-stats state,
// and prints the resulting stats_agg document to stdout as JSON.
//
// It exists to exercise the pipeline (stat decode, per-entity
// accumulation, finalize, canonical encode) as a runnable program, the
// way the teacher's cmd/dump exercises the ion reader.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/veridit/jsonbstats/ion"
	"github.com/veridit/jsonbstats/stats"
)

func exitf(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func main() {
	verbose := flag.Bool("v", false, "log driver lifecycle events to stderr")
	flag.Parse()

	var opts []stats.Option
	if *verbose {
		opts = append(opts, stats.WithLogger(log.New(os.Stderr, "jsonbstatsctl: ", 0)))
	}

	agg := stats.NewAggState(opts...)
	if err := run(os.Stdin, agg); err != nil {
		exitf(err)
	}

	out, err := agg.Final()
	if err != nil {
		exitf(err)
	}

	var st ion.Symtab
	datum := out.Encode(&st)
	var buf ion.Buffer
	buf.StartChunk(&st)
	datum.Encode(&buf, &st)

	w := bufio.NewWriter(os.Stdout)
	if _, err := ion.ToJSON(w, bufio.NewReader(bytes.NewReader(buf.Bytes()))); err != nil {
		exitf(err)
	}
	if err := w.Flush(); err != nil {
		exitf(err)
	}
}

// run decodes one ndjson stats document per line from r and folds each
// into agg via Transition, stopping at the first malformed document.
func run(r io.Reader, agg *stats.AggState) error {
	dec := newLineDecoder(r)
	for {
		d, err := dec.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("jsonbstatsctl: decoding input: %w", err)
		}
		doc, err := stats.StatsFromDocument(d)
		if err != nil {
			return fmt.Errorf("jsonbstatsctl: %w", err)
		}
		if err := agg.Transition(doc); err != nil {
			return fmt.Errorf("jsonbstatsctl: %w", err)
		}
	}
}

// lineDecoder decodes one JSON value per input line into an ion.Datum,
// reusing a single symbol table across the whole stream (each line is
// an independent stats document, but they share variable names, so one
// table keeps repeated symbols cheap, mirroring ion.ToJSON's own
// single-Symtab-per-stream convention).
type lineDecoder struct {
	sc *bufio.Scanner
	st ion.Symtab
}

func newLineDecoder(r io.Reader) *lineDecoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &lineDecoder{sc: sc}
}

func (l *lineDecoder) next() (ion.Datum, error) {
	for l.sc.Scan() {
		line := bytes.TrimSpace(l.sc.Bytes())
		if len(line) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(line))
		d, err := ion.FromJSON(&l.st, dec)
		if err != nil {
			return ion.Empty, err
		}
		return d, nil
	}
	if err := l.sc.Err(); err != nil {
		return ion.Empty, err
	}
	return ion.Empty, io.EOF
}
