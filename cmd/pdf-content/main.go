// seehuhn.de/go/pdfgraph - an object graph model for PDF documents
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


// Pdf-content prints the content streams of the pages of PDF files, one
// instruction per line.
//
// Usage:
//
//	pdf-content [options] file.pdf...
//
// Files are processed concurrently; the output is printed in the order
// of the command line arguments.  The exit status is 1 if a file could
// not be processed and 2 if warnings were reported.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"syscall"

	"golang.org/x/sync/semaphore"
	"golang.org/x/term"

	"seehuhn.de/go/pdfgraph"
	"seehuhn.de/go/pdfgraph/content"
	"seehuhn.de/go/pdfgraph/engine"
	"seehuhn.de/go/pdfgraph/logger"
	"seehuhn.de/go/pdfgraph/pagetree"
)

type config struct {
	ops       []string
	remove    []string
	repr      bool
	password  string
	recover   bool
	normalize string
}

func main() {
	ops := flag.String("ops", "", "comma-separated list of operators to show")
	remove := flag.String("remove", "", "comma-separated list of operators to remove")
	repr := flag.Bool("repr", false, "show operands in debug notation")
	passwd := flag.String("p", "", "PDF password, \"-\" to prompt")
	recoverFlag := flag.Bool("recover", false, "attempt to read damaged files")
	normalize := flag.String("normalize", "", "write a normalized copy of a single input file to `out.pdf`")
	jobs := flag.Int("j", runtime.NumCPU(), "number of files to process concurrently")
	verbose := flag.Bool("v", false, "log debug messages")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options] file.pdf...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 || *jobs < 1 || (*normalize != "" && flag.NArg() != 1) {
		flag.Usage()
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	logger.SetLogger(func(l logger.LogLevel, msg string, keyvals ...any) {
		log.Log(context.Background(), l.Slog(), msg, keyvals...)
	})

	cfg := &config{
		ops:       splitList(*ops),
		remove:    splitList(*remove),
		repr:      *repr,
		password:  *passwd,
		recover:   *recoverFlag,
		normalize: *normalize,
	}
	if cfg.password == "-" {
		pw, err := readPassword()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg.password = pw
	}

	os.Exit(run(context.Background(), cfg, flag.Args(), *jobs, os.Stdout, os.Stderr))
}

func readPassword() (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", errors.New("cannot prompt for password: stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "password: ")
	passwd, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(passwd), nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var res []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			res = append(res, part)
		}
	}
	return res
}

type result struct {
	out      bytes.Buffer
	warnings []string
	err      error
}

// run processes the given files, using at most jobs goroutines, and
// returns the exit status.
func run(ctx context.Context, cfg *config, files []string, jobs int, stdout, stderr io.Writer) int {
	sem := semaphore.NewWeighted(int64(jobs))
	results := make([]*result, len(files))
	done := make([]chan struct{}, len(files))
	for i, fname := range files {
		res := &result{}
		results[i] = res
		done[i] = make(chan struct{})
		if err := sem.Acquire(ctx, 1); err != nil {
			res.err = err
			close(done[i])
			continue
		}
		go func() {
			defer sem.Release(1)
			defer close(done[i])
			res.warnings, res.err = processFile(cfg, fname, &res.out)
		}()
	}

	status := 0
	for i, fname := range files {
		<-done[i]
		res := results[i]
		if len(files) > 1 {
			fmt.Fprintf(stdout, "==> %s <==\n", fname)
		}
		stdout.Write(res.out.Bytes())
		for _, w := range res.warnings {
			fmt.Fprintf(stderr, "%s: warning: %s\n", fname, w)
		}
		if res.err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", fname, res.err)
			status = 1
		} else if len(res.warnings) > 0 && status == 0 {
			status = 2
		}
	}
	return status
}

func processFile(cfg *config, fname string, w io.Writer) ([]string, error) {
	opt := &engine.OpenOptions{
		Password:        cfg.password,
		AttemptRecovery: cfg.recover,
		Access:          engine.AccessMmap,
	}
	doc, err := engine.OpenFile(fname, opt)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	pages := pagetree.New(doc)
	for i, page := range pages.All() {
		if len(cfg.remove) > 0 {
			if err := page.AddTokenFilter(content.RemoveOperators(cfg.remove...)); err != nil {
				return doc.Warnings(), fmt.Errorf("page %d: %w", i+1, err)
			}
		}
		res, err := page.Instructions(&content.ParseOptions{Operators: cfg.ops})
		if err != nil {
			return doc.Warnings(), fmt.Errorf("page %d: %w", i+1, err)
		}

		fmt.Fprintf(w, "%% page %d\n", i+1)
		if cfg.repr {
			for _, ins := range res.Instructions {
				parts := make([]string, 0, len(ins.Operands)+1)
				for _, op := range ins.Operands {
					parts = append(parts, pdfgraph.Repr(op))
				}
				parts = append(parts, pdfgraph.Repr(ins.Operator))
				fmt.Fprintln(w, strings.Join(parts, " "))
			}
			continue
		}
		data, err := content.Unparse(res.Instructions)
		if err != nil {
			return doc.Warnings(), fmt.Errorf("page %d: %w", i+1, err)
		}
		w.Write(data)
		if len(data) > 0 {
			fmt.Fprintln(w)
		}
	}

	if cfg.normalize != "" {
		wopt := engine.DefaultWriteOptions()
		wopt.NormalizeContent = true
		if err := engine.SaveFile(doc, cfg.normalize, wopt); err != nil {
			return doc.Warnings(), err
		}
	}

	return doc.Warnings(), nil
}
