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


package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seehuhn.de/go/pdfgraph"
	"seehuhn.de/go/pdfgraph/engine"
	"seehuhn.de/go/pdfgraph/pagetree"
)

func writeTestFile(t *testing.T, contents ...string) string {
	t.Helper()
	doc := pdfgraph.NewDocument()
	pages := pagetree.New(doc)
	for _, c := range contents {
		page := doc.NewDict()
		require.NoError(t, page.Set("/Type", pdfgraph.Name("/Page")))
		require.NoError(t, pages.Append(page))
		pg, err := pages.Get(-1)
		require.NoError(t, err)
		require.NoError(t, pg.SetContent([]byte(c)))
	}
	path := filepath.Join(t.TempDir(), "test.pdf")
	require.NoError(t, engine.SaveFile(doc, path, nil))
	return path
}

func TestRun(t *testing.T) {
	a := writeTestFile(t, "q 1 0 0 1 5 5 cm 0 0 m 10 10 l S Q")
	b := writeTestFile(t, "BT /F1 12 Tf (Hi) Tj ET", "0 0 1 1 re f")

	cases := []struct {
		name string
		cfg  config
		want []string
		not  []string
	}{
		{
			name: "all",
			want: []string{"% page 1", "0 0 m", "10 10 l", "(Hi) Tj", "% page 2", "re"},
		},
		{
			name: "selected operators",
			cfg:  config{ops: []string{"m", "Tj"}},
			want: []string{"0 0 m", "(Hi) Tj"},
			not:  []string{"10 10 l", "Tf"},
		},
		{
			name: "removed operators",
			cfg:  config{remove: []string{"cm", "Tf"}},
			want: []string{"0 0 m", "(Hi) Tj"},
			not:  []string{"cm", "Tf"},
		},
		{
			name: "repr",
			cfg:  config{repr: true},
			want: []string{`0 0 pdfgraph.Operator("m")`},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			stdout := &bytes.Buffer{}
			stderr := &bytes.Buffer{}
			status := run(context.Background(), &c.cfg, []string{a, b}, 2, stdout, stderr)
			assert.Equal(t, 0, status, stderr.String())
			out := stdout.String()
			assert.Less(t, strings.Index(out, "==> "+a), strings.Index(out, "==> "+b))
			for _, s := range c.want {
				assert.Contains(t, out, s)
			}
			for _, s := range c.not {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestRunErrors(t *testing.T) {
	good := writeTestFile(t, "0 0 m")
	missing := filepath.Join(t.TempDir(), "missing.pdf")

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	status := run(context.Background(), &config{}, []string{good, missing}, 1, stdout, stderr)
	assert.Equal(t, 1, status)
	assert.Contains(t, stdout.String(), "0 0 m")
	assert.Contains(t, stderr.String(), missing)
}

func TestRunWarnings(t *testing.T) {
	path := writeTestFile(t, "0 0 m 1 2")

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	status := run(context.Background(), &config{}, []string{path}, 1, stdout, stderr)
	assert.Equal(t, 2, status)
	assert.Contains(t, stderr.String(), "warning")
}

func TestNormalizeOutput(t *testing.T) {
	in := writeTestFile(t, "0   0  m\n\n\n10 10 l    S")
	out := filepath.Join(t.TempDir(), "out.pdf")

	cfg := &config{normalize: out}
	status := run(context.Background(), cfg, []string{in}, 1, &bytes.Buffer{}, &bytes.Buffer{})
	require.Equal(t, 0, status)

	doc, err := engine.OpenFile(out, nil)
	require.NoError(t, err)
	defer doc.Close()
	pg, err := pagetree.New(doc).Get(0)
	require.NoError(t, err)
	data, err := pg.ContentBytes()
	require.NoError(t, err)
	assert.Equal(t, "0 0 m\n10 10 l\nS", string(data))
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"q", "Tj"}, splitList("q, Tj,,"))
}
