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

package pdfgraph

import (
	"strings"
	"testing"
)

func TestRepr(t *testing.T) {
	dec, _ := ParseReal("1.50")
	cases := []struct {
		in   Object
		want string
	}{
		{nil, "None"},
		{Bool(true), "True"},
		{Integer(-3), "-3"},
		{dec, "Decimal('1.50')"},
		{Name("/Font"), `pdfgraph.Name("/Font")`},
		{String("hello"), `pdfgraph.String("hello")`},
		{String("\x00\x01"), `pdfgraph.String(b"\x00\x01")`},
		{&Array{}, "pdfgraph.Array([])"},
	}
	for _, test := range cases {
		if got := Repr(test.in); got != test.want {
			t.Errorf("Repr(%v) = %s, want %s", test.in, got, test.want)
		}
	}

	d := NewDict()
	d.Set("/Type", Name("/Font"))
	d.Set("/Size", Integer(12))
	want := "pdfgraph.Dictionary(Type=\"/Font\")({\n    \"/Size\": 12,\n    \"/Type\": \"/Font\"\n})"
	if got := Repr(d); got != want {
		t.Errorf("got\n%s\nwant\n%s", got, want)
	}
}

func TestReprCycle(t *testing.T) {
	doc := NewDocument()
	page := cyclicPage(doc)
	s := Repr(page)
	if !strings.Contains(s, "<reference to /Pages>") {
		t.Errorf("parent not suppressed:\n%s", s)
	}
	if !strings.HasPrefix(s, "<") {
		t.Error("impure output not marked")
	}

	// a cycle without page tree nodes
	a := doc.NewDict()
	doc.MakeIndirect(a)
	b := doc.NewDict()
	b.Set("/Next", a)
	doc.MakeIndirect(b)
	a.Set("/Next", b)
	s = Repr(a)
	if !strings.Contains(s, "<circular reference to "+a.Ref().String()+">") {
		t.Errorf("cycle not detected:\n%s", s)
	}
}

func TestReprLimits(t *testing.T) {
	doc := NewDocument()
	data := []byte(strings.Repeat("x", 100))
	s, _ := NewStream(doc, data)
	out := Repr(s)
	if strings.Contains(out, strings.Repeat("x", 21)) {
		t.Errorf("stream data not truncated: %s", out)
	}

	a := &Array{}
	for i := range 100 {
		a.Append(Integer(i))
	}
	out = Repr(a)
	if !strings.Contains(out, "...") || !strings.HasPrefix(out, "<") {
		t.Errorf("large array not elided: %s", out)
	}
}
