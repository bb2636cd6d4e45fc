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
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFormat(t *testing.T) {
	arr, _ := NewArray(Integer(1), nil, Integer(3))
	cases := []struct {
		in  Object
		out string
	}{
		{Null{}, "null"},
		{Bool(true), "true"},
		{Integer(-7), "-7"},
		{String("a"), "(a)"},
		{String("a (test version)"), "(a (test version))"},
		{String("a (test version"), "(a \\(test version)"},
		{String(""), "()"},
		{String("\000"), "<00>"},
		{Name("/A B"), "/A#20B"},
		{Name("/F1"), "/F1"},
		{NewReference(12, 3), "12 3 R"},
		{arr, "[1 null 3]"},
	}
	for _, test := range cases {
		out, err := Format(test.in)
		if err != nil {
			t.Errorf("%v: %v", test.in, err)
			continue
		}
		if out != test.out {
			t.Errorf("wrongly formatted, expected %q but got %q", test.out, out)
		}
	}
}

func TestReal(t *testing.T) {
	cases := []struct {
		x      float64
		places int
		out    string
	}{
		{1.5, 2, "1.5"},
		{1.0 / 3, 3, "0.333"},
		{2, 5, "2."},
		{-0.125, 2, "-0.13"},
	}
	for _, test := range cases {
		r, err := NewReal(test.x, test.places)
		if err != nil {
			t.Fatal(err)
		}
		out, _ := Format(r)
		if out != test.out {
			t.Errorf("NewReal(%g, %d) = %q, want %q", test.x, test.places, out, test.out)
		}
	}

	r := NewRealDecimal(decimal.RequireFromString("1.50"), 10)
	if r.String() != "1.50" {
		t.Errorf("decimal places lost: %s", r)
	}

	p, err := ParseReal("-.5")
	if err != nil {
		t.Fatal(err)
	}
	if p.String() != "-0.5" || p.Places() != 1 {
		t.Errorf("ParseReal: got %s with %d places", p, p.Places())
	}
	for _, bad := range []string{"", ".", "1e5", "abc"} {
		if _, err := ParseReal(bad); err == nil {
			t.Errorf("ParseReal(%q) succeeded", bad)
		}
	}
}

func TestNewName(t *testing.T) {
	for _, bad := range []string{"", "/", "Type"} {
		_, err := NewName(bad)
		if !errors.Is(err, ErrEncoding) {
			t.Errorf("NewName(%q): got %v", bad, err)
		}
	}
	n, err := NewName("/Type")
	if err != nil || n != "/Type" {
		t.Errorf("NewName: %q %v", n, err)
	}
}

func TestTextString(t *testing.T) {
	cases := []string{
		"",
		"hello",
		"\000\011\n\f\r",
		"ein Bär",
		"o țesătură",
		"中文",
		"日本語",
		"€ • —",
	}
	for _, test := range cases {
		enc := NewUnicodeString(test)
		out := enc.Text()
		if out != test {
			t.Errorf("wrong text: %q != %q", out, test)
		}
	}

	if s := NewUnicodeString("ein Bär"); s[0] == 0xFE {
		t.Error("PDFDocEncoding not used for Latin text")
	}
	if s := NewUnicodeString("中文"); s[0] != 0xFE || s[1] != 0xFF {
		t.Error("UTF-16 byte order mark missing")
	}
	if s := String("\xEF\xBB\xBFäö"); s.Text() != "äö" {
		t.Errorf("UTF-8 text string decoded as %q", s.Text())
	}
}

func TestDateString(t *testing.T) {
	PST := time.FixedZone("PST", -8*60*60)
	cases := []time.Time{
		time.Date(1998, 12, 23, 19, 52, 0, 0, PST),
		time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 12, 24, 16, 30, 12, 0, time.FixedZone("", 90*60)),
	}
	for _, test := range cases {
		enc := Date(test)
		out, err := enc.AsDate()
		if err != nil {
			t.Error(err)
		} else if !test.Equal(out) {
			t.Errorf("wrong time: %s != %s", out, test)
		}
	}
}

func TestReference(t *testing.T) {
	ref := NewReference(1234, 5)
	if ref.Number() != 1234 || ref.Generation() != 5 {
		t.Errorf("got %d %d", ref.Number(), ref.Generation())
	}
	if ref.String() != "obj_1234@5" {
		t.Errorf("got %s", ref)
	}
	if NewReference(7, 0).String() != "obj_7" {
		t.Errorf("got %s", NewReference(7, 0))
	}
}

func TestVersion(t *testing.T) {
	for _, s := range []string{"1.0", "1.4", "1.7", "2.0"} {
		v, err := ParseVersion(s)
		if err != nil {
			t.Fatal(err)
		}
		if v.String() != s {
			t.Errorf("%s -> %s", s, v)
		}
	}
	if _, err := ParseVersion("1.8"); err == nil {
		t.Error("1.8 accepted")
	}
}

func TestTruthy(t *testing.T) {
	doc := NewDocument()
	empty, _ := NewStream(doc, nil)
	full, _ := NewStream(doc, []byte("x"))
	arr, _ := NewArray(Integer(0))

	cases := []struct {
		in   Object
		want bool
	}{
		{nil, false},
		{Null{}, false},
		{Bool(false), false},
		{Integer(0), false},
		{Integer(2), true},
		{NewRealDecimal(decimal.Zero, 2), false},
		{Name(""), false},
		{Name("/A"), true},
		{String(""), false},
		{NewDict(), false},
		{&Array{}, false},
		{arr, true},
		{empty, false},
		{full, true},
	}
	for i, test := range cases {
		if got := Truthy(test.in); got != test.want {
			t.Errorf("%d: Truthy(%v) = %t", i, test.in, got)
		}
	}
}
