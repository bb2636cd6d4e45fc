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

	"github.com/shopspring/decimal"
)

func mustEqual(t *testing.T, a, b Object) bool {
	t.Helper()
	eq, err := Equal(a, b)
	if err != nil {
		t.Fatal(err)
	}
	return eq
}

func TestEqualScalars(t *testing.T) {
	three, _ := ParseReal("3.0")
	half, _ := ParseReal("0.5")
	cases := []struct {
		a, b Object
		want bool
	}{
		{Integer(3), three, true},
		{three, Integer(3), true},
		{Integer(3), Integer(3), true},
		{Integer(3), half, false},
		{Integer(1), Bool(true), false},
		{Bool(true), Integer(1), false},
		{Bool(false), Integer(0), false},
		{Bool(true), Bool(true), true},
		{Null{}, nil, true},
		{Null{}, Integer(0), false},
		{Name("/A"), Name("/A"), true},
		{Name("/A"), String("A"), false},
		{Operator("q"), Operator("q"), true},
		{Operator("q"), Name("/q"), false},
		{String("abc"), String("abc"), true},
		{NewUnicodeString("Bär"), String("\xFE\xFF\x00B\x00\xE4\x00r"), true},
		{String("\xEF\xBB\xBFabc"), String("abc"), true},
		{String("abc"), String("abd"), false},
		{NewReference(1, 0), NewReference(1, 0), true},
		{NewReference(1, 0), NewReference(1, 1), false},
	}
	for i, test := range cases {
		if got := mustEqual(t, test.a, test.b); got != test.want {
			t.Errorf("%d: Equal(%v, %v) = %t", i, test.a, test.b, got)
		}
		if got := mustEqual(t, test.b, test.a); got != test.want {
			t.Errorf("%d: Equal(%v, %v) = %t (swapped)", i, test.b, test.a, got)
		}
	}
}

func TestEqualContainers(t *testing.T) {
	a1, _ := NewArray(Integer(1), Name("/X"))
	a2, _ := NewArray(NewRealDecimal(decimal.NewFromInt(1), 0), Name("/X"))
	a3, _ := NewArray(Integer(1))
	if !mustEqual(t, a1, a2) {
		t.Error("equal arrays compare unequal")
	}
	if mustEqual(t, a1, a3) {
		t.Error("arrays of different length compare equal")
	}

	d1, _ := DictFrom(map[Name]Object{"/A": Integer(1), "/B": a1})
	d2 := NewDict()
	d2.Set("/B", a2)
	d2.Set("/A", Integer(1))
	if !mustEqual(t, d1, d2) {
		t.Error("insertion order affects equality")
	}
	d2.Set("/C", Integer(1))
	if mustEqual(t, d1, d2) {
		t.Error("extra key ignored")
	}

	// references are resolved
	doc := NewDocument()
	x := doc.NewDict()
	x.Set("/V", Integer(7))
	ref, _ := doc.MakeIndirect(x)
	outer1 := doc.NewDict()
	outer1.Set("/X", ref)
	outer2 := doc.NewDict()
	inner, _ := DictFrom(map[Name]Object{"/V": Integer(7)})
	outer2.Set("/X", inner)
	if !mustEqual(t, outer1, outer2) {
		t.Error("reference not resolved")
	}
}

func TestEqualStreams(t *testing.T) {
	doc := NewDocument()
	s1, _ := NewStream(doc, []byte("data"))
	s2, _ := NewStream(doc, []byte("data"))
	s3, _ := NewStream(doc, []byte("DATA"))
	if !mustEqual(t, s1, s2) {
		t.Error("equal streams compare unequal")
	}
	if mustEqual(t, s1, s3) {
		t.Error("different data compare equal")
	}
	s2.Set("/Type", Name("/XObject"))
	if mustEqual(t, s1, s2) {
		t.Error("different dictionaries compare equal")
	}
}

// cyclicPage returns a page whose /Parent refers to a page tree node
// which lists the page as its kid.
func cyclicPage(doc *Document) *Dict {
	pages := doc.NewDict()
	pages.Set("/Type", Name("/Pages"))
	doc.MakeIndirect(pages)
	page := doc.NewDict()
	page.Set("/Type", Name("/Page"))
	page.Set("/Parent", pages)
	doc.MakeIndirect(page)
	kids, _ := NewArray(page)
	pages.Set("/Kids", kids)
	pages.Set("/Count", Integer(1))
	return page
}

func TestEqualCycle(t *testing.T) {
	doc1 := NewDocument()
	doc2 := NewDocument()
	p1 := cyclicPage(doc1)
	p2 := cyclicPage(doc2)

	if !mustEqual(t, p1, p1) {
		t.Error("not reflexive")
	}
	if !mustEqual(t, p1, p2) {
		t.Error("isomorphic cycles compare unequal")
	}
	if !mustEqual(t, p2, p1) {
		t.Error("not symmetric")
	}

	// a direct self-referencing structure
	a := &Array{}
	b := &Array{}
	a.Append(b)
	b.Append(Integer(1))
	if !mustEqual(t, a, a) {
		t.Error("not reflexive")
	}
}

func TestEqualDepth(t *testing.T) {
	var deep Object = Integer(0)
	for range MaxDepth + 10 {
		a, err := NewArray(deep)
		if err != nil {
			t.Fatal(err)
		}
		deep = a
	}
	other, _ := NewArray(Integer(1))
	_, err := Equal(deep, deep)
	if err != nil {
		t.Errorf("identical objects: %v", err)
	}
	_, err = Equal(deep, other)
	if err != nil {
		t.Errorf("different shapes: %v", err)
	}

	copy1, copy2 := deepArray(MaxDepth+10), deepArray(MaxDepth+10)
	_, err = Equal(copy1, copy2)
	if !errors.Is(err, ErrRecursionLimit) {
		t.Errorf("expected recursion limit, got %v", err)
	}
}

func deepArray(n int) Object {
	var obj Object = Integer(0)
	for range n {
		a, _ := NewArray(obj)
		obj = a
	}
	return obj
}

func TestEqualNil(t *testing.T) {
	var d *Dict
	if mustEqual(t, d, d) {
		t.Error("nil dictionaries compare equal")
	}
	if mustEqual(t, d, NewDict()) {
		t.Error("nil dictionary equals empty dictionary")
	}

	doc := NewDocument()
	x := doc.NewDict()
	doc.Close()
	if mustEqual(t, x, x) {
		t.Error("object of closed document compares equal")
	}
}

func TestHash(t *testing.T) {
	three, _ := ParseReal("3.00")
	h1, err := Hash(Integer(3))
	if err != nil {
		t.Fatal(err)
	}
	h2, _ := Hash(three)
	if h1 != h2 {
		t.Error("equal numbers have different hashes")
	}
	h3, _ := Hash(Bool(true))
	h4, _ := Hash(Integer(1))
	if h3 == h4 {
		t.Error("Bool(true) and Integer(1) hash equal")
	}

	for _, obj := range []Object{NewDict(), &Array{}} {
		_, err := Hash(obj)
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("Hash(%s): got %v", obj.Kind(), err)
		}
	}
}
