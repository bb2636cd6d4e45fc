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
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

func TestEncodeRoundTrip(t *testing.T) {
	values := []any{
		nil,
		true,
		false,
		0,
		-17,
		int64(math.MaxInt64),
		uint8(200),
		1.5,
		-0.001,
		decimal.RequireFromString("2.500"),
		[]byte{0, 1, 2},
		"text",
		"日本語",
		[]any{1, "two", 3.0},
		map[string]any{"/A": 1, "/B": []int{1, 2}},
	}
	for _, v := range values {
		obj1, err := Encode(v)
		if err != nil {
			t.Errorf("Encode(%v): %v", v, err)
			continue
		}
		dec, err := Decode(obj1)
		if err != nil {
			t.Errorf("Decode(%v): %v", obj1, err)
			continue
		}
		obj2, err := Encode(dec)
		if err != nil {
			t.Errorf("Encode(Decode(%v)): %v", obj1, err)
			continue
		}
		if !mustEqual(t, obj1, obj2) {
			t.Errorf("round trip of %v: %s != %s", v, Repr(obj1), Repr(obj2))
		}
	}
}

func TestEncodeKinds(t *testing.T) {
	cases := []struct {
		in   any
		kind Kind
	}{
		{nil, KindNull},
		{true, KindBool},
		{42, KindInteger},
		{4.2, KindReal},
		{"x", KindString},
		{Name("/N"), KindName},
		{[]string{"a"}, KindArray},
		{map[string]int{"/A": 1}, KindDict},
		{(*Dict)(nil), KindNull},
	}
	for _, test := range cases {
		obj, err := Encode(test.in)
		if err != nil {
			t.Errorf("Encode(%v): %v", test.in, err)
			continue
		}
		if KindOf(obj) != test.kind {
			t.Errorf("Encode(%v) has kind %s, want %s", test.in, KindOf(obj), test.kind)
		}
	}
}

type pageView struct {
	dict *Dict
}

func (p pageView) HelperObject() Object { return p.dict }

func TestEncodeErrors(t *testing.T) {
	cases := []any{
		math.NaN(),
		math.Inf(1),
		math.Inf(-1),
		uint64(math.MaxUint64),
		map[string]int{"NoSlash": 1},
		map[int]int{1: 1},
		make(chan int),
		func() {},
		pageView{NewDict()},
	}
	for _, v := range cases {
		_, err := Encode(v)
		if !errors.Is(err, ErrEncoding) {
			t.Errorf("Encode(%T): expected an encoding error, got %v", v, err)
		}
	}

	_, err := Encode(make(chan int))
	if err == nil || !strings.Contains(err.Error(), "don't know how to encode") {
		t.Errorf("unexpected message: %v", err)
	}
	_, err = Encode(pageView{NewDict()})
	if err == nil || !strings.Contains(err.Error(), "HelperObject") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestDecimalPrecision(t *testing.T) {
	old, err := SetDecimalPrecision(2)
	if err != nil {
		t.Fatal(err)
	}
	defer SetDecimalPrecision(old)

	obj, err := Encode(1.23456)
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := Format(obj); s != "1.23" {
		t.Errorf("got %s", s)
	}

	obj, err = Encoder{Precision: 4}.Encode(1.23456)
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := Format(obj); s != "1.2346" {
		t.Errorf("got %s", s)
	}

	if _, err := SetDecimalPrecision(-1); err == nil {
		t.Error("negative precision accepted")
	}
}

type testInfo struct {
	Title    string
	Author   string `pdf:"optional"`
	Count    int
	Created  time.Time
	Lang     language.Tag `pdf:"optional"`
	Version  Version
	Kind     Name
	internal int
	Ignored  int `pdf:"-"`
}

func TestStructRoundTrip(t *testing.T) {
	in := testInfo{
		Title:   "Bär",
		Count:   3,
		Created: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
		Lang:    language.German,
		Version: V1_7,
		Kind:    "/Report",
		Ignored: 5,
	}
	obj, err := Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	d := obj.(*Dict)
	if d.Has("/Author") || d.Has("/Ignored") || d.Has("/internal") {
		t.Errorf("unexpected keys %v", d.Keys())
	}
	if v, _ := d.Get("/Version"); v != Name("/1.7") {
		t.Errorf("/Version = %v", v)
	}

	var out testInfo
	err = DecodeDict(&out, d)
	if err != nil {
		t.Fatal(err)
	}
	in.Ignored = 0
	opt := cmp.Comparer(func(a, b language.Tag) bool { return a.String() == b.String() })
	if diff := cmp.Diff(in, out, cmp.AllowUnexported(testInfo{}), opt); diff != "" {
		t.Errorf("round trip failed (-want +got):\n%s", diff)
	}

	d.Delete("/Title")
	err = DecodeDict(&out, d)
	if !errors.Is(err, ErrMissingKey) {
		t.Errorf("missing required field: got %v", err)
	}
}

func TestDecodeCycle(t *testing.T) {
	a := &Array{}
	b := &Array{}
	b.Append(Integer(1))
	a.Append(b)
	if _, err := Decode(a); err != nil {
		t.Errorf("acyclic array: %v", err)
	}

	doc := NewDocument()
	x := doc.NewDict()
	ref, _ := doc.MakeIndirect(x)
	x.Set("/Self", ref)
	_, err := Decode(x)
	if !errors.Is(err, ErrRecursionLimit) {
		t.Errorf("expected an error for a cycle, got %v", err)
	}
}
