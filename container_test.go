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
)

func TestArrayIndex(t *testing.T) {
	a, err := NewArray(Integer(10), Integer(11), Integer(12))
	if err != nil {
		t.Fatal(err)
	}

	last, err := a.Get(-1)
	if err != nil {
		t.Fatal(err)
	}
	same, _ := a.Get(a.Len() - 1)
	if last != same || last != Integer(12) {
		t.Errorf("a[-1] = %v, a[n-1] = %v", last, same)
	}

	first, err := a.Get(-3)
	if err != nil || first != Integer(10) {
		t.Errorf("a[-3] = %v, %v", first, err)
	}

	for _, i := range []int{3, -4, 100} {
		_, err := a.Get(i)
		if !errors.Is(err, ErrBounds) {
			t.Errorf("a[%d]: expected bounds error, got %v", i, err)
		}
		if err := a.Set(i, Integer(0)); !errors.Is(err, ErrBounds) {
			t.Errorf("set a[%d]: expected bounds error, got %v", i, err)
		}
		if err := a.Delete(i); !errors.Is(err, ErrBounds) {
			t.Errorf("delete a[%d]: expected bounds error, got %v", i, err)
		}
	}
}

func TestArrayMutation(t *testing.T) {
	a := &Array{}
	for i := range 3 {
		if err := a.Append(Integer(i)); err != nil {
			t.Fatal(err)
		}
	}
	if err := a.Set(-1, Name("/X")); err != nil {
		t.Fatal(err)
	}
	if err := a.Delete(0); err != nil {
		t.Fatal(err)
	}
	if err := a.Insert(0, Bool(true)); err != nil {
		t.Fatal(err)
	}
	if err := a.Insert(100, Null{}); err != nil {
		t.Fatal(err)
	}
	out, _ := Format(a)
	if out != "[true 1 /X null]" {
		t.Errorf("got %s", out)
	}

	doc := NewDocument()
	s, _ := NewStream(doc, nil)
	err := a.Extend(Integer(5), &InlineImage{})
	if err == nil {
		t.Error("inline image accepted")
	}
	if a.Len() != 4 {
		t.Errorf("failed Extend modified the array")
	}
	if err := a.Extend(Integer(5), s); err != nil {
		t.Fatal(err)
	}
	if a.Owner() != doc {
		t.Error("array did not adopt the document")
	}
	raw, _ := a.GetRaw(-1)
	if raw != s.Ref() {
		t.Errorf("indirect object stored as %v", raw)
	}
	got, _ := a.Get(-1)
	if got != s {
		t.Error("reference not resolved")
	}
}

func TestWrapArray(t *testing.T) {
	a, err := WrapArray(Integer(1))
	if err != nil || a.Len() != 1 {
		t.Fatalf("got %v, %v", a, err)
	}
	b, err := WrapArray(a)
	if err != nil || b != a {
		t.Error("array was wrapped again")
	}
}

func TestArrayInsertSelf(t *testing.T) {
	a := &Array{}
	if err := a.Append(a); err == nil {
		t.Error("array inserted into itself")
	}
}

func TestDirectCycle(t *testing.T) {
	a := NewDict()
	b := NewDict()
	if err := a.Set("/B", b); err != nil {
		t.Fatal(err)
	}
	err := b.Set("/A", a)
	if !errors.Is(err, ErrStructural) {
		t.Errorf("expected ErrStructural, got %v", err)
	}
	if b.Has("/A") {
		t.Error("cycle was stored")
	}

	arr := &Array{}
	if err := b.Set("/Arr", arr); err != nil {
		t.Fatal(err)
	}
	if err := arr.Append(a); !errors.Is(err, ErrStructural) {
		t.Errorf("expected ErrStructural, got %v", err)
	}

	// sharing a direct object without a cycle is allowed
	if err := a.Set("/C", arr); err != nil {
		t.Error(err)
	}

	if _, err := Format(a); err != nil {
		t.Error(err)
	}
}

func TestDictKeys(t *testing.T) {
	d := NewDict()
	if err := d.Set("/A", Integer(1)); err != nil {
		t.Fatal(err)
	}

	err := d.Set("/B", Null{})
	if !errors.Is(err, ErrStructural) {
		t.Errorf("setting null: got %v", err)
	}
	err = d.Set("/B", nil)
	if !errors.Is(err, ErrStructural) {
		t.Errorf("setting nil: got %v", err)
	}
	for _, key := range []Name{"B", "", "/"} {
		err = d.Set(key, Integer(1))
		if !errors.Is(err, ErrEncoding) {
			t.Errorf("key %q: got %v", key, err)
		}
	}
	err = d.Delete("/Missing")
	if !errors.Is(err, ErrMissingKey) {
		t.Errorf("delete missing: got %v", err)
	}
	_, err = d.Get("/Missing")
	if !errors.Is(err, ErrMissingKey) {
		t.Errorf("get missing: got %v", err)
	}
	if d.Len() != 1 {
		t.Errorf("dict has %d entries", d.Len())
	}
	if err := d.Delete("/A"); err != nil {
		t.Fatal(err)
	}
	if d.Len() != 0 || d.Has("/A") {
		t.Error("key not deleted")
	}
}

func TestDictOrder(t *testing.T) {
	d := NewDict()
	for _, key := range []Name{"/Z", "/A", "/M"} {
		d.Set(key, Bool(true))
	}
	d.Set("/A", Bool(false))
	out, _ := Format(d)
	if out != "<<\n/Z true\n/A false\n/M true\n>>" {
		t.Errorf("got %q", out)
	}
}

func TestAttr(t *testing.T) {
	d := NewDict()
	if err := d.SetAttr("Type", Name("/Page")); err != nil {
		t.Fatal(err)
	}
	tp, err := d.Attr("Type")
	if err != nil || tp != Name("/Page") {
		t.Errorf("got %v, %v", tp, err)
	}

	_, err = d.Attr("Missing")
	if !errors.Is(err, ErrNoAttribute) {
		t.Errorf("public name: got %v", err)
	}
	_, err = d.Attr("_private")
	if !errors.Is(err, ErrMissingKey) || errors.Is(err, ErrNoAttribute) {
		t.Errorf("private name: got %v", err)
	}
}

func TestStreamLength(t *testing.T) {
	doc := NewDocument()
	s, err := NewStream(doc, []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if l, _ := s.Get("/Length"); l != Integer(5) {
		t.Errorf("/Length = %v", l)
	}

	if err := s.Set("/Length", Integer(3)); !errors.Is(err, ErrStructural) {
		t.Errorf("set /Length: got %v", err)
	}
	if err := s.Delete("/Length"); !errors.Is(err, ErrStructural) {
		t.Errorf("delete /Length: got %v", err)
	}
	if err := s.Dict().Set("/Length", Integer(3)); !errors.Is(err, ErrStructural) {
		t.Errorf("set /Length via Dict: got %v", err)
	}

	if err := s.SetData([]byte("hi")); err != nil {
		t.Fatal(err)
	}
	if l, _ := s.Get("/Length"); l != Integer(2) {
		t.Errorf("/Length = %v after SetData", l)
	}

	_, err = Len(s)
	if !errors.Is(err, ErrStructural) {
		t.Errorf("Len(stream): got %v", err)
	}
	if n, _ := Len(s.Dict()); n != 1 {
		t.Errorf("stream dict has %d keys", n)
	}

	if _, err := NewStream(nil, nil); !errors.Is(err, ErrOwnership) {
		t.Errorf("stream without document: got %v", err)
	}
}

func TestStreamSetDict(t *testing.T) {
	doc := NewDocument()
	s, _ := NewStream(doc, []byte("abc"))
	d := NewDict()
	d.Set("/Type", Name("/XObject"))
	d.Set("/Length", Integer(99))
	if err := s.SetDict(d); err != nil {
		t.Fatal(err)
	}
	if l, _ := s.Get("/Length"); l != Integer(3) {
		t.Errorf("/Length = %v", l)
	}
	if tp, _ := s.Attr("Type"); tp != Name("/XObject") {
		t.Errorf("/Type = %v", tp)
	}
}

func TestStreamSetRawDataFailure(t *testing.T) {
	doc := NewDocument()
	s, _ := NewStream(doc, nil)
	if err := s.SetRawData([]byte("616263>"), Name("/ASCIIHexDecode"), nil); err != nil {
		t.Fatal(err)
	}

	other := NewDocument()
	parms := other.NewDict()
	parms.Set("/Predictor", Integer(12))
	err := s.SetRawData([]byte("x"), Name("/FlateDecode"), parms)
	if !errors.Is(err, ErrOwnership) {
		t.Errorf("expected ErrOwnership, got %v", err)
	}

	if f, _ := s.Get("/Filter"); f != Name("/ASCIIHexDecode") {
		t.Errorf("/Filter = %v", f)
	}
	if s.Has("/DecodeParms") {
		t.Error("/DecodeParms was set")
	}
	if raw, _ := s.RawData(); string(raw) != "616263>" {
		t.Errorf("raw data %q", raw)
	}
}

func TestDirectStream(t *testing.T) {
	doc := NewDocument()
	s, _ := NewStream(doc, nil)
	d := doc.NewDict()
	if err := d.Set("/S", s); err != nil {
		t.Fatal(err)
	}
	raw, _ := d.GetRaw("/S")
	if _, isRef := raw.(Reference); !isRef {
		t.Errorf("stream stored as %T", raw)
	}
}

func TestClosedDocument(t *testing.T) {
	doc := NewDocument()
	d := doc.NewDict()
	d.Set("/A", Integer(1))
	a := doc.NewArray()
	doc.Close()

	if _, err := d.Get("/A"); !errors.Is(err, ErrDocumentClosed) {
		t.Errorf("Get: got %v", err)
	}
	if err := a.Append(Integer(1)); !errors.Is(err, ErrDocumentClosed) {
		t.Errorf("Append: got %v", err)
	}
	if _, err := doc.Get(NewReference(1, 0)); !errors.Is(err, ErrDocumentClosed) {
		t.Errorf("doc.Get: got %v", err)
	}
	if _, err := Format(d); !errors.Is(err, ErrDocumentClosed) {
		t.Errorf("Format: got %v", err)
	}
}
