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

package pagetree_test

import (
	"testing"

	"seehuhn.de/go/pdfgraph"
	"seehuhn.de/go/pdfgraph/pagetree"
)

func fontResources(t *testing.T, doc *pdfgraph.Document, names ...pdfgraph.Name) *pdfgraph.Dict {
	t.Helper()
	fonts := doc.NewDict()
	for _, name := range names {
		font := doc.NewDict()
		font.Set("/Type", pdfgraph.Name("/Font"))
		font.Set("/BaseFont", pdfgraph.Name("/Helvetica"))
		if _, err := doc.MakeIndirect(font); err != nil {
			t.Fatal(err)
		}
		if err := fonts.Set(name, font); err != nil {
			t.Fatal(err)
		}
	}
	res := doc.NewDict()
	res.Set("/Font", fonts)
	res.Set("/ProcSet", pdfgraph.Name("/PDF"))
	return res
}

func TestPruneResources(t *testing.T) {
	doc, pages := newDoc(t, "A")
	pg := mustGet(t, pages, 0)

	pg.Obj().Set("/Resources", fontResources(t, doc, "/F1", "/F2"))
	body := []byte("BT /F1 12 Tf (Hello) Tj ET")
	if err := pg.SetContent(body); err != nil {
		t.Fatal(err)
	}
	stm, _ := pdfgraph.GetStream(doc, pg.Obj().Value("/Contents"))
	rawBefore, _ := stm.RawData()

	if err := pg.PruneResources(); err != nil {
		t.Fatal(err)
	}

	res, _ := pg.Resources()
	fonts, _ := pdfgraph.GetDict(doc, res.Value("/Font"))
	if !fonts.Has("/F1") || fonts.Has("/F2") {
		t.Errorf("wrong fonts after pruning: %v", fonts.Keys())
	}
	if !res.Has("/ProcSet") {
		t.Error("/ProcSet removed")
	}

	stm2, _ := pdfgraph.GetStream(doc, pg.Obj().Value("/Contents"))
	rawAfter, _ := stm2.RawData()
	if stm2 != stm || string(rawAfter) != string(rawBefore) {
		t.Error("pruning modified the content stream")
	}
}

func TestPruneSharedResources(t *testing.T) {
	doc, pages := newDoc(t, "A", "B")
	shared := fontResources(t, doc, "/F1", "/F2")
	sharedRef, err := doc.MakeIndirect(shared)
	if err != nil {
		t.Fatal(err)
	}

	a := mustGet(t, pages, 0)
	b := mustGet(t, pages, 1)
	for _, pg := range []*pagetree.Page{a, b} {
		pg.Obj().Set("/Resources", sharedRef)
	}
	a.SetContent([]byte("/F1 10 Tf"))
	b.SetContent([]byte("/F2 10 Tf"))

	if err := a.PruneResources(); err != nil {
		t.Fatal(err)
	}

	resA, _ := a.Resources()
	fontsA, _ := pdfgraph.GetDict(doc, resA.Value("/Font"))
	if fontsA.Has("/F2") {
		t.Error("/F2 not removed from page A")
	}
	resB, _ := b.Resources()
	fontsB, _ := pdfgraph.GetDict(doc, resB.Value("/Font"))
	if !fontsB.Has("/F1") || !fontsB.Has("/F2") {
		t.Errorf("shared resources modified: %v", fontsB.Keys())
	}
}

func TestPruneInlineImage(t *testing.T) {
	doc, pages := newDoc(t, "A")
	pg := mustGet(t, pages, 0)

	res := fontResources(t, doc)
	cs := doc.NewDict()
	cs.Set("/CS0", pdfgraph.Name("/DeviceRGB"))
	cs.Set("/CS1", pdfgraph.Name("/DeviceGray"))
	res.Set("/ColorSpace", cs)
	pg.Obj().Set("/Resources", res)
	pg.SetContent([]byte("q BI /W 1 /H 1 /CS /CS1 /BPC 8 ID \x80 EI Q"))

	if err := pg.PruneResources(); err != nil {
		t.Fatal(err)
	}
	if cs.Has("/CS0") || !cs.Has("/CS1") {
		t.Errorf("wrong color spaces after pruning: %v", cs.Keys())
	}
}
