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

package content

import (
	"errors"
	"testing"

	"seehuhn.de/go/geom/matrix"

	"seehuhn.de/go/pdfgraph"
)

func TestUnparse(t *testing.T) {
	arr, err := pdfgraph.NewArray(pdfgraph.String("a"), pdfgraph.Integer(-2), pdfgraph.String("b"))
	if err != nil {
		t.Fatal(err)
	}
	instructions := []Instruction{
		NewInstruction("BT"),
		{Operands: []pdfgraph.Object{pdfgraph.Name("/F1"), pdfgraph.Integer(12)}, Operator: pdfgraph.Name("/Tf")},
		{Operands: []pdfgraph.Object{arr}, Operator: pdfgraph.String("TJ")},
		NewInstruction("ET"),
	}
	out, err := Unparse(instructions)
	if err != nil {
		t.Fatal(err)
	}
	want := "BT\n/F1 12 Tf\n[(a) -2 (b)] TJ\nET"
	if string(out) != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestUnparseErrors(t *testing.T) {
	doc := pdfgraph.NewDocument()
	indirect := doc.NewDict()
	if _, err := doc.MakeIndirect(indirect); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		ins  Instruction
	}{
		{"integer operator", Instruction{Operator: pdfgraph.Integer(1)}},
		{"empty operator", Instruction{Operator: pdfgraph.Operator("")}},
		{"operator with space", NewInstruction("a b")},
		{"reference operand", NewInstruction("Do", pdfgraph.NewReference(1, 0))},
		{"indirect operand", NewInstruction("gs", indirect)},
		{"inline image without image", Instruction{Operator: InlineImageOperator}},
		{"inline image wrong operand", NewInstruction(string(InlineImageOperator), pdfgraph.Integer(1))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Unparse([]Instruction{NewInstruction("q"), tc.ins})
			var insErr *InstructionError
			if !errors.As(err, &insErr) {
				t.Fatalf("expected an InstructionError, got %v", err)
			}
			if insErr.Index != 1 {
				t.Errorf("wrong index %d", insErr.Index)
			}
		})
	}
}

func TestUsedNames(t *testing.T) {
	res, err := Parse([]byte("/GS0 gs /F1 1 Tf /OC <</P /Props1>> BDC BI /CS /CS0 ID\nx\nEI"), nil)
	if err != nil {
		t.Fatal(err)
	}
	used := UsedNames(res.Instructions)
	for _, name := range []pdfgraph.Name{"/GS0", "/F1", "/OC", "/P", "/Props1", "/CS", "/CS0"} {
		if !used[name] {
			t.Errorf("%s not found", name)
		}
	}
	if used["/F2"] {
		t.Error("unexpected name /F2")
	}
}

func TestMatrix(t *testing.T) {
	m := matrix.Matrix{1, 0, 0, 1, 10.5, -20}
	ins, err := Transform(m)
	if err != nil {
		t.Fatal(err)
	}
	if ins.String() != "1 0 0 1 10.5 -20 cm" {
		t.Errorf("got %q", ins.String())
	}
	back, err := ins.Matrix()
	if err != nil {
		t.Fatal(err)
	}
	if back != m {
		t.Errorf("got %v, want %v", back, m)
	}

	_, err = NewInstruction("re").Matrix()
	if err == nil {
		t.Error("expected an error for re")
	}
}

func TestCurrentTransform(t *testing.T) {
	res, err := Parse([]byte("2 0 0 2 0 0 cm q 1 0 0 1 5 5 cm Q 1 0 0 1 3 4 cm"), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctm, err := CurrentTransform(res.Instructions)
	if err != nil {
		t.Fatal(err)
	}
	want := matrix.Translate(3, 4).Mul(matrix.Scale(2, 2))
	if ctm != want {
		t.Errorf("got %v, want %v", ctm, want)
	}

	_, err = CurrentTransform([]Instruction{NewInstruction("Q")})
	if err == nil {
		t.Error("expected an error for unbalanced Q")
	}
}
