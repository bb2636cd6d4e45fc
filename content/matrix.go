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
	"fmt"
	"math"

	"seehuhn.de/go/geom/matrix"

	"seehuhn.de/go/pdfgraph"
)

// matrixPlaces is the number of decimal places used for matrix entries.
const matrixPlaces = 6

// Transform returns a "cm" instruction for the given matrix.
func Transform(m matrix.Matrix) (Instruction, error) {
	operands, err := matrixOperands(m)
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{Operands: operands, Operator: pdfgraph.Operator("cm")}, nil
}

// TextMatrix returns a "Tm" instruction for the given matrix.
func TextMatrix(m matrix.Matrix) (Instruction, error) {
	operands, err := matrixOperands(m)
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{Operands: operands, Operator: pdfgraph.Operator("Tm")}, nil
}

func matrixOperands(m matrix.Matrix) ([]pdfgraph.Object, error) {
	res := make([]pdfgraph.Object, 6)
	for i, x := range m {
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			res[i] = pdfgraph.Integer(x)
			continue
		}
		r, err := pdfgraph.NewReal(x, matrixPlaces)
		if err != nil {
			return nil, err
		}
		res[i] = r
	}
	return res, nil
}

// Matrix returns the matrix given by the operands of a "cm" or "Tm"
// instruction.
func (ins Instruction) Matrix() (matrix.Matrix, error) {
	op, err := ins.Op()
	if err != nil {
		return matrix.Matrix{}, err
	}
	if op != "cm" && op != "Tm" {
		return matrix.Matrix{}, fmt.Errorf("%w: operator %q has no matrix", pdfgraph.ErrStructural, op)
	}
	if len(ins.Operands) != 6 {
		return matrix.Matrix{}, fmt.Errorf("%w: %s needs 6 operands, not %d",
			pdfgraph.ErrStructural, op, len(ins.Operands))
	}
	var m matrix.Matrix
	for i, obj := range ins.Operands {
		x, err := pdfgraph.GetNumber(nil, obj)
		if err != nil {
			return matrix.Matrix{}, err
		}
		m[i] = x
	}
	return m, nil
}

// CurrentTransform returns the transformation matrix in effect after the
// given instructions have been executed, starting from the identity.  The
// operators q, Q and cm are taken into account.
func CurrentTransform(instructions []Instruction) (matrix.Matrix, error) {
	ctm := matrix.Identity
	var stack []matrix.Matrix
	for i, ins := range instructions {
		op, err := ins.Op()
		if err != nil {
			return matrix.Matrix{}, &InstructionError{Index: i, Err: err}
		}
		switch op {
		case "q":
			stack = append(stack, ctm)
		case "Q":
			if len(stack) == 0 {
				return matrix.Matrix{}, &InstructionError{
					Index: i,
					Err:   fmt.Errorf("%w: unbalanced Q", pdfgraph.ErrStructural),
				}
			}
			ctm = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		case "cm":
			m, err := ins.Matrix()
			if err != nil {
				return matrix.Matrix{}, &InstructionError{Index: i, Err: err}
			}
			ctm = m.Mul(ctm)
		}
	}
	return ctm, nil
}
