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
	"bytes"
	"fmt"
	"strings"

	"seehuhn.de/go/pdfgraph"
)

// InlineImageOperator is the pseudo-operator used for inline images.  An
// instruction with this operator has exactly one operand, of type
// *pdfgraph.InlineImage.
const InlineImageOperator pdfgraph.Operator = "INLINE IMAGE"

// Instruction is a content stream operator together with its operands.
type Instruction struct {
	Operands []pdfgraph.Object

	// Operator is normally a [pdfgraph.Operator].  For convenience, a
	// [pdfgraph.Name] (e.g. "/cm") or a [pdfgraph.String] can also be used.
	Operator pdfgraph.Object
}

// NewInstruction returns an instruction for the given operator.
func NewInstruction(op string, operands ...pdfgraph.Object) Instruction {
	return Instruction{Operands: operands, Operator: pdfgraph.Operator(op)}
}

// NewInlineImage returns the pseudo-instruction for an inline image.
func NewInlineImage(img *pdfgraph.InlineImage) Instruction {
	return Instruction{
		Operands: []pdfgraph.Object{img},
		Operator: InlineImageOperator,
	}
}

// Op returns the operator of the instruction.
func (ins Instruction) Op() (pdfgraph.Operator, error) {
	switch op := ins.Operator.(type) {
	case pdfgraph.Operator:
		if op == "" {
			break
		}
		return op, nil
	case pdfgraph.Name:
		if len(op) < 2 {
			break
		}
		return pdfgraph.Operator(op[1:]), nil
	case pdfgraph.String:
		if len(op) == 0 {
			break
		}
		return pdfgraph.Operator(op.Text()), nil
	}
	return "", fmt.Errorf("%w: operator must be an Operator, Name or String, not %s",
		pdfgraph.ErrStructural, pdfgraph.KindOf(ins.Operator))
}

// InlineImage returns the image of an inline image pseudo-instruction.
func (ins Instruction) InlineImage() (*pdfgraph.InlineImage, bool) {
	op, err := ins.Op()
	if err != nil || op != InlineImageOperator || len(ins.Operands) != 1 {
		return nil, false
	}
	img, ok := ins.Operands[0].(*pdfgraph.InlineImage)
	return img, ok && img != nil
}

func (ins Instruction) String() string {
	buf := &bytes.Buffer{}
	err := ins.unparse(buf)
	if err != nil {
		return fmt.Sprintf("<invalid instruction: %v>", err)
	}
	return buf.String()
}

func (ins Instruction) unparse(buf *bytes.Buffer) error {
	op, err := ins.Op()
	if err != nil {
		return err
	}
	if op == InlineImageOperator {
		if len(ins.Operands) != 1 {
			return fmt.Errorf("%w: inline image instruction needs exactly one operand, got %d",
				pdfgraph.ErrStructural, len(ins.Operands))
		}
		img, ok := ins.Operands[0].(*pdfgraph.InlineImage)
		if !ok || img == nil {
			return fmt.Errorf("%w: expected an inline image, got %s",
				pdfgraph.ErrStructural, pdfgraph.KindOf(ins.Operands[0]))
		}
		return img.PDF(buf)
	}
	if strings.ContainsFunc(string(op), func(r rune) bool {
		return r > 127 || !isRegular(byte(r))
	}) {
		return fmt.Errorf("%w: invalid operator %q", pdfgraph.ErrEncoding, op)
	}

	err = unparseOperands(buf, ins.Operands)
	if err != nil {
		return err
	}
	buf.WriteString(string(op))
	return nil
}

// InstructionError reports a problem with one instruction of a content
// stream.
type InstructionError struct {
	Index int
	Err   error
}

func (err *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d: %v", err.Index, err.Err)
}

func (err *InstructionError) Unwrap() error {
	return err.Err
}

// Unparse converts instructions into content stream bytes.  Each operand
// is followed by a single space, then the operator follows.  Instructions
// are separated by newlines.
func Unparse(instructions []Instruction) ([]byte, error) {
	buf := &bytes.Buffer{}
	for i, ins := range instructions {
		if i > 0 {
			buf.WriteByte('\n')
		}
		err := ins.unparse(buf)
		if err != nil {
			return nil, &InstructionError{Index: i, Err: err}
		}
	}
	return buf.Bytes(), nil
}

// UnparseOperands converts a list of operands into content stream bytes.
// Each operand is followed by a single space.
func UnparseOperands(operands ...pdfgraph.Object) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := unparseOperands(buf, operands)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unparseOperands(buf *bytes.Buffer, operands []pdfgraph.Object) error {
	for _, obj := range operands {
		err := checkOperand(obj, 0)
		if err != nil {
			return err
		}
		if obj == nil {
			obj = pdfgraph.Null{}
		}
		err = obj.PDF(buf)
		if err != nil {
			return err
		}
		buf.WriteByte(' ')
	}
	return nil
}

// checkOperand verifies that obj can occur inside a content stream.
func checkOperand(obj pdfgraph.Object, depth int) error {
	if depth > pdfgraph.MaxDepth {
		return pdfgraph.ErrRecursionLimit
	}
	switch x := obj.(type) {
	case pdfgraph.Reference, *pdfgraph.Stream, *pdfgraph.InlineImage, pdfgraph.Operator:
		return fmt.Errorf("%w: %s cannot be used as an operand",
			pdfgraph.ErrStructural, obj.Kind())
	case *pdfgraph.Array:
		if x.IsIndirect() {
			return fmt.Errorf("%w: indirect objects cannot be used in content streams",
				pdfgraph.ErrStructural)
		}
		for i := range x.Len() {
			item, err := x.GetRaw(i)
			if err != nil {
				return err
			}
			if err := checkOperand(item, depth+1); err != nil {
				return err
			}
		}
	case *pdfgraph.Dict:
		if x.IsIndirect() {
			return fmt.Errorf("%w: indirect objects cannot be used in content streams",
				pdfgraph.ErrStructural)
		}
		for _, key := range x.Keys() {
			val, err := x.GetRaw(key)
			if err != nil {
				return err
			}
			if err := checkOperand(val, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// UsedNames returns all names which occur in the operands of the given
// instructions, including names nested in arrays, dictionaries and inline
// image parameters.
func UsedNames(instructions []Instruction) map[pdfgraph.Name]bool {
	res := make(map[pdfgraph.Name]bool)
	var visit func(obj pdfgraph.Object, depth int)
	visit = func(obj pdfgraph.Object, depth int) {
		if depth > pdfgraph.MaxDepth {
			return
		}
		switch x := obj.(type) {
		case pdfgraph.Name:
			res[x] = true
		case *pdfgraph.Array:
			for i := range x.Len() {
				item, _ := x.GetRaw(i)
				visit(item, depth+1)
			}
		case *pdfgraph.Dict:
			for _, key := range x.Keys() {
				val, _ := x.GetRaw(key)
				visit(val, depth+1)
			}
		case *pdfgraph.InlineImage:
			if x.Dict != nil {
				visit(x.Dict, depth+1)
			}
		}
	}
	for _, ins := range instructions {
		for _, obj := range ins.Operands {
			visit(obj, 0)
		}
	}
	return res
}
