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
	"fmt"
	"slices"

	"seehuhn.de/go/pdfgraph"
	"seehuhn.de/go/pdfgraph/logger"
)

// ParseOptions control the parsing of content streams.
type ParseOptions struct {
	// Operators, if non-nil, restricts the result to instructions using
	// the listed operators.  Operands of all other operators are
	// discarded.  The operators q and Q are treated as a unit: listing
	// either one selects both.  Inline images are kept if "BI" or
	// "INLINE IMAGE" is listed.
	Operators []string
}

func (opts *ParseOptions) allowed(op pdfgraph.Operator) bool {
	if opts == nil || opts.Operators == nil {
		return true
	}
	switch op {
	case "q", "Q":
		return slices.Contains(opts.Operators, "q") || slices.Contains(opts.Operators, "Q")
	case InlineImageOperator:
		return slices.Contains(opts.Operators, "BI") || slices.Contains(opts.Operators, string(InlineImageOperator))
	}
	return slices.Contains(opts.Operators, string(op))
}

// Result holds the instructions of a content stream.
type Result struct {
	Instructions []Instruction

	// Warnings lists non-fatal problems found while parsing.
	Warnings []string
}

type parserState int

const (
	stateNormal parserState = iota
	stateImageMetadata
)

// frame collects the elements of an array or dictionary.
type frame struct {
	isDict bool
	items  []pdfgraph.Object
}

type parser struct {
	opts *ParseOptions
	data []byte
	res  *Result

	state      parserState
	operands   []pdfgraph.Object
	stack      []*frame
	imageStart int
	imageDict  *pdfgraph.Dict
	imageData  pdfgraph.String
}

// Parse splits a content stream into instructions.
//
// Syntax errors cause an error of type [*pdfgraph.MalformedFileError].
// Operands which are not followed by an operator at the end of the stream
// are discarded with a warning.
func Parse(data []byte, opts *ParseOptions) (*Result, error) {
	p := &parser{
		opts: opts,
		data: data,
		res:  &Result{},
	}
	err := p.run()
	if err != nil {
		return nil, err
	}
	return p.res, nil
}

// ParseStream decodes and parses a content stream.  Warnings are also
// recorded in the document owning the stream.
func ParseStream(s *pdfgraph.Stream, opts *ParseOptions) (*Result, error) {
	data, err := s.Data()
	if err != nil {
		return nil, err
	}
	res, err := Parse(data, opts)
	if err != nil {
		return nil, pdfgraph.Wrap(err, "content stream "+s.Ref().String())
	}
	if doc := s.Owner(); doc != nil {
		for _, w := range res.Warnings {
			doc.Warn(w, "object", s.Ref())
		}
	}
	return res, nil
}

func (p *parser) warn(msg string) {
	p.res.Warnings = append(p.res.Warnings, msg)
	logger.Warn(msg)
}

func (p *parser) fail(pos int, err error) error {
	return &pdfgraph.MalformedFileError{Pos: int64(pos), Err: err}
}

func (p *parser) run() error {
	t := NewTokenizer(p.data)
	for {
		pos := t.Pos()
		tok := t.Next()

		var obj pdfgraph.Object
		switch tok.Type {
		case TokenEOF:
			p.finish()
			return nil
		case TokenSpace, TokenComment:
			continue
		case TokenBad:
			return p.fail(pos, errors.New(tok.Err))
		case TokenArrayOpen:
			p.stack = append(p.stack, &frame{})
			continue
		case TokenDictOpen:
			p.stack = append(p.stack, &frame{isDict: true})
			continue
		case TokenArrayClose:
			if len(p.stack) == 0 || p.stack[len(p.stack)-1].isDict {
				return p.fail(pos, errors.New("unexpected ']'"))
			}
			top := p.stack[len(p.stack)-1]
			p.stack = p.stack[:len(p.stack)-1]
			a, err := pdfgraph.NewArray(top.items...)
			if err != nil {
				return p.fail(pos, err)
			}
			obj = a
		case TokenDictClose:
			if len(p.stack) == 0 || !p.stack[len(p.stack)-1].isDict {
				return p.fail(pos, errors.New("unexpected '>>'"))
			}
			top := p.stack[len(p.stack)-1]
			p.stack = p.stack[:len(p.stack)-1]
			d, err := makeDict(top.items)
			if err != nil {
				return p.fail(pos, err)
			}
			obj = d
		case TokenInlineImageData:
			p.imageData = tok.Value.(pdfgraph.String)
			continue
		case TokenWord:
			if len(p.stack) > 0 {
				return p.fail(pos, fmt.Errorf("unexpected operator %q inside array or dictionary", tok.Raw))
			}
			err := p.operator(tok.Value.(pdfgraph.Operator), pos, t.Pos())
			if err != nil {
				return p.fail(pos, err)
			}
			continue
		default:
			obj = tok.Value
		}

		if len(p.stack) > 0 {
			top := p.stack[len(p.stack)-1]
			top.items = append(top.items, obj)
		} else {
			p.operands = append(p.operands, obj)
		}
	}
}

// operator processes one operator.  The arguments start and end give the
// location of the operator in the input.
func (p *parser) operator(op pdfgraph.Operator, start, end int) error {
	switch p.state {
	case stateNormal:
		switch {
		case op == "BI":
			if len(p.operands) > 0 {
				p.warn(fmt.Sprintf("%d operands before BI discarded", len(p.operands)))
			}
			p.state = stateImageMetadata
			p.imageStart = start
			p.imageDict = nil
			p.imageData = nil
		case p.opts.allowed(op):
			p.res.Instructions = append(p.res.Instructions, Instruction{
				Operands: p.operands,
				Operator: op,
			})
		}
		p.operands = nil

	case stateImageMetadata:
		switch op {
		case "ID":
			d, err := makeDict(p.operands)
			if err != nil {
				return fmt.Errorf("inline image: %w", err)
			}
			p.imageDict = d
		case "EI":
			if p.imageDict == nil {
				return errors.New("inline image: EI without ID")
			}
			img := &pdfgraph.InlineImage{
				Dict: p.imageDict,
				Data: p.imageData,
				Raw:  slices.Clone(p.data[p.imageStart:end]),
			}
			if p.opts.allowed(InlineImageOperator) {
				p.res.Instructions = append(p.res.Instructions, NewInlineImage(img))
			}
			p.state = stateNormal
		default:
			return fmt.Errorf("inline image: unexpected operator %q", op)
		}
		p.operands = nil
	}
	return nil
}

func (p *parser) finish() {
	if p.state == stateImageMetadata {
		p.warn("unexpected end of stream inside inline image")
	}
	if len(p.stack) > 0 {
		p.warn("unexpected end of stream inside array or dictionary")
	}
	if len(p.operands) > 0 {
		p.warn(fmt.Sprintf("unexpected end of stream, %d operands discarded", len(p.operands)))
		p.operands = nil
	}
}

// makeDict converts a list of alternating keys and values into a
// dictionary.  Null values are skipped.
func makeDict(items []pdfgraph.Object) (*pdfgraph.Dict, error) {
	if len(items)%2 != 0 {
		return nil, errors.New("odd number of dictionary elements")
	}
	d := pdfgraph.NewDict()
	for i := 0; i < len(items); i += 2 {
		key, ok := items[i].(pdfgraph.Name)
		if !ok {
			return nil, fmt.Errorf("dictionary key must be a name, not %s", pdfgraph.KindOf(items[i]))
		}
		val := items[i+1]
		if _, isNull := val.(pdfgraph.Null); isNull || val == nil {
			continue
		}
		err := d.Set(key, val)
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}
