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


package engine

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"seehuhn.de/go/pdfgraph"
	"seehuhn.de/go/pdfgraph/content"
)

// objectParser reads PDF objects from the body of a file.  It shares the
// tokenizer with the content stream parser: apart from the keywords
// obj, endobj, stream, endstream and R, the syntax is the same.
type objectParser struct {
	doc  *pdfgraph.Document
	data []byte
	base int64 // file offset of data[0]
	tok  *content.Tokenizer
	buf  []content.Token

	// length resolves indirect /Length values of streams.
	length func(ref pdfgraph.Reference) (int, bool)
}

func newObjectParser(doc *pdfgraph.Document, data []byte, base int64) *objectParser {
	return &objectParser{
		doc:  doc,
		data: data,
		base: base,
		tok:  content.NewTokenizer(data),
	}
}

func (p *objectParser) read() content.Token {
	for {
		tok := p.tok.Next()
		if tok.Type != content.TokenSpace && tok.Type != content.TokenComment {
			return tok
		}
	}
}

func (p *objectParser) peek(i int) content.Token {
	for len(p.buf) <= i {
		p.buf = append(p.buf, p.read())
	}
	return p.buf[i]
}

func (p *objectParser) next() content.Token {
	tok := p.peek(0)
	p.buf = p.buf[1:]
	return tok
}

func (p *objectParser) pos() int64 {
	return p.base + int64(p.tok.Pos())
}

func (p *objectParser) errorf(format string, args ...any) error {
	return &pdfgraph.MalformedFileError{
		Pos: p.pos(),
		Err: fmt.Errorf(format, args...),
	}
}

// ReadObject reads a direct object.  References are returned as such,
// they are not resolved.
func (p *objectParser) ReadObject() (pdfgraph.Object, error) {
	return p.readObject(0)
}

func (p *objectParser) readObject(depth int) (pdfgraph.Object, error) {
	if depth > pdfgraph.MaxDepth {
		return nil, pdfgraph.ErrRecursionLimit
	}

	tok := p.next()
	switch tok.Type {
	case content.TokenInteger:
		if p.peek(0).Type == content.TokenInteger && p.peek(1).IsOperator("R") {
			gen := p.next()
			p.next()
			num := int64(tok.Value.(pdfgraph.Integer))
			g := int64(gen.Value.(pdfgraph.Integer))
			if num <= 0 || num > math.MaxUint32 || g < 0 || g > math.MaxUint16 {
				return nil, p.errorf("invalid reference %d %d R", num, g)
			}
			return pdfgraph.NewReference(uint32(num), uint16(g)), nil
		}
		return tok.Value, nil
	case content.TokenReal, content.TokenName, content.TokenString,
		content.TokenBool, content.TokenNull:
		return tok.Value, nil
	case content.TokenArrayOpen:
		return p.readArray(depth)
	case content.TokenDictOpen:
		return p.readDict(depth)
	case content.TokenEOF:
		return nil, p.errorf("unexpected end of file")
	case content.TokenBad:
		return nil, p.errorf("%s", tok.Err)
	default:
		return nil, p.errorf("unexpected %s %q", tok.Type, tok.Raw)
	}
}

func (p *objectParser) readArray(depth int) (*pdfgraph.Array, error) {
	a := p.doc.NewArray()
	for {
		if p.peek(0).Type == content.TokenArrayClose {
			p.next()
			return a, nil
		}
		obj, err := p.readObject(depth + 1)
		if err != nil {
			return nil, err
		}
		if err := a.Append(obj); err != nil {
			return nil, err
		}
	}
}

func (p *objectParser) readDict(depth int) (*pdfgraph.Dict, error) {
	d := p.doc.NewDict()
	for {
		tok := p.next()
		switch tok.Type {
		case content.TokenDictClose:
			return d, nil
		case content.TokenName:
		default:
			return nil, p.errorf("expected dictionary key, got %s %q", tok.Type, tok.Raw)
		}
		key := tok.Value.(pdfgraph.Name)

		if p.peek(0).Type == content.TokenDictClose {
			// key without a value
			continue
		}
		val, err := p.readObject(depth + 1)
		if err != nil {
			return nil, err
		}
		if _, isNull := val.(pdfgraph.Null); isNull {
			continue
		}
		if err := d.Set(key, val); err != nil {
			return nil, err
		}
	}
}

// ReadIndirect reads an indirect object "N G obj ... endobj", including
// streams.  Stream objects are returned without being stored in the
// document.
func (p *objectParser) ReadIndirect() (pdfgraph.Reference, pdfgraph.Object, error) {
	num, gen, kw := p.next(), p.next(), p.next()
	if num.Type != content.TokenInteger || gen.Type != content.TokenInteger || !kw.IsOperator("obj") {
		return 0, nil, p.errorf("missing object header")
	}
	n := int64(num.Value.(pdfgraph.Integer))
	g := int64(gen.Value.(pdfgraph.Integer))
	if n <= 0 || n > math.MaxUint32 || g < 0 || g > math.MaxUint16 {
		return 0, nil, p.errorf("invalid object number %d %d", n, g)
	}
	ref := pdfgraph.NewReference(uint32(n), uint16(g))

	if p.peek(0).IsOperator("endobj") {
		// empty object
		p.next()
		return ref, pdfgraph.Null{}, nil
	}

	obj, err := p.ReadObject()
	if err != nil {
		return 0, nil, pdfgraph.Wrap(err, "object "+ref.String())
	}

	if p.peek(0).IsOperator("stream") {
		p.next()
		dict, ok := obj.(*pdfgraph.Dict)
		if !ok {
			return 0, nil, p.errorf("stream without dictionary in %s", ref)
		}
		stm, err := p.readStreamData(ref, dict)
		if err != nil {
			return 0, nil, err
		}
		obj = stm
	}

	if p.peek(0).IsOperator("endobj") {
		p.next()
	}
	return ref, obj, nil
}

// readStreamData reads the data following the stream keyword.  The
// tokenizer is positioned just after the keyword.
func (p *objectParser) readStreamData(ref pdfgraph.Reference, dict *pdfgraph.Dict) (*pdfgraph.Stream, error) {
	if len(p.buf) > 0 {
		return nil, errors.New("internal error: lookahead before stream data")
	}
	start := p.tok.Pos()
	switch {
	case bytes.HasPrefix(p.data[start:], []byte("\r\n")):
		start += 2
	case start < len(p.data) && (p.data[start] == '\n' || p.data[start] == '\r'):
		start++
	}

	end := -1
	length := -1
	lenObj, _ := dict.GetRaw("/Length")
	switch l := lenObj.(type) {
	case pdfgraph.Integer:
		length = int(l)
	case pdfgraph.Reference:
		if p.length != nil {
			if n, ok := p.length(l); ok {
				length = n
			}
		}
	}
	if length >= 0 && start+length <= len(p.data) && isEndStream(p.data[start+length:]) {
		end = start + length
	} else {
		// /Length is missing or wrong: search for the endstream keyword
		idx := bytes.Index(p.data[start:], []byte("endstream"))
		if idx < 0 {
			return nil, p.errorf("unterminated stream in %s", ref)
		}
		end = start + idx
		if end > start && p.data[end-1] == '\n' {
			end--
		}
		if end > start && p.data[end-1] == '\r' {
			end--
		}
		p.doc.Warn("stream length corrected", "object", ref, "length", end-start)
	}

	stm, err := pdfgraph.NewEncodedStream(p.doc, dict, p.data[start:end])
	if err != nil {
		return nil, err
	}

	// continue after the endstream keyword
	rest := p.data[end:]
	skip := bytes.Index(rest, []byte("endstream")) + len("endstream")
	p.tok = content.NewTokenizer(p.data[end+skip:])
	p.base += int64(end + skip)
	p.data = p.data[end+skip:]
	return stm, nil
}

// isEndStream checks whether buf starts with optional white space,
// followed by the endstream keyword.
func isEndStream(buf []byte) bool {
	buf = bytes.TrimLeft(buf, "\x00\t\n\f\r ")
	return bytes.HasPrefix(buf, []byte("endstream"))
}
