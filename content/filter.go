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

	"seehuhn.de/go/pdfgraph"
)

// A TokenFilter rewrites the tokens of a content stream.
//
// HandleToken is called once for every token of the stream, including
// white space and comments, but excluding the final EOF token.  The
// returned tokens replace the input token; returning nil discards it.
// Filters must not modify the stream they are attached to.
type TokenFilter interface {
	HandleToken(tok Token) []Token
}

// An EOFHandler is a TokenFilter which can emit additional tokens at the
// end of the stream.
type EOFHandler interface {
	HandleEOF() []Token
}

// TokenFilterFunc adapts an ordinary function to the TokenFilter interface.
type TokenFilterFunc func(tok Token) []Token

// HandleToken implements the [TokenFilter] interface.
func (f TokenFilterFunc) HandleToken(tok Token) []Token {
	return f(tok)
}

// Chain combines several filters into one.  Tokens emitted by one filter
// are passed to the next filter in order.
func Chain(filters ...TokenFilter) TokenFilter {
	return chain(filters)
}

type chain []TokenFilter

func (c chain) HandleToken(tok Token) []Token {
	return c.run(0, []Token{tok})
}

func (c chain) HandleEOF() []Token {
	var out []Token
	for i, f := range c {
		if h, ok := f.(EOFHandler); ok {
			out = append(out, c.run(i+1, h.HandleEOF())...)
		}
	}
	return out
}

// run passes the tokens through the filters starting at index i.
func (c chain) run(i int, toks []Token) []Token {
	for ; i < len(c); i++ {
		var next []Token
		for _, tok := range toks {
			next = append(next, c[i].HandleToken(tok)...)
		}
		toks = next
	}
	return toks
}

// FilterBytes applies the given filters to a content stream and returns
// the result.
func FilterBytes(data []byte, filters ...TokenFilter) (out []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = &pdfgraph.PanicError{Value: p}
		}
	}()

	f := Chain(filters...)
	buf := &bytes.Buffer{}
	t := NewTokenizer(data)
	for {
		tok := t.Next()
		var res []Token
		if tok.Type == TokenEOF {
			res = f.(EOFHandler).HandleEOF()
		} else {
			res = f.HandleToken(tok)
		}
		for _, r := range res {
			if err := writeToken(buf, r); err != nil {
				return nil, err
			}
		}
		if tok.Type == TokenEOF {
			return buf.Bytes(), nil
		}
	}
}

// writeToken writes the raw bytes of a token.  For tokens without raw
// bytes, the value is serialized instead.
func writeToken(buf *bytes.Buffer, tok Token) error {
	if tok.Raw != nil {
		buf.Write(tok.Raw)
		return nil
	}
	switch tok.Type {
	case TokenEOF:
		return nil
	case TokenArrayOpen:
		buf.WriteByte('[')
		return nil
	case TokenArrayClose:
		buf.WriteByte(']')
		return nil
	case TokenDictOpen:
		buf.WriteString("<<")
		return nil
	case TokenDictClose:
		buf.WriteString(">>")
		return nil
	}
	if tok.Value == nil {
		return fmt.Errorf("%w: token %s has neither raw bytes nor a value",
			pdfgraph.ErrStructural, tok.Type)
	}
	return tok.Value.PDF(buf)
}

// FilterStream applies the filters to the data of s and returns the
// result.  The stream itself is not modified.
func FilterStream(s *pdfgraph.Stream, filters ...TokenFilter) ([]byte, error) {
	data, err := s.Data()
	if err != nil {
		return nil, err
	}
	return FilterBytes(data, filters...)
}

// AddTokenFilter attaches a token filter to a stream.  The filter is
// applied lazily, whenever the stream data is requested via
// [pdfgraph.Stream.Data].  Filters are applied in the order they were
// attached and cannot be removed.
func AddTokenFilter(s *pdfgraph.Stream, f TokenFilter) error {
	if f == nil {
		return fmt.Errorf("%w: nil token filter", pdfgraph.ErrStructural)
	}
	return s.AddRewriter(tokenRewriter{f})
}

type tokenRewriter struct {
	f TokenFilter
}

func (r tokenRewriter) RewriteStream(data []byte) ([]byte, error) {
	return FilterBytes(data, r.f)
}

// RemoveOperators returns a filter which removes all instructions using
// one of the given operators, together with their operands.
func RemoveOperators(ops ...string) TokenFilter {
	drop := make(map[string]bool, len(ops))
	for _, op := range ops {
		drop[op] = true
	}
	return &operatorRemover{drop: drop}
}

type operatorRemover struct {
	drop      map[string]bool
	pending   []Token
	depth     int
	skipImage bool
}

func (r *operatorRemover) HandleToken(tok Token) []Token {
	if r.skipImage {
		if tok.IsOperator("EI") {
			r.skipImage = false
		}
		return nil
	}
	switch tok.Type {
	case TokenArrayOpen, TokenDictOpen:
		r.depth++
	case TokenArrayClose, TokenDictClose:
		if r.depth > 0 {
			r.depth--
		}
	case TokenWord, TokenInlineImageData:
		if r.depth > 0 {
			break
		}
		op := string(tok.Raw)
		if tok.Type == TokenWord && r.drop[op] {
			r.pending = nil
			r.skipImage = op == "BI"
			return nil
		}
		out := append(r.pending, tok)
		r.pending = nil
		return out
	}
	r.pending = append(r.pending, tok)
	return nil
}

func (r *operatorRemover) HandleEOF() []Token {
	out := r.pending
	r.pending = nil
	return out
}
