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

// TokenType identifies the lexical class of a token.
type TokenType int

// These are the token types produced by a [Tokenizer].
const (
	TokenEOF TokenType = iota
	TokenSpace
	TokenComment
	TokenInteger
	TokenReal
	TokenName
	TokenString
	TokenBool
	TokenNull
	TokenWord // an operator
	TokenArrayOpen
	TokenArrayClose
	TokenDictOpen
	TokenDictClose
	TokenInlineImageData
	TokenBad
)

func (tp TokenType) String() string {
	switch tp {
	case TokenEOF:
		return "eof"
	case TokenSpace:
		return "space"
	case TokenComment:
		return "comment"
	case TokenInteger:
		return "integer"
	case TokenReal:
		return "real"
	case TokenName:
		return "name"
	case TokenString:
		return "string"
	case TokenBool:
		return "bool"
	case TokenNull:
		return "null"
	case TokenWord:
		return "word"
	case TokenArrayOpen:
		return "array_open"
	case TokenArrayClose:
		return "array_close"
	case TokenDictOpen:
		return "dict_open"
	case TokenDictClose:
		return "dict_close"
	case TokenInlineImageData:
		return "inline_image"
	case TokenBad:
		return "bad"
	default:
		return fmt.Sprintf("TokenType(%d)", int(tp))
	}
}

// Token is a lexical unit of a content stream.
type Token struct {
	Type TokenType

	// Raw holds the bytes of the token, as they appear in the stream.
	Raw []byte

	// Value is the interpreted value for integers, reals, names, strings,
	// booleans and null.  For words it is the corresponding
	// [pdfgraph.Operator], and for inline image data it is a
	// [pdfgraph.String] holding the image data.
	Value pdfgraph.Object

	// Err describes the problem for tokens of type TokenBad.
	Err string
}

// NewToken returns a token representing the given scalar object or
// operator.  The raw bytes are generated from the object.
func NewToken(obj pdfgraph.Object) (Token, error) {
	var tp TokenType
	switch obj.(type) {
	case pdfgraph.Integer:
		tp = TokenInteger
	case pdfgraph.Real:
		tp = TokenReal
	case pdfgraph.Name:
		tp = TokenName
	case pdfgraph.String:
		tp = TokenString
	case pdfgraph.Bool:
		tp = TokenBool
	case nil, pdfgraph.Null:
		tp = TokenNull
		obj = pdfgraph.Null{}
	case pdfgraph.Operator:
		tp = TokenWord
	default:
		return Token{}, fmt.Errorf("%w: no token for %s", pdfgraph.ErrStructural, pdfgraph.KindOf(obj))
	}
	buf := &bytes.Buffer{}
	if err := obj.PDF(buf); err != nil {
		return Token{}, err
	}
	return Token{Type: tp, Raw: buf.Bytes(), Value: obj}, nil
}

// SpaceToken returns a white-space token.
func SpaceToken(s string) Token {
	return Token{Type: TokenSpace, Raw: []byte(s)}
}

// IsOperator reports whether the token is the given operator.
func (t Token) IsOperator(op string) bool {
	return t.Type == TokenWord && string(t.Raw) == op
}

func (t Token) String() string {
	if t.Type == TokenBad {
		return fmt.Sprintf("%s(%q: %s)", t.Type, t.Raw, t.Err)
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Raw)
}
