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
	"strconv"

	"seehuhn.de/go/pdfgraph"
)

// A Tokenizer breaks a content stream into tokens.  Concatenating the raw
// bytes of all tokens reproduces the input exactly.
//
// The tokenizer tracks inline images: the token following an ID operator
// inside an inline image is a TokenInlineImageData token, holding the
// binary image data up to the matching EI operator.
type Tokenizer struct {
	data []byte
	pos  int

	inImage  bool // between BI and ID
	afterID  bool // the next token is inline image data
	lastName pdfgraph.Name
	imageLen int // value of /L or /Length, or -1
}

// NewTokenizer returns a tokenizer which reads the given data.
func NewTokenizer(data []byte) *Tokenizer {
	return &Tokenizer{data: data, imageLen: -1}
}

// Tokenize breaks data into tokens.  The last token is always of type
// TokenEOF.
func Tokenize(data []byte) []Token {
	t := NewTokenizer(data)
	var res []Token
	for {
		tok := t.Next()
		res = append(res, tok)
		if tok.Type == TokenEOF {
			return res
		}
	}
}

// Pos returns the offset of the next token in the input.
func (t *Tokenizer) Pos() int {
	return t.pos
}

// Next returns the next token.  Once the end of input is reached, all
// further calls return a TokenEOF token.
func (t *Tokenizer) Next() Token {
	if t.afterID {
		t.afterID = false
		return t.readImageData()
	}
	if t.pos >= len(t.data) {
		return Token{Type: TokenEOF}
	}

	start := t.pos
	c := t.data[start]
	var tok Token
	switch {
	case isSpace(c):
		for t.pos < len(t.data) && isSpace(t.data[t.pos]) {
			t.pos++
		}
		return Token{Type: TokenSpace, Raw: t.data[start:t.pos]}
	case c == '%':
		for t.pos < len(t.data) && t.data[t.pos] != '\r' && t.data[t.pos] != '\n' {
			t.pos++
		}
		return Token{Type: TokenComment, Raw: t.data[start:t.pos]}
	case c == '(':
		tok = t.readString()
	case c == '<':
		if t.peekAt(1) == '<' {
			t.pos += 2
			tok = Token{Type: TokenDictOpen, Raw: t.data[start:t.pos]}
		} else {
			tok = t.readHexString()
		}
	case c == '>':
		if t.peekAt(1) == '>' {
			t.pos += 2
			tok = Token{Type: TokenDictClose, Raw: t.data[start:t.pos]}
		} else {
			t.pos++
			tok = t.bad(start, "unexpected '>'")
		}
	case c == '[':
		t.pos++
		tok = Token{Type: TokenArrayOpen, Raw: t.data[start:t.pos]}
	case c == ']':
		t.pos++
		tok = Token{Type: TokenArrayClose, Raw: t.data[start:t.pos]}
	case c == '/':
		tok = t.readName()
	case isDelimiter(c):
		t.pos++
		tok = t.bad(start, "unexpected "+strconv.QuoteRune(rune(c)))
	default:
		for t.pos < len(t.data) && isRegular(t.data[t.pos]) {
			t.pos++
		}
		tok = classifyWord(t.data[start:t.pos])
	}

	t.trackImage(tok)
	return tok
}

// trackImage follows the BI ... ID part of inline images, to locate the
// start of the image data and to find a /Length entry.
func (t *Tokenizer) trackImage(tok Token) {
	switch {
	case tok.IsOperator("BI"):
		t.inImage = true
		t.imageLen = -1
		t.lastName = ""
	case !t.inImage:
		return
	case tok.IsOperator("ID"):
		t.inImage = false
		t.afterID = true
	case tok.Type == TokenName:
		t.lastName = tok.Value.(pdfgraph.Name)
	case tok.Type == TokenInteger && (t.lastName == "/L" || t.lastName == "/Length"):
		t.imageLen = int(tok.Value.(pdfgraph.Integer))
		t.lastName = ""
	default:
		t.lastName = ""
	}
}

func (t *Tokenizer) peekAt(offs int) byte {
	if t.pos+offs < len(t.data) {
		return t.data[t.pos+offs]
	}
	return 0
}

func (t *Tokenizer) bad(start int, msg string) Token {
	return Token{Type: TokenBad, Raw: t.data[start:t.pos], Err: msg}
}

func (t *Tokenizer) readString() Token {
	start := t.pos
	t.pos++ // skip '('

	var res []byte
	level := 1
	for t.pos < len(t.data) {
		c := t.data[t.pos]
		t.pos++
		switch c {
		case '(':
			level++
			res = append(res, c)
		case ')':
			level--
			if level == 0 {
				return Token{Type: TokenString, Raw: t.data[start:t.pos], Value: pdfgraph.String(res)}
			}
			res = append(res, c)
		case '\\':
			if t.pos >= len(t.data) {
				break
			}
			c = t.data[t.pos]
			t.pos++
			switch c {
			case 'n':
				res = append(res, '\n')
			case 'r':
				res = append(res, '\r')
			case 't':
				res = append(res, '\t')
			case 'b':
				res = append(res, '\b')
			case 'f':
				res = append(res, '\f')
			case '\n':
				// line continuation
			case '\r':
				if t.pos < len(t.data) && t.data[t.pos] == '\n' {
					t.pos++
				}
			case '0', '1', '2', '3', '4', '5', '6', '7':
				oct := c - '0'
				for range 2 {
					if t.pos >= len(t.data) || t.data[t.pos] < '0' || t.data[t.pos] > '7' {
						break
					}
					oct = oct*8 + (t.data[t.pos] - '0')
					t.pos++
				}
				res = append(res, oct)
			default:
				res = append(res, c)
			}
		default:
			res = append(res, c)
		}
	}
	return t.bad(start, "unterminated string")
}

func (t *Tokenizer) readHexString() Token {
	start := t.pos
	t.pos++ // skip '<'

	var res []byte
	var hi byte
	first := true
	for t.pos < len(t.data) {
		c := t.data[t.pos]
		t.pos++
		var lo byte
		switch {
		case c == '>':
			if !first {
				res = append(res, hi)
			}
			return Token{Type: TokenString, Raw: t.data[start:t.pos], Value: pdfgraph.String(res)}
		case isSpace(c):
			continue
		case c >= '0' && c <= '9':
			lo = c - '0'
		case c >= 'A' && c <= 'F':
			lo = c - 'A' + 10
		case c >= 'a' && c <= 'f':
			lo = c - 'a' + 10
		default:
			return t.bad(start, "invalid hex digit "+strconv.QuoteRune(rune(c)))
		}
		if first {
			hi = lo << 4
		} else {
			res = append(res, hi|lo)
		}
		first = !first
	}
	return t.bad(start, "unterminated hex string")
}

func (t *Tokenizer) readName() Token {
	start := t.pos
	t.pos++ // skip '/'

	name := []byte{'/'}
	for t.pos < len(t.data) && isRegular(t.data[t.pos]) {
		c := t.data[t.pos]
		if c == '#' && t.pos+2 < len(t.data) && isHex(t.data[t.pos+1]) && isHex(t.data[t.pos+2]) {
			name = append(name, unhex(t.data[t.pos+1])<<4|unhex(t.data[t.pos+2]))
			t.pos += 3
			continue
		}
		name = append(name, c)
		t.pos++
	}
	return Token{Type: TokenName, Raw: t.data[start:t.pos], Value: pdfgraph.Name(name)}
}

// readImageData reads the data of an inline image, following the ID
// operator.  The token includes the white space after ID and the white
// space before EI.
func (t *Tokenizer) readImageData() Token {
	start := t.pos
	dataStart := start
	if dataStart < len(t.data) && isSpace(t.data[dataStart]) {
		dataStart++
	}

	if n := t.imageLen; n >= 0 && n <= len(t.data)-dataStart {
		end := dataStart + n
		for end < len(t.data) && isSpace(t.data[end]) {
			end++
		}
		if t.isEI(end) {
			t.pos = end
			return t.imageToken(start, dataStart, dataStart+n)
		}
	}

	for i := dataStart; i+1 < len(t.data); i++ {
		if t.data[i] != 'E' || t.data[i+1] != 'I' || i == 0 || !isSpace(t.data[i-1]) {
			continue
		}
		if !t.isEI(i) {
			continue
		}
		t.pos = i
		return t.imageToken(start, dataStart, max(dataStart, i-1))
	}

	t.pos = len(t.data)
	return t.bad(start, "inline image without EI")
}

func (t *Tokenizer) imageToken(start, dataStart, dataEnd int) Token {
	return Token{
		Type:  TokenInlineImageData,
		Raw:   t.data[start:t.pos],
		Value: pdfgraph.String(bytes.Clone(t.data[dataStart:dataEnd])),
	}
}

// isEI checks whether an EI operator starts at position i.
func (t *Tokenizer) isEI(i int) bool {
	if i+2 > len(t.data) || t.data[i] != 'E' || t.data[i+1] != 'I' {
		return false
	}
	return i+2 == len(t.data) || !isRegular(t.data[i+2])
}

// classifyWord interprets a sequence of regular characters.
func classifyWord(raw []byte) Token {
	switch string(raw) {
	case "true":
		return Token{Type: TokenBool, Raw: raw, Value: pdfgraph.Bool(true)}
	case "false":
		return Token{Type: TokenBool, Raw: raw, Value: pdfgraph.Bool(false)}
	case "null":
		return Token{Type: TokenNull, Raw: raw, Value: pdfgraph.Null{}}
	}

	if isNumeric(raw) {
		x, err := strconv.ParseInt(string(raw), 10, 64)
		if err == nil {
			return Token{Type: TokenInteger, Raw: raw, Value: pdfgraph.Integer(x)}
		}
		r, err := pdfgraph.ParseReal(string(raw))
		if err == nil {
			return Token{Type: TokenReal, Raw: raw, Value: r}
		}
	}

	return Token{Type: TokenWord, Raw: raw, Value: pdfgraph.Operator(raw)}
}

// isNumeric checks for an optional sign, followed by digits with at most
// one decimal point.
func isNumeric(raw []byte) bool {
	if len(raw) > 0 && (raw[0] == '+' || raw[0] == '-') {
		raw = raw[1:]
	}
	digits := 0
	dots := 0
	for _, c := range raw {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

func isSpace(c byte) bool {
	switch c {
	case 0, 9, 10, 12, 13, 32:
		return true
	}
	return false
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(c byte) bool {
	return !isSpace(c) && !isDelimiter(c)
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'A' && c <= 'F' || c >= 'a' && c <= 'f'
}

func unhex(c byte) byte {
	switch {
	case c >= 'a':
		return c - 'a' + 10
	case c >= 'A':
		return c - 'A' + 10
	default:
		return c - '0'
	}
}
