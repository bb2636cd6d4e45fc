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
	"strings"
	"testing"

	"seehuhn.de/go/pdfgraph"
)

// upperFonts renames all font names to upper case.
func upperFonts(tok Token) []Token {
	if tok.Type != TokenName {
		return []Token{tok}
	}
	name := tok.Value.(pdfgraph.Name)
	out, err := NewToken(pdfgraph.Name(strings.ToUpper(string(name))))
	if err != nil {
		panic(err)
	}
	return []Token{out}
}

func TestFilterBytes(t *testing.T) {
	in := "q /f1 12 Tf Q"
	out, err := FilterBytes([]byte(in), TokenFilterFunc(upperFonts))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "q /F1 12 Tf Q" {
		t.Errorf("got %q", out)
	}

	out, err = FilterBytes([]byte(in))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != in {
		t.Errorf("identity filter: got %q", out)
	}
}

func TestRemoveOperators(t *testing.T) {
	in := "q\n1 0 0 1 0 0 cm\nBI /W 1 ID\nx\nEI\n[1 2] 0 d\nQ"
	out, err := FilterBytes([]byte(in), RemoveOperators("cm", "BI", "d"))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "q\nQ" {
		t.Errorf("got %q", out)
	}
}

func TestChain(t *testing.T) {
	dropComments := TokenFilterFunc(func(tok Token) []Token {
		if tok.Type == TokenComment {
			return nil
		}
		return []Token{tok}
	})
	double := TokenFilterFunc(func(tok Token) []Token {
		if tok.IsOperator("S") {
			return []Token{tok, SpaceToken(" "), tok}
		}
		return []Token{tok}
	})
	out, err := FilterBytes([]byte("%c\nS"), dropComments, double)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "\nS S" {
		t.Errorf("got %q", out)
	}
}

type trailer struct{}

func (trailer) HandleToken(tok Token) []Token { return []Token{tok} }

func (trailer) HandleEOF() []Token {
	return []Token{SpaceToken("\n"), {Type: TokenWord, Value: pdfgraph.Operator("Q")}}
}

func TestEOFHandler(t *testing.T) {
	out, err := FilterBytes([]byte("q"), trailer{})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "q\nQ" {
		t.Errorf("got %q", out)
	}
}

func TestAddTokenFilter(t *testing.T) {
	doc := pdfgraph.NewDocument()
	s, err := pdfgraph.NewStream(doc, []byte("/f1 1 Tf"))
	if err != nil {
		t.Fatal(err)
	}

	err = AddTokenFilter(s, TokenFilterFunc(upperFonts))
	if err != nil {
		t.Fatal(err)
	}

	// The raw data is unchanged, the filter is applied lazily.
	raw, _ := s.RawData()
	if string(raw) != "/f1 1 Tf" {
		t.Errorf("raw data changed to %q", raw)
	}
	data, err := s.Data()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "/F1 1 Tf" {
		t.Errorf("got %q", data)
	}
}

func TestFilterStreamReadOnly(t *testing.T) {
	doc := pdfgraph.NewDocument()
	s, err := pdfgraph.NewStream(doc, []byte("/f1 1 Tf"))
	if err != nil {
		t.Fatal(err)
	}
	out, err := FilterStream(s, TokenFilterFunc(upperFonts))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "/F1 1 Tf" {
		t.Errorf("got %q", out)
	}
	data, _ := s.Data()
	if string(data) != "/f1 1 Tf" {
		t.Errorf("stream was modified: %q", data)
	}
}

func TestFailingFilter(t *testing.T) {
	doc := pdfgraph.NewDocument()
	s, err := pdfgraph.NewStream(doc, []byte("q Q"))
	if err != nil {
		t.Fatal(err)
	}
	err = AddTokenFilter(s, TokenFilterFunc(func(Token) []Token {
		panic("boom")
	}))
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.Data()
	if !errors.Is(err, pdfgraph.ErrNotDecodable) {
		t.Errorf("expected ErrNotDecodable, got %v", err)
	}
	var filterErr *pdfgraph.FilterError
	if !errors.As(err, &filterErr) {
		t.Errorf("expected a FilterError, got %v", err)
	}
	if len(doc.Warnings()) == 0 || !strings.Contains(doc.Warnings()[0], "boom") {
		t.Errorf("warnings: %q", doc.Warnings())
	}
}
