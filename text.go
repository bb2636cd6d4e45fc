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

package pdfgraph

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// pdfDocDecoding maps PDFDocEncoding bytes to runes.  Undefined codes map
// to utf8.RuneError.
var pdfDocDecoding = func() [256]rune {
	var tab [256]rune
	for i := range tab {
		tab[i] = rune(i)
	}
	copy(tab[0x18:0x20], []rune{
		'˘', 'ˇ', 'ˆ', '˙', '˝', '˛', '˚', '˜',
	})
	copy(tab[0x80:0xA1], []rune{
		'•', '†', '‡', '…', '—', '–', 'ƒ', '⁄',
		'‹', '›', '−', '‰', '„', '“', '”', '‘',
		'’', '‚', '™', 'ﬁ', 'ﬂ', 'Ł', 'Œ', 'Š',
		'Ÿ', 'Ž', 'ı', 'ł', 'œ', 'š', 'ž', utf8.RuneError,
		'€',
	})
	tab[0x7F] = utf8.RuneError
	tab[0xAD] = utf8.RuneError
	return tab
}()

var pdfDocEncoding = func() map[rune]byte {
	m := make(map[rune]byte, 256)
	for i, r := range pdfDocDecoding {
		if r != utf8.RuneError {
			m[r] = byte(i)
		}
	}
	return m
}()

// pdfDocEncode encodes s using PDFDocEncoding.  The second return value
// is false if s contains characters which cannot be represented.
func pdfDocEncode(s string) (String, bool) {
	buf := make([]byte, 0, len(s))
	for _, r := range s {
		c, ok := pdfDocEncoding[r]
		if !ok {
			return nil, false
		}
		buf = append(buf, c)
	}
	return buf, true
}

// EncodePDFDoc encodes s using PDFDocEncoding.  The second return value is
// false if s contains characters which cannot be represented in this
// encoding.
func EncodePDFDoc(s string) ([]byte, bool) {
	enc, ok := pdfDocEncode(s)
	return []byte(enc), ok
}

func pdfDocDecode(s String) string {
	rr := make([]rune, len(s))
	for i, c := range s {
		rr[i] = pdfDocDecoding[c]
	}
	return string(rr)
}

var (
	bomUTF16 = []byte{0xFE, 0xFF}
	bomUTF8  = []byte{0xEF, 0xBB, 0xBF}
)

func isUTF16(s String) bool {
	return len(s)%2 == 0 && bytes.HasPrefix(s, bomUTF16)
}

func isUTF8(s String) bool {
	return bytes.HasPrefix(s, bomUTF8)
}

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)

// utf16Encode encodes s as UTF-16BE with a byte order mark.
func utf16Encode(s string) String {
	buf, err := utf16BE.NewEncoder().Bytes([]byte(s))
	if err != nil {
		// invalid UTF-8 is replaced, so this cannot happen
		panic(err)
	}
	return buf
}

func utf16Decode(s String) string {
	buf, err := utf16BE.NewDecoder().Bytes(s)
	if err != nil {
		return string(bytes.ToValidUTF8(s[len(bomUTF16):], []byte("�")))
	}
	return string(buf)
}
