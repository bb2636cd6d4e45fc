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
	"slices"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	reprMaxObjects = 40
	reprPeekBytes  = 20
)

// Repr returns a printable representation of obj, modelled on the Python
// expression which would construct the object.  For example, the
// dictionary << /Type /Font /Size 12 >> is shown as
//
//	pdfgraph.Dictionary(Type="/Font")({
//	    "/Size": 12,
//	    "/Type": "/Font"
//	})
//
// If the output cannot be evaluated back into an equal object, for example
// because part of the structure was elided or an indirect object occurs
// more than once, the whole representation is enclosed in angle brackets.
func Repr(obj Object) string {
	r := &reprState{
		seen: make(map[Reference]bool),
		pure: true,
	}
	s := r.repr(obj, 0, true)
	if !r.pure {
		return "<" + s + ">"
	}
	return s
}

type reprState struct {
	count int
	seen  map[Reference]bool
	pure  bool
}

func (r *reprState) repr(obj Object, depth int, top bool) string {
	r.count++
	if r.count > reprMaxObjects || depth > MaxDepth {
		r.pure = false
		return "..."
	}

	if c, ok := obj.(container); ok {
		if isNilContainer(c) {
			return "None"
		}
		h := c.base()
		if h.check() != nil {
			r.pure = false
			return "<object of closed document>"
		}
		if h.ref != 0 {
			if r.seen[h.ref] {
				r.pure = false
				return "<circular reference to " + h.ref.String() + ">"
			}
			r.seen[h.ref] = true
		}
	}

	switch x := obj.(type) {
	case nil, Null:
		return "None"
	case Bool:
		if x {
			return "True"
		}
		return "False"
	case Integer:
		return strconv.FormatInt(int64(x), 10)
	case Real:
		return "Decimal('" + x.String() + "')"
	case Name:
		if top {
			return "pdfgraph.Name(" + strconv.Quote(string(x)) + ")"
		}
		return strconv.Quote(string(x))
	case Operator:
		return "pdfgraph.Operator(" + strconv.Quote(string(x)) + ")"
	case String:
		s := reprString(x)
		if top {
			return "pdfgraph.String(" + s + ")"
		}
		return s
	case Reference:
		r.pure = false
		return "<reference to " + x.String() + ">"
	case *Array:
		body := r.reprArray(x, depth)
		if top {
			return "pdfgraph.Array(" + body + ")"
		}
		return body
	case *Dict:
		return r.reprDictWrapper(x, depth)
	case *Stream:
		r.pure = false
		var b strings.Builder
		b.WriteString("pdfgraph.Stream(owner=<document>, data=")
		data := x.raw
		if len(data) > reprPeekBytes {
			b.WriteString(reprBytes(data[:reprPeekBytes]))
			b.WriteString("...")
		} else {
			b.WriteString(reprBytes(data))
		}
		b.WriteString(", ")
		b.WriteString(r.reprDict(x.dict, depth))
		b.WriteString(")")
		return b.String()
	case *InlineImage:
		r.pure = false
		return x.String()
	}
	r.pure = false
	return "<unknown object>"
}

func (r *reprState) reprArray(a *Array, depth int) string {
	if len(a.items) == 0 {
		return "[]"
	}
	indent := strings.Repeat("    ", depth+1)
	parts := make([]string, 0, len(a.items))
	for _, item := range a.items {
		parts = append(parts, indent+r.reprChild(&a.handle, "", item, depth))
	}
	return "[\n" + strings.Join(parts, ",\n") + "\n" + strings.Repeat("    ", depth) + "]"
}

func (r *reprState) reprDictWrapper(d *Dict, depth int) string {
	head := "pdfgraph.Dictionary"
	if tp := d.TypeName(); tp != "" {
		head += "(Type=" + strconv.Quote(string(tp)) + ")"
	}
	return head + "(" + r.reprDict(d, depth) + ")"
}

func (r *reprState) reprDict(d *Dict, depth int) string {
	if len(d.keys) == 0 {
		return "{}"
	}
	indent := strings.Repeat("    ", depth+1)
	parts := make([]string, 0, len(d.keys))
	for _, key := range sortedKeys(d) {
		val := r.reprChild(&d.handle, key, d.m[key], depth)
		parts = append(parts, indent+strconv.Quote(string(key))+": "+val)
	}
	return "{\n" + strings.Join(parts, ",\n") + "\n" + strings.Repeat("    ", depth) + "}"
}

func (r *reprState) reprChild(h *handle, key Name, val Object, depth int) string {
	obj, err := h.resolve(val)
	if err != nil {
		r.pure = false
		return "<unresolvable " + val.(Reference).String() + ">"
	}
	if key == "/Parent" {
		if parent, ok := obj.(*Dict); ok && parent.TypeName() == "/Pages" {
			r.pure = false
			return "<reference to /Pages>"
		}
	}
	return r.repr(obj, depth+1, false)
}

func sortedKeys(d *Dict) []Name {
	keys := d.Keys()
	slices.Sort(keys)
	return keys
}

// reprString shows text strings as quoted text and other strings as
// Python-style byte literals.
func reprString(s String) string {
	text := s.Text()
	if isPrintable(text) {
		return strconv.Quote(text)
	}
	return reprBytes(s)
}

func isPrintable(s string) bool {
	for _, r := range s {
		if r == utf8.RuneError || !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func reprBytes(data []byte) string {
	var b strings.Builder
	b.WriteString(`b"`)
	for _, c := range data {
		switch {
		case c == '"' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c >= 32 && c < 127:
			b.WriteByte(c)
		default:
			b.WriteString(`\x`)
			b.WriteString(strconv.FormatUint(uint64(c)>>4, 16))
			b.WriteString(strconv.FormatUint(uint64(c)&15, 16))
		}
	}
	b.WriteString(`"`)
	return b.String()
}
