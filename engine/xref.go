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
	"io"
	"math"
	"math/bits"
	"strconv"

	"seehuhn.de/go/pdfgraph"
)

type xrefEntry struct {
	pos    int64  // file offset, or index within the object stream
	gen    uint16 // generation number
	stream uint32 // number of the containing object stream, or 0
	free   bool
}

// xrefTable maps object numbers to their location in the file.
type xrefTable map[uint32]*xrefEntry

// set records an entry, unless a newer section already described the
// object.
func (xref xrefTable) set(num uint32, e *xrefEntry) {
	if _, seen := xref[num]; !seen {
		xref[num] = e
	}
}

// findXRef locates the start of the last cross-reference section.
func (r *reader) findXRef() (int64, error) {
	pos := lastOccurence(r.data, "startxref")
	if pos < 0 {
		return 0, &pdfgraph.MalformedFileError{Err: errors.New("startxref not found")}
	}
	p := newObjectParser(r.doc, r.data[pos+9:], int64(pos+9))
	obj, err := p.ReadObject()
	if err != nil {
		return 0, err
	}
	xrefPos, ok := obj.(pdfgraph.Integer)
	if !ok || xrefPos <= 0 || int64(xrefPos) >= int64(len(r.data)) {
		return 0, &pdfgraph.MalformedFileError{
			Pos: int64(pos),
			Err: errors.New("invalid xref position"),
		}
	}
	return int64(xrefPos), nil
}

func lastOccurence(data []byte, pat string) int {
	const tail = 4096
	start := max(len(data)-tail, 0)
	if idx := bytes.LastIndex(data[start:], []byte(pat)); idx >= 0 {
		return start + idx
	}
	return bytes.LastIndex(data, []byte(pat))
}

// readXRef reads all cross-reference sections, following the /Prev
// chain.  The returned trailer is the one of the newest section.
func (r *reader) readXRef() (xrefTable, *pdfgraph.Dict, error) {
	start, err := r.findXRef()
	if err != nil {
		return nil, nil, err
	}

	xref := make(xrefTable)
	var trailer *pdfgraph.Dict
	seen := make(map[int64]bool)
	for {
		// avoid xref loops
		if seen[start] {
			r.doc.Warn("loop in xref chain", "offset", start)
			break
		}
		seen[start] = true

		var dict *pdfgraph.Dict
		if bytes.HasPrefix(r.data[start:], []byte("xref")) {
			dict, err = r.readXRefTable(xref, start)
			if err != nil {
				return nil, nil, err
			}
			if zStart, ok := dict.Value("/XRefStm").(pdfgraph.Integer); ok {
				if _, err := r.readXRefStream(xref, int64(zStart)); err != nil {
					return nil, nil, err
				}
			}
		} else {
			dict, err = r.readXRefStream(xref, start)
			if err != nil {
				return nil, nil, err
			}
		}

		if trailer == nil {
			trailer = dict
		}

		prev, ok := dict.Value("/Prev").(pdfgraph.Integer)
		if !dict.Has("/Prev") {
			break
		}
		if !ok || prev <= 0 || int64(prev) >= int64(len(r.data)) {
			return nil, nil, &pdfgraph.MalformedFileError{
				Pos: start,
				Err: fmt.Errorf("invalid /Prev value %s", pdfgraph.Repr(dict.Value("/Prev"))),
			}
		}
		start = int64(prev)
	}

	return xref, trailer, nil
}

func (r *reader) readXRefTable(xref xrefTable, start int64) (*pdfgraph.Dict, error) {
	s := &lineScanner{data: r.data, pos: int(start) + len("xref")}
	for {
		s.skipSpace()
		if s.hasPrefix("trailer") {
			s.pos += len("trailer")
			break
		}
		first, err := s.readInt()
		if err != nil {
			return nil, err
		}
		s.skipSpace()
		count, err := s.readInt()
		if err != nil {
			return nil, err
		}
		for i := range count {
			e, err := s.readEntry()
			if err != nil {
				return nil, err
			}
			num := first + i
			if num == 0 || int64(num) > math.MaxUint32 {
				continue
			}
			xref.set(uint32(num), e)
		}
	}

	p := newObjectParser(r.doc, r.data[s.pos:], int64(s.pos))
	obj, err := p.ReadObject()
	if err != nil {
		return nil, pdfgraph.Wrap(err, "trailer")
	}
	dict, ok := obj.(*pdfgraph.Dict)
	if !ok {
		return nil, &pdfgraph.MalformedFileError{Pos: int64(s.pos), Err: errors.New("invalid trailer")}
	}
	return dict, nil
}

// lineScanner reads the fixed-format entries of a classic xref table.
type lineScanner struct {
	data []byte
	pos  int
}

func (s *lineScanner) errorf(msg string) error {
	return &pdfgraph.MalformedFileError{Pos: int64(s.pos), Err: errors.New(msg)}
}

func (s *lineScanner) skipSpace() {
	for s.pos < len(s.data) {
		switch s.data[s.pos] {
		case ' ', '\t', '\r', '\n', '\f', 0:
			s.pos++
		default:
			return
		}
	}
}

func (s *lineScanner) hasPrefix(pat string) bool {
	return bytes.HasPrefix(s.data[s.pos:], []byte(pat))
}

func (s *lineScanner) readInt() (int, error) {
	start := s.pos
	for s.pos < len(s.data) && s.data[s.pos] >= '0' && s.data[s.pos] <= '9' {
		s.pos++
	}
	if start == s.pos {
		return 0, s.errorf("malformed xref table")
	}
	return strconv.Atoi(string(s.data[start:s.pos]))
}

// readEntry reads one entry "nnnnnnnnnn ggggg n".
func (s *lineScanner) readEntry() (*xrefEntry, error) {
	s.skipSpace()
	a, err := s.readInt()
	if err != nil {
		return nil, err
	}
	s.skipSpace()
	b, err := s.readInt()
	if err != nil {
		return nil, err
	}
	s.skipSpace()
	if s.pos >= len(s.data) {
		return nil, s.errorf("truncated xref table")
	}
	c := s.data[s.pos]
	s.pos++
	if b > 65535 {
		// fix a common error in some PDF files
		b = 65535
		c = 'f'
	}
	switch c {
	case 'f':
		return &xrefEntry{gen: uint16(b), free: true}, nil
	case 'n':
		return &xrefEntry{pos: int64(a), gen: uint16(b)}, nil
	default:
		return nil, s.errorf("malformed xref table")
	}
}

func (r *reader) readXRefStream(xref xrefTable, start int64) (*pdfgraph.Dict, error) {
	if start < 0 || start >= int64(len(r.data)) {
		return nil, &pdfgraph.MalformedFileError{Pos: start, Err: errors.New("xref stream out of range")}
	}
	p := newObjectParser(r.doc, r.data[start:], start)
	_, obj, err := p.ReadIndirect()
	if err != nil {
		return nil, pdfgraph.Wrap(err, "xref stream")
	}
	stm, ok := obj.(*pdfgraph.Stream)
	if !ok || stm.Dict().TypeName() != "/XRef" {
		return nil, &pdfgraph.MalformedFileError{Pos: start, Err: errors.New("invalid xref stream")}
	}
	dict := stm.Dict()

	w, ss, err := checkXRefStreamDict(dict)
	if err != nil {
		return nil, &pdfgraph.MalformedFileError{Pos: start, Err: err}
	}
	data, err := stm.Data()
	if err != nil {
		return nil, err
	}
	if err := decodeXRefStream(xref, bytes.NewReader(data), w, ss); err != nil {
		return nil, &pdfgraph.MalformedFileError{Pos: start, Err: err}
	}

	trailer := r.doc.NewDict()
	for _, key := range dict.Keys() {
		val, _ := dict.GetRaw(key)
		if key == "/Length" || key == "/Filter" || key == "/DecodeParms" {
			continue
		}
		if err := trailer.Set(key, val); err != nil {
			return nil, err
		}
	}
	return trailer, nil
}

type xrefSubSection struct {
	start, size int
}

func checkXRefStreamDict(dict *pdfgraph.Dict) ([]int, []xrefSubSection, error) {
	size, ok := dict.Value("/Size").(pdfgraph.Integer)
	if !ok || size < 0 {
		return nil, nil, errors.New("invalid /Size in xref stream")
	}
	W, ok := dict.Value("/W").(*pdfgraph.Array)
	if !ok || W.Len() < 3 {
		return nil, nil, errors.New("invalid /W in xref stream")
	}
	var w []int
	for i, Wi := range W.All() {
		wi, ok := Wi.(pdfgraph.Integer)
		if !ok || i < 3 && (wi < 0 || wi > 8) {
			return nil, nil, errors.New("invalid /W in xref stream")
		}
		w = append(w, int(wi))
	}

	var ss []xrefSubSection
	switch index := dict.Value("/Index").(type) {
	case pdfgraph.Null:
		ss = append(ss, xrefSubSection{0, int(size)})
	case *pdfgraph.Array:
		if index.Len()%2 != 0 {
			return nil, nil, errors.New("invalid /Index in xref stream")
		}
		for i := 0; i < index.Len(); i += 2 {
			a, _ := index.Get(i)
			b, _ := index.Get(i + 1)
			start, ok1 := a.(pdfgraph.Integer)
			size, ok2 := b.(pdfgraph.Integer)
			if !ok1 || !ok2 || start < 0 || size < 0 {
				return nil, nil, errors.New("invalid /Index in xref stream")
			}
			ss = append(ss, xrefSubSection{int(start), int(size)})
		}
	default:
		return nil, nil, errors.New("invalid /Index in xref stream")
	}
	return w, ss, nil
}

func decodeXRefStream(xref xrefTable, r io.Reader, w []int, ss []xrefSubSection) error {
	wTotal := 0
	for _, wi := range w {
		wTotal += wi
	}
	buf := make([]byte, wTotal)

	w0, w1, w2 := w[0], w[1], w[2]
	for _, sec := range ss {
		for i := sec.start; i < sec.start+sec.size; i++ {
			_, err := io.ReadFull(r, buf)
			if err != nil {
				return err
			}
			if i == 0 || int64(i) > math.MaxUint32 {
				continue
			}

			tp := decodeInt(buf[:w0])
			if w0 == 0 {
				tp = 1
			}
			a := decodeInt(buf[w0 : w0+w1])
			b := decodeInt(buf[w0+w1 : w0+w1+w2])
			switch tp {
			case 0:
				// free object, a is the next free object
				xref.set(uint32(i), &xrefEntry{gen: uint16(b), free: true})
			case 1:
				// a is the byte offset, b the generation number
				xref.set(uint32(i), &xrefEntry{pos: a, gen: uint16(b)})
			case 2:
				// a is the object stream number, b the index within the stream
				xref.set(uint32(i), &xrefEntry{pos: b, stream: uint32(a)})
			}
		}
	}
	return nil
}

func decodeInt(buf []byte) (res int64) {
	for _, x := range buf {
		res = res<<8 | int64(x)
	}
	return res
}

// writeXRefTable writes a classic cross-reference table, followed by the
// trailer dictionary.
func (w *serializer) writeXRefTable(trailer *pdfgraph.Dict) error {
	_, err := fmt.Fprintf(w.out, "xref\n0 %d\n", w.size)
	if err != nil {
		return err
	}
	for i := range w.size {
		entry := w.xref[i]
		if entry != nil && !entry.free {
			_, err = fmt.Fprintf(w.out, "%010d %05d n\r\n", entry.pos, entry.gen)
		} else {
			_, err = w.out.Write([]byte("0000000000 65535 f\r\n"))
		}
		if err != nil {
			return err
		}
	}

	_, err = w.out.Write([]byte("trailer\n"))
	if err != nil {
		return err
	}
	return trailer.PDF(w.out)
}

// xrefStreamData encodes the cross-reference entries for an xref stream,
// using field widths just large enough for the values.
func (w *serializer) xrefStreamData() ([]byte, [3]int) {
	maxField2 := uint64(0)
	maxField3 := uint64(0)
	for i := range w.size {
		entry := w.xref[i]
		if entry == nil || entry.free {
			continue
		}
		var f2, f3 uint64
		if entry.stream != 0 {
			f2, f3 = uint64(entry.stream), uint64(entry.pos)
		} else {
			f2, f3 = uint64(entry.pos), uint64(entry.gen)
		}
		maxField2 = max(maxField2, f2)
		maxField3 = max(maxField3, f3)
	}
	w2 := max((bits.Len64(maxField2)+7)/8, 1)
	w3 := (bits.Len64(maxField3) + 7) / 8

	data := &bytes.Buffer{}
	for i := range w.size {
		entry := w.xref[i]
		switch {
		case entry == nil || entry.free:
			data.WriteByte(0)
			encodeInt(data, 0, w2)
			encodeInt(data, 0, w3)
		case entry.stream == 0:
			data.WriteByte(1)
			encodeInt(data, uint64(entry.pos), w2)
			encodeInt(data, uint64(entry.gen), w3)
		default:
			data.WriteByte(2)
			encodeInt(data, uint64(entry.stream), w2)
			encodeInt(data, uint64(entry.pos), w3)
		}
	}
	return data.Bytes(), [3]int{1, w2, w3}
}

func encodeInt(data *bytes.Buffer, x uint64, w int) {
	for i := w - 1; i >= 0; i-- {
		data.WriteByte(byte(x >> (i * 8)))
	}
}
