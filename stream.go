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
	"errors"
	"fmt"
	"io"
)

// StreamRewriter transforms the decoded data of a stream.  Rewriters
// attached to a stream are applied lazily, in order, whenever the data of
// the stream is requested.
type StreamRewriter interface {
	RewriteStream(data []byte) ([]byte, error)
}

// Stream represents a stream object in a PDF file.  Streams are always
// indirect objects, owned by a document.
type Stream struct {
	handle
	dict      *Dict
	raw       []byte
	rewriters []StreamRewriter
}

// NewStream creates a new stream object in doc, holding a copy of the
// given (unencoded) data.
func NewStream(doc *Document, data []byte) (*Stream, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: streams must belong to a document", ErrOwnership)
	}
	if doc.closed {
		return nil, ErrDocumentClosed
	}
	s := &Stream{
		dict: &Dict{m: make(map[Name]Object), isStream: true},
		raw:  bytes.Clone(data),
	}
	s.dict.doc = doc
	s.setLength()
	doc.register(s)
	return s, nil
}

// NewEncodedStream creates a stream holding data which is already encoded
// as described by the /Filter and /DecodeParms entries of dict.  The new
// stream is owned by doc, but is not yet an indirect object: readers use
// [Document.Replace] to store it under the reference found in the file.
func NewEncodedStream(doc *Document, dict *Dict, raw []byte) (*Stream, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: streams must belong to a document", ErrOwnership)
	}
	if doc.closed {
		return nil, ErrDocumentClosed
	}
	s := &Stream{
		dict: &Dict{m: make(map[Name]Object), isStream: true},
		raw:  bytes.Clone(raw),
	}
	s.doc = doc
	s.dict.doc = doc
	if dict != nil {
		if err := s.SetDict(dict); err != nil {
			return nil, err
		}
	} else {
		s.setLength()
	}
	return s, nil
}

var errStreamLength = fmt.Errorf("%w: /Length of a stream is computed automatically",
	ErrStructural)

func (s *Stream) setLength() {
	if _, ok := s.dict.m["/Length"]; !ok {
		s.dict.keys = append(s.dict.keys, "/Length")
	}
	s.dict.m["/Length"] = Integer(len(s.raw))
}

func (s *Stream) base() *handle      { return &s.handle }
func (s *Stream) children() []Object { return []Object{s.dict} }

// Kind implements the [Object] interface.
func (s *Stream) Kind() Kind { return KindStream }

// Dict returns the stream dictionary.  The /Length entry of this
// dictionary is maintained automatically and cannot be modified.
func (s *Stream) Dict() *Dict {
	return s.dict
}

// SetDict replaces the stream dictionary by a copy of the entries of d.
// Any /Length entry in d is ignored.
func (s *Stream) SetDict(d *Dict) error {
	if err := s.check(); err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("%w: nil stream dictionary", ErrStructural)
	}
	nd := &Dict{m: make(map[Name]Object), isStream: true}
	nd.doc = s.doc
	for _, key := range d.keys {
		if key == "/Length" {
			continue
		}
		val, err := store(nd, d.m[key])
		if err != nil {
			return err
		}
		nd.keys = append(nd.keys, key)
		nd.m[key] = val
	}
	s.dict = nd
	s.setLength()
	return nil
}

// Get returns the value of a key in the stream dictionary.
func (s *Stream) Get(key Name) (Object, error) {
	return s.dict.Get(key)
}

// Set sets a key in the stream dictionary.  The key /Length cannot be set.
func (s *Stream) Set(key Name, v Object) error {
	return s.dict.Set(key, v)
}

// Delete removes a key from the stream dictionary.
func (s *Stream) Delete(key Name) error {
	return s.dict.Delete(key)
}

// Has reports whether the stream dictionary contains key.
func (s *Stream) Has(key Name) bool {
	return s.dict.Has(key)
}

// Attr implements attribute-style access to the stream dictionary.
func (s *Stream) Attr(name string) (Object, error) {
	return s.dict.Attr(name)
}

// RawData returns a copy of the encoded stream data.
func (s *Stream) RawData() ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return bytes.Clone(s.raw), nil
}

// SetRawData replaces the stream data by data which is already encoded
// using the given filters.  Either of filter and parms may be nil.
func (s *Stream) SetRawData(data []byte, filter, parms Object) error {
	if err := s.check(); err != nil {
		return err
	}
	if _, err := parseFilters(filter, parms); err != nil {
		return err
	}
	keys := []Name{"/Filter", "/DecodeParms"}
	vals := []Object{filter, parms}
	for i, val := range vals {
		if isNull(val) {
			vals[i] = nil
			continue
		}
		val, err := store(s.dict, val)
		if err != nil {
			return err
		}
		vals[i] = val
	}

	for i, key := range keys {
		if vals[i] == nil {
			s.dict.remove(key)
		} else {
			s.dict.put(key, vals[i])
		}
	}
	s.raw = bytes.Clone(data)
	s.setLength()
	return nil
}

// SetData replaces the stream data by the given, unencoded data.
// Any existing /Filter and /DecodeParms entries are removed.
func (s *Stream) SetData(data []byte) error {
	return s.SetRawData(data, nil, nil)
}

// Filters returns the filter pipeline of the stream.
func (s *Stream) Filters() ([]FilterInfo, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return parseFilters(s.dict.Value("/Filter"), s.dict.Value("/DecodeParms"))
}

// Decoded returns the stream data with all filters removed.  Attached
// rewriters are not applied.
func (s *Stream) Decoded() ([]byte, error) {
	ff, err := s.Filters()
	if err != nil {
		return nil, err
	}
	data := s.raw
	for _, fi := range ff {
		data, err = applyDecode(fi, s.ref, data)
		if err != nil {
			return nil, err
		}
	}
	return bytes.Clone(data), nil
}

// Data returns the decoded stream data, after all attached rewriters have
// been applied.
//
// If a filter or rewriter fails, the error is recorded as a warning of the
// owning document and the returned error wraps both [ErrNotDecodable] and
// the underlying [FilterError].
func (s *Stream) Data() ([]byte, error) {
	data, err := s.Decoded()
	if errors.Is(err, ErrDocumentClosed) {
		return nil, err
	}
	if err == nil {
		for i, r := range s.rewriters {
			data, err = applyRewriter(r, data)
			if err != nil {
				err = &FilterError{
					Filter: fmt.Sprintf("rewriter %d (%T)", i, r),
					Ref:    s.ref,
					Err:    err,
				}
				break
			}
		}
	}
	if err != nil {
		s.doc.warn(err.Error(), "object", s.ref)
		return nil, fmt.Errorf("%w: %w", ErrNotDecodable, err)
	}
	return data, nil
}

func applyRewriter(r StreamRewriter, data []byte) (out []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			out = nil
			err = &PanicError{Value: p}
		}
	}()
	return r.RewriteStream(data)
}

// AddRewriter attaches a rewriter to the stream.  Rewriters cannot be
// removed again.
func (s *Stream) AddRewriter(r StreamRewriter) error {
	if err := s.check(); err != nil {
		return err
	}
	if r == nil {
		return fmt.Errorf("%w: nil rewriter", ErrStructural)
	}
	s.rewriters = append(s.rewriters, r)
	return nil
}

// HasRewriters reports whether any rewriters are attached to the stream.
func (s *Stream) HasRewriters() bool {
	return len(s.rewriters) > 0
}

func (s *Stream) String() string {
	return fmt.Sprintf("<Stream %s, %d bytes>", s.ref, len(s.raw))
}

// PDF implements the [Object] interface.  The raw data is written
// unchanged; attached rewriters are not applied.
func (s *Stream) PDF(w io.Writer) error {
	if err := s.check(); err != nil {
		return err
	}
	s.setLength()
	err := s.dict.PDF(w)
	if err != nil {
		return err
	}
	_, err = w.Write([]byte("\nstream\n"))
	if err != nil {
		return err
	}
	_, err = w.Write(s.raw)
	if err != nil {
		return err
	}
	_, err = w.Write([]byte("\nendstream"))
	return err
}

// parseFilters interprets the values of /Filter and /DecodeParms.
func parseFilters(filter, parms Object) ([]FilterInfo, error) {
	var names []Name
	switch f := filter.(type) {
	case nil, Null:
		return nil, nil
	case Name:
		names = []Name{f}
	case *Array:
		for i := range f.Len() {
			obj, err := f.Get(i)
			if err != nil {
				return nil, err
			}
			name, ok := obj.(Name)
			if !ok {
				return nil, fmt.Errorf("%w: filter name must be a Name, not %s",
					ErrStructural, KindOf(obj))
			}
			names = append(names, name)
		}
	default:
		return nil, fmt.Errorf("%w: invalid /Filter of kind %s", ErrStructural, KindOf(filter))
	}

	res := make([]FilterInfo, len(names))
	for i, name := range names {
		res[i].Name = name
	}
	switch p := parms.(type) {
	case nil, Null:
	case *Dict:
		res[0].Parms = p
	case *Array:
		for i := range min(p.Len(), len(res)) {
			obj, err := p.Get(i)
			if err != nil {
				return nil, err
			}
			if d, ok := obj.(*Dict); ok {
				res[i].Parms = d
			}
		}
	default:
		return nil, fmt.Errorf("%w: invalid /DecodeParms of kind %s", ErrStructural, KindOf(parms))
	}
	return res, nil
}
