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
	"fmt"
	"iter"
	"maps"
	"slices"

	"seehuhn.de/go/pdfgraph/logger"
)

// Document is the owner of a graph of PDF objects.  Every indirect object
// belongs to exactly one document.  Objects of one document can only be
// used in another document after copying them with [Document.CopyForeign].
//
// A Document is not safe for concurrent use.
type Document struct {
	// Version is the PDF version of the document.
	Version Version

	objects  map[Reference]Object
	next     uint32
	trailer  *Dict
	closed   bool
	warnings []string

	// foreign maps objects of other documents to their copies in this
	// document.
	foreign map[*Document]map[Reference]Reference
}

// NewDocument creates a new document with an empty page tree.
func NewDocument() *Document {
	doc := &Document{
		Version: V1_7,
		objects: make(map[Reference]Object),
		next:    1,
		foreign: make(map[*Document]map[Reference]Reference),
	}

	kids := &Array{}
	pages := NewDict()
	pages.keys = []Name{"/Type", "/Kids", "/Count"}
	pages.m["/Type"] = Name("/Pages")
	pages.m["/Kids"] = kids
	pages.m["/Count"] = Integer(0)
	catalog := NewDict()
	catalog.keys = []Name{"/Type", "/Pages"}
	catalog.m["/Type"] = Name("/Catalog")

	kids.doc = doc
	pages.doc = doc
	doc.register(pages)
	catalog.m["/Pages"] = pages.ref
	catalog.doc = doc
	doc.register(catalog)

	doc.trailer = doc.NewDict()
	doc.trailer.keys = []Name{"/Root"}
	doc.trailer.m["/Root"] = catalog.ref

	return doc
}

// NewEmptyDocument creates a document without any objects.  This is
// used by readers, which fill in the objects of an existing file using
// [Document.AllocAt] and [Document.Replace].
func NewEmptyDocument() *Document {
	doc := &Document{
		Version: V1_7,
		objects: make(map[Reference]Object),
		next:    1,
		foreign: make(map[*Document]map[Reference]Reference),
	}
	doc.trailer = doc.NewDict()
	return doc
}

// NewDict returns a new, empty, direct dictionary owned by d.
func (d *Document) NewDict() *Dict {
	dict := NewDict()
	dict.doc = d
	return dict
}

// NewArray returns a new, empty, direct array owned by d.
func (d *Document) NewArray() *Array {
	return &Array{handle: handle{doc: d}}
}

// AllocAt reserves the slot for the given reference.  It is an error if
// the slot is already in use.
func (d *Document) AllocAt(ref Reference) error {
	if d.closed {
		return ErrDocumentClosed
	}
	if ref.Number() == 0 {
		return fmt.Errorf("%w: object number 0 is reserved", ErrBounds)
	}
	if _, exists := d.objects[ref]; exists {
		return fmt.Errorf("%w: %s already allocated", ErrStructural, ref)
	}
	d.objects[ref] = Null{}
	d.next = max(d.next, ref.Number()+1)
	return nil
}

// SetTrailer replaces the trailer dictionary.
func (d *Document) SetTrailer(trailer *Dict) error {
	if d.closed {
		return ErrDocumentClosed
	}
	if trailer == nil || trailer.IsIndirect() {
		return fmt.Errorf("%w: the trailer must be a direct dictionary", ErrStructural)
	}
	if err := adopt(trailer, d); err != nil {
		return err
	}
	d.trailer = trailer
	return nil
}

func (d *Document) register(c container) {
	ref := d.Alloc()
	h := c.base()
	h.doc = d
	h.ref = ref
	d.objects[ref] = c
}

// Alloc reserves a new object number.  Until the slot is filled using
// [Document.Replace], the object has the value null.
func (d *Document) Alloc() Reference {
	ref := NewReference(d.next, 0)
	d.next++
	d.objects[ref] = Null{}
	return ref
}

// Get returns the object stored under the given reference.  References to
// objects which do not exist resolve to null.
func (d *Document) Get(ref Reference) (Object, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: no document for %s", ErrOwnership, ref)
	}
	if d.closed {
		return nil, ErrDocumentClosed
	}
	obj, ok := d.objects[ref]
	if !ok {
		return Null{}, nil
	}
	return obj, nil
}

// Resolve resolves references.  Other objects are returned unchanged.
func (d *Document) Resolve(obj Object) (Object, error) {
	ref, ok := obj.(Reference)
	if !ok {
		if obj == nil {
			return Null{}, nil
		}
		return obj, nil
	}
	return d.Get(ref)
}

// MakeIndirect stores obj as an indirect object and returns its reference.
// If obj is already an indirect object of d, its existing reference is
// returned.  Direct containers become indirect in place.
func (d *Document) MakeIndirect(obj Object) (Reference, error) {
	if d.closed {
		return 0, ErrDocumentClosed
	}
	switch x := obj.(type) {
	case nil:
		return d.MakeIndirect(Null{})
	case Reference:
		if _, ok := d.objects[x]; !ok {
			return 0, fmt.Errorf("%w: %s does not belong to this document", ErrOwnership, x)
		}
		return x, nil
	case *InlineImage:
		return 0, fmt.Errorf("%w: inline images cannot be indirect objects", ErrStructural)
	case container:
		if isNilContainer(x) {
			return 0, fmt.Errorf("%w: uninitialized %s", ErrStructural, x.Kind())
		}
		h := x.base()
		if err := h.check(); err != nil {
			return 0, err
		}
		if h.doc != nil && h.doc != d {
			return 0, fmt.Errorf("%w: use CopyForeign to copy objects between documents",
				ErrOwnership)
		}
		if h.ref != 0 {
			return h.ref, nil
		}
		if err := adopt(x, d); err != nil {
			return 0, err
		}
		d.register(x)
		return h.ref, nil
	default:
		ref := d.Alloc()
		d.objects[ref] = obj
		return ref, nil
	}
}

// Replace stores obj under the given reference, replacing the previous
// value.  Replacing an object with null frees the slot.
func (d *Document) Replace(ref Reference, obj Object) error {
	if d.closed {
		return ErrDocumentClosed
	}
	old, ok := d.objects[ref]
	if !ok {
		return fmt.Errorf("%w: %s is not allocated", ErrBounds, ref)
	}

	switch x := obj.(type) {
	case nil, Null:
		obj = Null{}
	case Reference:
		return fmt.Errorf("%w: an indirect object cannot be a reference", ErrStructural)
	case *InlineImage:
		return fmt.Errorf("%w: inline images cannot be indirect objects", ErrStructural)
	case container:
		if isNilContainer(x) {
			return fmt.Errorf("%w: uninitialized %s", ErrStructural, x.Kind())
		}
		h := x.base()
		if h.ref == ref && h.doc == d {
			return nil
		}
		if h.ref != 0 {
			return fmt.Errorf("%w: object is already stored as %s", ErrStructural, h.ref)
		}
		if h.doc != nil && h.doc != d {
			return fmt.Errorf("%w: use CopyForeign to copy objects between documents",
				ErrOwnership)
		}
		if err := adopt(x, d); err != nil {
			return err
		}
		h.ref = ref
	}

	if c, ok := old.(container); ok {
		c.base().ref = 0
	}
	d.objects[ref] = obj
	return nil
}

// Objects iterates over all indirect objects of the document, in order of
// increasing object number.  Free slots are skipped.
func (d *Document) Objects() iter.Seq2[Reference, Object] {
	return func(yield func(Reference, Object) bool) {
		if d.closed {
			return
		}
		for _, ref := range slices.Sorted(maps.Keys(d.objects)) {
			obj, ok := d.objects[ref]
			if !ok || isNull(obj) {
				continue
			}
			if !yield(ref, obj) {
				return
			}
		}
	}
}

// NumObjects returns one more than the highest object number in use.
func (d *Document) NumObjects() uint32 {
	return d.next
}

// Trailer returns the trailer dictionary of the document.
func (d *Document) Trailer() *Dict {
	return d.trailer
}

// Root returns the document catalog.
func (d *Document) Root() (*Dict, error) {
	if d.closed {
		return nil, ErrDocumentClosed
	}
	root, err := GetDict(d, d.trailer.Value("/Root"))
	if err != nil {
		return nil, err
	} else if root == nil {
		return nil, &MalformedFileError{Err: errNoRoot}
	}
	return root, nil
}

var errNoRoot = fmt.Errorf("%w: missing /Root in trailer", ErrMissingKey)

// Close releases the objects of the document.  Afterwards, all objects
// owned by the document report [ErrDocumentClosed] when accessed.
func (d *Document) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.objects = nil
	d.foreign = nil
	return nil
}

// IsClosed reports whether [Document.Close] has been called.
func (d *Document) IsClosed() bool {
	return d.closed
}

// Warn records a non-fatal problem.  The message is also passed to the
// package logger.
func (d *Document) Warn(msg string, keyvals ...any) {
	if d == nil {
		logger.Warn(msg, keyvals...)
		return
	}
	d.warn(msg, keyvals...)
}

func (d *Document) warn(msg string, keyvals ...any) {
	if d != nil {
		d.warnings = append(d.warnings, msg)
	}
	logger.Warn(msg, keyvals...)
}

// Warnings returns the warnings recorded so far.
func (d *Document) Warnings() []string {
	return slices.Clone(d.warnings)
}

// Mark records the current allocation state of the document.
type Mark struct {
	next uint32
}

// Mark returns the current allocation state, for use with
// [Document.Rollback].
func (d *Document) Mark() Mark {
	return Mark{next: d.next}
}

// Rollback frees all objects allocated since m was taken.  Modifications
// of older objects are not undone.
func (d *Document) Rollback(m Mark) {
	if d.closed || m.next >= d.next {
		return
	}
	for ref, obj := range d.objects {
		if ref.Number() < m.next {
			continue
		}
		if c, ok := obj.(container); ok {
			c.base().ref = 0
		}
		delete(d.objects, ref)
	}
	for _, trans := range d.foreign {
		maps.DeleteFunc(trans, func(_, to Reference) bool {
			return to.Number() >= m.next
		})
	}
	d.next = m.next
	logger.Debug("rolled back object allocations", "from", m.next)
}
