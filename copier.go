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
	"fmt"
	"slices"
)

// A copier copies objects from one document into another.  The
// translation table of the target document ensures that each indirect
// object is copied only once, also across several calls to
// [Document.CopyForeign].
type copier struct {
	src, dst *Document
	trans    map[Reference]Reference

	// noParent is the page dictionary whose /Parent entry is dropped.
	noParent *Dict
}

// CopyForeign copies obj, which must belong to another document, into d.
// All objects reachable from obj are copied as well, with references
// translated to the new object numbers.  Page tree nodes are not
// followed: dictionary entries pointing to a /Pages node are left out,
// and array elements pointing to one become null.
//
// The result has the same kind as obj.  If obj is an indirect object, the
// result is an indirect object of d.  Scalars are returned unchanged.
//
// Page tree nodes themselves cannot be copied.  Pages can be copied, but
// are not inserted into the page tree; their /Parent entry is removed.
// On error, all objects allocated during the copy are freed again.
func (d *Document) CopyForeign(obj Object) (Object, error) {
	if d.closed {
		return nil, ErrDocumentClosed
	}

	var root container
	switch x := obj.(type) {
	case Reference:
		return nil, fmt.Errorf("%w: cannot copy %s without its document", ErrOwnership, x)
	case *InlineImage:
		return nil, fmt.Errorf("%w: inline images cannot be copied between documents", ErrStructural)
	case container:
		if isNilContainer(x) {
			return nil, fmt.Errorf("%w: uninitialized %s", ErrStructural, x.Kind())
		}
		root = x
	default:
		return obj, nil
	}

	h := root.base()
	if err := h.check(); err != nil {
		return nil, err
	}
	if h.doc == d {
		return nil, fmt.Errorf("%w: object already belongs to this document", ErrOwnership)
	}
	if h.doc == nil {
		// not foreign, the object will be adopted when it is stored
		return obj, nil
	}

	c := &copier{src: h.doc, dst: d}
	if dict, isDict := root.(*Dict); isDict {
		switch dict.TypeName() {
		case "/Pages":
			return nil, fmt.Errorf("%w: cannot copy page tree nodes", ErrStructural)
		case "/Page":
			c.noParent = dict
		}
	}

	trans := d.foreign[c.src]
	if trans == nil {
		trans = make(map[Reference]Reference)
		d.foreign[c.src] = trans
	}
	c.trans = trans

	mark := d.Mark()
	res, err := c.copy(root, 0)
	if err != nil {
		d.Rollback(mark)
		return nil, err
	}
	if ref, isRef := res.(Reference); isRef {
		return d.objects[ref], nil
	}
	return res, nil
}

// copy returns the translated version of obj.  A nil result indicates
// that obj refers to a page tree node and must be left out.
func (c *copier) copy(obj Object, depth int) (Object, error) {
	if depth > MaxDepth {
		return nil, ErrRecursionLimit
	}
	switch x := obj.(type) {
	case Reference:
		return c.copyReference(x, depth)
	case container:
		h := x.base()
		if h.ref != 0 {
			return c.copyReference(h.ref, depth)
		}
		return c.copyContents(x, depth)
	case *InlineImage:
		return nil, fmt.Errorf("%w: unexpected inline image", ErrStructural)
	default:
		return obj, nil
	}
}

func (c *copier) copyReference(ref Reference, depth int) (Object, error) {
	newRef, ok := c.trans[ref]
	if ok {
		return newRef, nil
	}

	val, err := c.src.Get(ref)
	if err != nil {
		return nil, err
	}
	if dict, isDict := val.(*Dict); isDict && dict.TypeName() == "/Pages" {
		return nil, nil
	}

	newRef = c.dst.Alloc()
	c.trans[ref] = newRef

	var repl Object
	if x, isContainer := val.(container); isContainer {
		repl, err = c.copyContents(x, depth+1)
		if err != nil {
			return nil, err
		}
	} else {
		repl = val
	}
	err = c.dst.Replace(newRef, repl)
	if err != nil {
		return nil, err
	}
	return newRef, nil
}

// copyContents returns a new direct container owned by the target
// document.
func (c *copier) copyContents(x container, depth int) (container, error) {
	switch x := x.(type) {
	case *Array:
		res := c.dst.NewArray()
		res.items = make([]Object, 0, len(x.items))
		for _, item := range x.items {
			repl, err := c.copy(item, depth+1)
			if err != nil {
				return nil, err
			}
			if repl == nil {
				repl = Null{}
			}
			res.items = append(res.items, repl)
		}
		return res, nil

	case *Dict:
		res, err := c.copyDict(x, depth)
		if err != nil {
			return nil, err
		}
		return res, nil

	case *Stream:
		dict, err := c.copyDict(x.dict, depth)
		if err != nil {
			return nil, err
		}
		dict.isStream = true
		res := &Stream{
			dict:      dict,
			raw:       bytes.Clone(x.raw),
			rewriters: slices.Clone(x.rewriters),
		}
		res.doc = c.dst
		return res, nil
	}
	panic("unreachable")
}

func (c *copier) copyDict(x *Dict, depth int) (*Dict, error) {
	res := c.dst.NewDict()
	for _, key := range x.keys {
		if x == c.noParent && key == "/Parent" {
			continue
		}
		repl, err := c.copy(x.m[key], depth+1)
		if err != nil {
			return nil, err
		}
		if repl == nil {
			continue
		}
		res.keys = append(res.keys, key)
		res.m[key] = repl
	}
	return res, nil
}
