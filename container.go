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
	"io"
	"iter"
	"slices"
	"strconv"
	"strings"
)

// handle holds the identity of a container object: the document which owns
// it, and the reference under which it is stored if it is indirect.
type handle struct {
	doc *Document
	ref Reference
}

// Owner returns the document which owns the object, or nil if the object
// has not yet been associated with a document.
func (h *handle) Owner() *Document {
	return h.doc
}

// Ref returns the reference of an indirect object, or 0 for direct objects.
func (h *handle) Ref() Reference {
	return h.ref
}

// IsIndirect reports whether the object is stored as an indirect object.
func (h *handle) IsIndirect() bool {
	return h.ref != 0
}

func (h *handle) check() error {
	if h.doc != nil && h.doc.closed {
		return ErrDocumentClosed
	}
	return nil
}

func (h *handle) resolve(obj Object) (Object, error) {
	ref, ok := obj.(Reference)
	if !ok {
		if obj == nil {
			return Null{}, nil
		}
		return obj, nil
	}
	if h.doc == nil {
		return nil, fmt.Errorf("%w: %s has no owning document", ErrOwnership, ref)
	}
	return h.doc.Get(ref)
}

// container is implemented by *Array, *Dict and *Stream.
type container interface {
	Object
	base() *handle
	children() []Object
}

func isNilContainer(c container) bool {
	switch x := c.(type) {
	case *Array:
		return x == nil
	case *Dict:
		return x == nil
	case *Stream:
		return x == nil
	}
	return false
}

// checkOwner verifies that the direct containers reachable from c do not
// belong to a document other than doc.
func checkOwner(c container, doc *Document, seen map[container]bool) error {
	if seen[c] {
		return nil
	}
	seen[c] = true
	h := c.base()
	if h.doc != nil && h.doc != doc {
		return ErrOwnership
	}
	for _, child := range c.children() {
		sub, ok := child.(container)
		if !ok || sub.base().ref != 0 {
			continue
		}
		if err := checkOwner(sub, doc, seen); err != nil {
			return err
		}
	}
	return nil
}

// setOwner associates c, and all direct containers reachable from it, with
// doc.
func setOwner(c container, doc *Document, seen map[container]bool) {
	if seen[c] {
		return
	}
	seen[c] = true
	c.base().doc = doc
	for _, child := range c.children() {
		sub, ok := child.(container)
		if !ok || sub.base().ref != 0 {
			continue
		}
		setOwner(sub, doc, seen)
	}
}

// reachable reports whether target can be reached from c by following
// direct containers.  References are not followed.
func reachable(c, target container, seen map[container]bool) bool {
	if c == target {
		return true
	}
	if seen[c] {
		return false
	}
	seen[c] = true
	for _, child := range c.children() {
		sub, ok := child.(container)
		if !ok || sub.base().ref != 0 {
			continue
		}
		if reachable(sub, target, seen) {
			return true
		}
	}
	return false
}

func adopt(c container, doc *Document) error {
	if c.base().doc == doc {
		return nil
	}
	err := checkOwner(c, doc, map[container]bool{})
	if err != nil {
		return fmt.Errorf("%w: use Document.CopyForeign to copy objects between documents", err)
	}
	setOwner(c, doc, map[container]bool{})
	return nil
}

// store converts v into the form in which it is stored inside self.
// Indirect objects are replaced by references, direct containers are
// associated with the owning document.
func store(self container, v Object) (Object, error) {
	h := self.base()
	if err := h.check(); err != nil {
		return nil, err
	}
	if v == nil {
		return Null{}, nil
	}

	switch x := v.(type) {
	case Reference:
		if h.doc == nil {
			return nil, fmt.Errorf("%w: cannot store %s in an object without document",
				ErrOwnership, x)
		}
		return x, nil
	case *InlineImage:
		return nil, fmt.Errorf("%w: inline images can only occur in content streams",
			ErrStructural)
	case container:
		if isNilContainer(x) {
			return nil, fmt.Errorf("%w: uninitialized %s", ErrStructural, x.Kind())
		}
		xh := x.base()
		if err := xh.check(); err != nil {
			return nil, err
		}
		if xh.doc != nil && h.doc != nil && xh.doc != h.doc {
			return nil, fmt.Errorf("%w: use Document.CopyForeign to copy objects between documents",
				ErrOwnership)
		}
		if xh.ref != 0 {
			if h.doc == nil {
				if err := adopt(self, xh.doc); err != nil {
					return nil, err
				}
			}
			return xh.ref, nil
		}
		if _, isStream := x.(*Stream); isStream {
			return nil, fmt.Errorf("%w: stream objects must be indirect", ErrStructural)
		}
		if x == self {
			return nil, fmt.Errorf("%w: cannot insert a %s into itself", ErrStructural, x.Kind())
		}
		if reachable(x, self, map[container]bool{}) {
			return nil, fmt.Errorf("%w: cannot create a cycle of direct objects", ErrStructural)
		}
		if h.doc == nil && xh.doc != nil {
			if err := adopt(self, xh.doc); err != nil {
				return nil, err
			}
		} else if h.doc != nil && xh.doc == nil {
			if err := adopt(x, h.doc); err != nil {
				return nil, err
			}
		}
		return x, nil
	default:
		return v, nil
	}
}

// Array represent an array of objects in a PDF file.
type Array struct {
	handle
	items []Object
}

// NewArray creates a new, direct array holding the given objects.
func NewArray(items ...Object) (*Array, error) {
	a := &Array{}
	for _, item := range items {
		err := a.Append(item)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

// WrapArray returns obj if it is an array.  Otherwise, a new one-element array
// holding obj is returned.
func WrapArray(obj Object) (*Array, error) {
	if a, ok := obj.(*Array); ok && a != nil {
		return a, nil
	}
	return NewArray(obj)
}

func (a *Array) base() *handle      { return &a.handle }
func (a *Array) children() []Object { return a.items }

// Kind implements the [Object] interface.
func (a *Array) Kind() Kind { return KindArray }

// Len returns the number of elements in the array.
func (a *Array) Len() int {
	return len(a.items)
}

// index converts a possibly negative index into a position in a.items.
func (a *Array) index(i int) (int, error) {
	n := len(a.items)
	k := i
	if k < 0 {
		k += n
	}
	if k < 0 || k >= n {
		return 0, fmt.Errorf("%w: index %d for array of length %d", ErrBounds, i, n)
	}
	return k, nil
}

// Get returns the element at index i.  Negative indices count from the end
// of the array.  References to indirect objects are resolved.
func (a *Array) Get(i int) (Object, error) {
	obj, err := a.GetRaw(i)
	if err != nil {
		return nil, err
	}
	return a.resolve(obj)
}

// GetRaw returns the element at index i, without resolving references.
func (a *Array) GetRaw(i int) (Object, error) {
	if err := a.check(); err != nil {
		return nil, err
	}
	k, err := a.index(i)
	if err != nil {
		return nil, err
	}
	return a.items[k], nil
}

// Set replaces the element at index i.
func (a *Array) Set(i int, v Object) error {
	k, err := a.index(i)
	if err != nil {
		return err
	}
	val, err := store(a, v)
	if err != nil {
		return err
	}
	a.items[k] = val
	return nil
}

// Delete removes the element at index i.
func (a *Array) Delete(i int) error {
	if err := a.check(); err != nil {
		return err
	}
	k, err := a.index(i)
	if err != nil {
		return err
	}
	a.items = slices.Delete(a.items, k, k+1)
	return nil
}

// Append adds v to the end of the array.
func (a *Array) Append(v Object) error {
	val, err := store(a, v)
	if err != nil {
		return err
	}
	a.items = append(a.items, val)
	return nil
}

// Extend appends all elements of vv to the array.  If one of the elements
// cannot be stored, the array is left unchanged.
func (a *Array) Extend(vv ...Object) error {
	vals := make([]Object, 0, len(vv))
	for _, v := range vv {
		val, err := store(a, v)
		if err != nil {
			return err
		}
		vals = append(vals, val)
	}
	a.items = append(a.items, vals...)
	return nil
}

// Insert inserts v before index i.  Like for Python lists, indices beyond
// the ends of the array are clamped.
func (a *Array) Insert(i int, v Object) error {
	n := len(a.items)
	if i < 0 {
		i += n
	}
	i = max(0, min(i, n))
	val, err := store(a, v)
	if err != nil {
		return err
	}
	a.items = slices.Insert(a.items, i, val)
	return nil
}

// All iterates over the elements of the array, resolving references.
// Elements which cannot be resolved are reported as null.
func (a *Array) All() iter.Seq2[int, Object] {
	return func(yield func(int, Object) bool) {
		for i := 0; i < len(a.items); i++ {
			obj, err := a.resolve(a.items[i])
			if err != nil {
				obj = Null{}
			}
			if !yield(i, obj) {
				return
			}
		}
	}
}

func (a *Array) String() string {
	res := []string{}
	res = append(res, "Array")
	res = append(res, strconv.FormatInt(int64(len(a.items)), 10)+" elements")
	return "<" + strings.Join(res, ", ") + ">"
}

// PDF implements the [Object] interface.
func (a *Array) PDF(w io.Writer) error {
	if err := a.check(); err != nil {
		return err
	}
	_, err := w.Write([]byte("["))
	if err != nil {
		return err
	}
	for i, val := range a.items {
		if i > 0 {
			_, err := w.Write([]byte(" "))
			if err != nil {
				return err
			}
		}
		err = writeObject(w, val)
		if err != nil {
			return err
		}
	}
	_, err = w.Write([]byte("]"))
	return err
}

// Dict represent a Dictionary object in a PDF file.
//
// The order in which keys were first inserted is preserved for iteration
// and output, but is not significant for comparisons.
type Dict struct {
	handle
	keys []Name
	m    map[Name]Object

	// isStream is set for stream dictionaries, where /Length is read-only.
	isStream bool
}

// NewDict creates a new, empty, direct dictionary.
func NewDict() *Dict {
	return &Dict{m: make(map[Name]Object)}
}

// DictFrom creates a new direct dictionary holding the given entries.
// Keys are inserted in sorted order.  Null values are skipped.
func DictFrom(entries map[Name]Object) (*Dict, error) {
	d := NewDict()
	keys := make([]Name, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		val := entries[key]
		if isNull(val) {
			continue
		}
		err := d.Set(key, val)
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Dict) base() *handle { return &d.handle }

func (d *Dict) children() []Object {
	res := make([]Object, 0, len(d.keys))
	for _, key := range d.keys {
		res = append(res, d.m[key])
	}
	return res
}

// Kind implements the [Object] interface.
func (d *Dict) Kind() Kind { return KindDict }

// Len returns the number of entries in the dictionary.
func (d *Dict) Len() int {
	return len(d.keys)
}

// Keys returns the keys of the dictionary, in insertion order.
func (d *Dict) Keys() []Name {
	return slices.Clone(d.keys)
}

// Has reports whether the dictionary contains the given key.
func (d *Dict) Has(key Name) bool {
	_, ok := d.m[key]
	return ok
}

// Get returns the value for the given key, resolving references.
// If the key is not present, an error wrapping [ErrMissingKey] is returned.
func (d *Dict) Get(key Name) (Object, error) {
	obj, err := d.GetRaw(key)
	if err != nil {
		return nil, err
	}
	return d.resolve(obj)
}

// GetRaw returns the value for the given key without resolving references.
func (d *Dict) GetRaw(key Name) (Object, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	obj, ok := d.m[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingKey, key)
	}
	return obj, nil
}

// Value returns the value for the given key, resolving references.
// Missing keys and unresolvable values are reported as [Null].
func (d *Dict) Value(key Name) Object {
	obj, err := d.Get(key)
	if err != nil {
		return Null{}
	}
	return obj
}

// Set sets the value for the given key.  The key must be a valid name.
// Null values are not allowed; use [Dict.Delete] to remove entries.
func (d *Dict) Set(key Name, v Object) error {
	if !key.isValid() {
		return fmt.Errorf("%w: invalid dictionary key %q", errInvalidName, string(key))
	}
	if isNull(v) {
		return fmt.Errorf("%w: cannot set %s to null, use Delete to remove a key",
			ErrStructural, key)
	}
	if d.isStream && key == "/Length" {
		return errStreamLength
	}
	val, err := store(d, v)
	if err != nil {
		return err
	}
	d.put(key, val)
	return nil
}

// put stores a value which has already been converted by store.
func (d *Dict) put(key Name, val Object) {
	if d.m == nil {
		d.m = make(map[Name]Object)
	}
	if _, exists := d.m[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.m[key] = val
}

// Delete removes the given key from the dictionary.
func (d *Dict) Delete(key Name) error {
	if err := d.check(); err != nil {
		return err
	}
	if d.isStream && key == "/Length" {
		return errStreamLength
	}
	if _, ok := d.m[key]; !ok {
		return fmt.Errorf("%w: %s", ErrMissingKey, key)
	}
	d.remove(key)
	return nil
}

func (d *Dict) remove(key Name) {
	if _, ok := d.m[key]; !ok {
		return
	}
	delete(d.m, key)
	d.keys = slices.DeleteFunc(d.keys, func(k Name) bool { return k == key })
}

// Attr implements attribute-style access: d.Attr("Type") returns the value
// of the key "/Type".  For a missing key, the error wraps [ErrNoAttribute],
// unless the name looks private (starts with an underscore), in which
// case it wraps [ErrMissingKey].
func (d *Dict) Attr(name string) (Object, error) {
	obj, err := d.Get(Name("/" + name))
	if err != nil && strings.HasPrefix(name, "_") {
		return nil, err
	} else if err != nil {
		return nil, fmt.Errorf("%w: %q (%w)", ErrNoAttribute, name, err)
	}
	return obj, nil
}

// SetAttr sets the key "/"+name to v.
func (d *Dict) SetAttr(name string, v Object) error {
	return d.Set(Name("/"+name), v)
}

// All iterates over the entries of the dictionary in insertion order,
// resolving references.
func (d *Dict) All() iter.Seq2[Name, Object] {
	return func(yield func(Name, Object) bool) {
		for _, key := range slices.Clone(d.keys) {
			val, ok := d.m[key]
			if !ok {
				continue
			}
			obj, err := d.resolve(val)
			if err != nil {
				obj = Null{}
			}
			if !yield(key, obj) {
				return
			}
		}
	}
}

// TypeName returns the value of the /Type entry, or "" if there is none.
func (d *Dict) TypeName() Name {
	tp, _ := d.Value("/Type").(Name)
	return tp
}

func (d *Dict) String() string {
	res := []string{}
	if tp := d.TypeName(); tp != "" {
		res = append(res, string(tp[1:])+" Dict")
	} else {
		res = append(res, "Dict")
	}
	if len(d.keys) != 1 {
		res = append(res, strconv.FormatInt(int64(len(d.keys)), 10)+" entries")
	} else {
		res = append(res, "1 entry")
	}
	return "<" + strings.Join(res, ", ") + ">"
}

// PDF implements the [Object] interface.
func (d *Dict) PDF(w io.Writer) error {
	if d == nil {
		_, err := w.Write([]byte("null"))
		return err
	}
	if err := d.check(); err != nil {
		return err
	}

	_, err := w.Write([]byte("<<"))
	if err != nil {
		return err
	}

	for _, name := range d.keys {
		val := d.m[name]
		if isNull(val) {
			continue
		}

		_, err = w.Write([]byte("\n"))
		if err != nil {
			return err
		}
		err = name.PDF(w)
		if err != nil {
			return err
		}
		_, err = w.Write([]byte(" "))
		if err != nil {
			return err
		}
		err = val.PDF(w)
		if err != nil {
			return err
		}
	}
	_, err = w.Write([]byte("\n>>"))
	return err
}

// Len returns the number of elements of an array or the number of entries
// of a dictionary.  For streams, the length is ambiguous and an error is
// returned.
func Len(obj Object) (int, error) {
	switch x := obj.(type) {
	case *Array:
		return x.Len(), nil
	case *Dict:
		return x.Len(), nil
	case *Stream:
		return 0, fmt.Errorf("%w: length of a stream is ambiguous; use Stream.Dict().Len() for the number of keys, or len() of Stream.Data() for the number of bytes",
			ErrStructural)
	default:
		return 0, fmt.Errorf("%w: %s has no length", ErrStructural, KindOf(obj))
	}
}

// Truthy reports whether obj is considered "true" in a boolean context.
// Containers and strings are false iff empty, numbers iff zero, and null is
// always false.  A stream is true iff it has a positive /Length.
func Truthy(obj Object) bool {
	switch x := obj.(type) {
	case nil, Null:
		return false
	case Bool:
		return bool(x)
	case Integer:
		return x != 0
	case Real:
		return !x.val.IsZero()
	case Name:
		return len(x) > 0
	case String:
		return len(x) > 0
	case Operator:
		return len(x) > 0
	case *Array:
		return x != nil && x.Len() > 0
	case *Dict:
		return x != nil && x.Len() > 0
	case *Stream:
		if x == nil {
			return false
		}
		length, ok := x.dict.Value("/Length").(Integer)
		return ok && length > 0
	case Reference:
		return x != 0
	case *InlineImage:
		return x != nil
	}
	return false
}
