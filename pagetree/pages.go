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

// Package pagetree implements the page list of a PDF document.
//
// A [Pages] value is a view of the live document: every call consults the
// current page tree, so the contents of the list can change between two
// calls on the same value.  Modifications flatten the page tree first, so
// that all pages are direct children of the root node and inherited
// attributes are stored in the pages themselves.
package pagetree

import (
	"errors"
	"fmt"
	"iter"

	"seehuhn.de/go/pdfgraph"
	"seehuhn.de/go/pdfgraph/logger"
)

// Pages is the list of pages of a document.
type Pages struct {
	doc *pdfgraph.Document
}

// New returns the page list of doc.
func New(doc *pdfgraph.Document) *Pages {
	return &Pages{doc: doc}
}

// HelperObject implements the [pdfgraph.Helper] interface.  The result is
// the root node of the page tree, or null if the document has no page
// tree.
func (p *Pages) HelperObject() pdfgraph.Object {
	root, _, err := rootNode(p.doc)
	if err != nil {
		return pdfgraph.Null{}
	}
	return root
}

// refs returns the references of all pages, in order.
func (p *Pages) refs() ([]pdfgraph.Reference, error) {
	_, rootRef, err := rootNode(p.doc)
	if err != nil {
		return nil, err
	}
	pages, _, err := walk(p.doc, rootRef)
	if err != nil {
		return nil, err
	}
	res := make([]pdfgraph.Reference, len(pages))
	for i, pg := range pages {
		res[i] = pg.ref
	}
	return res, nil
}

// Len returns the number of pages.
func (p *Pages) Len() (int, error) {
	refs, err := p.refs()
	if err != nil {
		return 0, err
	}
	return len(refs), nil
}

// index converts a possibly negative index into a position.
func index(i, n int) (int, error) {
	k := i
	if k < 0 {
		k += n
	}
	if k < 0 || k >= n {
		return 0, fmt.Errorf("%w: page index %d for %d pages", pdfgraph.ErrBounds, i, n)
	}
	return k, nil
}

func (p *Pages) page(ref pdfgraph.Reference) (*Page, error) {
	dict, err := pdfgraph.GetDict(p.doc, ref)
	if err != nil {
		return nil, err
	} else if dict == nil {
		return nil, fmt.Errorf("%w: missing page %s", pdfgraph.ErrFormat, ref)
	}
	return &Page{dict: dict}, nil
}

// Get returns the page at the 0-based index i.  Negative indices count from
// the end.
func (p *Pages) Get(i int) (*Page, error) {
	refs, err := p.refs()
	if err != nil {
		return nil, err
	}
	k, err := index(i, len(refs))
	if err != nil {
		return nil, err
	}
	return p.page(refs[k])
}

// P returns page number n, counting from 1.
func (p *Pages) P(n int) (*Page, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: page numbers start at 1, got %d", pdfgraph.ErrBounds, n)
	}
	return p.Get(n - 1)
}

// All iterates over the pages.  The length of the list is checked before
// every step, so that pages added or removed during the iteration are
// taken into account.
func (p *Pages) All() iter.Seq2[int, *Page] {
	return func(yield func(int, *Page) bool) {
		for i := 0; ; i++ {
			refs, err := p.refs()
			if err != nil || i >= len(refs) {
				return
			}
			pg, err := p.page(refs[i])
			if err != nil {
				return
			}
			if !yield(i, pg) {
				return
			}
		}
	}
}

// Index returns the position of a page in the list.  It is an error if the
// page belongs to a different document, or is not part of the list.
func (p *Pages) Index(page pdfgraph.Object) (int, error) {
	dict, err := p.asDict(page)
	if err != nil {
		return 0, err
	}
	if dict.Owner() != p.doc {
		return 0, fmt.Errorf("%w: page belongs to a different document", pdfgraph.ErrOwnership)
	}
	refs, err := p.refs()
	if err != nil {
		return 0, err
	}
	if dict.IsIndirect() {
		for i, ref := range refs {
			if ref == dict.Ref() {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: page is not in the page list", pdfgraph.ErrMissingKey)
}

// FromObjGen returns the page stored under the given object number and
// generation.
func (p *Pages) FromObjGen(number uint32, generation uint16) (*Page, error) {
	want := pdfgraph.NewReference(number, generation)
	refs, err := p.refs()
	if err != nil {
		return nil, err
	}
	for _, ref := range refs {
		if ref == want {
			return p.page(ref)
		}
	}
	return nil, fmt.Errorf("%w: %s is not a page of this document", pdfgraph.ErrMissingKey, want)
}

// asDict extracts the page dictionary from a page object.
func (p *Pages) asDict(page pdfgraph.Object) (*pdfgraph.Dict, error) {
	switch x := page.(type) {
	case *pdfgraph.Dict:
		if x != nil {
			return x, nil
		}
	case pdfgraph.Reference:
		dict, err := pdfgraph.GetDict(p.doc, x)
		if err != nil {
			return nil, err
		} else if dict != nil {
			return dict, nil
		}
	}
	return nil, fmt.Errorf("%w: expected a page dictionary, got %s",
		pdfgraph.ErrStructural, pdfgraph.KindOf(page))
}

// list is the flattened page tree, as used during modifications.
type list struct {
	doc     *pdfgraph.Document
	root    *pdfgraph.Dict
	rootRef pdfgraph.Reference
	kids    *pdfgraph.Array
}

// edit flattens the page tree and runs fn.  If fn fails, the list of pages
// is restored and all objects allocated by fn are freed.
func (p *Pages) edit(fn func(l *list) error) error {
	root, rootRef, err := flatten(p.doc)
	if err != nil {
		return err
	}
	kids, err := pdfgraph.GetArray(p.doc, root.Value("/Kids"))
	if err != nil {
		return err
	}
	if kids == nil {
		kids = p.doc.NewArray()
		if err := root.Set("/Kids", kids); err != nil {
			return err
		}
		kids, _ = pdfgraph.GetArray(p.doc, root.Value("/Kids"))
	}

	saved := make([]pdfgraph.Object, kids.Len())
	for i := range saved {
		saved[i], _ = kids.GetRaw(i)
	}
	mark := p.doc.Mark()

	l := &list{doc: p.doc, root: root, rootRef: rootRef, kids: kids}
	err = fn(l)
	if err != nil {
		restored := p.doc.NewArray()
		errRestore := errors.Join(
			restored.Extend(saved...),
			root.Set("/Kids", restored),
			root.Set("/Count", pdfgraph.Integer(len(saved))),
		)
		p.doc.Rollback(mark)
		if errRestore != nil {
			logger.Error("cannot restore page list", "err", errRestore)
			return errors.Join(err, fmt.Errorf("restoring page list: %w", errRestore))
		}
		logger.Debug("page list modification rolled back", "err", err)
		return err
	}
	return root.Set("/Count", pdfgraph.Integer(kids.Len()))
}

// prepare turns page into an indirect page object of the document, ready
// to be linked into the page tree.  Pages of other documents are copied,
// direct dictionaries are made indirect, and pages which are already part
// of the list are shallow-copied.
func (l *list) prepare(page pdfgraph.Object) (pdfgraph.Reference, error) {
	var dict *pdfgraph.Dict
	switch x := page.(type) {
	case *pdfgraph.Dict:
		dict = x
	case pdfgraph.Reference:
		dict, _ = pdfgraph.GetDict(l.doc, x)
	}
	if dict == nil {
		return 0, fmt.Errorf("%w: expected a page dictionary, got %s",
			pdfgraph.ErrStructural, pdfgraph.KindOf(page))
	}

	mark := l.doc.Mark()
	if owner := dict.Owner(); owner != nil && owner != l.doc {
		if dict.TypeName() == "/Pages" {
			return 0, fmt.Errorf("%w: cannot insert a page tree node", pdfgraph.ErrStructural)
		}
		copied, err := l.doc.CopyForeign(dict)
		if err != nil {
			return 0, err
		}
		dict = copied.(*pdfgraph.Dict)
	}
	if dict.IsIndirect() && l.contains(dict.Ref()) {
		dup, err := copyPage(l.doc, dict)
		if err != nil {
			l.doc.Rollback(mark)
			return 0, err
		}
		dict = dup
	}

	ref, err := l.doc.MakeIndirect(dict)
	if err != nil {
		l.doc.Rollback(mark)
		return 0, err
	}
	if dict.TypeName() != "/Page" {
		l.doc.Rollback(mark)
		return 0, fmt.Errorf("%w: object is not a page (/Type %q)",
			pdfgraph.ErrStructural, string(dict.TypeName()))
	}
	if err := dict.Set("/Parent", l.rootRef); err != nil {
		l.doc.Rollback(mark)
		return 0, err
	}
	return ref, nil
}

func (l *list) contains(ref pdfgraph.Reference) bool {
	for i := range l.kids.Len() {
		if kid, _ := l.kids.GetRaw(i); kid == ref {
			return true
		}
	}
	return false
}

func (l *list) insert(i int, page pdfgraph.Object) error {
	ref, err := l.prepare(page)
	if err != nil {
		return err
	}
	return l.kids.Insert(i, ref)
}

// Insert inserts a page before index i.  Like for [pdfgraph.Array.Insert],
// indices beyond the ends of the list are clamped.
//
// Pages owned by a different document are copied into this document,
// direct page dictionaries are made indirect, and pages which are already
// in the list are inserted as a shallow copy.  If page is not a page
// dictionary, the document is left unchanged.
func (p *Pages) Insert(i int, page pdfgraph.Object) error {
	return p.edit(func(l *list) error {
		return l.insert(i, page)
	})
}

// Append adds a page at the end of the list.
func (p *Pages) Append(page pdfgraph.Object) error {
	return p.edit(func(l *list) error {
		return l.insert(l.kids.Len(), page)
	})
}

// Extend appends all the given pages.  If one of the pages cannot be
// added, the list is left unchanged.
func (p *Pages) Extend(pages ...pdfgraph.Object) error {
	return p.edit(func(l *list) error {
		for _, page := range pages {
			if err := l.insert(l.kids.Len(), page); err != nil {
				return err
			}
		}
		return nil
	})
}

// ExtendFrom appends all pages of another page list.  It is an error if
// the other list changes length while it is being copied.
func (p *Pages) ExtendFrom(other *Pages) error {
	if other.doc == p.doc {
		refs, err := other.refs()
		if err != nil {
			return err
		}
		pages := make([]pdfgraph.Object, len(refs))
		for i, ref := range refs {
			pages[i] = ref
		}
		return p.Extend(pages...)
	}

	n, err := other.Len()
	if err != nil {
		return err
	}
	return p.edit(func(l *list) error {
		for i := range n {
			m, err := other.Len()
			if err != nil {
				return err
			}
			if m != n {
				return fmt.Errorf("%w: page list changed from %d to %d pages during iteration",
					pdfgraph.ErrStructural, n, m)
			}
			pg, err := other.Get(i)
			if err != nil {
				return err
			}
			if err := l.insert(l.kids.Len(), pg.Obj()); err != nil {
				return err
			}
		}
		return nil
	})
}

// Set replaces the page at index i.
func (p *Pages) Set(i int, page pdfgraph.Object) error {
	return p.edit(func(l *list) error {
		k, err := index(i, l.kids.Len())
		if err != nil {
			return err
		}
		ref, err := l.prepare(page)
		if err != nil {
			return err
		}
		return l.kids.Set(k, ref)
	})
}

// Delete removes the page at index i from the list.  The page object
// itself is kept.
func (p *Pages) Delete(i int) error {
	return p.edit(func(l *list) error {
		k, err := index(i, l.kids.Len())
		if err != nil {
			return err
		}
		return l.kids.Delete(k)
	})
}

// Remove removes page number n, counting from 1.
func (p *Pages) Remove(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: page numbers start at 1, got %d", pdfgraph.ErrBounds, n)
	}
	return p.Delete(n - 1)
}

// Reverse reverses the order of the pages.
func (p *Pages) Reverse() error {
	return p.edit(func(l *list) error {
		n := l.kids.Len()
		for i := range n / 2 {
			a, _ := l.kids.GetRaw(i)
			b, _ := l.kids.GetRaw(n - 1 - i)
			if err := l.kids.Set(i, b); err != nil {
				return err
			}
			if err := l.kids.Set(n-1-i, a); err != nil {
				return err
			}
		}
		return nil
	})
}
