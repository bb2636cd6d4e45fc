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

package pagetree

import (
	"fmt"
	"io"

	"seehuhn.de/go/pdfgraph"
	"seehuhn.de/go/pdfgraph/content"
)

// resourceCategories lists the sub-dictionaries of a resource dictionary
// which map names used in content streams to objects.
var resourceCategories = []pdfgraph.Name{
	"/ExtGState", "/ColorSpace", "/Pattern", "/Shading",
	"/XObject", "/Font", "/Properties",
}

// Page is a helper for accessing a page dictionary.
type Page struct {
	dict *pdfgraph.Dict
}

// NewPage wraps a page dictionary.
func NewPage(dict *pdfgraph.Dict) (*Page, error) {
	if dict == nil {
		return nil, fmt.Errorf("%w: missing page dictionary", pdfgraph.ErrStructural)
	}
	if tp := dict.TypeName(); tp != "/Page" {
		return nil, fmt.Errorf("%w: expected /Page, got /Type %s", pdfgraph.ErrStructural, tp)
	}
	return &Page{dict: dict}, nil
}

// HelperObject implements the [pdfgraph.Helper] interface.
func (pg *Page) HelperObject() pdfgraph.Object {
	return pg.dict
}

// Obj returns the page dictionary.
func (pg *Page) Obj() *pdfgraph.Dict {
	return pg.dict
}

// Ref returns the reference of the page dictionary.
func (pg *Page) Ref() pdfgraph.Reference {
	return pg.dict.Ref()
}

func (pg *Page) String() string {
	return fmt.Sprintf("<Page %s>", pg.dict.Ref())
}

// Inherited returns the value of a page attribute.  If the page does not
// set the attribute, the value is taken from the closest ancestor in the
// page tree.  Null is returned if no node sets the attribute.
func (pg *Page) Inherited(key pdfgraph.Name) (pdfgraph.Object, error) {
	doc := pg.dict.Owner()
	node := pg.dict
	seen := map[*pdfgraph.Dict]bool{}
	for node != nil && !seen[node] {
		seen[node] = true
		if node.Has(key) {
			return node.Get(key)
		}
		parent, err := pdfgraph.GetDict(doc, node.Value("/Parent"))
		if err != nil {
			return nil, err
		}
		node = parent
	}
	return pdfgraph.Null{}, nil
}

// Resources returns the resource dictionary of the page, or nil if there
// is none.
func (pg *Page) Resources() (*pdfgraph.Dict, error) {
	obj, err := pg.Inherited("/Resources")
	if err != nil {
		return nil, err
	}
	return pdfgraph.GetDict(nil, obj)
}

// MediaBox returns the page boundaries, as an array of four numbers.
func (pg *Page) MediaBox() (*pdfgraph.Array, error) {
	obj, err := pg.Inherited("/MediaBox")
	if err != nil {
		return nil, err
	}
	box, err := pdfgraph.GetArray(nil, obj)
	if err != nil {
		return nil, err
	} else if box != nil && box.Len() != 4 {
		return nil, fmt.Errorf("%w: /MediaBox has %d elements", pdfgraph.ErrFormat, box.Len())
	}
	return box, nil
}

// Rotate returns the rotation of the page in degrees, normalised to the
// range 0, ..., 270.
func (pg *Page) Rotate() (int, error) {
	obj, err := pg.Inherited("/Rotate")
	if err != nil {
		return 0, err
	}
	r, err := pdfgraph.GetInt(nil, obj)
	if err != nil {
		return 0, err
	}
	if r%90 != 0 {
		return 0, fmt.Errorf("%w: /Rotate %d is not a multiple of 90", pdfgraph.ErrFormat, r)
	}
	return int((r%360 + 360) % 360), nil
}

// ContentBytes returns the content of the page.  Array contents are
// coalesced, separated by newlines.
func (pg *Page) ContentBytes() ([]byte, error) {
	r, err := ContentStream(pg.dict)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// Instructions parses the content of the page.
func (pg *Page) Instructions(opts *content.ParseOptions) (*content.Result, error) {
	data, err := pg.ContentBytes()
	if err != nil {
		return nil, err
	}
	res, err := content.Parse(data, opts)
	if err != nil {
		return nil, pdfgraph.Wrap(err, "content of page "+pg.Ref().String())
	}
	doc := pg.dict.Owner()
	for _, w := range res.Warnings {
		doc.Warn(w, "object", pg.Ref())
	}
	return res, nil
}

// SetContent replaces the content of the page by a single, new stream.
func (pg *Page) SetContent(data []byte) error {
	stm, err := pdfgraph.NewStream(pg.dict.Owner(), data)
	if err != nil {
		return err
	}
	return pg.dict.Set("/Contents", stm)
}

// SetInstructions replaces the content of the page.
func (pg *Page) SetInstructions(instructions []content.Instruction) error {
	data, err := content.Unparse(instructions)
	if err != nil {
		return err
	}
	return pg.SetContent(data)
}

// CoalesceContents replaces an array of content streams by a single
// stream.  Pages with only one content stream are not changed.
func (pg *Page) CoalesceContents() error {
	if _, isArray := pg.dict.Value("/Contents").(*pdfgraph.Array); !isArray {
		return nil
	}
	data, err := pg.ContentBytes()
	if err != nil {
		return err
	}
	return pg.SetContent(data)
}

// AddTokenFilter attaches a token filter to the content of the page.
// Array contents are coalesced first, so that tokens are not split at
// stream boundaries.
func (pg *Page) AddTokenFilter(f content.TokenFilter) error {
	if err := pg.CoalesceContents(); err != nil {
		return err
	}
	stm, err := pdfgraph.GetStream(pg.dict.Owner(), pg.dict.Value("/Contents"))
	if err != nil {
		return err
	}
	if stm == nil {
		if err := pg.SetContent(nil); err != nil {
			return err
		}
		stm, _ = pdfgraph.GetStream(nil, pg.dict.Value("/Contents"))
	}
	return content.AddTokenFilter(stm, f)
}

// PruneResources removes entries from the resource dictionary of the page
// which are not used in the page content.  The content itself is never
// modified.  Resource dictionaries which are indirect or inherited are
// replaced by direct copies before entries are removed, so that other
// pages sharing them are not affected.
func (pg *Page) PruneResources() error {
	res, err := pg.Resources()
	if err != nil || res == nil {
		return err
	}
	result, err := pg.Instructions(nil)
	if err != nil {
		return err
	}
	used := content.UsedNames(result.Instructions)

	doc := pg.dict.Owner()
	var newRes *pdfgraph.Dict
	copied := false
	for _, cat := range resourceCategories {
		obj, _ := res.GetRaw(cat)
		sub, err := pdfgraph.GetDict(doc, obj)
		if err != nil || sub == nil {
			continue
		}
		var unused []pdfgraph.Name
		for _, name := range sub.Keys() {
			if !used[name] {
				unused = append(unused, name)
			}
		}
		if len(unused) == 0 {
			continue
		}

		if newRes == nil {
			own, _ := pg.dict.GetRaw("/Resources")
			if own != nil && own == pdfgraph.Object(res) && !res.IsIndirect() {
				newRes = res
			} else {
				copied = true
				newRes, err = shallowCopy(doc, res)
				if err != nil {
					return err
				}
				if err := pg.dict.Set("/Resources", newRes); err != nil {
					return err
				}
			}
		}

		newSub := sub
		if copied || sub.IsIndirect() {
			newSub, err = shallowCopy(doc, sub)
			if err != nil {
				return err
			}
		}
		for _, name := range unused {
			newSub.Delete(name)
		}
		if newSub != sub {
			if err := newRes.Set(cat, newSub); err != nil {
				return err
			}
		}
	}
	return nil
}

// shallowCopy returns a direct copy of a dictionary.  The values are
// shared with the original.
func shallowCopy(doc *pdfgraph.Document, d *pdfgraph.Dict) (*pdfgraph.Dict, error) {
	res := doc.NewDict()
	for _, key := range d.Keys() {
		val, _ := d.GetRaw(key)
		if err := res.Set(key, val); err != nil {
			return nil, err
		}
	}
	return res, nil
}
