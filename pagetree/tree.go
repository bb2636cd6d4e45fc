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
	"maps"

	"seehuhn.de/go/pdfgraph"
)

// inheritable lists the page attributes which can be inherited from
// intermediate nodes of the page tree.
var inheritable = []pdfgraph.Name{"/Resources", "/MediaBox", "/CropBox", "/Rotate"}

var errInvalidPageTree = fmt.Errorf("%w: invalid page tree", pdfgraph.ErrFormat)

// leaf is a page found while walking the page tree, together with the
// attributes it inherits from its ancestors.
type leaf struct {
	ref       pdfgraph.Reference
	inherited map[pdfgraph.Name]pdfgraph.Object
}

// rootNode returns the root of the page tree of doc.
func rootNode(doc *pdfgraph.Document) (*pdfgraph.Dict, pdfgraph.Reference, error) {
	catalog, err := doc.Root()
	if err != nil {
		return nil, 0, err
	}
	obj, _ := catalog.GetRaw("/Pages")
	ref, ok := obj.(pdfgraph.Reference)
	if !ok {
		return nil, 0, errInvalidPageTree
	}
	node, err := pdfgraph.GetDict(doc, ref)
	if err != nil {
		return nil, 0, err
	} else if node == nil {
		return nil, 0, errInvalidPageTree
	}
	return node, ref, nil
}

// isTreeNode reports whether dict is an intermediate node of a page tree.
// Nodes without a /Type entry are classified by the presence of /Kids.
func isTreeNode(dict *pdfgraph.Dict) bool {
	switch dict.TypeName() {
	case "/Pages":
		return true
	case "/Page":
		return false
	}
	return dict.Has("/Kids")
}

// walk returns the pages of the tree rooted at rootRef, in document order.
// A page which occurs more than once in the tree is listed every time.
// Loops in the tree, intermediate nodes which are reachable along several
// paths, and kids which are not indirect objects are skipped with a
// warning.  The flag flat reports whether all pages are distinct direct
// children of the root and no attributes need to be pushed down.
func walk(doc *pdfgraph.Document, rootRef pdfgraph.Reference) (pages []leaf, flat bool, err error) {
	type todoItem struct {
		ref       pdfgraph.Reference
		inherited map[pdfgraph.Name]pdfgraph.Object
		depth     int
		leave     bool // the subtree of ref is complete
	}

	flat = true
	todo := []todoItem{{ref: rootRef}}
	onPath := map[pdfgraph.Reference]bool{}
	expanded := map[pdfgraph.Reference]bool{}
	seenPage := map[pdfgraph.Reference]bool{}
	for len(todo) > 0 {
		k := len(todo) - 1
		item := todo[k]
		todo = todo[:k]

		if item.leave {
			delete(onPath, item.ref)
			continue
		}

		node, err := pdfgraph.GetDict(doc, item.ref)
		if err != nil {
			return nil, false, err
		} else if node == nil {
			doc.Warn("missing page tree node", "object", item.ref)
			flat = false
			continue
		}

		if item.depth > 0 && !isTreeNode(node) {
			pages = append(pages, leaf{ref: item.ref, inherited: item.inherited})
			if seenPage[item.ref] {
				flat = false
			}
			seenPage[item.ref] = true
			if parent, _ := node.GetRaw("/Parent"); item.depth > 1 || parent != rootRef {
				flat = false
			}
			continue
		}
		if expanded[item.ref] {
			doc.Warn("page tree node used twice", "object", item.ref)
			flat = false
			continue
		}
		expanded[item.ref] = true
		if item.depth > 0 {
			flat = false
		}

		inherited := item.inherited
		copied := false
		for _, key := range inheritable {
			val, err := node.GetRaw(key)
			if err != nil {
				continue
			}
			if item.depth == 0 {
				flat = false
			}
			if !copied {
				inherited = maps.Clone(item.inherited)
				if inherited == nil {
					inherited = make(map[pdfgraph.Name]pdfgraph.Object)
				}
				copied = true
			}
			inherited[key] = val
		}

		kids, err := pdfgraph.GetArray(doc, node.Value("/Kids"))
		if err != nil {
			return nil, false, pdfgraph.Wrap(err, "page tree node "+item.ref.String())
		}
		if kids == nil {
			continue
		}
		onPath[item.ref] = true
		todo = append(todo, todoItem{ref: item.ref, leave: true})
		for i := kids.Len() - 1; i >= 0; i-- {
			kid, _ := kids.GetRaw(i)
			kidRef, isRef := kid.(pdfgraph.Reference)
			if !isRef {
				doc.Warn("direct object in page tree", "object", item.ref)
				flat = false
				continue
			}
			if onPath[kidRef] {
				doc.Warn("loop in page tree", "object", kidRef)
				flat = false
				continue
			}
			todo = append(todo, todoItem{ref: kidRef, inherited: inherited, depth: item.depth + 1})
		}
	}
	return pages, flat, nil
}

// flatten rewrites the page tree of doc into a single node whose /Kids
// array lists all pages.  Inherited attributes are copied into the pages
// which do not set them, and removed from the root.  Intermediate nodes
// are freed.
func flatten(doc *pdfgraph.Document) (*pdfgraph.Dict, pdfgraph.Reference, error) {
	root, rootRef, err := rootNode(doc)
	if err != nil {
		return nil, 0, err
	}
	pages, flat, err := walk(doc, rootRef)
	if err != nil {
		return nil, 0, err
	}
	kids, _ := pdfgraph.GetArray(doc, root.Value("/Kids"))
	if flat && kids != nil && kids.Len() == len(pages) {
		if count, _ := pdfgraph.GetInt(doc, root.Value("/Count")); int(count) != len(pages) {
			err = root.Set("/Count", pdfgraph.Integer(len(pages)))
		}
		return root, rootRef, err
	}

	nodes := map[pdfgraph.Reference]bool{}
	collectNodes(doc, rootRef, nodes)

	newKids := doc.NewArray()
	used := map[pdfgraph.Reference]bool{}
	for _, pg := range pages {
		dict, err := pdfgraph.GetDict(doc, pg.ref)
		if err != nil {
			return nil, 0, err
		}
		ref := pg.ref
		if used[ref] {
			// repeated pages become shallow copies
			dict, err = copyPage(doc, dict)
			if err != nil {
				return nil, 0, err
			}
			ref, err = doc.MakeIndirect(dict)
			if err != nil {
				return nil, 0, err
			}
		}
		used[ref] = true
		for _, key := range inheritable {
			val, ok := pg.inherited[key]
			if !ok || dict.Has(key) {
				continue
			}
			val, err = cloneDirect(doc, val, 0)
			if err != nil {
				return nil, 0, err
			}
			if err := dict.Set(key, val); err != nil {
				return nil, 0, err
			}
		}
		if err := dict.Set("/Parent", rootRef); err != nil {
			return nil, 0, err
		}
		if err := newKids.Append(ref); err != nil {
			return nil, 0, err
		}
	}

	for _, key := range inheritable {
		if root.Has(key) {
			root.Delete(key)
		}
	}
	if err := root.Set("/Kids", newKids); err != nil {
		return nil, 0, err
	}
	if err := root.Set("/Count", pdfgraph.Integer(len(pages))); err != nil {
		return nil, 0, err
	}
	for ref := range nodes {
		if ref != rootRef {
			doc.Replace(ref, nil)
		}
	}
	return root, rootRef, nil
}

// collectNodes finds the intermediate nodes of the page tree.
func collectNodes(doc *pdfgraph.Document, ref pdfgraph.Reference, nodes map[pdfgraph.Reference]bool) {
	todo := []pdfgraph.Reference{ref}
	for len(todo) > 0 {
		ref := todo[len(todo)-1]
		todo = todo[:len(todo)-1]
		if nodes[ref] {
			continue
		}
		node, _ := pdfgraph.GetDict(doc, ref)
		if node == nil || !isTreeNode(node) {
			continue
		}
		nodes[ref] = true
		kids, _ := pdfgraph.GetArray(doc, node.Value("/Kids"))
		if kids == nil {
			continue
		}
		for i := range kids.Len() {
			kid, _ := kids.GetRaw(i)
			if kidRef, ok := kid.(pdfgraph.Reference); ok {
				todo = append(todo, kidRef)
			}
		}
	}
}

// cloneDirect copies the direct containers in obj, so that the result can
// be stored in a second place without sharing.  References are kept.
func cloneDirect(doc *pdfgraph.Document, obj pdfgraph.Object, depth int) (pdfgraph.Object, error) {
	if depth > pdfgraph.MaxDepth {
		return nil, pdfgraph.ErrRecursionLimit
	}
	switch x := obj.(type) {
	case *pdfgraph.Dict:
		if x.IsIndirect() {
			return x.Ref(), nil
		}
		res := doc.NewDict()
		for _, key := range x.Keys() {
			val, _ := x.GetRaw(key)
			val, err := cloneDirect(doc, val, depth+1)
			if err != nil {
				return nil, err
			}
			if err := res.Set(key, val); err != nil {
				return nil, err
			}
		}
		return res, nil
	case *pdfgraph.Array:
		if x.IsIndirect() {
			return x.Ref(), nil
		}
		res := doc.NewArray()
		for i := range x.Len() {
			val, _ := x.GetRaw(i)
			val, err := cloneDirect(doc, val, depth+1)
			if err != nil {
				return nil, err
			}
			if err := res.Append(val); err != nil {
				return nil, err
			}
		}
		return res, nil
	default:
		return obj, nil
	}
}

// copyPage returns a direct copy of a page dictionary, without the
// /Parent entry.  Indirect objects are shared with the original page.
func copyPage(doc *pdfgraph.Document, page *pdfgraph.Dict) (*pdfgraph.Dict, error) {
	res := doc.NewDict()
	for _, key := range page.Keys() {
		if key == "/Parent" {
			continue
		}
		val, _ := page.GetRaw(key)
		val, err := cloneDirect(doc, val, 1)
		if err != nil {
			return nil, err
		}
		if err := res.Set(key, val); err != nil {
			return nil, err
		}
	}
	return res, nil
}
