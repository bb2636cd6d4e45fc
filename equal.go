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
	"hash/fnv"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// Equal reports whether two objects are structurally equal.
//
// Booleans are only equal to booleans.  Integers and reals are compared
// by numeric value.  Strings are equal if they have the same bytes or
// decode to the same text.  Containers are compared recursively, and
// references are resolved.  Two streams are equal if their dictionaries
// are equal and their encoded data agrees.
//
// Cyclic structures are handled by treating a pair of containers which is
// already being compared as equal.  Objects belonging to a closed document
// compare unequal to everything.  An error is only returned if the
// structure is nested too deeply.
func Equal(a, b Object) (bool, error) {
	e := &equaler{seen: make(map[[2]container]bool)}
	return e.equal(a, b, 0)
}

type equaler struct {
	seen map[[2]container]bool
}

func (e *equaler) equal(a, b Object, depth int) (bool, error) {
	if depth > MaxDepth {
		return false, ErrRecursionLimit
	}
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}

	ca, aIsContainer := a.(container)
	cb, bIsContainer := b.(container)
	if aIsContainer && isNilContainer(ca) || bIsContainer && isNilContainer(cb) {
		return false, nil
	}
	if aIsContainer && ca.base().check() != nil || bIsContainer && cb.base().check() != nil {
		return false, nil
	}
	if aIsContainer && bIsContainer {
		if ca == cb {
			return true, nil
		}
		ha, hb := ca.base(), cb.base()
		if ha.ref != 0 && ha.ref == hb.ref && ha.doc == hb.doc {
			return true, nil
		}
	}

	switch x := a.(type) {
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y, nil
	case Integer:
		switch y := b.(type) {
		case Integer:
			return x == y, nil
		case Real:
			return decimal.NewFromInt(int64(x)).Equal(y.val), nil
		}
		return false, nil
	case Real:
		switch y := b.(type) {
		case Integer:
			return x.val.Equal(decimal.NewFromInt(int64(y))), nil
		case Real:
			return x.val.Equal(y.val), nil
		}
		return false, nil
	}

	if a.Kind() != b.Kind() {
		return false, nil
	}

	switch x := a.(type) {
	case Null:
		return true, nil
	case Name:
		return x == b.(Name), nil
	case Operator:
		return x == b.(Operator), nil
	case Reference:
		return x == b.(Reference), nil
	case String:
		y := b.(String)
		if bytes.Equal(x, y) {
			return true, nil
		}
		return norm.NFC.String(x.Text()) == norm.NFC.String(y.Text()), nil
	case *InlineImage:
		y := b.(*InlineImage)
		if x == y {
			return true, nil
		}
		if !bytes.Equal(x.Data, y.Data) {
			return false, nil
		}
		return e.equal(dictOrNull(x.Dict), dictOrNull(y.Dict), depth+1)
	}

	key := [2]container{ca, cb}
	if e.seen[key] || e.seen[[2]container{cb, ca}] {
		return true, nil
	}
	e.seen[key] = true

	switch x := a.(type) {
	case *Array:
		y := b.(*Array)
		if len(x.items) != len(y.items) {
			return false, nil
		}
		for i := range x.items {
			eq, err := e.equalChild(x, x.items[i], y, y.items[i], depth)
			if !eq || err != nil {
				return false, err
			}
		}
		return true, nil
	case *Dict:
		return e.equalDict(x, b.(*Dict), depth)
	case *Stream:
		y := b.(*Stream)
		eq, err := e.equalDict(x.dict, y.dict, depth)
		if !eq || err != nil {
			return false, err
		}
		if len(x.raw) != len(y.raw) {
			return false, nil
		}
		if len(x.raw) > 0 && &x.raw[0] == &y.raw[0] {
			return true, nil
		}
		return bytes.Equal(x.raw, y.raw), nil
	}
	return false, fmt.Errorf("%w: cannot compare %s", ErrUnsupported, a.Kind())
}

func (e *equaler) equalDict(x, y *Dict, depth int) (bool, error) {
	if len(x.m) != len(y.m) {
		return false, nil
	}
	for key, xv := range x.m {
		yv, ok := y.m[key]
		if !ok {
			return false, nil
		}
		eq, err := e.equalChild(x, xv, y, yv, depth)
		if !eq || err != nil {
			return false, err
		}
	}
	return true, nil
}

func (e *equaler) equalChild(pa container, a Object, pb container, b Object, depth int) (bool, error) {
	ra, errA := pa.base().resolve(a)
	rb, errB := pb.base().resolve(b)
	if errA != nil || errB != nil {
		return false, nil
	}
	return e.equal(ra, rb, depth+1)
}

func dictOrNull(d *Dict) Object {
	if d == nil {
		return Null{}
	}
	return d
}

// Hash returns a hash value for a scalar object, consistent with [Equal]:
// objects which are equal have the same hash.  Arrays, dictionaries and
// streams are mutable and cannot be hashed.
func Hash(obj Object) (uint64, error) {
	h := fnv.New64a()
	switch x := obj.(type) {
	case nil, Null:
		h.Write([]byte{'N'})
	case Bool:
		if x {
			h.Write([]byte{'B', 1})
		} else {
			h.Write([]byte{'B', 0})
		}
	case Integer:
		h.Write([]byte{'D'})
		h.Write([]byte(decimal.NewFromInt(int64(x)).String()))
	case Real:
		h.Write([]byte{'D'})
		h.Write([]byte(x.val.String()))
	case Name:
		h.Write([]byte{'/'})
		h.Write([]byte(x))
	case Operator:
		h.Write([]byte{'O'})
		h.Write([]byte(x))
	case String:
		h.Write([]byte{'S'})
		h.Write([]byte(norm.NFC.String(x.Text())))
	case Reference:
		fmt.Fprintf(h, "R%d.%d", x.Number(), x.Generation())
	default:
		return 0, fmt.Errorf("%w: %s objects are mutable and cannot be hashed",
			ErrUnsupported, obj.Kind())
	}
	return h.Sum64(), nil
}
