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
	"math"

	"seehuhn.de/go/pdfgraph"
)

// Open can be used for the Start or Stop field of a [Slice] to denote an
// omitted bound.
const Open = math.MinInt

// Slice selects a range of pages, in the same way as a Python slice.  A
// Step of 0 is treated as 1.  Negative Start and Stop values count from
// the end of the list.
type Slice struct {
	Start, Stop, Step int
}

// Whole selects the whole list.
var Whole = Slice{Start: Open, Stop: Open, Step: 1}

// indices returns the positions selected by s in a list of length n.
func (s Slice) indices(n int) (start, stop, step int, idx []int) {
	step = s.Step
	if step == 0 {
		step = 1
	}

	clamp := func(v, def, lo, hi int) int {
		if v == Open {
			return def
		}
		if v < 0 {
			v += n
		}
		return max(lo, min(v, hi))
	}
	if step > 0 {
		start = clamp(s.Start, 0, 0, n)
		stop = clamp(s.Stop, n, 0, n)
		for i := start; i < stop; i += step {
			idx = append(idx, i)
		}
	} else {
		start = clamp(s.Start, n-1, -1, n-1)
		stop = clamp(s.Stop, -1, -1, n-1)
		for i := start; i > stop; i += step {
			idx = append(idx, i)
		}
	}
	return start, stop, step, idx
}

// GetSlice returns the pages selected by s.
func (p *Pages) GetSlice(s Slice) ([]*Page, error) {
	refs, err := p.refs()
	if err != nil {
		return nil, err
	}
	_, _, _, idx := s.indices(len(refs))
	res := make([]*Page, 0, len(idx))
	for _, i := range idx {
		pg, err := p.page(refs[i])
		if err != nil {
			return nil, err
		}
		res = append(res, pg)
	}
	return res, nil
}

// DeleteSlice removes the pages selected by s.
func (p *Pages) DeleteSlice(s Slice) error {
	return p.edit(func(l *list) error {
		_, _, _, idx := s.indices(l.kids.Len())
		return l.deleteAll(idx)
	})
}

// deleteAll removes the elements at the given positions of the list.
func (l *list) deleteAll(idx []int) error {
	drop := make(map[int]bool, len(idx))
	for _, i := range idx {
		drop[i] = true
	}
	for i := l.kids.Len() - 1; i >= 0; i-- {
		if drop[i] {
			if err := l.kids.Delete(i); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetSlice replaces the pages selected by s with the given pages.
//
// For slices with step 1, the number of pages may differ from the length
// of the slice, and the list grows or shrinks accordingly.  The new pages
// are inserted before the old ones are removed.  For other step sizes,
// the number of pages must equal the length of the slice.
//
// If an error occurs, the list is left unchanged.
func (p *Pages) SetSlice(s Slice, pages ...pdfgraph.Object) error {
	return p.edit(func(l *list) error {
		start, stop, step, idx := s.indices(l.kids.Len())

		if step != 1 {
			if len(pages) != len(idx) {
				return fmt.Errorf("%w: cannot assign %d pages to an extended slice of length %d",
					pdfgraph.ErrBounds, len(pages), len(idx))
			}
			for k, i := range idx {
				ref, err := l.prepare(pages[k])
				if err != nil {
					return err
				}
				if err := l.kids.Set(i, ref); err != nil {
					return err
				}
			}
			return nil
		}

		stop = max(stop, start)
		for k, page := range pages {
			if err := l.insert(start+k, page); err != nil {
				return err
			}
		}
		old := make([]int, 0, stop-start)
		for i := start; i < stop; i++ {
			old = append(old, i+len(pages))
		}
		return l.deleteAll(old)
	})
}
