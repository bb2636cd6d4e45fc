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
	"bytes"
	"fmt"
	"io"

	"seehuhn.de/go/pdfgraph"
)

// ContentStream returns a reader for the content of a page.  If /Contents
// is an array of streams, the decoded streams are concatenated, separated
// by newline characters.  If the /Contents entry is absent, null, or an
// empty array, an empty reader is returned.
func ContentStream(page *pdfgraph.Dict) (io.Reader, error) {
	if page == nil {
		return nil, fmt.Errorf("%w: missing page dictionary", pdfgraph.ErrStructural)
	}
	doc := page.Owner()
	contents := page.Value("/Contents")

	var a []pdfgraph.Object
	switch contents := contents.(type) {
	case pdfgraph.Null:
		return eofReader{}, nil
	case *pdfgraph.Array:
		for i := range contents.Len() {
			obj, _ := contents.GetRaw(i)
			a = append(a, obj)
		}
		if len(a) == 0 {
			return eofReader{}, nil
		}
	case *pdfgraph.Stream:
		a = []pdfgraph.Object{contents}
	default:
		return nil, fmt.Errorf("%w: /Contents is %s", pdfgraph.ErrStructural, contents.Kind())
	}

	return &contentsReader{
		doc: doc,
		a:   a,
	}, nil
}

type eofReader struct{}

func (e eofReader) Read(_ []byte) (int, error) {
	return 0, io.EOF
}

// a contentsReader allows to read from the contents stream of a PDF page.
type contentsReader struct {
	doc *pdfgraph.Document

	// a lists the stream objects to read from.  The reader returns the
	// contents of each stream in order, separated by newline characters.
	a []pdfgraph.Object

	// err is the first error encountered, or io.EOF once all streams have been exhausted.
	err error

	// current is the reader for the currently active stream, if any.
	current io.Reader

	needNewline bool // true if a newline should be prepended before the next read.
}

func (cr *contentsReader) Read(p []byte) (int, error) {
	if cr.err != nil {
		return 0, cr.err
	}

	if len(p) == 0 {
		return 0, nil
	}

	r, err := cr.getReader()
	if err != nil {
		cr.err = err
		return 0, err
	}

	extra := 0
	if cr.needNewline {
		p[0] = '\n'
		extra = 1
		p = p[1:]
		cr.needNewline = false

		if len(p) == 0 {
			return extra, nil
		}
	}

	n, err := r.Read(p)
	if err == io.EOF {
		cr.current = nil

		if len(cr.a) > 0 {
			// continue with the next stream
			err = nil
			cr.needNewline = true
		} else {
			// end of all streams
			cr.err = io.EOF
			if extra+n > 0 {
				err = nil
			}
		}
	} else if err != nil {
		cr.err = err
		cr.current = nil
	}

	return extra + n, err
}

func (cr *contentsReader) getReader() (io.Reader, error) {
	if cr.current != nil {
		return cr.current, nil
	}

	var stm *pdfgraph.Stream
	for {
		if len(cr.a) == 0 {
			return nil, io.EOF
		}

		obj := cr.a[0]
		cr.a = cr.a[1:]

		var err error
		stm, err = pdfgraph.GetStream(cr.doc, obj)
		if err != nil {
			return nil, err
		}
		if stm != nil {
			break
		}
	}

	data, err := stm.Data()
	if err != nil {
		return nil, err
	}
	cr.current = bytes.NewReader(data)
	return cr.current, nil
}
