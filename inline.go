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
)

// InlineImage is an image embedded directly in a content stream, between
// the operators BI, ID and EI.  Inline images cannot be stored in arrays,
// dictionaries or as indirect objects.
type InlineImage struct {
	// Dict holds the image parameters.  Keys may use the abbreviated
	// forms allowed for inline images, e.g. /W for /Width.
	Dict *Dict

	// Data is the image data between the ID and EI operators.
	Data []byte

	// Raw, if set, holds the source bytes from BI to EI inclusive.  When
	// present, these are written out unchanged.
	Raw []byte
}

// Kind implements the [Object] interface.
func (img *InlineImage) Kind() Kind { return KindInlineImage }

// PDF implements the [Object] interface.
func (img *InlineImage) PDF(w io.Writer) error {
	if img.Raw != nil {
		_, err := w.Write(img.Raw)
		return err
	}

	_, err := w.Write([]byte("BI\n"))
	if err != nil {
		return err
	}
	if img.Dict != nil {
		for _, key := range img.Dict.keys {
			err = key.PDF(w)
			if err != nil {
				return err
			}
			_, err = w.Write([]byte(" "))
			if err != nil {
				return err
			}
			err = writeObject(w, img.Dict.m[key])
			if err != nil {
				return err
			}
			_, err = w.Write([]byte("\n"))
			if err != nil {
				return err
			}
		}
	}
	_, err = w.Write([]byte("ID\n"))
	if err != nil {
		return err
	}
	_, err = w.Write(img.Data)
	if err != nil {
		return err
	}
	_, err = w.Write([]byte("\nEI"))
	return err
}

// Filters returns the filter pipeline of the image data.
func (img *InlineImage) Filters() ([]FilterInfo, error) {
	if img.Dict == nil {
		return nil, nil
	}
	filter := img.Dict.Value("/F")
	if isNull(filter) {
		filter = img.Dict.Value("/Filter")
	}
	parms := img.Dict.Value("/DP")
	if isNull(parms) {
		parms = img.Dict.Value("/DecodeParms")
	}
	return parseFilters(filter, parms)
}

// Decoded returns the image data with all filters removed.
func (img *InlineImage) Decoded() ([]byte, error) {
	ff, err := img.Filters()
	if err != nil {
		return nil, err
	}
	data := img.Data
	for _, fi := range ff {
		data, err = applyDecode(fi, 0, data)
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (img *InlineImage) String() string {
	n := 0
	if img.Dict != nil {
		n = img.Dict.Len()
	}
	return fmt.Sprintf("<InlineImage, %d parameters, %d bytes>", n, len(img.Data))
}
