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
	"compress/zlib"
	"encoding/ascii85"
	"errors"
	"fmt"
	"io"
	"sync"
)

// StreamFilter decodes stream data for one entry of a stream's /Filter
// list.  The parameters are the corresponding /DecodeParms dictionary, or
// nil.
type StreamFilter interface {
	Decode(data []byte, parms *Dict) ([]byte, error)
}

// StreamEncoder is implemented by filters which can also encode data.
type StreamEncoder interface {
	StreamFilter
	Encode(data []byte, parms *Dict) ([]byte, error)
}

// FilterFunc adapts a function to the [StreamFilter] interface.
type FilterFunc func(data []byte, parms *Dict) ([]byte, error)

// Decode implements the [StreamFilter] interface.
func (f FilterFunc) Decode(data []byte, parms *Dict) ([]byte, error) {
	return f(data, parms)
}

var filters = struct {
	sync.RWMutex
	m map[Name]StreamFilter
}{
	m: map[Name]StreamFilter{
		"/FlateDecode":     flateFilter{},
		"/ASCIIHexDecode":  asciiHexFilter{},
		"/ASCII85Decode":   ascii85Filter{},
		"/RunLengthDecode": FilterFunc(runLengthDecode),
	},
}

// filterAbbreviations lists the short filter names used in inline images.
var filterAbbreviations = map[Name]Name{
	"/AHx": "/ASCIIHexDecode",
	"/A85": "/ASCII85Decode",
	"/LZW": "/LZWDecode",
	"/Fl":  "/FlateDecode",
	"/RL":  "/RunLengthDecode",
	"/CCF": "/CCITTFaxDecode",
	"/DCT": "/DCTDecode",
}

// RegisterFilter installs a decoder for the named stream filter.  This can
// be used to add support for image compression formats which are not
// handled by this package.  Registering a nil filter removes the decoder.
func RegisterFilter(name Name, f StreamFilter) {
	filters.Lock()
	defer filters.Unlock()
	if f == nil {
		delete(filters.m, name)
		return
	}
	filters.m[name] = f
}

// LookupFilter returns the decoder for the named filter.  Abbreviated
// filter names are expanded.
func LookupFilter(name Name) (StreamFilter, bool) {
	if long, ok := filterAbbreviations[name]; ok {
		name = long
	}
	filters.RLock()
	defer filters.RUnlock()
	f, ok := filters.m[name]
	return f, ok
}

// FilterInfo describes one stage of a stream's filter pipeline.
type FilterInfo struct {
	Name  Name
	Parms *Dict
}

// applyDecode runs one filter, converting panics and errors into a
// [FilterError].
func applyDecode(fi FilterInfo, ref Reference, data []byte) (out []byte, err error) {
	f, ok := LookupFilter(fi.Name)
	if !ok {
		return nil, &FilterError{
			Filter: string(fi.Name),
			Ref:    ref,
			Err:    fmt.Errorf("%w: no decoder registered", ErrUnsupported),
		}
	}
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &FilterError{Filter: string(fi.Name), Ref: ref, Err: &PanicError{Value: r}}
		}
	}()
	out, err = f.Decode(data, fi.Parms)
	if err != nil {
		return nil, &FilterError{Filter: string(fi.Name), Ref: ref, Err: err}
	}
	return out, nil
}

type flateFilter struct{}

func (flateFilter) Decode(data []byte, parms *Dict) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	p, err := getPredictorParams(parms)
	if err != nil {
		return nil, err
	}
	return p.undo(out)
}

func (flateFilter) Encode(data []byte, parms *Dict) ([]byte, error) {
	if parms != nil && parms.Has("/Predictor") {
		if pred, _ := parms.Value("/Predictor").(Integer); pred > 1 {
			return nil, fmt.Errorf("%w: encoding with predictor %d", ErrUnsupported, pred)
		}
	}
	buf := &bytes.Buffer{}
	zw, err := zlib.NewWriterLevel(buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	_, err = zw.Write(data)
	if err != nil {
		return nil, err
	}
	err = zw.Close()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type predictorParams struct {
	Predictor        int
	Colors           int
	BitsPerComponent int
	Columns          int
}

func getPredictorParams(parms *Dict) (*predictorParams, error) {
	p := &predictorParams{
		Predictor:        1,
		Colors:           1,
		BitsPerComponent: 8,
		Columns:          1,
	}
	if parms == nil {
		return p, nil
	}
	for key, dst := range map[Name]*int{
		"/Predictor":        &p.Predictor,
		"/Colors":           &p.Colors,
		"/BitsPerComponent": &p.BitsPerComponent,
		"/Columns":          &p.Columns,
	} {
		if val, ok := parms.Value(key).(Integer); ok {
			*dst = int(val)
		}
	}

	if p.Predictor == 1 {
		return p, nil
	}
	if p.Colors < 1 || p.Colors > 256 {
		return nil, fmt.Errorf("invalid /Colors %d", p.Colors)
	}
	switch p.BitsPerComponent {
	case 1, 2, 4, 8, 16:
	default:
		return nil, fmt.Errorf("invalid /BitsPerComponent %d", p.BitsPerComponent)
	}
	if p.Columns < 1 || p.Columns > 1<<20 {
		return nil, fmt.Errorf("invalid /Columns %d", p.Columns)
	}
	switch {
	case p.Predictor == 2:
		if p.BitsPerComponent != 8 && p.BitsPerComponent != 16 {
			return nil, fmt.Errorf("%w: TIFF predictor with %d bits per component",
				ErrUnsupported, p.BitsPerComponent)
		}
	case p.Predictor >= 10 && p.Predictor <= 15:
	default:
		return nil, fmt.Errorf("unsupported predictor %d", p.Predictor)
	}
	return p, nil
}

func (p *predictorParams) bytesPerPixel() int {
	return (p.Colors*p.BitsPerComponent + 7) / 8
}

func (p *predictorParams) bytesPerRow() int {
	return (p.Colors*p.BitsPerComponent*p.Columns + 7) / 8
}

// undo reverses the effect of a TIFF or PNG predictor.
func (p *predictorParams) undo(data []byte) ([]byte, error) {
	switch {
	case p.Predictor == 1:
		return data, nil
	case p.Predictor == 2:
		return p.undoTIFF(data), nil
	default:
		return p.undoPNG(data)
	}
}

func (p *predictorParams) undoTIFF(data []byte) []byte {
	rowLen := p.bytesPerRow()
	out := bytes.Clone(data)
	for start := 0; start < len(out); start += rowLen {
		row := out[start:min(start+rowLen, len(out))]
		if p.BitsPerComponent == 8 {
			for i := p.Colors; i < len(row); i++ {
				row[i] += row[i-p.Colors]
			}
			continue
		}
		step := 2 * p.Colors
		for i := step; i+1 < len(row); i += 2 {
			prev := uint16(row[i-step])<<8 | uint16(row[i-step+1])
			cur := uint16(row[i])<<8 | uint16(row[i+1])
			cur += prev
			row[i] = byte(cur >> 8)
			row[i+1] = byte(cur)
		}
	}
	return out
}

func (p *predictorParams) undoPNG(data []byte) ([]byte, error) {
	rowLen := p.bytesPerRow()
	bpp := p.bytesPerPixel()
	prev := make([]byte, rowLen)
	out := make([]byte, 0, len(data)/(rowLen+1)*rowLen)
	for len(data) > 0 {
		tag := data[0]
		n := min(rowLen, len(data)-1)
		enc := data[1 : 1+n]
		data = data[1+n:]

		row := make([]byte, n)
		for i := range row {
			var left, up, upLeft byte
			if i >= bpp {
				left = row[i-bpp]
				upLeft = prev[i-bpp]
			}
			up = prev[i]

			var pred byte
			switch tag {
			case 0:
			case 1:
				pred = left
			case 2:
				pred = up
			case 3:
				pred = byte((int(left) + int(up)) / 2)
			case 4:
				pred = paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("invalid PNG predictor tag %d", tag)
			}
			row[i] = enc[i] + pred
		}
		out = append(out, row...)
		copy(prev, row)
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))
	if pa <= pb && pa <= pc {
		return a
	} else if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

type asciiHexFilter struct{}

func (asciiHexFilter) Decode(data []byte, _ *Dict) ([]byte, error) {
	out := make([]byte, 0, len(data)/2)
	var hi byte
	haveHi := false
	for _, c := range data {
		var b byte
		switch {
		case c >= '0' && c <= '9':
			b = c - '0'
		case c >= 'A' && c <= 'F':
			b = c - 'A' + 10
		case c >= 'a' && c <= 'f':
			b = c - 'a' + 10
		case c == 0 || c == 9 || c == 10 || c == 12 || c == 13 || c == 32:
			continue
		case c == '>':
			if haveHi {
				out = append(out, hi<<4)
			}
			return out, nil
		default:
			return nil, fmt.Errorf("invalid hex character %q", c)
		}
		if haveHi {
			out = append(out, hi<<4|b)
			haveHi = false
		} else {
			hi = b
			haveHi = true
		}
	}
	if haveHi {
		out = append(out, hi<<4)
	}
	return out, nil
}

func (asciiHexFilter) Encode(data []byte, _ *Dict) ([]byte, error) {
	const digits = "0123456789ABCDEF"
	out := make([]byte, 0, 2*len(data)+len(data)/32+1)
	for i, c := range data {
		if i > 0 && i%32 == 0 {
			out = append(out, '\n')
		}
		out = append(out, digits[c>>4], digits[c&15])
	}
	return append(out, '>'), nil
}

type ascii85Filter struct{}

func (ascii85Filter) Decode(data []byte, _ *Dict) ([]byte, error) {
	data = bytes.TrimLeft(data, " \t\r\n\f\x00")
	data = bytes.TrimPrefix(data, []byte("<~"))
	if k := bytes.Index(data, []byte("~>")); k >= 0 {
		data = data[:k]
	}
	out := make([]byte, 4*len(data)+4)
	n, _, err := ascii85.Decode(out, data, true)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

func (ascii85Filter) Encode(data []byte, _ *Dict) ([]byte, error) {
	out := make([]byte, ascii85.MaxEncodedLen(len(data)))
	n := ascii85.Encode(out, data)
	return append(out[:n], '~', '>'), nil
}

func runLengthDecode(data []byte, _ *Dict) ([]byte, error) {
	var out []byte
	for len(data) > 0 {
		length := data[0]
		data = data[1:]
		switch {
		case length == 128:
			return out, nil
		case length < 128:
			n := int(length) + 1
			if n > len(data) {
				return nil, io.ErrUnexpectedEOF
			}
			out = append(out, data[:n]...)
			data = data[n:]
		default:
			if len(data) == 0 {
				return nil, io.ErrUnexpectedEOF
			}
			out = append(out, bytes.Repeat(data[:1], 257-int(length))...)
			data = data[1:]
		}
	}
	return out, nil
}
