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


package engine

import (
	"bytes"
	"crypto/md5"
	"crypto/rand"
	"fmt"
	"hash"
	"io"
	"os"

	"seehuhn.de/go/pdfgraph"
	"seehuhn.de/go/pdfgraph/content"
	"seehuhn.de/go/pdfgraph/logger"
	"seehuhn.de/go/pdfgraph/pagetree"
)

// Engine is the built-in document engine.  It implements both [Saver]
// and [Opener].
type Engine struct{}

var (
	_ Saver  = Engine{}
	_ Opener = Engine{}
)

// Save writes doc to w using the built-in engine.
func Save(doc *pdfgraph.Document, w io.Writer, opt *WriteOptions) error {
	return Engine{}.Save(doc, w, opt)
}

// SaveFile writes doc to the named file.  If the file exists, it is
// overwritten.
func SaveFile(doc *pdfgraph.Document, path string, opt *WriteOptions) error {
	fd, err := os.Create(path)
	if err != nil {
		return err
	}
	err = Engine{}.Save(doc, fd, opt)
	err2 := fd.Close()
	if err == nil {
		err = err2
	}
	return err
}

// Save implements the [Saver] interface.  If opt is nil,
// [DefaultWriteOptions] are used.
//
// Objects keep their numbers.  Streams with attached rewriters are
// written with the rewritten data.  Linearized and encrypted output are
// not implemented; the corresponding options are validated and then
// rejected with [pdfgraph.ErrUnsupported].
func (Engine) Save(doc *pdfgraph.Document, w io.Writer, opt *WriteOptions) error {
	if opt == nil {
		opt = DefaultWriteOptions()
	}
	if err := opt.Validate(); err != nil {
		return err
	}
	if opt.Linearize {
		return fmt.Errorf("%w: linearized output", pdfgraph.ErrUnsupported)
	}
	if opt.Encryption != nil {
		return fmt.Errorf("%w: encrypted output", pdfgraph.ErrUnsupported)
	}
	if doc.IsClosed() {
		return pdfgraph.ErrDocumentClosed
	}
	if _, err := doc.Root(); err != nil {
		return err
	}

	s := &serializer{
		doc:  doc,
		opt:  opt,
		out:  &posWriter{w: w},
		xref: make(map[uint32]*xrefEntry),
	}
	if opt.DeterministicID {
		s.out.h = md5.New()
	}
	return s.run()
}

type serializer struct {
	doc  *pdfgraph.Document
	opt  *WriteOptions
	out  *posWriter
	xref map[uint32]*xrefEntry
	size uint32

	version pdfgraph.Version

	// normalize lists the page content streams to rewrite.
	normalize map[pdfgraph.Reference]bool

	progress int
}

func (s *serializer) run() error {
	s.version = s.doc.Version
	if s.opt.MinVersion > s.version {
		s.version = s.opt.MinVersion
	}
	if s.opt.ForceVersion != 0 {
		s.version = s.opt.ForceVersion
	}
	mode := s.opt.objectStreams()
	if mode == ObjectStreamsGenerate && s.version < pdfgraph.V1_5 {
		logger.Debug("object streams require PDF 1.5", "version", s.version)
		s.version = pdfgraph.V1_5
	}
	verString, err := s.version.ToString()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(s.out, "%%PDF-%s\n%%\x80\x80\x80\x80\n", verString)
	if err != nil {
		return err
	}
	if s.opt.QDF {
		_, err = s.out.Write([]byte("%QDF-1.0\n\n"))
		if err != nil {
			return err
		}
	}

	if s.opt.NormalizeContent || s.opt.QDF {
		s.normalize = pageContents(s.doc)
	}

	var refs []pdfgraph.Reference
	var objs []pdfgraph.Object
	for ref, obj := range s.doc.Objects() {
		refs = append(refs, ref)
		objs = append(objs, obj)
	}
	s.size = s.doc.NumObjects()
	logger.Debug("writing PDF file",
		"version", s.version, "objects", len(refs), "objectStreams", mode)

	var packed []pdfgraph.Reference
	for i, ref := range refs {
		obj := objs[i]
		if mode == ObjectStreamsGenerate && canCompress(ref, obj) {
			packed = append(packed, ref)
			continue
		}
		if err := s.writeIndirect(ref, obj); err != nil {
			return pdfgraph.Wrap(err, "object "+ref.String())
		}
		s.report(i+1, len(refs))
	}

	trailer, err := s.trailer()
	if err != nil {
		return err
	}

	if mode == ObjectStreamsGenerate {
		if err := s.writeObjectStreams(packed); err != nil {
			return err
		}
		if err := s.finishXRefStream(trailer); err != nil {
			return err
		}
	} else {
		xrefPos := s.out.pos
		if err := s.setID(trailer); err != nil {
			return err
		}
		if err := s.writeXRefTable(trailer); err != nil {
			return err
		}
		_, err = fmt.Fprintf(s.out, "\nstartxref\n%d\n%%%%EOF\n", xrefPos)
		if err != nil {
			return err
		}
	}
	s.report(1, 1)
	return nil
}

// report calls the progress callback with non-decreasing percentages.
func (s *serializer) report(done, total int) {
	if s.opt.Progress == nil {
		return
	}
	percent := 100
	if total > 0 {
		percent = done * 100 / total
	}
	if percent > s.progress || (percent == 100 && s.progress < 100) {
		s.progress = percent
		s.opt.Progress(percent)
	}
}

// pageContents collects the content streams of all pages.
func pageContents(doc *pdfgraph.Document) map[pdfgraph.Reference]bool {
	res := make(map[pdfgraph.Reference]bool)
	for _, page := range pagetree.New(doc).All() {
		contents, _ := page.Obj().GetRaw("/Contents")
		switch c := contents.(type) {
		case pdfgraph.Reference:
			res[c] = true
		case *pdfgraph.Array:
			for i := range c.Len() {
				obj, err := c.GetRaw(i)
				if ref, isRef := obj.(pdfgraph.Reference); err == nil && isRef {
					res[ref] = true
				}
			}
		}
	}
	return res
}

func canCompress(ref pdfgraph.Reference, obj pdfgraph.Object) bool {
	if ref.Generation() != 0 {
		return false
	}
	_, isStream := obj.(*pdfgraph.Stream)
	return !isStream
}

func (s *serializer) writeIndirect(ref pdfgraph.Reference, obj pdfgraph.Object) error {
	if s.opt.QDF {
		_, err := fmt.Fprintf(s.out, "%%%% Original object ID: %d %d\n",
			ref.Number(), ref.Generation())
		if err != nil {
			return err
		}
	}

	s.xref[ref.Number()] = &xrefEntry{pos: s.out.pos, gen: ref.Generation()}
	_, err := fmt.Fprintf(s.out, "%d %d obj\n", ref.Number(), ref.Generation())
	if err != nil {
		return err
	}

	switch x := obj.(type) {
	case *pdfgraph.Stream:
		err = s.writeStream(ref, x)
	case *pdfgraph.Dict:
		err = s.writeDict(ref, x)
	default:
		err = obj.PDF(s.out)
	}
	if err != nil {
		return err
	}

	_, err = s.out.Write([]byte("\nendobj\n"))
	return err
}

// writeDict writes a dictionary.  The catalog receives the extension
// level, if one is requested.
func (s *serializer) writeDict(ref pdfgraph.Reference, dict *pdfgraph.Dict) error {
	rootRef, _ := s.doc.Trailer().GetRaw("/Root")
	if s.opt.ExtensionLevel == 0 || rootRef != ref {
		return dict.PDF(s.out)
	}

	verString, err := s.version.ToString()
	if err != nil {
		return err
	}
	adbe := s.doc.NewDict()
	if err := adbe.Set("/BaseVersion", pdfgraph.Name("/"+verString)); err != nil {
		return err
	}
	if err := adbe.Set("/ExtensionLevel", pdfgraph.Integer(s.opt.ExtensionLevel)); err != nil {
		return err
	}
	ext := s.doc.NewDict()
	if err := ext.Set("/ADBE", adbe); err != nil {
		return err
	}
	catalog, err := copyEntries(s.doc, dict, "/Extensions")
	if err != nil {
		return err
	}
	if err := catalog.Set("/Extensions", ext); err != nil {
		return err
	}
	return catalog.PDF(s.out)
}

// copyEntries returns a direct copy of the dictionary, without the given
// keys.  Values are shared with the original.
func copyEntries(doc *pdfgraph.Document, d *pdfgraph.Dict, omit ...pdfgraph.Name) (*pdfgraph.Dict, error) {
	res := doc.NewDict()
keys:
	for _, key := range d.Keys() {
		for _, o := range omit {
			if key == o {
				continue keys
			}
		}
		val, err := d.GetRaw(key)
		if err != nil {
			return nil, err
		}
		if err := res.Set(key, val); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// writeStream writes a stream object.  Streams are written unchanged,
// unless the data needs to be rewritten: attached rewriters, content
// normalization and QDF mode require decoding.
func (s *serializer) writeStream(ref pdfgraph.Reference, stm *pdfgraph.Stream) error {
	filters, err := stm.Filters()
	if err != nil {
		return err
	}

	var data []byte
	decoded := false
	switch {
	case s.normalize[ref]:
		data, decoded = s.normalized(ref, stm)
	case stm.HasRewriters():
		data, err = stm.Data()
		decoded = err == nil
	case s.opt.QDF && len(filters) > 0:
		data, err = stm.Decoded()
		decoded = err == nil
	}

	if !decoded {
		data, err = stm.RawData()
		if err != nil {
			return err
		}
		if len(filters) > 0 || !s.opt.CompressStreams || s.opt.QDF {
			return s.writeStreamData(stm.Dict(), nil, data, false)
		}
	}

	if s.opt.CompressStreams && !s.opt.QDF {
		compressed, err := flateEncode(data)
		if err != nil {
			return err
		}
		return s.writeStreamData(stm.Dict(), pdfgraph.Name("/FlateDecode"), compressed, true)
	}
	return s.writeStreamData(stm.Dict(), nil, data, true)
}

// normalized returns the content stream with one instruction per line.
// If the stream cannot be decoded or parsed, the second return value is
// false.
func (s *serializer) normalized(ref pdfgraph.Reference, stm *pdfgraph.Stream) ([]byte, bool) {
	data, err := stm.Data()
	if err != nil {
		return nil, false
	}
	res, err := content.Parse(data, nil)
	if err != nil {
		s.doc.Warn("cannot normalize content stream", "object", ref, "err", err)
		return data, true
	}
	out, err := content.Unparse(res.Instructions)
	if err != nil {
		s.doc.Warn("cannot normalize content stream", "object", ref, "err", err)
		return data, true
	}
	return out, true
}

// writeStreamData writes the stream dictionary and data.  If replace is
// set, the /Filter and /DecodeParms entries are replaced by the given
// filter.
func (s *serializer) writeStreamData(dict *pdfgraph.Dict, filter pdfgraph.Object, data []byte, replace bool) error {
	omit := []pdfgraph.Name{"/Length"}
	if replace {
		omit = append(omit, "/Filter", "/DecodeParms")
	}
	out, err := copyEntries(s.doc, dict, omit...)
	if err != nil {
		return err
	}
	if err := out.Set("/Length", pdfgraph.Integer(len(data))); err != nil {
		return err
	}
	if replace && filter != nil {
		if err := out.Set("/Filter", filter); err != nil {
			return err
		}
	}

	if err := out.PDF(s.out); err != nil {
		return err
	}
	if _, err := s.out.Write([]byte("\nstream\n")); err != nil {
		return err
	}
	if _, err := s.out.Write(data); err != nil {
		return err
	}
	_, err = s.out.Write([]byte("\nendstream"))
	return err
}

func flateEncode(data []byte) ([]byte, error) {
	f, ok := pdfgraph.LookupFilter("/FlateDecode")
	enc, isEncoder := f.(pdfgraph.StreamEncoder)
	if !ok || !isEncoder {
		return nil, fmt.Errorf("%w: no FlateDecode encoder", pdfgraph.ErrUnsupported)
	}
	return enc.Encode(data, nil)
}

// trailer builds the trailer dictionary, without /ID.
func (s *serializer) trailer() (*pdfgraph.Dict, error) {
	trailer, err := copyEntries(s.doc, s.doc.Trailer(),
		"/Size", "/Prev", "/XRefStm", "/Encrypt", "/ID")
	if err != nil {
		return nil, err
	}
	return trailer, nil
}

// staticID is used for the /ID entry when [WriteOptions.StaticID] is set.
var staticID = []byte{
	0x31, 0x41, 0x59, 0x26, 0x53, 0x58, 0x97, 0x93,
	0x23, 0x84, 0x62, 0x64, 0x33, 0x83, 0x27, 0x95,
}

// setID adds the /ID and /Size entries to the trailer.  The first
// element of an existing /ID is kept, since it identifies the original
// file.
func (s *serializer) setID(trailer *pdfgraph.Dict) error {
	if err := trailer.Set("/Size", pdfgraph.Integer(s.size)); err != nil {
		return err
	}

	var id []byte
	switch {
	case s.opt.StaticID:
		id = staticID
	case s.opt.DeterministicID:
		id = s.out.h.Sum(nil)
	default:
		id = make([]byte, 16)
		if _, err := rand.Read(id); err != nil {
			return err
		}
	}

	first := id
	if !s.opt.StaticID && !s.opt.DeterministicID {
		if old, ok := s.doc.Trailer().Value("/ID").(*pdfgraph.Array); ok && old.Len() == 2 {
			if orig, err := old.Get(0); err == nil {
				if orig, ok := orig.(pdfgraph.String); ok && len(orig) > 0 {
					first = orig
				}
			}
		}
	}
	ids, err := pdfgraph.NewArray(pdfgraph.String(first), pdfgraph.String(id))
	if err != nil {
		return err
	}
	return trailer.Set("/ID", ids)
}

// writeObjectStreams packs the given objects into object streams of at
// most objStmSize objects each.
func (s *serializer) writeObjectStreams(refs []pdfgraph.Reference) error {
	for len(refs) > 0 {
		n := min(len(refs), objStmSize)
		if err := s.writeObjectStream(refs[:n]); err != nil {
			return err
		}
		refs = refs[n:]
	}
	return nil
}

const objStmSize = 100

func (s *serializer) writeObjectStream(refs []pdfgraph.Reference) error {
	stmNum := s.size
	s.size++

	head := &bytes.Buffer{}
	body := &bytes.Buffer{}
	for i, ref := range refs {
		obj, err := s.doc.Get(ref)
		if err != nil {
			return err
		}
		fmt.Fprintf(head, "%d %d ", ref.Number(), body.Len())
		if err := obj.PDF(body); err != nil {
			return pdfgraph.Wrap(err, "object "+ref.String())
		}
		body.WriteByte('\n')
		s.xref[ref.Number()] = &xrefEntry{pos: int64(i), stream: stmNum}
	}
	head.WriteByte('\n')

	dict := s.doc.NewDict()
	entries := []struct {
		key pdfgraph.Name
		val pdfgraph.Object
	}{
		{"/Type", pdfgraph.Name("/ObjStm")},
		{"/N", pdfgraph.Integer(len(refs))},
		{"/First", pdfgraph.Integer(head.Len())},
	}
	for _, e := range entries {
		if err := dict.Set(e.key, e.val); err != nil {
			return err
		}
	}

	data := append(head.Bytes(), body.Bytes()...)
	var filter pdfgraph.Object
	if s.opt.CompressStreams && !s.opt.QDF {
		var err error
		data, err = flateEncode(data)
		if err != nil {
			return err
		}
		filter = pdfgraph.Name("/FlateDecode")
	}

	s.xref[stmNum] = &xrefEntry{pos: s.out.pos}
	if _, err := fmt.Fprintf(s.out, "%d 0 obj\n", stmNum); err != nil {
		return err
	}
	if err := s.writeStreamData(dict, filter, data, true); err != nil {
		return err
	}
	_, err := s.out.Write([]byte("\nendobj\n"))
	return err
}

// finishXRefStream writes the cross-reference stream, which also serves
// as the trailer.
func (s *serializer) finishXRefStream(trailer *pdfgraph.Dict) error {
	xrefNum := s.size
	s.size++
	xrefPos := s.out.pos
	s.xref[xrefNum] = &xrefEntry{pos: xrefPos}

	if err := s.setID(trailer); err != nil {
		return err
	}
	data, w := s.xrefStreamData()
	W, err := pdfgraph.NewArray(pdfgraph.Integer(w[0]), pdfgraph.Integer(w[1]), pdfgraph.Integer(w[2]))
	if err != nil {
		return err
	}
	if err := trailer.Set("/Type", pdfgraph.Name("/XRef")); err != nil {
		return err
	}
	if err := trailer.Set("/W", W); err != nil {
		return err
	}

	var filter pdfgraph.Object
	if s.opt.CompressStreams && !s.opt.QDF {
		data, err = flateEncode(data)
		if err != nil {
			return err
		}
		filter = pdfgraph.Name("/FlateDecode")
	}

	if _, err := fmt.Fprintf(s.out, "%d 0 obj\n", xrefNum); err != nil {
		return err
	}
	if err := s.writeStreamData(trailer, filter, data, true); err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.out, "\nendobj\nstartxref\n%d\n%%%%EOF\n", xrefPos)
	return err
}

type posWriter struct {
	w   io.Writer
	pos int64
	h   hash.Hash // if non-nil, receives a copy of the output
}

func (w *posWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.pos += int64(n)
	if w.h != nil {
		w.h.Write(p[:n])
	}
	return n, err
}
