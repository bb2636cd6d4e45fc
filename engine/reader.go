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
	"errors"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"regexp"
	"slices"
	"strconv"

	"seehuhn.de/go/pdfgraph"
	"seehuhn.de/go/pdfgraph/logger"
)

// Open reads a PDF file using the built-in engine.
func Open(r io.ReadSeeker, opt *OpenOptions) (*pdfgraph.Document, error) {
	return Engine{}.Open(r, opt)
}

// OpenFile reads the named PDF file using the built-in engine.
func OpenFile(path string, opt *OpenOptions) (*pdfgraph.Document, error) {
	return Engine{}.OpenFile(path, opt)
}

// OpenFile implements the [Opener] interface.
func (e Engine) OpenFile(path string, opt *OpenOptions) (*pdfgraph.Document, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	return e.Open(fd, opt)
}

// Open implements the [Opener] interface.  The whole file is read into
// memory; afterwards r is no longer used.
func (Engine) Open(r io.ReadSeeker, opt *OpenOptions) (*pdfgraph.Document, error) {
	if opt == nil {
		opt = &OpenOptions{}
	}
	if err := opt.Validate(); err != nil {
		return nil, err
	}

	data, release, err := load(r, opt.Access)
	if err != nil {
		return nil, err
	}
	defer release()

	rd := &reader{
		data:    data,
		doc:     pdfgraph.NewEmptyDocument(),
		opt:     opt,
		objStms: make(map[uint32]*objStm),
	}
	if err := rd.read(); err != nil {
		rd.doc.Close()
		return nil, err
	}
	return rd.doc, nil
}

// load returns the contents of r.  For the memory-mapped access modes,
// release must be called once the data is no longer needed.
func load(r io.ReadSeeker, mode AccessMode) (data []byte, release func(), err error) {
	release = func() {}
	if mode == AccessMmap || mode == AccessMmapOnly {
		fd, isFile := r.(*os.File)
		if isFile {
			data, err = mmapFile(fd)
			if err == nil {
				logger.Debug("memory-mapped input file", "name", fd.Name(), "size", len(data))
				return data, func() { munmap(data) }, nil
			}
		} else {
			err = errors.New("input is not a file")
		}
		if mode == AccessMmapOnly {
			return nil, release, fmt.Errorf("%w: memory mapping failed: %w", pdfgraph.ErrUnsupported, err)
		}
		logger.Debug("memory mapping failed, reading the file instead", "err", err)
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, release, err
	}
	data, err = io.ReadAll(r)
	if err != nil {
		return nil, release, err
	}
	return data, release, nil
}

type reader struct {
	data    []byte
	doc     *pdfgraph.Document
	opt     *OpenOptions
	xref    xrefTable
	objStms map[uint32]*objStm

	// lengths caches /Length values which are indirect objects.
	lengths map[pdfgraph.Reference]int
}

func (r *reader) read() error {
	ver, err := r.readHeader()
	if err != nil {
		if !r.opt.AttemptRecovery {
			return err
		}
		r.doc.Warn("invalid PDF header, assuming PDF 1.7", "err", err)
		ver = pdfgraph.V1_7
	}
	r.doc.Version = ver

	xref, trailer, err := r.readXRef()
	if err != nil {
		if !r.opt.AttemptRecovery {
			return err
		}
		r.doc.Warn("damaged cross-reference table, scanning the file", "err", err)
		xref, trailer = r.reconstruct()
	}
	r.xref = xref

	if trailer.Has("/Encrypt") {
		if r.opt.Password != "" {
			return fmt.Errorf("%w: cannot decrypt, encryption is not supported by this engine",
				pdfgraph.ErrPassword)
		}
		return fmt.Errorf("%w: encrypted files", pdfgraph.ErrUnsupported)
	}

	if err := r.loadObjects(); err != nil {
		return err
	}

	if err := r.setTrailer(trailer); err != nil {
		return err
	}

	root, err := r.doc.Root()
	if err != nil {
		return &pdfgraph.MalformedFileError{Err: err, Loc: []string{"document catalog"}}
	}
	if v, ok := root.Value("/Version").(pdfgraph.Name); ok && len(v) > 1 {
		if catVer, err := pdfgraph.ParseVersion(string(v[1:])); err == nil && catVer > r.doc.Version {
			r.doc.Version = catVer
		}
	}
	logger.Debug("read PDF file",
		"version", r.doc.Version, "objects", len(r.xref), "size", len(r.data))
	return nil
}

func (r *reader) readHeader() (pdfgraph.Version, error) {
	head := r.data[:min(len(r.data), 1024)]
	idx := bytes.Index(head, []byte("%PDF-"))
	if idx < 0 || idx+8 > len(r.data) {
		return 0, &pdfgraph.MalformedFileError{Err: errors.New("PDF header not found")}
	}
	ver, err := pdfgraph.ParseVersion(string(r.data[idx+5 : idx+8]))
	if err != nil {
		return 0, &pdfgraph.MalformedFileError{Pos: int64(idx), Err: err}
	}
	return ver, nil
}

// loadObjects reads all objects listed in the cross-reference table into
// the document.  Object streams and xref streams are removed afterwards,
// since their contents are part of the object graph.
func (r *reader) loadObjects() error {
	nums := slices.Sorted(maps.Keys(r.xref))

	var containers []pdfgraph.Reference
	for _, num := range nums {
		e := r.xref[num]
		if e.free {
			continue
		}
		ref := pdfgraph.NewReference(num, e.gen)
		if err := r.doc.AllocAt(ref); err != nil {
			return err
		}
	}

	// uncompressed objects first, so that object streams are available
	for _, num := range nums {
		e := r.xref[num]
		if e.free || e.stream != 0 {
			continue
		}
		ref := pdfgraph.NewReference(num, e.gen)
		obj, err := r.readAt(ref, e.pos)
		if err != nil {
			if !r.opt.AttemptRecovery {
				return err
			}
			r.doc.Warn("cannot read object", "object", ref, "err", err)
			continue
		}
		if stm, ok := obj.(*pdfgraph.Stream); ok {
			switch stm.Dict().TypeName() {
			case "/ObjStm", "/XRef":
				containers = append(containers, ref)
			}
		}
		if err := r.store(ref, obj); err != nil {
			return err
		}
	}

	for _, num := range nums {
		e := r.xref[num]
		if e.free || e.stream == 0 {
			continue
		}
		ref := pdfgraph.NewReference(num, 0)
		obj, err := r.readCompressed(e.stream, int(e.pos), num)
		if err != nil {
			if !r.opt.AttemptRecovery {
				return err
			}
			r.doc.Warn("cannot read compressed object", "object", ref, "err", err)
			continue
		}
		if err := r.store(ref, obj); err != nil {
			return err
		}
	}

	for _, ref := range containers {
		if err := r.doc.Replace(ref, nil); err != nil {
			return err
		}
	}
	return nil
}

func (r *reader) store(ref pdfgraph.Reference, obj pdfgraph.Object) error {
	err := r.doc.Replace(ref, obj)
	if err != nil && r.opt.AttemptRecovery {
		r.doc.Warn("invalid object", "object", ref, "err", err)
		return nil
	}
	return err
}

// readAt reads the indirect object ref, located at the given offset.
func (r *reader) readAt(ref pdfgraph.Reference, pos int64) (pdfgraph.Object, error) {
	if pos < 0 || pos >= int64(len(r.data)) {
		return nil, &pdfgraph.MalformedFileError{
			Pos: pos,
			Err: fmt.Errorf("offset of %s out of range", ref),
		}
	}
	p := newObjectParser(r.doc, r.data[pos:], pos)
	p.length = r.length
	got, obj, err := p.ReadIndirect()
	if err != nil {
		return nil, err
	}
	if got != ref {
		return nil, &pdfgraph.MalformedFileError{
			Pos: pos,
			Err: fmt.Errorf("expected %s, found %s", ref, got),
		}
	}
	return obj, nil
}

// length resolves an indirect /Length value of a stream.
func (r *reader) length(ref pdfgraph.Reference) (int, bool) {
	if n, ok := r.lengths[ref]; ok {
		return n, true
	}
	e := r.xref[ref.Number()]
	if e == nil || e.free || e.stream != 0 || e.gen != ref.Generation() {
		return 0, false
	}
	p := newObjectParser(r.doc, r.data[min(e.pos, int64(len(r.data))):], e.pos)
	_, obj, err := p.ReadIndirect()
	if err != nil {
		return 0, false
	}
	n, ok := obj.(pdfgraph.Integer)
	if !ok || n < 0 {
		return 0, false
	}
	if r.lengths == nil {
		r.lengths = make(map[pdfgraph.Reference]int)
	}
	r.lengths[ref] = int(n)
	return int(n), true
}

// objStm holds the decoded contents of an object stream.
type objStm struct {
	data    []byte
	numbers []uint32
	offsets []int
}

func (r *reader) objectStream(num uint32) (*objStm, error) {
	if ost, ok := r.objStms[num]; ok {
		return ost, nil
	}
	obj, err := r.doc.Get(pdfgraph.NewReference(num, 0))
	if err != nil {
		return nil, err
	}
	stm, ok := obj.(*pdfgraph.Stream)
	if !ok {
		return nil, fmt.Errorf("%w: object %d is not an object stream", pdfgraph.ErrFormat, num)
	}
	ost, err := parseObjStm(r.doc, stm)
	if err != nil {
		return nil, fmt.Errorf("object stream %d: %w", num, err)
	}
	r.objStms[num] = ost
	return ost, nil
}

func parseObjStm(doc *pdfgraph.Document, stm *pdfgraph.Stream) (*objStm, error) {
	dict := stm.Dict()
	if dict.TypeName() != "/ObjStm" {
		return nil, fmt.Errorf("%w: wrong stream type %s", pdfgraph.ErrFormat, dict.TypeName())
	}
	n, ok1 := dict.Value("/N").(pdfgraph.Integer)
	first, ok2 := dict.Value("/First").(pdfgraph.Integer)
	if !ok1 || !ok2 || n < 0 || first < 0 {
		return nil, fmt.Errorf("%w: invalid /N or /First", pdfgraph.ErrFormat)
	}
	data, err := stm.Data()
	if err != nil {
		return nil, err
	}
	if int64(first) > int64(len(data)) {
		return nil, fmt.Errorf("%w: /First out of range", pdfgraph.ErrFormat)
	}

	res := &objStm{data: data[first:]}
	p := newObjectParser(doc, data[:first], 0)
	for range n {
		a, err := p.ReadObject()
		if err != nil {
			return nil, err
		}
		b, err := p.ReadObject()
		if err != nil {
			return nil, err
		}
		objNum, ok1 := a.(pdfgraph.Integer)
		offs, ok2 := b.(pdfgraph.Integer)
		if !ok1 || !ok2 || objNum <= 0 || objNum > math.MaxUint32 || offs < 0 || int64(offs) > int64(len(res.data)) {
			return nil, fmt.Errorf("%w: invalid object stream header", pdfgraph.ErrFormat)
		}
		res.numbers = append(res.numbers, uint32(objNum))
		res.offsets = append(res.offsets, int(offs))
	}
	return res, nil
}

// object reads the i-th object of the stream.
func (ost *objStm) object(doc *pdfgraph.Document, i int) (pdfgraph.Object, error) {
	p := newObjectParser(doc, ost.data[ost.offsets[i]:], 0)
	return p.ReadObject()
}

func (r *reader) readCompressed(stmNum uint32, idx int, num uint32) (pdfgraph.Object, error) {
	ost, err := r.objectStream(stmNum)
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(ost.numbers) || ost.numbers[idx] != num {
		// fall back to a search, some writers get the index wrong
		idx = slices.Index(ost.numbers, num)
		if idx < 0 {
			return nil, fmt.Errorf("%w: object %d not found in object stream %d",
				pdfgraph.ErrFormat, num, stmNum)
		}
	}
	return ost.object(r.doc, idx)
}

func (r *reader) setTrailer(xrefDict *pdfgraph.Dict) error {
	trailer := r.doc.NewDict()
	for _, key := range []pdfgraph.Name{"/Root", "/Info", "/ID"} {
		val, _ := xrefDict.GetRaw(key)
		if _, isNull := val.(pdfgraph.Null); isNull || val == nil {
			continue
		}
		if err := trailer.Set(key, val); err != nil {
			return err
		}
	}
	return r.doc.SetTrailer(trailer)
}

var objHeader = regexp.MustCompile(`(?m)(?:^|[\r\n\s])(\d{1,10})[ \t\r\n\f\x00]+(\d{1,5})[ \t\r\n\f\x00]+obj\b`)

// reconstruct scans the file for object headers, to rebuild a damaged
// cross-reference table.  Later definitions of an object take precedence.
func (r *reader) reconstruct() (xrefTable, *pdfgraph.Dict) {
	xref := make(xrefTable)
	for _, m := range objHeader.FindAllSubmatchIndex(r.data, -1) {
		num, err1 := strconv.ParseUint(string(r.data[m[2]:m[3]]), 10, 32)
		gen, err2 := strconv.ParseUint(string(r.data[m[4]:m[5]]), 10, 16)
		if err1 != nil || err2 != nil || num == 0 {
			continue
		}
		xref[uint32(num)] = &xrefEntry{pos: int64(m[2]), gen: uint16(gen)}
	}

	trailer := r.doc.NewDict()
	if pos := lastOccurence(r.data, "trailer"); pos >= 0 {
		p := newObjectParser(r.doc, r.data[pos+len("trailer"):], int64(pos+len("trailer")))
		if obj, err := p.ReadObject(); err == nil {
			if dict, ok := obj.(*pdfgraph.Dict); ok {
				trailer = dict
			}
		}
	}
	root := r.scanObjects(xref)
	if !trailer.Has("/Root") && root != 0 {
		trailer.Set("/Root", root)
	}
	logger.Debug("reconstructed xref table", "objects", len(xref))
	return xref, trailer
}

// scanObjects parses the objects found by reconstruct.  The contents of
// object streams are added to xref, and the reference of the first
// catalog dictionary is returned.
func (r *reader) scanObjects(xref xrefTable) pdfgraph.Reference {
	var root pdfgraph.Reference
	isCatalog := func(obj pdfgraph.Object) bool {
		dict, ok := obj.(*pdfgraph.Dict)
		return ok && dict.TypeName() == "/Catalog"
	}
	for _, num := range slices.Sorted(maps.Keys(xref)) {
		e := xref[num]
		p := newObjectParser(r.doc, r.data[e.pos:], e.pos)
		_, obj, err := p.ReadIndirect()
		if err != nil {
			continue
		}
		if root == 0 && isCatalog(obj) {
			root = pdfgraph.NewReference(num, e.gen)
		}
		stm, ok := obj.(*pdfgraph.Stream)
		if !ok || stm.Dict().TypeName() != "/ObjStm" {
			continue
		}
		ost, err := parseObjStm(r.doc, stm)
		if err != nil {
			continue
		}
		for i, n := range ost.numbers {
			xref.set(n, &xrefEntry{pos: int64(i), stream: num})
			if root == 0 {
				if obj, err := ost.object(r.doc, i); err == nil && isCatalog(obj) {
					root = pdfgraph.NewReference(n, 0)
				}
			}
		}
	}
	return root
}
