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


// Package memfile implements an in-memory file, for use in tests of code
// which reads and writes PDF files.
package memfile

import (
	"errors"
	"io"
)

// MemFile is a file held in memory.  The zero value is an empty file.
//
// MemFile implements [io.ReadWriteSeeker], [io.ReaderAt] and [io.Closer].
type MemFile struct {
	// Data are the file contents.
	Data []byte

	// Offset is the current file offset.
	Offset int64

	closed bool
}

// New creates a MemFile holding a copy of data, positioned at the start.
func New(data []byte) *MemFile {
	return &MemFile{Data: append([]byte(nil), data...)}
}

// Write writes data at the current offset, extending the file as needed.
func (f *MemFile) Write(p []byte) (int, error) {
	if f.closed {
		return 0, errClosed
	}
	end := f.Offset + int64(len(p))
	if end > int64(len(f.Data)) {
		if end > int64(cap(f.Data)) {
			grown := make([]byte, end, max(end, 2*int64(cap(f.Data))))
			copy(grown, f.Data)
			f.Data = grown
		} else {
			f.Data = f.Data[:end]
		}
	}
	n := copy(f.Data[f.Offset:], p)
	f.Offset += int64(n)
	return n, nil
}

// Read reads data from the current offset.
func (f *MemFile) Read(p []byte) (int, error) {
	if f.closed {
		return 0, errClosed
	}
	if f.Offset >= int64(len(f.Data)) {
		return 0, io.EOF
	}
	n := copy(p, f.Data[f.Offset:])
	f.Offset += int64(n)
	return n, nil
}

// ReadAt reads len(p) bytes starting at offset off.  The file offset is
// not changed.
func (f *MemFile) ReadAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, errClosed
	}
	if off < 0 {
		return 0, errInvalidOffset
	}
	if off >= int64(len(f.Data)) {
		return 0, io.EOF
	}
	n := copy(p, f.Data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Seek sets the offset for the next Read or Write.
func (f *MemFile) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, errClosed
	}
	var newOffset int64
	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekCurrent:
		newOffset = f.Offset + offset
	case io.SeekEnd:
		newOffset = int64(len(f.Data)) + offset
	default:
		return 0, errInvalidWhence
	}
	if newOffset < 0 {
		return 0, errInvalidOffset
	}
	f.Offset = newOffset
	return newOffset, nil
}

// Size returns the current length of the file.
func (f *MemFile) Size() int64 {
	return int64(len(f.Data))
}

// Close marks the file as closed.  The contents remain available in
// the Data field.
func (f *MemFile) Close() error {
	f.closed = true
	return nil
}

var (
	errInvalidWhence = errors.New("invalid whence")
	errInvalidOffset = errors.New("invalid offset")
	errClosed        = errors.New("file already closed")
)
