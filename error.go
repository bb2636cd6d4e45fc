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
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Errors returned by this package.  Every error reported by the object model
// wraps exactly one of these, so that callers can use [errors.Is] to find the
// kind of a failure.
var (
	// ErrStructural indicates that an object has the wrong type for the
	// requested operation, e.g. indexing a non-array.
	ErrStructural = errors.New("wrong object type")

	// ErrBounds indicates an array or page index out of range.
	ErrBounds = errors.New("index out of range")

	// ErrMissingKey indicates that a dictionary key is not present.
	ErrMissingKey = errors.New("key not found")

	// ErrNoAttribute is returned by attribute-style access for missing keys.
	ErrNoAttribute = errors.New("no such attribute")

	// ErrOwnership indicates that an object owned by one document was used
	// in a container owned by a different document.
	ErrOwnership = errors.New("object is owned by a different document")

	// ErrDocumentClosed indicates use of an object after its owning
	// document has been closed.
	ErrDocumentClosed = errors.New("document has been closed")

	// ErrEncoding indicates a value which cannot be represented as a PDF
	// object, or a malformed name.
	ErrEncoding = errors.New("cannot encode value")

	// ErrPassword indicates a wrong or missing password.
	ErrPassword = errors.New("invalid password")

	// ErrFormat indicates malformed or unrecoverable PDF structure.
	ErrFormat = errors.New("malformed PDF structure")

	// ErrUnsupported indicates an operation which is not supported, e.g.
	// hashing a mutable container.
	ErrUnsupported = errors.New("operation not supported")

	// ErrPlugin indicates that a stream filter failed or is not available.
	ErrPlugin = errors.New("stream filter failed")

	// ErrNotDecodable is returned when stream data cannot be decoded.
	// The underlying cause is recorded as a document warning.
	ErrNotDecodable = errors.New("stream data not decodable")

	// ErrRecursionLimit is returned when a structural walk over the object
	// graph exceeds [MaxDepth] levels of nesting.
	ErrRecursionLimit = errors.New("recursion limit exceeded")
)

// MaxDepth is the maximal nesting depth for recursive walks over the object
// graph (equality, copying, printing).
const MaxDepth = 1000

// MalformedFileError indicates that a PDF file could not be parsed.
// Errors of this type match [ErrFormat].
type MalformedFileError struct {
	Pos int64
	Err error
	Loc []string
}

func (err *MalformedFileError) Error() string {
	parts := []string{"not a valid PDF file"}
	for i := len(err.Loc) - 1; i >= 0; i-- {
		parts = append(parts, err.Loc[i])
	}
	if err.Err != nil {
		parts = append(parts, err.Err.Error())
	}
	msg := strings.Join(parts, ": ")
	if err.Pos > 0 {
		msg += " (at byte " + strconv.FormatInt(err.Pos, 10) + ")"
	}
	return msg
}

func (err *MalformedFileError) Unwrap() error {
	return err.Err
}

// Is makes all malformed file errors match [ErrFormat].
func (err *MalformedFileError) Is(target error) bool {
	return target == ErrFormat
}

// Wrap adds location information to a MalformedFileError.
// If err is not a *MalformedFileError, it is returned unchanged.
func Wrap(err error, loc string) error {
	var e *MalformedFileError
	if errors.As(err, &e) {
		e.Loc = append(e.Loc, loc)
	}
	return err
}

// FilterError describes a failure of a stream filter: either a decode
// filter from the filter registry, or a pending token filter.
// Errors of this type match [ErrPlugin].
type FilterError struct {
	Filter string
	Ref    Reference
	Err    error
}

func (err *FilterError) Error() string {
	loc := ""
	if err.Ref != 0 {
		loc = " in " + err.Ref.String()
	}
	return fmt.Sprintf("filter %s failed%s: %v", err.Filter, loc, err.Err)
}

func (err *FilterError) Unwrap() error {
	return err.Err
}

// Is makes all filter errors match [ErrPlugin].
func (err *FilterError) Is(target error) bool {
	return target == ErrPlugin
}

// PanicError is used to report a panic in a callback as an error.
type PanicError struct {
	Value any
}

func (err *PanicError) Error() string {
	return fmt.Sprintf("callback panicked: %v", err.Value)
}

var errInvalidName = fmt.Errorf("%w: names must start with '/' and be non-empty", ErrEncoding)
