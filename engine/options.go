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
	"errors"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"

	"seehuhn.de/go/pdfgraph"
	"seehuhn.de/go/pdfgraph/logger"
)

// ErrInvalidOptions is returned when an option struct fails validation.
var ErrInvalidOptions = errors.New("invalid options")

// ObjectStreamMode selects how object streams are used when writing.
type ObjectStreamMode string

// Object stream modes.
const (
	// ObjectStreamsDisable writes every object on its own, together with
	// a classic cross-reference table.
	ObjectStreamsDisable ObjectStreamMode = "disable"

	// ObjectStreamsPreserve keeps the object stream layout of the input.
	// The in-memory object model does not record which objects were
	// compressed, so the built-in writer treats this like
	// ObjectStreamsDisable.
	ObjectStreamsPreserve ObjectStreamMode = "preserve"

	// ObjectStreamsGenerate packs all eligible objects into object
	// streams and writes a cross-reference stream.
	ObjectStreamsGenerate ObjectStreamMode = "generate"
)

// AccessMode selects how a file is read.
type AccessMode string

// File access modes.
const (
	AccessDefault  AccessMode = "default"
	AccessStream   AccessMode = "stream"
	AccessMmap     AccessMode = "mmap"      // memory-map, fall back to reading
	AccessMmapOnly AccessMode = "mmap_only" // memory-map or fail
)

// WriteOptions control how a document is serialized.
type WriteOptions struct {
	// StaticID writes a fixed /ID.  This is useful for reproducible test
	// output.
	StaticID bool

	// DeterministicID derives the /ID from the file contents.
	DeterministicID bool `validate:"excluded_with=StaticID"`

	// MinVersion is the lowest PDF version to declare in the header.
	// If the document has a higher version, this is used instead.
	MinVersion pdfgraph.Version `validate:"omitempty,min=1,max=9"`

	// ForceVersion, if set, overrides the version of the document.
	ForceVersion pdfgraph.Version `validate:"omitempty,min=1,max=9"`

	// ExtensionLevel is the Adobe extension level to declare in the
	// catalog.  Zero means no extension level.
	ExtensionLevel int `validate:"min=0,max=99"`

	// CompressStreams applies FlateDecode to streams which have no
	// filters.
	CompressStreams bool

	// ObjectStreams selects how object streams are used.  The empty
	// string is equivalent to ObjectStreamsPreserve.
	ObjectStreams ObjectStreamMode `validate:"omitempty,oneof=disable preserve generate"`

	// NormalizeContent rewrites page content streams in a canonical
	// form, one instruction per line.
	NormalizeContent bool

	// Linearize requests a linearized ("fast web view") file.
	Linearize bool

	// QDF writes a file meant for inspection in a text editor: streams
	// are stored uncompressed, page content is normalized and every
	// object is preceded by a comment with its original number.
	QDF bool `validate:"excluded_with=Linearize"`

	// Encryption, if non-nil, requests an encrypted file.
	Encryption *EncryptionParams

	// Progress, if set, is called with the percentage of objects
	// written so far.  The values are non-decreasing and end with 100.
	Progress func(percent int)
}

// DefaultWriteOptions returns the options used when nil is passed to
// [Engine.Save].
func DefaultWriteOptions() *WriteOptions {
	return &WriteOptions{
		CompressStreams: true,
		ObjectStreams:   ObjectStreamsPreserve,
	}
}

// Validate checks the options for consistency.
func (opt *WriteOptions) Validate() error {
	logger.Debug("validating write options")
	if err := validate.Struct(opt); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if opt.ForceVersion != 0 && opt.MinVersion > opt.ForceVersion {
		return fmt.Errorf("%w: MinVersion %s exceeds ForceVersion %s",
			ErrInvalidOptions, opt.MinVersion, opt.ForceVersion)
	}
	if opt.Encryption != nil {
		if err := opt.Encryption.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (opt *WriteOptions) objectStreams() ObjectStreamMode {
	if opt.ObjectStreams == "" {
		return ObjectStreamsPreserve
	}
	return opt.ObjectStreams
}

// OpenOptions control how a file is read.
type OpenOptions struct {
	// Password is used to open encrypted files.
	Password string

	// AttemptRecovery enables reconstruction of the cross-reference
	// table by scanning the file, if the table is missing or damaged.
	AttemptRecovery bool

	// Access selects the file access method.  The empty string is
	// equivalent to AccessDefault.
	Access AccessMode `validate:"omitempty,oneof=default stream mmap mmap_only"`
}

// Validate checks the options for consistency.
func (opt *OpenOptions) Validate() error {
	if err := validate.Struct(opt); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return nil
}

// Saver is implemented by document engines which can write a document to
// a file.
type Saver interface {
	Save(doc *pdfgraph.Document, w io.Writer, opt *WriteOptions) error
}

// Opener is implemented by document engines which can read PDF files.
type Opener interface {
	Open(r io.ReadSeeker, opt *OpenOptions) (*pdfgraph.Document, error)
	OpenFile(path string, opt *OpenOptions) (*pdfgraph.Document, error)
}

var validate = validator.New()
