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

// Package pdfgraph represents PDF documents as in-memory object graphs.
//
// A [Document] owns a set of indirect objects, each identified by a
// [Reference] (object number and generation).  The native PDF object types
// all implement the [Object] interface:
//
//	Null
//	Bool
//	Integer
//	Real
//	Name
//	String
//	Operator
//	*Array
//	*Dict
//	*Stream
//	Reference
//
// Scalars are plain values and can be used freely.  Containers (arrays,
// dictionaries and streams) are handles: a container which has been made
// indirect belongs to exactly one document, and two handles to the same
// indirect object are identical.  Containers store indirect objects by
// reference, and the accessor methods resolve these references through the
// owning document.  Objects can be moved between documents only using
// [Document.CopyForeign].
//
// Dictionary keys are [Name] values including the leading slash, for example
// "/Type".  Setting a dictionary key to null is an error; use Delete instead.
//
// The package is not safe for concurrent use.  All access to one document,
// and to all objects owned by it, must be serialized by the caller.
//
// Subpackages provide support for content streams (content), for the page
// tree (pagetree) and for reading and writing PDF files (engine).
package pdfgraph
