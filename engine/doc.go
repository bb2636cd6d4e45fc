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


// Package engine connects the object graph of a [pdfgraph.Document] to
// PDF files.
//
// The [Saver] and [Opener] interfaces describe a document engine.  The
// built-in [Engine] reads files with classic cross-reference tables or
// cross-reference streams, and writes the object graph back using either
// form.  Encryption and linearization are only described by the option
// structs; the built-in engine rejects them with
// [pdfgraph.ErrUnsupported].
//
// Options are plain structs which are validated before use:
//
//	opt := &engine.WriteOptions{
//		StaticID:      true,
//		ObjectStreams: engine.ObjectStreamsGenerate,
//	}
//	err := engine.Save(doc, w, opt)
package engine
