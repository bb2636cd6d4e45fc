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

// Package content reads and writes PDF content streams.
//
// A content stream is first broken into [Token]s by a [Tokenizer].  The
// tokens can be rewritten using [TokenFilter]s, or grouped into
// [Instruction]s by [Parse].  Each instruction consists of a list of
// operands followed by an operator.  Inline images are returned as a single
// pseudo-instruction with operator [InlineImageOperator], holding the
// image as its only operand.  [Unparse] converts instructions back into
// content stream bytes.
package content
