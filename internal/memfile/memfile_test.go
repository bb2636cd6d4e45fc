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


package memfile

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSeekRead(t *testing.T) {
	f := &MemFile{}

	_, err := io.WriteString(f, "hello world")
	require.NoError(t, err)

	_, err = f.Seek(6, io.SeekStart)
	require.NoError(t, err)
	_, err = io.WriteString(f, "there, PDF")
	require.NoError(t, err)
	assert.Equal(t, "hello there, PDF", string(f.Data))

	pos, err := f.Seek(-3, io.SeekEnd)
	require.NoError(t, err)
	assert.EqualValues(t, 13, pos)

	rest, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "PDF", string(rest))
}

func TestWriteBeyondEnd(t *testing.T) {
	f := New([]byte("ab"))
	_, err := f.Seek(4, io.SeekStart)
	require.NoError(t, err)
	_, err = f.Write([]byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 'b', 0, 0, 'x'}, f.Data)
}

func TestReadAt(t *testing.T) {
	f := New([]byte("%PDF-1.7\n"))

	buf := make([]byte, 3)
	n, err := f.ReadAt(buf, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "1.7", string(buf))
	assert.EqualValues(t, 0, f.Offset)

	n, err = f.ReadAt(buf, 7)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, n)
}

func TestSeekErrors(t *testing.T) {
	f := New(nil)
	_, err := f.Seek(-1, io.SeekStart)
	assert.Error(t, err)
	_, err = f.Seek(0, 42)
	assert.Error(t, err)
}

func TestClose(t *testing.T) {
	f := New([]byte("data"))
	require.NoError(t, f.Close())
	_, err := f.Read(make([]byte, 1))
	assert.Error(t, err)
	assert.Equal(t, "data", string(f.Data))
}
