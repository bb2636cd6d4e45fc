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


package engine_test

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seehuhn.de/go/pdfgraph"
	"seehuhn.de/go/pdfgraph/content"
	"seehuhn.de/go/pdfgraph/engine"
	"seehuhn.de/go/pdfgraph/internal/memfile"
	"seehuhn.de/go/pdfgraph/pagetree"
)

var testContents = []string{
	"0 0 m\n100 100 l\nS",
	"BT\n/F1 12 Tf\n(Hello) Tj\nET",
}

// makeDoc returns a document with two pages and an info dictionary.
func makeDoc(t *testing.T) *pdfgraph.Document {
	t.Helper()
	doc := pdfgraph.NewDocument()
	pages := pagetree.New(doc)
	for _, data := range testContents {
		mbox, err := pdfgraph.NewArray(pdfgraph.Integer(0), pdfgraph.Integer(0),
			pdfgraph.Integer(612), pdfgraph.Integer(792))
		require.NoError(t, err)
		page := doc.NewDict()
		require.NoError(t, page.Set("/Type", pdfgraph.Name("/Page")))
		require.NoError(t, page.Set("/MediaBox", mbox))
		require.NoError(t, pages.Append(page))

		n, err := pages.Len()
		require.NoError(t, err)
		pg, err := pages.Get(n - 1)
		require.NoError(t, err)
		require.NoError(t, pg.SetContent([]byte(data)))
	}

	info := doc.NewDict()
	require.NoError(t, info.Set("/Title", pdfgraph.NewUnicodeString("Round Trip")))
	ref, err := doc.MakeIndirect(info)
	require.NoError(t, err)
	require.NoError(t, doc.Trailer().Set("/Info", ref))
	return doc
}

func save(t *testing.T, doc *pdfgraph.Document, opt *engine.WriteOptions) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, engine.Save(doc, buf, opt))
	return buf.Bytes()
}

func reopen(t *testing.T, data []byte) *pdfgraph.Document {
	t.Helper()
	doc, err := engine.Open(memfile.New(data), nil)
	require.NoError(t, err)
	return doc
}

func pageContent(t *testing.T, doc *pdfgraph.Document, i int) string {
	t.Helper()
	pg, err := pagetree.New(doc).Get(i)
	require.NoError(t, err)
	data, err := pg.ContentBytes()
	require.NoError(t, err)
	return string(data)
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		opt  *engine.WriteOptions
	}{
		{"defaults", nil},
		{"uncompressed", &engine.WriteOptions{}},
		{"object streams", &engine.WriteOptions{
			ObjectStreams:   engine.ObjectStreamsGenerate,
			CompressStreams: true,
		}},
		{"object streams uncompressed", &engine.WriteOptions{
			ObjectStreams: engine.ObjectStreamsGenerate,
		}},
		{"QDF", &engine.WriteOptions{QDF: true}},
		{"normalized", &engine.WriteOptions{NormalizeContent: true, CompressStreams: true}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			data := save(t, makeDoc(t), c.opt)
			doc := reopen(t, data)
			defer doc.Close()

			n, err := pagetree.New(doc).Len()
			require.NoError(t, err)
			require.Equal(t, len(testContents), n)
			for i, want := range testContents {
				assert.Equal(t, want, pageContent(t, doc, i))
			}

			info, err := pdfgraph.GetDict(doc, doc.Trailer().Value("/Info"))
			require.NoError(t, err)
			title, ok := info.Value("/Title").(pdfgraph.String)
			require.True(t, ok)
			assert.Equal(t, "Round Trip", title.Text())

			pg, err := pagetree.New(doc).Get(1)
			require.NoError(t, err)
			mbox, err := pg.MediaBox()
			require.NoError(t, err)
			assert.Equal(t, 4, mbox.Len())

			assert.Empty(t, doc.Warnings())
		})
	}
}

func TestCompression(t *testing.T) {
	doc := makeDoc(t)

	plain := save(t, doc, &engine.WriteOptions{})
	assert.NotContains(t, string(plain), "/FlateDecode")
	assert.Contains(t, string(plain), testContents[1])

	packed := save(t, doc, &engine.WriteOptions{CompressStreams: true})
	assert.Contains(t, string(packed), "/FlateDecode")
	assert.NotContains(t, string(packed), testContents[1])

	// the document itself is not changed by compressed output
	pg, err := pagetree.New(doc).Get(1)
	require.NoError(t, err)
	stm, err := pdfgraph.GetStream(doc, pg.Obj().Value("/Contents"))
	require.NoError(t, err)
	assert.False(t, stm.Has("/Filter"))
}

func TestObjectStreamLayout(t *testing.T) {
	data := save(t, makeDoc(t), &engine.WriteOptions{
		ObjectStreams: engine.ObjectStreamsGenerate,
	})
	s := string(data)
	assert.True(t, strings.HasPrefix(s, "%PDF-1.7\n"))
	assert.Contains(t, s, "/Type /ObjStm")
	assert.Contains(t, s, "/Type /XRef")
	assert.NotContains(t, s, "\nxref\n")
	assert.NotContains(t, s, "\ntrailer\n")

	// the container streams do not appear in the object graph
	doc := reopen(t, data)
	for _, obj := range doc.Objects() {
		if stm, ok := obj.(*pdfgraph.Stream); ok {
			tp := stm.Dict().TypeName()
			assert.NotEqual(t, pdfgraph.Name("/ObjStm"), tp)
			assert.NotEqual(t, pdfgraph.Name("/XRef"), tp)
		}
	}
}

func TestNormalizeContent(t *testing.T) {
	raw := "q  1 0 0 1 10 20 cm\r\n0 0 m 5 5 l S\tQ"
	doc := pdfgraph.NewDocument()
	pages := pagetree.New(doc)
	page := doc.NewDict()
	require.NoError(t, page.Set("/Type", pdfgraph.Name("/Page")))
	require.NoError(t, pages.Append(page))
	pg, err := pages.Get(0)
	require.NoError(t, err)
	require.NoError(t, pg.SetContent([]byte(raw)))

	res, err := content.Parse([]byte(raw), nil)
	require.NoError(t, err)
	want, err := content.Unparse(res.Instructions)
	require.NoError(t, err)

	for _, opt := range []*engine.WriteOptions{
		{NormalizeContent: true},
		{QDF: true},
	} {
		doc2 := reopen(t, save(t, doc, opt))
		assert.Equal(t, string(want), pageContent(t, doc2, 0))
	}

	doc2 := reopen(t, save(t, doc, &engine.WriteOptions{}))
	assert.Equal(t, raw, pageContent(t, doc2, 0))
}

func TestQDF(t *testing.T) {
	data := save(t, makeDoc(t), &engine.WriteOptions{QDF: true, CompressStreams: true})
	s := string(data)
	assert.Contains(t, s, "%QDF-1.0\n")
	assert.Contains(t, s, "%% Original object ID: 1 0\n")
	assert.NotContains(t, s, "/FlateDecode")
}

func TestIDs(t *testing.T) {
	doc := makeDoc(t)

	static1 := save(t, doc, &engine.WriteOptions{StaticID: true})
	static2 := save(t, doc, &engine.WriteOptions{StaticID: true})
	assert.Equal(t, static1, static2)

	det1 := save(t, doc, &engine.WriteOptions{DeterministicID: true})
	det2 := save(t, doc, &engine.WriteOptions{DeterministicID: true})
	assert.Equal(t, det1, det2)
	assert.NotEqual(t, static1, det1)

	rand1 := save(t, doc, &engine.WriteOptions{})
	rand2 := save(t, doc, &engine.WriteOptions{})
	assert.NotEqual(t, rand1, rand2)

	// a new random ID keeps the first part of the existing one
	doc2 := reopen(t, rand1)
	id1, err := pdfgraph.GetArray(doc2, doc2.Trailer().Value("/ID"))
	require.NoError(t, err)
	doc3 := reopen(t, save(t, doc2, &engine.WriteOptions{}))
	id2, err := pdfgraph.GetArray(doc3, doc3.Trailer().Value("/ID"))
	require.NoError(t, err)
	first1, _ := id1.Get(0)
	first2, _ := id2.Get(0)
	second1, _ := id1.Get(1)
	second2, _ := id2.Get(1)
	assert.Equal(t, first1, first2)
	assert.NotEqual(t, second1, second2)
}

func TestVersionHeader(t *testing.T) {
	cases := []struct {
		docVersion pdfgraph.Version
		opt        *engine.WriteOptions
		want       string
	}{
		{pdfgraph.V1_4, &engine.WriteOptions{}, "%PDF-1.4\n"},
		{pdfgraph.V1_4, &engine.WriteOptions{MinVersion: pdfgraph.V1_6}, "%PDF-1.6\n"},
		{pdfgraph.V1_7, &engine.WriteOptions{MinVersion: pdfgraph.V1_6}, "%PDF-1.7\n"},
		{pdfgraph.V1_7, &engine.WriteOptions{ForceVersion: pdfgraph.V1_3}, "%PDF-1.3\n"},
		{pdfgraph.V1_7, &engine.WriteOptions{ForceVersion: pdfgraph.V2_0}, "%PDF-2.0\n"},
		{pdfgraph.V1_3, &engine.WriteOptions{ObjectStreams: engine.ObjectStreamsGenerate}, "%PDF-1.5\n"},
	}
	for _, c := range cases {
		doc := makeDoc(t)
		doc.Version = c.docVersion
		data := save(t, doc, c.opt)
		assert.True(t, bytes.HasPrefix(data, []byte(c.want)), "want %q, got %q", c.want, data[:9])
	}
}

func TestExtensionLevel(t *testing.T) {
	doc := makeDoc(t)
	doc2 := reopen(t, save(t, doc, &engine.WriteOptions{ExtensionLevel: 3}))

	root, err := doc2.Root()
	require.NoError(t, err)
	ext, err := pdfgraph.GetDict(doc2, root.Value("/Extensions"))
	require.NoError(t, err)
	adbe, err := pdfgraph.GetDict(doc2, ext.Value("/ADBE"))
	require.NoError(t, err)
	assert.Equal(t, pdfgraph.Integer(3), adbe.Value("/ExtensionLevel"))
	assert.Equal(t, pdfgraph.Name("/1.7"), adbe.Value("/BaseVersion"))

	// the catalog of the original document is unchanged
	root, err = doc.Root()
	require.NoError(t, err)
	assert.False(t, root.Has("/Extensions"))
}

func TestProgress(t *testing.T) {
	var seen []int
	opt := &engine.WriteOptions{
		Progress: func(percent int) { seen = append(seen, percent) },
	}
	save(t, makeDoc(t), opt)

	require.NotEmpty(t, seen)
	assert.True(t, slices.IsSorted(seen), "%v", seen)
	assert.Equal(t, 100, seen[len(seen)-1])
	assert.GreaterOrEqual(t, seen[0], 0)
}

func TestTokenFilterApplied(t *testing.T) {
	doc := makeDoc(t)
	pg, err := pagetree.New(doc).Get(0)
	require.NoError(t, err)
	require.NoError(t, pg.AddTokenFilter(content.RemoveOperators("S")))

	doc2 := reopen(t, save(t, doc, nil))
	got := pageContent(t, doc2, 0)
	assert.Contains(t, got, "100 100 l")
	assert.NotContains(t, got, "S")

	// the raw data of the original stream is kept
	stm, err := pdfgraph.GetStream(doc, pg.Obj().Value("/Contents"))
	require.NoError(t, err)
	raw, err := stm.RawData()
	require.NoError(t, err)
	assert.Equal(t, testContents[0], string(raw))
}

func TestSaveErrors(t *testing.T) {
	doc := makeDoc(t)
	buf := &bytes.Buffer{}

	err := engine.Save(doc, buf, &engine.WriteOptions{Linearize: true})
	assert.ErrorIs(t, err, pdfgraph.ErrUnsupported)

	err = engine.Save(doc, buf, &engine.WriteOptions{
		Encryption: &engine.EncryptionParams{R: 6, User: "user"},
	})
	assert.ErrorIs(t, err, pdfgraph.ErrUnsupported)

	err = engine.Save(doc, buf, &engine.WriteOptions{
		Encryption: &engine.EncryptionParams{R: 6, AES: new(bool)},
	})
	assert.ErrorIs(t, err, engine.ErrInvalidOptions)

	err = engine.Save(doc, buf, &engine.WriteOptions{StaticID: true, DeterministicID: true})
	assert.ErrorIs(t, err, engine.ErrInvalidOptions)

	assert.Zero(t, buf.Len())

	require.NoError(t, doc.Close())
	err = engine.Save(doc, buf, nil)
	assert.ErrorIs(t, err, pdfgraph.ErrDocumentClosed)
}

func TestSaveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, engine.SaveFile(makeDoc(t), path, nil))

	for _, mode := range []engine.AccessMode{engine.AccessStream, engine.AccessMmap} {
		doc, err := engine.OpenFile(path, &engine.OpenOptions{Access: mode})
		require.NoError(t, err, "mode %s", mode)
		assert.Equal(t, testContents[1], pageContent(t, doc, 1))
		require.NoError(t, doc.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(data, []byte("%%EOF\n")))
}
