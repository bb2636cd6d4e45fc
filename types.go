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
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies the type of a PDF object.
type Kind uint8

// These are the possible kinds of PDF objects.
const (
	KindNull Kind = iota
	KindBool
	KindInteger
	KindReal
	KindName
	KindString
	KindOperator
	KindArray
	KindDict
	KindStream
	KindReference
	KindInlineImage
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindName:
		return "name"
	case KindString:
		return "string"
	case KindOperator:
		return "operator"
	case KindArray:
		return "array"
	case KindDict:
		return "dictionary"
	case KindStream:
		return "stream"
	case KindReference:
		return "reference"
	case KindInlineImage:
		return "inline image"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Object represents an object in a PDF file.  The set of implementations is
// closed: the types listed in the package documentation, plus
// [*InlineImage] for inline images found in content streams.
type Object interface {
	// Kind returns the type of the object.
	Kind() Kind

	// PDF writes the PDF file representation of the object to w.
	PDF(w io.Writer) error
}

// KindOf returns the kind of obj.  A nil Object is treated as null.
func KindOf(obj Object) Kind {
	if obj == nil {
		return KindNull
	}
	return obj.Kind()
}

func isNull(obj Object) bool {
	return obj == nil || obj.Kind() == KindNull
}

// Null represents the PDF null object.
type Null struct{}

// Kind implements the [Object] interface.
func (Null) Kind() Kind { return KindNull }

// PDF implements the [Object] interface.
func (Null) PDF(w io.Writer) error {
	_, err := w.Write([]byte("null"))
	return err
}

// Bool represents a boolean value in a PDF file.
type Bool bool

// Kind implements the [Object] interface.
func (x Bool) Kind() Kind { return KindBool }

// PDF implements the [Object] interface.
func (x Bool) PDF(w io.Writer) error {
	var s string
	if x {
		s = "true"
	} else {
		s = "false"
	}
	_, err := w.Write([]byte(s))
	return err
}

// Integer represents an integer constant in a PDF file.
type Integer int64

// Kind implements the [Object] interface.
func (x Integer) Kind() Kind { return KindInteger }

// PDF implements the [Object] interface.
func (x Integer) PDF(w io.Writer) error {
	s := strconv.FormatInt(int64(x), 10)
	_, err := w.Write([]byte(s))
	return err
}

// Real represents a real number in a PDF file.
//
// Reals are stored as decimals together with the number of decimal places
// used for display, so that values read from a file can be written back
// unchanged.
type Real struct {
	val    decimal.Decimal
	places int32
}

// NewReal returns a real number, rounded to at most the given number of
// decimal places.  Trailing zeros are not shown.  NaN and infinite values
// cannot be represented in PDF and cause an error.
func NewReal(x float64, places int) (Real, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Real{}, fmt.Errorf("%w: %v is not a finite number", ErrEncoding, x)
	}
	if places < 0 {
		places = 0
	}
	d := decimal.NewFromFloat(x).Round(int32(places))
	return Real{val: d, places: significantPlaces(d)}, nil
}

// NewRealDecimal returns a real number with the value of d, rounded to at
// most the given number of decimal places.  The number of decimal places
// of d is kept, so that for example 1.50 is shown with two decimals.
func NewRealDecimal(d decimal.Decimal, places int) Real {
	if places < 0 {
		places = 0
	}
	shown := min(max(-d.Exponent(), 0), int32(places))
	return Real{val: d.Round(shown), places: shown}
}

// significantPlaces returns the number of decimal places needed to show d
// without trailing zeros.
func significantPlaces(d decimal.Decimal) int32 {
	s := d.String()
	if k := strings.IndexByte(s, '.'); k >= 0 {
		return int32(len(s) - k - 1)
	}
	return 0
}

// ParseReal parses the PDF representation of a real number, e.g. "-.5".
// The number of decimal places is taken from the input.
func ParseReal(s string) (Real, error) {
	t := strings.TrimPrefix(s, "+")
	neg := strings.HasPrefix(t, "-")
	if neg {
		t = t[1:]
	}
	if strings.HasPrefix(t, ".") {
		t = "0" + t
	}
	var places int32
	if k := strings.IndexByte(t, '.'); k >= 0 {
		places = int32(len(t) - k - 1)
		t = strings.TrimSuffix(t, ".")
	}
	if t == "" || strings.ContainsAny(t, "eE") {
		return Real{}, fmt.Errorf("%w: invalid real number %q", ErrEncoding, s)
	}
	if neg {
		t = "-" + t
	}
	d, err := decimal.NewFromString(t)
	if err != nil {
		return Real{}, fmt.Errorf("%w: invalid real number %q", ErrEncoding, s)
	}
	return Real{val: d, places: places}, nil
}

// Decimal returns the value of x as a decimal.
func (x Real) Decimal() decimal.Decimal {
	return x.val
}

// Places returns the number of decimal places used to display x.
func (x Real) Places() int {
	return int(x.places)
}

// Float64 returns the nearest float64 value to x.
func (x Real) Float64() float64 {
	return x.val.InexactFloat64()
}

func (x Real) String() string {
	return x.val.StringFixed(x.places)
}

// Kind implements the [Object] interface.
func (x Real) Kind() Kind { return KindReal }

// PDF implements the [Object] interface.
func (x Real) PDF(w io.Writer) error {
	s := x.String()
	if !strings.Contains(s, ".") {
		s = s + "."
	}
	_, err := w.Write([]byte(s))
	return err
}

// Name represents a name object in a PDF file.  The value includes the
// leading slash, e.g. "/Type".
type Name string

// NewName returns a name object.  The argument must start with a slash and
// must contain at least one more character.
func NewName(s string) (Name, error) {
	if len(s) < 2 || s[0] != '/' {
		return "", fmt.Errorf("%w: %q", errInvalidName, s)
	}
	return Name(s), nil
}

func (x Name) isValid() bool {
	return len(x) >= 2 && x[0] == '/'
}

// Kind implements the [Object] interface.
func (x Name) Kind() Kind { return KindName }

// PDF implements the [Object] interface.
func (x Name) PDF(w io.Writer) error {
	l := []byte(strings.TrimPrefix(string(x), "/"))

	var funny []int
	for i, c := range l {
		if !isRegular(c) || c < 0x21 || c > 0x7e || c == '#' {
			funny = append(funny, i)
		}
	}
	n := len(l)

	_, err := w.Write([]byte{'/'})
	if err != nil {
		return err
	}
	pos := 0
	for _, i := range funny {
		if pos < i {
			_, err = w.Write(l[pos:i])
			if err != nil {
				return err
			}
		}
		c := l[i]
		_, err = fmt.Fprintf(w, "#%02x", c)
		if err != nil {
			return err
		}
		pos = i + 1
	}
	if pos < n {
		_, err = w.Write(l[pos:n])
		if err != nil {
			return err
		}
	}

	return nil
}

// String represents a raw string in a PDF file.  The character set encoding,
// if any, is determined by the context.
type String []byte

// NewString returns a string object holding a copy of the given bytes.
func NewString(b []byte) String {
	return String(bytes.Clone(b))
}

// NewUnicodeString creates a String object using the "text string" encoding,
// i.e. using either PDFDocEncoding or UTF-16BE with a byte order mark.
func NewUnicodeString(s string) String {
	buf, ok := pdfDocEncode(s)
	if ok {
		return buf
	}
	return utf16Encode(s)
}

// Text interprets x as a PDF "text string" and returns the corresponding
// utf-8 encoded string.
func (x String) Text() string {
	switch {
	case isUTF16(x):
		return utf16Decode(x)
	case isUTF8(x):
		return string(x[3:])
	default:
		return pdfDocDecode(x)
	}
}

// AsDate converts a PDF date string to a time.Time object.
// If the string does not have the correct format, an error is returned.
func (x String) AsDate() (time.Time, error) {
	s := x.Text()
	if s == "D:" || s == "" {
		return time.Time{}, nil
	}
	s = strings.ReplaceAll(s, "'", "")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "19") || strings.HasPrefix(s, "20") {
		s = "D:" + s
	}

	formats := []string{
		"D:20060102150405-0700",
		"D:20060102150405-07",
		"D:20060102150405Z0000",
		"D:20060102150405Z00",
		"D:20060102150405Z",
		"D:20060102150405",
		"D:200601021504",
		"D:2006010215",
		"D:20060102",
		"D:200601",
		"D:2006",
		time.ANSIC,
	}
	for _, format := range formats {
		t, err := time.Parse(format, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not a valid date", ErrFormat, s)
}

// Date creates a PDF String object encoding the given date and time.
func Date(t time.Time) String {
	s := t.Format("D:20060102150405-0700")
	k := len(s) - 2
	s = s[:k] + "'" + s[k:]
	return String(s)
}

// Kind implements the [Object] interface.
func (x String) Kind() Kind { return KindString }

// PDF implements the [Object] interface.
func (x String) PDF(w io.Writer) error {
	l := []byte(x)

	level := 0
	for _, c := range l {
		if c == '(' {
			level++
		} else if c == ')' {
			level--
			if level < 0 {
				break
			}
		}
	}
	balanced := level == 0

	var funny []int
	for i, c := range l {
		if c < 32 || c == '\\' || c >= 127 ||
			!balanced && (c == '(' || c == ')') {
			funny = append(funny, i)
		}
	}
	n := len(l)

	buf := &bytes.Buffer{}
	if 3*len(funny) <= n {
		buf.WriteString("(")
		pos := 0
		for _, i := range funny {
			if pos < i {
				buf.Write(l[pos:i])
			}
			c := l[i]
			switch c {
			case '\r':
				buf.WriteString(`\r`)
			case '\n':
				buf.WriteString(`\n`)
			case '\t':
				buf.WriteString(`\t`)
			case '\b':
				buf.WriteString(`\b`)
			case '\f':
				buf.WriteString(`\f`)
			case '(':
				buf.WriteString(`\(`)
			case ')':
				buf.WriteString(`\)`)
			case '\\':
				buf.WriteString(`\\`)
			default:
				fmt.Fprintf(buf, `\%03o`, c)
			}
			pos = i + 1
		}
		if pos < n {
			buf.Write(l[pos:n])
		}
		buf.WriteString(")")
	} else {
		fmt.Fprintf(buf, "<%x>", l)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// Operator represents an operator in a content stream, e.g. "cm".
type Operator string

// NewOperator returns an operator object.
func NewOperator(s string) (Operator, error) {
	if s == "" {
		return "", fmt.Errorf("%w: empty operator", ErrEncoding)
	}
	return Operator(s), nil
}

// Kind implements the [Object] interface.
func (x Operator) Kind() Kind { return KindOperator }

// PDF implements the [Object] interface.
func (x Operator) PDF(w io.Writer) error {
	_, err := w.Write([]byte(x))
	return err
}

// Reference represents a reference to an indirect object in a PDF file.
// The lower 32 bits represent the object number, the next 16 bits the
// generation number.
type Reference uint64

// NewReference returns the reference with the given object number and
// generation.
func NewReference(number uint32, generation uint16) Reference {
	return Reference(uint64(number) | uint64(generation)<<32)
}

// Number returns the object number of the reference.
func (x Reference) Number() uint32 {
	return uint32(x)
}

// Generation returns the generation number of the reference.
func (x Reference) Generation() uint16 {
	return uint16(x >> 32)
}

func (x Reference) String() string {
	res := []string{
		"obj_",
		strconv.FormatInt(int64(x.Number()), 10),
	}
	gen := x.Generation()
	if gen > 0 {
		res = append(res, "@", strconv.FormatUint(uint64(gen), 10))
	}
	return strings.Join(res, "")
}

// Kind implements the [Object] interface.
func (x Reference) Kind() Kind { return KindReference }

// PDF implements the [Object] interface.
func (x Reference) PDF(w io.Writer) error {
	if x>>48 != 0 {
		return fmt.Errorf("invalid reference: 0x%016x", uint64(x))
	}

	_, err := fmt.Fprintf(w, "%d %d R", x.Number(), x.Generation())
	return err
}

// Format formats a PDF object as a string, in the same way as
// it would be written to a PDF file.  Indirect objects contained in
// containers are shown as references.
func Format(obj Object) (string, error) {
	if obj == nil {
		return "null", nil
	}
	buf := &bytes.Buffer{}
	err := obj.PDF(buf)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeObject(w io.Writer, obj Object) error {
	if obj == nil {
		_, err := w.Write([]byte("null"))
		return err
	}
	return obj.PDF(w)
}

// isRegular reports whether c is neither a white-space character nor a
// delimiter in PDF syntax.
func isRegular(c byte) bool {
	switch c {
	case 0, 9, 10, 12, 13, 32:
		return false
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return false
	}
	return true
}
