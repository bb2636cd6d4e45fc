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
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

// DefaultDecimalPrecision is the initial value of the process-wide
// decimal precision used by [Encode].
const DefaultDecimalPrecision = 15

var decimalPrecision atomic.Int32

func init() {
	decimalPrecision.Store(DefaultDecimalPrecision)
}

// DecimalPrecision returns the number of decimal places used by [Encode]
// when converting floating point and decimal values to [Real] objects.
func DecimalPrecision() int {
	return int(decimalPrecision.Load())
}

// SetDecimalPrecision sets the process-wide decimal precision used by
// [Encode] and returns the previous value.  The setting affects all
// goroutines; code which needs a different precision concurrently should
// use an [Encoder] instead.
func SetDecimalPrecision(places int) (int, error) {
	if places < 0 || places > 100 {
		return 0, fmt.Errorf("%w: invalid decimal precision %d", ErrEncoding, places)
	}
	return int(decimalPrecision.Swap(int32(places))), nil
}

// Helper is implemented by types which provide a higher-level view of a
// PDF object, for example the pages of a page tree.  Helpers are not
// encoded implicitly; the underlying object must be obtained explicitly.
type Helper interface {
	HelperObject() Object
}

// Encoder converts Go values into PDF objects.
type Encoder struct {
	// Precision is the number of decimal places kept for floating point
	// and decimal values.
	Precision int
}

// Encode converts a Go value into a PDF object, using the process-wide
// decimal precision.  See [Encoder.Encode] for details.
func Encode(v any) (Object, error) {
	e := Encoder{Precision: DecimalPrecision()}
	return e.Encode(v)
}

var (
	timeType     = reflect.TypeFor[time.Time]()
	languageType = reflect.TypeFor[language.Tag]()
	versionType  = reflect.TypeFor[Version]()
	nameType     = reflect.TypeFor[Name]()
)

// Encode converts a Go value into a PDF object.
//
// Objects are returned unchanged and nil becomes null.  Booleans become
// [Bool], integers become [Integer], floating point numbers and decimals
// become [Real], byte slices become [String] and Go strings become text
// strings.  Maps with string keys become dictionaries (keys must start
// with a slash) and slices become arrays.  Structs become dictionaries,
// using the field names as keys, where a `pdf:"optional"` tag omits zero
// values.  Values implementing [Helper] are rejected.
func (e Encoder) Encode(v any) (Object, error) {
	return e.encode(reflect.ValueOf(v), 0)
}

func (e Encoder) encode(rv reflect.Value, depth int) (Object, error) {
	if depth > MaxDepth {
		return nil, ErrRecursionLimit
	}
	if !rv.IsValid() {
		return Null{}, nil
	}

	if rv.CanInterface() {
		switch x := rv.Interface().(type) {
		case Helper:
			return nil, fmt.Errorf("%w: cannot implicitly encode %T, use HelperObject() to access the underlying object",
				ErrEncoding, x)
		case Object:
			if rv.Kind() == reflect.Pointer && rv.IsNil() {
				return Null{}, nil
			}
			return x, nil
		case bool:
			return Bool(x), nil
		case decimal.Decimal:
			return NewRealDecimal(x, e.Precision), nil
		case []byte:
			return String(x), nil
		case string:
			return NewUnicodeString(x), nil
		case time.Time:
			return Date(x), nil
		case language.Tag:
			return NewUnicodeString(x.String()), nil
		}
	}

	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Integer(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("%w: integer %d out of range", ErrEncoding, u)
		}
		return Integer(u), nil
	case reflect.Float32, reflect.Float64:
		return NewReal(rv.Float(), e.Precision)
	case reflect.String:
		return NewUnicodeString(rv.String()), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null{}, nil
		}
		return e.encode(rv.Elem(), depth+1)
	case reflect.Map:
		return e.encodeMap(rv, depth)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return &Array{}, nil
		}
		a := &Array{}
		for i := range rv.Len() {
			obj, err := e.encode(rv.Index(i), depth+1)
			if err != nil {
				return nil, err
			}
			if err := a.Append(obj); err != nil {
				return nil, err
			}
		}
		return a, nil
	case reflect.Struct:
		return e.encodeStruct(rv, depth)
	}

	return nil, fmt.Errorf("%w: don't know how to encode %#v", ErrEncoding, valueOf(rv))
}

func (e Encoder) encodeMap(rv reflect.Value, depth int) (Object, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w: dictionary keys must be strings, not %s",
			ErrEncoding, rv.Type().Key())
	}
	keys := rv.MapKeys()
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		return strings.Compare(a.String(), b.String())
	})
	d := NewDict()
	for _, k := range keys {
		key := Name(k.String())
		if !key.isValid() {
			return nil, fmt.Errorf("%w: invalid dictionary key %q", errInvalidName, k.String())
		}
		obj, err := e.encode(rv.MapIndex(k), depth+1)
		if err != nil {
			return nil, err
		}
		if isNull(obj) {
			continue
		}
		if err := d.Set(key, obj); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (e Encoder) encodeStruct(rv reflect.Value, depth int) (Object, error) {
	rt := rv.Type()
	d := NewDict()
	for i := range rt.NumField() {
		fInfo := rt.Field(i)
		if !fInfo.IsExported() {
			continue
		}
		fVal := rv.Field(i)

		optional := false
		for _, t := range strings.Split(fInfo.Tag.Get("pdf"), ",") {
			switch t {
			case "optional":
				optional = true
			case "-":
				optional = true
				fVal = reflect.Value{}
			}
		}
		if !fVal.IsValid() || optional && fVal.IsZero() {
			continue
		}

		var obj Object
		var err error
		if fInfo.Type == versionType {
			s, verr := fVal.Interface().(Version).ToString()
			if verr != nil {
				continue
			}
			obj = Name("/" + s)
		} else {
			obj, err = e.encode(fVal, depth+1)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", fInfo.Name, err)
			}
		}
		if isNull(obj) {
			continue
		}
		if err := d.Set(Name("/"+fInfo.Name), obj); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func valueOf(rv reflect.Value) any {
	if rv.CanInterface() {
		return rv.Interface()
	}
	return rv.String()
}

// Decode converts a PDF object into a Go value.  Null becomes nil, [Bool]
// becomes bool, [Integer] becomes int64, [Real] becomes decimal.Decimal
// and [String] becomes []byte.  Names, operators and references are
// returned unchanged.  Arrays become []any and dictionaries become
// map[Name]any, decoded recursively.
//
// Streams cannot be decoded this way; use [Stream.Data] instead.
func Decode(obj Object) (any, error) {
	return decode(obj, 0, make(map[container]bool))
}

func decode(obj Object, depth int, active map[container]bool) (any, error) {
	if depth > MaxDepth {
		return nil, ErrRecursionLimit
	}
	switch x := obj.(type) {
	case nil, Null:
		return nil, nil
	case Bool:
		return bool(x), nil
	case Integer:
		return int64(x), nil
	case Real:
		return x.val, nil
	case Name, Operator, Reference:
		return x, nil
	case String:
		return []byte(x), nil
	case *Stream:
		return nil, fmt.Errorf("%w: use Stream.Data() to access stream contents", ErrStructural)
	case *InlineImage:
		return nil, fmt.Errorf("%w: inline images cannot be decoded", ErrStructural)
	}

	c := obj.(container)
	if isNilContainer(c) {
		return nil, nil
	}
	if err := c.base().check(); err != nil {
		return nil, err
	}
	if active[c] {
		return nil, fmt.Errorf("%w: cyclic %s", ErrRecursionLimit, c.Kind())
	}
	active[c] = true
	defer delete(active, c)

	switch x := c.(type) {
	case *Array:
		res := make([]any, len(x.items))
		for i, item := range x.items {
			val, err := x.resolve(item)
			if err != nil {
				return nil, err
			}
			res[i], err = decode(val, depth+1, active)
			if err != nil {
				return nil, err
			}
		}
		return res, nil
	case *Dict:
		res := make(map[Name]any, len(x.keys))
		for _, key := range x.keys {
			val, err := x.resolve(x.m[key])
			if err != nil {
				return nil, err
			}
			res[key], err = decode(val, depth+1, active)
			if err != nil {
				return nil, err
			}
		}
		return res, nil
	}
	panic("unreachable")
}

// DecodeDict initialises a struct using the data from a PDF dictionary.
// The argument dst must be a pointer to a struct.  Each exported field
// is filled from the dictionary entry with the same name.  Fields tagged
// `pdf:"optional"` may be missing from the dictionary.
//
// To allow reading malformed files, all fields which can be decoded are
// set, and the first error encountered is returned.
//
// This is the converse of [Encoder.Encode] for structs.
func DecodeDict(dst any, src *Dict) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: DecodeDict needs a pointer to a struct, not %T", ErrStructural, dst)
	}
	v = v.Elem()
	vt := v.Type()

	var firstErr error
	setErr := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	for i := range vt.NumField() {
		fVal := v.Field(i)
		fInfo := vt.Field(i)
		if !fVal.CanSet() || fInfo.Tag.Get("pdf") == "-" {
			continue
		}
		fVal.Set(reflect.Zero(fInfo.Type))
		optional := slices.Contains(strings.Split(fInfo.Tag.Get("pdf"), ","), "optional")

		key := Name("/" + fInfo.Name)
		dictVal, err := src.Get(key)
		if err != nil {
			if !optional {
				setErr(fmt.Errorf("required entry %s: %w", key, err))
			}
			continue
		}
		if isNull(dictVal) {
			if !optional {
				setErr(fmt.Errorf("%w: required entry %s is null", ErrMissingKey, key))
			}
			continue
		}

		if err := decodeField(fVal, dictVal); err != nil {
			setErr(fmt.Errorf("%s: %w", key, err))
		}
	}
	return firstErr
}

func decodeField(fVal reflect.Value, obj Object) error {
	ft := fVal.Type()
	switch {
	case ft == timeType:
		s, ok := obj.(String)
		if !ok {
			break
		}
		t, err := s.AsDate()
		if err != nil {
			return err
		}
		fVal.Set(reflect.ValueOf(t))
		return nil
	case ft == languageType:
		s, ok := obj.(String)
		if !ok {
			break
		}
		tag, err := language.Parse(s.Text())
		if err != nil {
			return fmt.Errorf("%w: %w", ErrFormat, err)
		}
		fVal.Set(reflect.ValueOf(tag))
		return nil
	case ft == versionType:
		var vString string
		switch x := obj.(type) {
		case Name:
			vString = strings.TrimPrefix(string(x), "/")
		case Real:
			vString = x.val.StringFixed(1)
		}
		version, err := ParseVersion(vString)
		if err != nil {
			return err
		}
		fVal.Set(reflect.ValueOf(version))
		return nil
	case ft == nameType:
		switch x := obj.(type) {
		case Name:
			fVal.Set(reflect.ValueOf(x))
			return nil
		case String:
			name, err := NewName("/" + x.Text())
			if err != nil {
				return err
			}
			fVal.Set(reflect.ValueOf(name))
			return nil
		}
	case reflect.TypeOf(obj).AssignableTo(ft):
		fVal.Set(reflect.ValueOf(obj))
		return nil
	}

	switch ft.Kind() {
	case reflect.Bool:
		if b, ok := obj.(Bool); ok {
			fVal.SetBool(bool(b))
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if x, ok := obj.(Integer); ok {
			if fVal.OverflowInt(int64(x)) {
				return fmt.Errorf("%w: %d out of range for %s", ErrBounds, x, ft)
			}
			fVal.SetInt(int64(x))
			return nil
		}
	case reflect.Float32, reflect.Float64:
		switch x := obj.(type) {
		case Integer:
			fVal.SetFloat(float64(x))
			return nil
		case Real:
			fVal.SetFloat(x.Float64())
			return nil
		}
	case reflect.String:
		switch x := obj.(type) {
		case String:
			fVal.SetString(x.Text())
			return nil
		case Name:
			fVal.SetString(strings.TrimPrefix(string(x), "/"))
			return nil
		}
	}
	return fmt.Errorf("%w: cannot store %s in %s", ErrStructural, obj.Kind(), ft)
}
