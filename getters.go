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

import "fmt"

// Resolve resolves references to indirect objects in doc.  Other objects
// are returned unchanged.  A nil document can be used if obj is known not
// to be a reference.
func Resolve(doc *Document, obj Object) (Object, error) {
	if _, isRef := obj.(Reference); isRef {
		return doc.Get(obj.(Reference))
	}
	if obj == nil {
		return Null{}, nil
	}
	return obj, nil
}

func resolveAndCast[T Object](doc *Document, obj Object) (x T, err error) {
	obj, err = Resolve(doc, obj)
	if err != nil {
		return x, err
	}

	if isNull(obj) {
		return x, nil
	}

	var isCorrectType bool
	x, isCorrectType = obj.(T)
	if isCorrectType {
		return x, nil
	}

	return x, fmt.Errorf("%w: expected %s but got %s", ErrStructural, x.Kind(), obj.Kind())
}

// Helper functions for getting objects of a specific type.  Each of these
// functions calls Resolve on the object before attempting to convert it to the
// desired type.  If the object is null, a zero object is returned without
// error.  If the object is of the wrong type, an error wrapping
// [ErrStructural] is returned.
//
// The signature of these functions is
//
//	func GetT(doc *Document, obj Object) (x T, err error)
//
// where T is the type of the object to be returned.
var (
	GetArray  = resolveAndCast[*Array]
	GetBool   = resolveAndCast[Bool]
	GetDict   = resolveAndCast[*Dict]
	GetInt    = resolveAndCast[Integer]
	GetName   = resolveAndCast[Name]
	GetReal   = resolveAndCast[Real]
	GetStream = resolveAndCast[*Stream]
	GetString = resolveAndCast[String]
)

// GetNumber returns the value of an Integer or Real object as a float64.
func GetNumber(doc *Document, obj Object) (float64, error) {
	obj, err := Resolve(doc, obj)
	if err != nil {
		return 0, err
	}
	switch x := obj.(type) {
	case Integer:
		return float64(x), nil
	case Real:
		return x.Float64(), nil
	default:
		return 0, fmt.Errorf("%w: expected number but got %s", ErrStructural, KindOf(obj))
	}
}
