// Copyright (c) 2020 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package reqfield reads and writes named fields of request and response
// values. Page descriptors and bundle descriptors address fields by their
// exported struct field names; this package is the single place that turns
// those names into concrete accesses.
package reqfield

import (
	"fmt"
	"reflect"
)

// Get returns the value of the named exported field of v. v must be a struct
// or a pointer to one.
func Get(v interface{}, name string) (interface{}, error) {
	fv, err := fieldValue(v, name)
	if err != nil {
		return nil, err
	}
	return fv.Interface(), nil
}

// GetString returns the named field rendered as a string via fmt. Used for
// continuation tokens and bundle keys, which must have a stable textual form.
func GetString(v interface{}, name string) (string, error) {
	fv, err := fieldValue(v, name)
	if err != nil {
		return "", err
	}
	if fv.Kind() == reflect.String {
		return fv.String(), nil
	}
	return fmt.Sprintf("%v", fv.Interface()), nil
}

// GetSlice returns the named field as a slice of elements. The field must be
// a slice or an array.
func GetSlice(v interface{}, name string) ([]interface{}, error) {
	fv, err := fieldValue(v, name)
	if err != nil {
		return nil, err
	}
	if fv.Kind() != reflect.Slice && fv.Kind() != reflect.Array {
		return nil, fmt.Errorf("field %q is a %v, not a slice", name, fv.Kind())
	}
	out := make([]interface{}, fv.Len())
	for i := 0; i < fv.Len(); i++ {
		out[i] = fv.Index(i).Interface()
	}
	return out, nil
}

// Set assigns val to the named exported field of v. v must be a pointer to a
// struct so that the write is visible to the caller.
func Set(v interface{}, name string, val interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("cannot set field %q on non-pointer value %T", name, v)
	}
	fv, err := fieldValue(v, name)
	if err != nil {
		return err
	}
	if !fv.CanSet() {
		return fmt.Errorf("field %q of %T is not settable", name, v)
	}
	val2 := reflect.ValueOf(val)
	if !val2.Type().AssignableTo(fv.Type()) {
		return fmt.Errorf("cannot assign %T to field %q of %T", val, name, v)
	}
	fv.Set(val2)
	return nil
}

func fieldValue(v interface{}, name string) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return reflect.Value{}, fmt.Errorf("cannot access field %q of nil %T", name, v)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("cannot access field %q of non-struct %T", name, v)
	}
	fv := rv.FieldByName(name)
	if !fv.IsValid() {
		return reflect.Value{}, fmt.Errorf("%T has no field %q", v, name)
	}
	return fv, nil
}
