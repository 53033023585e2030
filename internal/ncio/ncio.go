/*
Copyright © 2018 the coecms-util authors.
This file is part of coecms-util.

coecms-util is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

coecms-util is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with coecms-util.  If not, see <http://www.gnu.org/licenses/>.*/

// Package ncio holds shared helpers for reading and writing netCDF
// (classic format) files.
package ncio

import (
	"fmt"
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// Open opens the named netCDF file for reading. The caller must close
// the returned os.File when done.
func Open(fileName string) (*cdf.File, *os.File, error) {
	ff, err := os.Open(fileName)
	if err != nil {
		return nil, nil, fmt.Errorf("ncio: %v", err)
	}
	f, err := cdf.Open(ff)
	if err != nil {
		ff.Close()
		return nil, nil, fmt.Errorf("ncio: opening %s: %v", fileName, err)
	}
	return f, ff, nil
}

// Create creates the named netCDF file with the given header, which
// must already be defined. The caller must close the returned os.File
// when done.
func Create(fileName string, h *cdf.Header) (*cdf.File, *os.File, error) {
	for _, err := range h.Check() {
		return nil, nil, fmt.Errorf("ncio: header for %s: %v", fileName, err)
	}
	ff, err := os.Create(fileName)
	if err != nil {
		return nil, nil, fmt.Errorf("ncio: %v", err)
	}
	f, err := cdf.Create(ff, h)
	if err != nil {
		ff.Close()
		return nil, nil, fmt.Errorf("ncio: creating %s: %v", fileName, err)
	}
	return f, ff, nil
}

// HasVar reports whether variable v exists in f.
func HasVar(f *cdf.File, v string) bool {
	for _, name := range f.Header.Variables() {
		if name == v {
			return true
		}
	}
	return false
}

// ReadFloat64 reads all of variable v from f, widening narrower
// numeric types to float64.
func ReadFloat64(f *cdf.File, v string) ([]float64, error) {
	if !HasVar(f, v) {
		return nil, fmt.Errorf("ncio: variable %s not in file", v)
	}
	r := f.Reader(v, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("ncio: reading %s: %v", v, err)
	}
	switch b := buf.(type) {
	case []float64:
		return b, nil
	case []float32:
		out := make([]float64, len(b))
		for i, val := range b {
			out[i] = float64(val)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(b))
		for i, val := range b {
			out[i] = float64(val)
		}
		return out, nil
	case []int16:
		out := make([]float64, len(b))
		for i, val := range b {
			out[i] = float64(val)
		}
		return out, nil
	case []uint8:
		out := make([]float64, len(b))
		for i, val := range b {
			out[i] = float64(val)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("ncio: variable %s has unsupported type %T", v, buf)
	}
}

// ReadInt32 reads all of variable v from f, converting other numeric
// types by truncation.
func ReadInt32(f *cdf.File, v string) ([]int32, error) {
	d, err := ReadFloat64(f, v)
	if err != nil {
		return nil, err
	}
	out := make([]int32, len(d))
	for i, val := range d {
		out[i] = int32(val)
	}
	return out, nil
}

// ReadDense reads all of variable v into a dense array shaped like the
// variable. Variables with a record dimension are not supported.
func ReadDense(f *cdf.File, v string) (*sparse.DenseArray, error) {
	dims := f.Header.Lengths(v)
	if len(dims) == 0 {
		return nil, fmt.Errorf("ncio: variable %s not in file", v)
	}
	if dims[0] == 0 {
		return nil, fmt.Errorf("ncio: variable %s has a record dimension", v)
	}
	d, err := ReadFloat64(f, v)
	if err != nil {
		return nil, err
	}
	out := sparse.ZerosDense(dims...)
	copy(out.Elements, d)
	return out, nil
}

// ReadSlice reads the hyperslab of variable v at the given index of
// its leading dimension, returning an array shaped like the remaining
// dimensions. It works for record variables.
func ReadSlice(f *cdf.File, v string, index int) (*sparse.DenseArray, error) {
	dims := f.Header.Lengths(v)
	if len(dims) == 0 {
		return nil, fmt.Errorf("ncio: variable %s not in file", v)
	}
	dims = dims[1:]
	nread := 1
	for _, dim := range dims {
		nread *= dim
	}
	start, end := make([]int, len(dims)+1), make([]int, len(dims)+1)
	start[0], end[0] = index, index+1
	for i, dim := range dims {
		end[i+1] = dim
	}
	r := f.Reader(v, start, end)
	buf := r.Zero(nread)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("ncio: reading %s at index %d: %v", v, index, err)
	}
	out := sparse.ZerosDense(dims...)
	switch b := buf.(type) {
	case []float64:
		copy(out.Elements, b)
	case []float32:
		for i, val := range b {
			out.Elements[i] = float64(val)
		}
	case []int32:
		for i, val := range b {
			out.Elements[i] = float64(val)
		}
	case []int16:
		for i, val := range b {
			out.Elements[i] = float64(val)
		}
	default:
		return nil, fmt.Errorf("ncio: variable %s has unsupported type %T", v, buf)
	}
	return out, nil
}

// AttrString returns the string attribute a of variable v, or the
// global attribute if v is empty. Missing attributes return "".
func AttrString(f *cdf.File, v, a string) string {
	s, _ := f.Header.GetAttribute(v, a).(string)
	return s
}

// AttrFloat64 returns the first element of numeric attribute a of
// variable v, or def if the attribute is missing.
func AttrFloat64(f *cdf.File, v, a string, def float64) float64 {
	switch val := f.Header.GetAttribute(v, a).(type) {
	case []float64:
		if len(val) > 0 {
			return val[0]
		}
	case []float32:
		if len(val) > 0 {
			return float64(val[0])
		}
	case []int32:
		if len(val) > 0 {
			return float64(val[0])
		}
	case []int16:
		if len(val) > 0 {
			return float64(val[0])
		}
	}
	return def
}

// DimLen returns the length of dimension i of variable v, or 0 if the
// variable or dimension does not exist.
func DimLen(f *cdf.File, v string, i int) int {
	dims := f.Header.Lengths(v)
	if i < 0 || i >= len(dims) {
		return 0
	}
	return dims[i]
}
