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

package regrid

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"
)

// A Result holds a regridded field together with the destination grid
// coordinates recovered from the weight file.
type Result struct {
	// Data is the regridded field. Leading dimensions of the input are
	// preserved and the trailing dimensions are the destination grid
	// shape.
	Data *sparse.DenseArray

	// Lat and Lon are the destination cell centers [degrees]. For a
	// rectilinear destination they are collapsed to one dimension (or
	// to a single value); otherwise they keep the destination grid
	// shape.
	Lat, Lon *sparse.DenseArray
}

// Apply interpolates data onto the destination grid. The trailing two
// dimensions of data must be (lat, lon) flattening to the weights'
// source size; any leading dimensions (e.g. time or level) are
// carried through unchanged.
//
// NaN source values contribute nothing. Destination cells that
// receive no valid contribution at all are set to NaN rather than
// zero.
func (w *Weights) Apply(data *sparse.DenseArray) (*Result, error) {
	if len(data.Shape) < 2 {
		return nil, fmt.Errorf("regrid: data has shape %v; need at least (lat, lon)", data.Shape)
	}
	nd := len(data.Shape)
	srcCells := data.Shape[nd-2] * data.Shape[nd-1]
	if srcCells != w.SrcSize {
		return nil, fmt.Errorf("regrid: data grid has %d cells but weights expect %d source cells",
			srcCells, w.SrcSize)
	}

	lead := 1
	for _, n := range data.Shape[:nd-2] {
		lead *= n
	}
	dstShape, err := w.dstShape()
	if err != nil {
		return nil, err
	}
	outShape := append(append([]int{}, data.Shape[:nd-2]...), dstShape...)
	out := sparse.ZerosDense(outShape...)

	for l := 0; l < lead; l++ {
		base := l * srcCells
		obase := l * w.DstSize
		linked := make([]bool, w.DstSize)
		for k, s := range w.SrcAddress {
			v := data.Elements[base+s]
			if math.IsNaN(v) {
				continue
			}
			out.Elements[obase+w.DstAddress[k]] += w.S[k] * v
			linked[w.DstAddress[k]] = true
		}
		for d, ok := range linked {
			if !ok {
				out.Elements[obase+d] = math.NaN()
			}
		}
	}

	lat := sparse.ZerosDense(dstShape...)
	copy(lat.Elements, w.DstLat)
	lon := sparse.ZerosDense(dstShape...)
	copy(lon.Elements, w.DstLon)

	return &Result{
		Data: out,
		Lat:  CollapseDegenerate(lat),
		Lon:  CollapseDegenerate(lon),
	}, nil
}

// dstShape converts the x-first dims stored in the weight file to
// row-major (lat, lon) order.
func (w *Weights) dstShape() ([]int, error) {
	switch len(w.DstDims) {
	case 1:
		return []int{w.DstDims[0]}, nil
	case 2:
		return []int{w.DstDims[1], w.DstDims[0]}, nil
	default:
		return nil, fmt.Errorf("regrid: destination grid rank %d not supported", len(w.DstDims))
	}
}

// CollapseDegenerate averages away any axis of a along which all
// values are identical. Weight files store destination centers as
// full 2-d arrays; for rectilinear grids this recovers the 1-d
// coordinate axes.
func CollapseDegenerate(a *sparse.DenseArray) *sparse.DenseArray {
	out := a
	for axis := 0; axis < len(out.Shape); {
		if degenerateAlong(out, axis) {
			out = meanAlong(out, axis)
		} else {
			axis++
		}
	}
	return out
}

func axisStride(shape []int, axis int) (stride, outer int) {
	stride = 1
	for i := axis + 1; i < len(shape); i++ {
		stride *= shape[i]
	}
	outer = 1
	for i := 0; i < axis; i++ {
		outer *= shape[i]
	}
	return
}

func degenerateAlong(a *sparse.DenseArray, axis int) bool {
	n := a.Shape[axis]
	if n <= 1 {
		return true
	}
	stride, outer := axisStride(a.Shape, axis)
	for o := 0; o < outer; o++ {
		for j := 0; j < stride; j++ {
			base := o*n*stride + j
			v0 := a.Elements[base]
			for k := 1; k < n; k++ {
				if a.Elements[base+k*stride] != v0 {
					return false
				}
			}
		}
	}
	return true
}

func meanAlong(a *sparse.DenseArray, axis int) *sparse.DenseArray {
	n := a.Shape[axis]
	stride, outer := axisStride(a.Shape, axis)
	shape := make([]int, 0, len(a.Shape)-1)
	shape = append(shape, a.Shape[:axis]...)
	shape = append(shape, a.Shape[axis+1:]...)
	out := sparse.ZerosDense(shape...)
	idx := 0
	for o := 0; o < outer; o++ {
		for j := 0; j < stride; j++ {
			base := o*n*stride + j
			sum := 0.
			for k := 0; k < n; k++ {
				sum += a.Elements[base+k*stride]
			}
			out.Elements[idx] = sum / float64(n)
			idx++
		}
	}
	return out
}
