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

package um

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"

	"github.com/coecms/coecms-util/regrid"
)

// A Regrid operator interpolates every field through a fixed weight
// matrix. The weights' source grid must match the fields' own grid.
// Missing input values contribute nothing, and cells the weights
// leave unmapped come out as the missing-data sentinel.
type Regrid struct {
	Weights *regrid.Weights
}

func (o *Regrid) Transform(f *Field) (*sparse.DenseArray, error) {
	in := f.Data.Copy()
	for i, v := range in.Elements {
		if v == RealMissing {
			in.Elements[i] = math.NaN()
		}
	}
	r, err := o.Weights.Apply(in)
	if err != nil {
		return nil, err
	}
	data := r.Data
	for i, v := range data.Elements {
		if math.IsNaN(v) {
			data.Elements[i] = RealMissing
		}
	}
	return data, nil
}

// Demask fills the masked cells of every field in a file by nearest
// grid point interpolation from the file's own unmasked cells. The
// mask is taken from the first field's missing values. Any extra
// operators run after the interpolation.
func Demask(in *File, gen *regrid.ESMF, ops ...Operator) (*File, error) {
	if len(in.Fields) == 0 {
		return nil, fmt.Errorf("um: cannot demask a file with no fields")
	}
	f0 := in.Fields[0]
	mask := sparse.ZerosDense(f0.Rows(), f0.Cols())
	for i, v := range f0.Data.Elements {
		if v != RealMissing {
			mask.Elements[i] = 1
		}
	}

	src, err := regrid.NewMaskedGrid(f0.Lats(), f0.Lons(), mask)
	if err != nil {
		return nil, fmt.Errorf("um: demask: %v", err)
	}
	dst, err := regrid.NewGrid(f0.Lats(), f0.Lons())
	if err != nil {
		return nil, fmt.Errorf("um: demask: %v", err)
	}

	// Nearest source-to-destination regridding with great circle paths
	// keeps every destination cell covered, extrapolating onto the
	// previously masked cells.
	e := *gen
	e.ExtrapMethod = "neareststod"
	e.LineType = "greatcircle"
	w, err := e.Weights(src.Scrip(), dst.Scrip(), "neareststod")
	if err != nil {
		return nil, fmt.Errorf("um: demask: %v", err)
	}

	return Apply(in, append([]Operator{&Regrid{Weights: w}}, ops...)...)
}
