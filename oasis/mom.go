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

package oasis

import (
	"fmt"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/coecms/coecms-util/internal/ncio"
	"github.com/coecms/coecms-util/regrid"
)

// ReadGridspec builds a SCRIP descriptor of the MOM tracer grid from
// a grid_spec.nc file: cell centers from x_T/y_T, corner polygons
// from x_vert_T/y_vert_T, areas from AREA_OCN and the mask from the
// wet field (falling back to AREA_OCN > 0 when wet is absent). The
// tracer grid is curvilinear, so the descriptor keeps the full 2-d
// cell layout.
func ReadGridspec(fileName string) (*regrid.ScripGrid, error) {
	f, ff, err := ncio.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("oasis: %v", err)
	}
	defer ff.Close()

	centerLat, err := ncio.ReadDense(f, "y_T")
	if err != nil {
		return nil, fmt.Errorf("oasis: reading %s: %v", fileName, err)
	}
	centerLon, err := ncio.ReadDense(f, "x_T")
	if err != nil {
		return nil, fmt.Errorf("oasis: reading %s: %v", fileName, err)
	}
	if len(centerLat.Shape) != 2 {
		return nil, fmt.Errorf("oasis: %s: y_T has shape %v, want 2 dimensions", fileName, centerLat.Shape)
	}
	ny, nx := centerLat.Shape[0], centerLat.Shape[1]

	cornerLat, err := readCorners(f, "y_vert_T", ny, nx)
	if err != nil {
		return nil, fmt.Errorf("oasis: reading %s: %v", fileName, err)
	}
	cornerLon, err := readCorners(f, "x_vert_T", ny, nx)
	if err != nil {
		return nil, fmt.Errorf("oasis: reading %s: %v", fileName, err)
	}

	area, err := ncio.ReadFloat64(f, "AREA_OCN")
	if err != nil {
		return nil, fmt.Errorf("oasis: reading %s: %v", fileName, err)
	}
	if len(area) != ny*nx {
		return nil, fmt.Errorf("oasis: %s: AREA_OCN has %d values for a %d×%d grid", fileName, len(area), ny, nx)
	}

	mask := make([]int32, ny*nx)
	if ncio.HasVar(f, "wet") {
		wet, err := ncio.ReadFloat64(f, "wet")
		if err != nil {
			return nil, fmt.Errorf("oasis: reading %s: %v", fileName, err)
		}
		for i, v := range wet {
			if v != 0 {
				mask[i] = 1
			}
		}
	} else {
		for i, v := range area {
			if v > 0 {
				mask[i] = 1
			}
		}
	}

	g := &regrid.ScripGrid{
		Dims:      []int{nx, ny},
		CenterLat: centerLat.Elements,
		CenterLon: centerLon.Elements,
		CornerLat: cornerLat,
		CornerLon: cornerLon,
		Mask:      mask,
		Area:      area,
	}
	return g, nil
}

// readCorners reads a MOM vertex variable into [cell, corner] layout.
// grid_spec files store vertices either as (vertex, ny, nx) or as
// (ny, nx, vertex).
func readCorners(f *cdf.File, name string, ny, nx int) (*sparse.DenseArray, error) {
	v, err := ncio.ReadDense(f, name)
	if err != nil {
		return nil, err
	}
	if len(v.Shape) != 3 {
		return nil, fmt.Errorf("%s has shape %v, want 3 dimensions", name, v.Shape)
	}
	out := sparse.ZerosDense(ny*nx, 4)
	switch {
	case v.Shape[0] == 4 && v.Shape[1] == ny && v.Shape[2] == nx:
		for c := 0; c < 4; c++ {
			for k := 0; k < ny*nx; k++ {
				out.Elements[k*4+c] = v.Elements[c*ny*nx+k]
			}
		}
	case v.Shape[0] == ny && v.Shape[1] == nx && v.Shape[2] == 4:
		copy(out.Elements, v.Elements)
	default:
		return nil, fmt.Errorf("%s has shape %v, want a vertex dimension of 4 on a %d×%d grid", name, v.Shape, ny, nx)
	}
	return out, nil
}
