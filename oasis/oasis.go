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

// Package oasis creates the grids.nc, masks.nc and areas.nc input
// files consumed by the OASIS coupler, describing the UM atmosphere
// grids and the MOM ocean tracer grid, and checks the resulting masks
// against the model's own ancillary files.
package oasis

import (
	"fmt"

	"github.com/ctessum/sparse"

	"github.com/coecms/coecms-util/regrid"
)

// Grid names used in the OASIS namcouple.
const (
	AtmosT = "um_t"
	AtmosU = "um_u"
	AtmosV = "um_v"
	OceanT = "mom_t"
)

// AtmosGrids builds SCRIP descriptors of the UM ENDGAME t, u and v
// grids from the land fraction on the t grid. The t grid is active
// wherever the cell is at least partly sea; the staggered u and v
// grids carry no mask. The u grid is shifted half a cell west of the
// t grid, and the v grid half a cell south with one extra row, its
// end latitudes clamped to the poles.
func AtmosGrids(frac *sparse.DenseArray, lat, lon []float64) (map[string]*regrid.ScripGrid, error) {
	if len(frac.Shape) != 2 || frac.Shape[0] != len(lat) || frac.Shape[1] != len(lon) {
		return nil, fmt.Errorf("oasis: land fraction shape %v does not match grid %d×%d",
			frac.Shape, len(lat), len(lon))
	}

	mask := sparse.ZerosDense(len(lat), len(lon))
	for i, v := range frac.Elements {
		if v < 1 {
			mask.Elements[i] = 1
		}
	}
	tGrid, err := regrid.NewMaskedGrid(lat, lon, mask)
	if err != nil {
		return nil, fmt.Errorf("oasis: t grid: %v", err)
	}

	dlat, dlon := tGrid.DLat(), tGrid.DLon()
	latV := make([]float64, len(lat)+1)
	for j, la := range lat {
		latV[j] = clamp90(la - dlat/2)
	}
	latV[len(lat)] = clamp90(lat[len(lat)-1] + dlat/2)
	lonU := make([]float64, len(lon))
	for i, lo := range lon {
		lonU[i] = lo - dlon/2
	}

	uGrid, err := regrid.NewGrid(lat, lonU)
	if err != nil {
		return nil, fmt.Errorf("oasis: u grid: %v", err)
	}
	vGrid, err := regrid.NewGrid(latV, lon)
	if err != nil {
		return nil, fmt.Errorf("oasis: v grid: %v", err)
	}

	return map[string]*regrid.ScripGrid{
		AtmosT: tGrid.Scrip(),
		AtmosU: uGrid.Scrip(),
		AtmosV: vGrid.Scrip(),
	}, nil
}

func clamp90(v float64) float64 {
	if v < -90 {
		return -90
	}
	if v > 90 {
		return 90
	}
	return v
}
