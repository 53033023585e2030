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
	"path/filepath"
	"sort"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/coecms/coecms-util/internal/ncio"
	"github.com/coecms/coecms-util/regrid"
)

// Write merges a set of SCRIP grids into the three OASIS description
// files grids.nc, masks.nc and areas.nc in dir. Each grid contributes
// variables prefixed with its name: centers <name>.lat/<name>.lon and
// corners <name>.cla/<name>.clo to grids.nc, <name>.msk to masks.nc
// and <name>.srf to areas.nc. Cell arrays are unstacked to their 2-d
// (ny, nx) layout, with the corner dimension leading, and the OASIS
// mask convention is 0 for active cells and 1 for masked ones.
func Write(dir string, grids map[string]*regrid.ScripGrid) error {
	names := make([]string, 0, len(grids))
	for name := range grids {
		g := grids[name]
		if len(g.Dims) != 2 || g.NumCorners() == 0 {
			return fmt.Errorf("oasis: grid %s must have 2-d dims and corner polygons", name)
		}
		if g.Area == nil {
			return fmt.Errorf("oasis: grid %s has no cell areas", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if err := writeGrids(filepath.Join(dir, "grids.nc"), names, grids); err != nil {
		return err
	}
	if err := writeMasks(filepath.Join(dir, "masks.nc"), names, grids); err != nil {
		return err
	}
	return writeAreas(filepath.Join(dir, "areas.nc"), names, grids)
}

// gridDims appends each grid's ny/nx (and optionally corner)
// dimensions to a header dimension list.
func gridDims(names []string, grids map[string]*regrid.ScripGrid, corners bool) (dims []string, lengths []int) {
	for _, name := range names {
		g := grids[name]
		dims = append(dims, name+"_ny", name+"_nx")
		lengths = append(lengths, g.Dims[1], g.Dims[0])
		if corners {
			dims = append(dims, name+"_crn")
			lengths = append(lengths, g.NumCorners())
		}
	}
	return dims, lengths
}

func writeGrids(fileName string, names []string, grids map[string]*regrid.ScripGrid) error {
	dims, lengths := gridDims(names, grids, true)
	h := cdf.NewHeader(dims, lengths)
	for _, name := range names {
		cell := []string{name + "_ny", name + "_nx"}
		corner := []string{name + "_crn", name + "_ny", name + "_nx"}
		for _, v := range []string{name + ".lat", name + ".lon"} {
			h.AddVariable(v, cell, []float64{0})
			h.AddAttribute(v, "units", "degrees")
		}
		for _, v := range []string{name + ".cla", name + ".clo"} {
			h.AddVariable(v, corner, []float64{0})
			h.AddAttribute(v, "units", "degrees")
		}
	}
	h.Define()
	f, ff, err := ncio.Create(fileName, h)
	if err != nil {
		return fmt.Errorf("oasis: %v", err)
	}
	defer ff.Close()

	for _, name := range names {
		g := grids[name]
		for _, v := range []struct {
			name string
			data []float64
		}{
			{name + ".lat", g.CenterLat},
			{name + ".lon", g.CenterLon},
			{name + ".cla", cornersFirst(g.CornerLat)},
			{name + ".clo", cornersFirst(g.CornerLon)},
		} {
			if _, err := f.Writer(v.name, nil, nil).Write(v.data); err != nil {
				return fmt.Errorf("oasis: writing %s to %s: %v", v.name, fileName, err)
			}
		}
	}
	return nil
}

func writeMasks(fileName string, names []string, grids map[string]*regrid.ScripGrid) error {
	dims, lengths := gridDims(names, grids, false)
	h := cdf.NewHeader(dims, lengths)
	for _, name := range names {
		h.AddVariable(name+".msk", []string{name + "_ny", name + "_nx"}, []int32{0})
	}
	h.Define()
	f, ff, err := ncio.Create(fileName, h)
	if err != nil {
		return fmt.Errorf("oasis: %v", err)
	}
	defer ff.Close()

	for _, name := range names {
		g := grids[name]
		msk := make([]int32, len(g.Mask))
		for i, active := range g.Mask {
			msk[i] = 1 - active
		}
		if _, err := f.Writer(name+".msk", nil, nil).Write(msk); err != nil {
			return fmt.Errorf("oasis: writing %s.msk to %s: %v", name, fileName, err)
		}
	}
	return nil
}

func writeAreas(fileName string, names []string, grids map[string]*regrid.ScripGrid) error {
	dims, lengths := gridDims(names, grids, false)
	h := cdf.NewHeader(dims, lengths)
	for _, name := range names {
		h.AddVariable(name+".srf", []string{name + "_ny", name + "_nx"}, []float64{0})
		h.AddAttribute(name+".srf", "units", "m^2")
	}
	h.Define()
	f, ff, err := ncio.Create(fileName, h)
	if err != nil {
		return fmt.Errorf("oasis: %v", err)
	}
	defer ff.Close()

	for _, name := range names {
		if _, err := f.Writer(name+".srf", nil, nil).Write(grids[name].Area); err != nil {
			return fmt.Errorf("oasis: writing %s.srf to %s: %v", name, fileName, err)
		}
	}
	return nil
}

// cornersFirst transposes a [cell, corner] array to corner-major
// order, the layout OASIS expects for the cla/clo variables.
func cornersFirst(a *sparse.DenseArray) []float64 {
	cells, nc := a.Shape[0], a.Shape[1]
	out := make([]float64, cells*nc)
	for k := 0; k < cells; k++ {
		for c := 0; c < nc; c++ {
			out[c*cells+k] = a.Elements[k*nc+c]
		}
	}
	return out
}

// ReadMask reads one grid's mask from an OASIS masks.nc file,
// returning it shaped [ny, nx] with the OASIS convention of 0 for
// active cells.
func ReadMask(fileName, gridName string) (*sparse.DenseArray, error) {
	f, ff, err := ncio.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("oasis: %v", err)
	}
	defer ff.Close()
	msk, err := ncio.ReadDense(f, gridName+".msk")
	if err != nil {
		return nil, fmt.Errorf("oasis: reading %s: %v", fileName, err)
	}
	if len(msk.Shape) != 2 {
		return nil, fmt.Errorf("oasis: %s: %s.msk has shape %v, want 2 dimensions", fileName, gridName, msk.Shape)
	}
	return msk, nil
}
