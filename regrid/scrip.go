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

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/coecms/coecms-util/internal/ncio"
)

// A ScripGrid is a grid flattened into the SCRIP grid-exchange layout
// consumed by regridding tools: cell centers, corner polygons, an
// integer mask and cell areas, all along a single grid_size dimension.
type ScripGrid struct {
	// Title is written as the file's global title attribute.
	Title string

	// Dims holds the number of cells along each axis, x first. The
	// flattened cell ordering varies x fastest.
	Dims []int

	// CenterLat and CenterLon are cell center coordinates [degrees].
	CenterLat, CenterLon []float64

	// CornerLat and CornerLon give the cell boundary polygons, shaped
	// [size, corners], anticlockwise from the bottom left.
	CornerLat, CornerLon *sparse.DenseArray

	// Mask is 1 for active cells and 0 for masked cells.
	Mask []int32

	// Area holds cell areas [m²]. It may be nil when the source file
	// carries no areas.
	Area []float64
}

// Size returns the number of cells.
func (s *ScripGrid) Size() int { return len(s.CenterLat) }

// NumCorners returns the number of corners per cell.
func (s *ScripGrid) NumCorners() int {
	if s.CornerLat == nil || len(s.CornerLat.Shape) != 2 {
		return 0
	}
	return s.CornerLat.Shape[1]
}

// check validates internal consistency before writing.
func (s *ScripGrid) check() error {
	n := s.Size()
	if len(s.CenterLon) != n || len(s.Mask) != n {
		return fmt.Errorf("regrid: SCRIP grid fields disagree on size: %d centers, %d lons, %d mask",
			n, len(s.CenterLon), len(s.Mask))
	}
	if s.Area != nil && len(s.Area) != n {
		return fmt.Errorf("regrid: SCRIP grid has %d cells but %d areas", n, len(s.Area))
	}
	dimsize := 1
	for _, d := range s.Dims {
		dimsize *= d
	}
	if dimsize != n {
		return fmt.Errorf("regrid: SCRIP grid_dims %v do not match size %d", s.Dims, n)
	}
	nc := s.NumCorners()
	if nc == 0 || s.CornerLon == nil || s.CornerLon.Shape[0] != n || s.CornerLat.Shape[0] != n {
		return fmt.Errorf("regrid: SCRIP grid corner arrays malformed")
	}
	return nil
}

// WriteScrip writes g to fileName in the SCRIP grid-exchange netCDF
// format.
func WriteScrip(fileName string, g *ScripGrid) error {
	if err := g.check(); err != nil {
		return err
	}
	h := cdf.NewHeader(
		[]string{"grid_size", "grid_corners", "grid_rank"},
		[]int{g.Size(), g.NumCorners(), len(g.Dims)})
	if g.Title != "" {
		h.AddAttribute("", "title", g.Title)
	}
	h.AddVariable("grid_dims", []string{"grid_rank"}, []int32{0})
	h.AddVariable("grid_center_lat", []string{"grid_size"}, []float64{0})
	h.AddAttribute("grid_center_lat", "units", "degrees")
	h.AddVariable("grid_center_lon", []string{"grid_size"}, []float64{0})
	h.AddAttribute("grid_center_lon", "units", "degrees")
	h.AddVariable("grid_imask", []string{"grid_size"}, []int32{0})
	h.AddAttribute("grid_imask", "units", "unitless")
	h.AddVariable("grid_corner_lat", []string{"grid_size", "grid_corners"}, []float64{0})
	h.AddAttribute("grid_corner_lat", "units", "degrees")
	h.AddVariable("grid_corner_lon", []string{"grid_size", "grid_corners"}, []float64{0})
	h.AddAttribute("grid_corner_lon", "units", "degrees")
	if g.Area != nil {
		h.AddVariable("grid_area", []string{"grid_size"}, []float64{0})
		h.AddAttribute("grid_area", "units", "m^2")
	}
	h.Define()
	f, ff, err := ncio.Create(fileName, h)
	if err != nil {
		return fmt.Errorf("regrid: %v", err)
	}
	defer ff.Close()

	dims := make([]int32, len(g.Dims))
	for i, d := range g.Dims {
		dims[i] = int32(d)
	}
	vars := []struct {
		name string
		data interface{}
	}{
		{"grid_dims", dims},
		{"grid_center_lat", g.CenterLat},
		{"grid_center_lon", g.CenterLon},
		{"grid_imask", g.Mask},
		{"grid_corner_lat", g.CornerLat.Elements},
		{"grid_corner_lon", g.CornerLon.Elements},
	}
	if g.Area != nil {
		vars = append(vars, struct {
			name string
			data interface{}
		}{"grid_area", g.Area})
	}
	for _, v := range vars {
		if _, err := f.Writer(v.name, nil, nil).Write(v.data); err != nil {
			return fmt.Errorf("regrid: writing %s to %s: %v", v.name, fileName, err)
		}
	}
	return nil
}

// ReadScrip reads a SCRIP grid-exchange file.
func ReadScrip(fileName string) (*ScripGrid, error) {
	f, ff, err := ncio.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("regrid: %v", err)
	}
	defer ff.Close()

	g := &ScripGrid{Title: ncio.AttrString(f, "", "title")}

	dims, err := ncio.ReadInt32(f, "grid_dims")
	if err != nil {
		return nil, fmt.Errorf("regrid: reading %s: %v", fileName, err)
	}
	g.Dims = make([]int, len(dims))
	for i, d := range dims {
		g.Dims[i] = int(d)
	}
	if g.CenterLat, err = ncio.ReadFloat64(f, "grid_center_lat"); err != nil {
		return nil, fmt.Errorf("regrid: reading %s: %v", fileName, err)
	}
	if g.CenterLon, err = ncio.ReadFloat64(f, "grid_center_lon"); err != nil {
		return nil, fmt.Errorf("regrid: reading %s: %v", fileName, err)
	}
	if g.Mask, err = ncio.ReadInt32(f, "grid_imask"); err != nil {
		return nil, fmt.Errorf("regrid: reading %s: %v", fileName, err)
	}
	if g.CornerLat, err = ncio.ReadDense(f, "grid_corner_lat"); err != nil {
		return nil, fmt.Errorf("regrid: reading %s: %v", fileName, err)
	}
	if g.CornerLon, err = ncio.ReadDense(f, "grid_corner_lon"); err != nil {
		return nil, fmt.Errorf("regrid: reading %s: %v", fileName, err)
	}
	if ncio.HasVar(f, "grid_area") {
		if g.Area, err = ncio.ReadFloat64(f, "grid_area"); err != nil {
			return nil, fmt.Errorf("regrid: reading %s: %v", fileName, err)
		}
	}
	if err := g.check(); err != nil {
		return nil, fmt.Errorf("regrid: %s: %v", fileName, err)
	}
	return g, nil
}
