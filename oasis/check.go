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

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/sparse"
	"github.com/ctessum/unit"
	goshp "github.com/jonas-p/go-shp"

	"github.com/coecms/coecms-util/regrid"
)

// A Mismatch is one grid cell where the coupler and the model
// disagree about whether the cell is active.
type Mismatch struct {
	Row, Col int

	// Lat and Lon are the cell center coordinates [degrees].
	Lat, Lon float64

	// ModelActive and OasisActive report each side's view of the
	// cell.
	ModelActive, OasisActive bool
}

// A Report summarizes a mask comparison.
type Report struct {
	// Cells is the total number of cells compared.
	Cells int

	// Mismatches lists the disagreeing cells.
	Mismatches []Mismatch

	// Area is the total area of the disagreeing cells.
	Area *unit.Unit

	grid *regrid.Grid
}

// CheckMask compares a model land fraction (or binary land mask)
// field against the mask OASIS is using for the same grid. A model
// cell is considered active when its land fraction is below one, an
// OASIS cell when its mask value is zero. The returned report lists
// every cell where the two disagree, with the disagreeing area
// summed from the spherical cell areas.
func CheckMask(frac *sparse.DenseArray, lat, lon []float64, oasisMask *sparse.DenseArray) (*Report, error) {
	if len(frac.Shape) != 2 || frac.Shape[0] != len(lat) || frac.Shape[1] != len(lon) {
		return nil, fmt.Errorf("oasis: field shape %v does not match grid %d×%d", frac.Shape, len(lat), len(lon))
	}
	if oasisMask.Shape[0] != frac.Shape[0] || oasisMask.Shape[1] != frac.Shape[1] {
		return nil, fmt.Errorf("oasis: model grid is %v but OASIS mask is %v", frac.Shape, oasisMask.Shape)
	}
	g, err := regrid.NewGrid(lat, lon)
	if err != nil {
		return nil, fmt.Errorf("oasis: %v", err)
	}

	r := &Report{Cells: len(frac.Elements), grid: g}
	area := 0.
	for j := range lat {
		for i := range lon {
			model := frac.Get(j, i) < 1
			coupler := oasisMask.Get(j, i) == 0
			if model == coupler {
				continue
			}
			r.Mismatches = append(r.Mismatches, Mismatch{
				Row: j, Col: i,
				Lat: lat[j], Lon: lon[i],
				ModelActive: model, OasisActive: coupler,
			})
			area += g.CellArea(j)
		}
	}
	r.Area = unit.New(area, unit.Meter2)
	return r, nil
}

// WriteShapefile exports the outlines of the mismatched cells so they
// can be inspected in a GIS, one polygon per cell with row/col
// indices and both masks as attributes.
func (r *Report) WriteShapefile(fileName string) error {
	fields := []goshp.Field{
		goshp.NumberField("row", 10),
		goshp.NumberField("col", 10),
		goshp.NumberField("model", 2),
		goshp.NumberField("oasis", 2),
	}
	e, err := shp.NewEncoderFromFields(fileName, goshp.POLYGON, fields...)
	if err != nil {
		return fmt.Errorf("oasis: creating %s: %v", fileName, err)
	}
	for _, m := range r.Mismatches {
		cla, clo := r.grid.Corners(m.Row, m.Col)
		poly := geom.Polygon{{
			{X: clo[0], Y: cla[0]},
			{X: clo[1], Y: cla[1]},
			{X: clo[2], Y: cla[2]},
			{X: clo[3], Y: cla[3]},
		}}
		if err := e.EncodeFields(poly, m.Row, m.Col, boolAttr(m.ModelActive), boolAttr(m.OasisActive)); err != nil {
			return fmt.Errorf("oasis: writing %s: %v", fileName, err)
		}
	}
	e.Close()
	return nil
}

func boolAttr(b bool) int {
	if b {
		return 1
	}
	return 0
}
