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
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/coecms/coecms-util/internal/ncio"
)

// EarthRadius is the planetary radius used by the Unified Model [m].
const EarthRadius = 6371229.

// A Grid is a rectilinear latitude-longitude grid with an optional
// land-sea mask.
type Grid struct {
	// Lat and Lon hold the cell center coordinates [degrees east and
	// north]. Both axes must be regularly spaced.
	Lat, Lon []float64

	// Mask is 1 for active cells and 0 for masked cells, with shape
	// [len(Lat), len(Lon)]. If Mask is nil, all cells are active.
	Mask *sparse.DenseArray

	// Radius is the planetary radius [m] used for cell areas. If it is
	// zero, EarthRadius is used.
	Radius float64
}

// NewGrid creates a grid from 1-d cell center coordinate axes. Each
// axis needs at least two points so the cell spacing can be inferred.
func NewGrid(lat, lon []float64) (*Grid, error) {
	if len(lat) < 2 || len(lon) < 2 {
		return nil, fmt.Errorf("regrid: grid axes need at least two points; got %d lat and %d lon", len(lat), len(lon))
	}
	return &Grid{Lat: lat, Lon: lon}, nil
}

// NewMaskedGrid creates a grid with a mask, which must have shape
// [len(lat), len(lon)] and hold 1 for active cells and 0 for masked
// cells.
func NewMaskedGrid(lat, lon []float64, mask *sparse.DenseArray) (*Grid, error) {
	g, err := NewGrid(lat, lon)
	if err != nil {
		return nil, err
	}
	if len(mask.Shape) != 2 || mask.Shape[0] != len(lat) || mask.Shape[1] != len(lon) {
		return nil, fmt.Errorf("regrid: mask shape %v does not match grid %d×%d",
			mask.Shape, len(lat), len(lon))
	}
	g.Mask = mask
	return g, nil
}

// Ny returns the number of latitude rows.
func (g *Grid) Ny() int { return len(g.Lat) }

// Nx returns the number of longitude columns.
func (g *Grid) Nx() int { return len(g.Lon) }

// Size returns the total number of cells.
func (g *Grid) Size() int { return len(g.Lat) * len(g.Lon) }

// DLat returns the spacing between latitude rows [degrees]. It is
// negative for grids stored north to south.
func (g *Grid) DLat() float64 { return g.Lat[1] - g.Lat[0] }

// DLon returns the spacing between longitude columns [degrees].
func (g *Grid) DLon() float64 { return g.Lon[1] - g.Lon[0] }

func (g *Grid) radius() float64 {
	if g.Radius == 0 {
		return EarthRadius
	}
	return g.Radius
}

func clampLat(v float64) float64 {
	return math.Min(90, math.Max(-90, v))
}

// CellArea returns the spherical area [m²] of the cells in latitude
// row j. Corner latitudes are clamped at the poles, which slightly
// understates the area of polar cells.
func (g *Grid) CellArea(j int) float64 {
	lo := clampLat(g.Lat[j] - g.DLat()/2)
	hi := clampLat(g.Lat[j] + g.DLat()/2)
	dlonr := math.Abs(g.DLon()) * math.Pi / 180
	r := g.radius()
	return math.Abs(dlonr * (math.Sin(hi*math.Pi/180) - math.Sin(lo*math.Pi/180)) * r * r)
}

// Areas returns the area [m²] of every cell, shaped [Ny, Nx].
func (g *Grid) Areas() *sparse.DenseArray {
	out := sparse.ZerosDense(g.Ny(), g.Nx())
	for j := range g.Lat {
		a := g.CellArea(j)
		for i := range g.Lon {
			out.Set(a, j, i)
		}
	}
	return out
}

// Corners returns the corner coordinates of the cell at row j, column
// i, ordered anticlockwise from the bottom left. Corner latitudes are
// clamped to ±90.
func (g *Grid) Corners(j, i int) (cornerLat, cornerLon [4]float64) {
	dlat, dlon := g.DLat(), g.DLon()
	la, lo := g.Lat[j], g.Lon[i]
	cornerLat = [4]float64{
		clampLat(la - dlat/2),
		clampLat(la - dlat/2),
		clampLat(la + dlat/2),
		clampLat(la + dlat/2),
	}
	cornerLon = [4]float64{
		lo - dlon/2,
		lo + dlon/2,
		lo + dlon/2,
		lo - dlon/2,
	}
	return
}

// Active reports whether the cell at row j, column i is unmasked.
func (g *Grid) Active(j, i int) bool {
	return g.Mask == nil || g.Mask.Get(j, i) != 0
}

// Scrip flattens the grid into a SCRIP grid-exchange descriptor.
func (g *Grid) Scrip() *ScripGrid {
	ny, nx := g.Ny(), g.Nx()
	s := &ScripGrid{
		Dims:      []int{nx, ny},
		CenterLat: make([]float64, ny*nx),
		CenterLon: make([]float64, ny*nx),
		CornerLat: sparse.ZerosDense(ny*nx, 4),
		CornerLon: sparse.ZerosDense(ny*nx, 4),
		Mask:      make([]int32, ny*nx),
		Area:      make([]float64, ny*nx),
	}
	for j, la := range g.Lat {
		area := g.CellArea(j)
		for i, lo := range g.Lon {
			k := j*nx + i
			s.CenterLat[k] = la
			s.CenterLon[k] = lo
			cla, clo := g.Corners(j, i)
			for c := 0; c < 4; c++ {
				s.CornerLat.Set(cla[c], k, c)
				s.CornerLon.Set(clo[c], k, c)
			}
			if g.Active(j, i) {
				s.Mask[k] = 1
			}
			s.Area[k] = area
		}
	}
	return s
}

// WriteCDO writes the grid in CDO's text grid description format.
func (g *Grid) WriteCDO(w io.Writer) error {
	var b strings.Builder
	b.WriteString("gridtype = lonlat\n")
	fmt.Fprintf(&b, "xsize = %d\n", g.Nx())
	fmt.Fprintf(&b, "xvals = %s\n", joinFloats(g.Lon))
	fmt.Fprintf(&b, "ysize = %d\n", g.Ny())
	fmt.Fprintf(&b, "yvals = %s\n", joinFloats(g.Lat))
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("regrid: writing CDO grid: %v", err)
	}
	return nil
}

func joinFloats(vals []float64) string {
	strs := make([]string, len(vals))
	for i, v := range vals {
		strs[i] = strconv.FormatFloat(v, 'f', 6, 64)
	}
	return strings.Join(strs, ",")
}

// WriteNetCDF writes a minimal netCDF description of the grid: the
// coordinate axes plus a zero-filled data variable, which is enough
// for CDO to recognize the grid layout.
func (g *Grid) WriteNetCDF(fileName string) error {
	h := cdf.NewHeader([]string{"lat", "lon"}, []int{g.Ny(), g.Nx()})
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddAttribute("lon", "units", "degrees_east")
	h.AddVariable("data", []string{"lat", "lon"}, []float64{0})
	h.Define()
	f, ff, err := ncio.Create(fileName, h)
	if err != nil {
		return fmt.Errorf("regrid: %v", err)
	}
	defer ff.Close()
	if _, err := f.Writer("lat", nil, nil).Write(g.Lat); err != nil {
		return fmt.Errorf("regrid: writing %s: %v", fileName, err)
	}
	if _, err := f.Writer("lon", nil, nil).Write(g.Lon); err != nil {
		return fmt.Errorf("regrid: writing %s: %v", fileName, err)
	}
	zero := make([]float64, g.Size())
	if _, err := f.Writer("data", nil, nil).Write(zero); err != nil {
		return fmt.Errorf("regrid: writing %s: %v", fileName, err)
	}
	return nil
}

// ReadGrid builds a grid from the 1-d coordinate variables latVar and
// lonVar of a netCDF file.
func ReadGrid(fileName, latVar, lonVar string) (*Grid, error) {
	f, ff, err := ncio.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("regrid: %v", err)
	}
	defer ff.Close()
	lat, err := ncio.ReadFloat64(f, latVar)
	if err != nil {
		return nil, fmt.Errorf("regrid: reading %s: %v", fileName, err)
	}
	lon, err := ncio.ReadFloat64(f, lonVar)
	if err != nil {
		return nil, fmt.Errorf("regrid: reading %s: %v", fileName, err)
	}
	return NewGrid(lat, lon)
}
