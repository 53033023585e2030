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
	"math"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ctessum/sparse"
)

func TestNewGrid(t *testing.T) {
	if _, err := NewGrid([]float64{0}, []float64{0, 90}); err == nil {
		t.Error("single-point latitude axis should be rejected")
	}
	if _, err := NewGrid([]float64{-45, 45}, []float64{0}); err == nil {
		t.Error("single-point longitude axis should be rejected")
	}
	g, err := NewGrid([]float64{-45, 45}, []float64{0, 90, 180, 270})
	if err != nil {
		t.Fatal(err)
	}
	if g.DLat() != 90 || g.DLon() != 90 {
		t.Errorf("have spacing %g×%g, want 90×90", g.DLat(), g.DLon())
	}
}

func TestScripFromGrid(t *testing.T) {
	g, err := NewGrid([]float64{-45, 45}, []float64{0, 90, 180, 270})
	if err != nil {
		t.Fatal(err)
	}
	s := g.Scrip()

	if s.Size() != 8 {
		t.Errorf("have %d cells, want 8", s.Size())
	}
	if s.Dims[0] != 4 || s.Dims[1] != 2 {
		t.Errorf("have dims %v, want [4 2]", s.Dims)
	}
	for _, v := range s.CornerLat.Elements {
		if v < -90 || v > 90 {
			t.Fatalf("corner latitude %g outside [-90, 90]", v)
		}
	}
	// The first cell is centered at (-45, 0) with 90 degree spacing,
	// so its bottom corners clamp to the pole.
	if have := s.CornerLat.Get(0, 0); have != -90 {
		t.Errorf("have first corner latitude %g, want -90", have)
	}
	if have := s.CornerLon.Get(0, 0); have != -45 {
		t.Errorf("have first corner longitude %g, want -45", have)
	}
	for k, m := range s.Mask {
		if m != 1 {
			t.Fatalf("cell %d masked in an unmasked grid", k)
		}
	}
}

func TestScripMask(t *testing.T) {
	mask := sparse.ZerosDense(2, 2)
	mask.Set(1, 0, 0)
	mask.Set(1, 1, 1)
	g, err := NewMaskedGrid([]float64{-45, 45}, []float64{90, 270}, mask)
	if err != nil {
		t.Fatal(err)
	}
	s := g.Scrip()
	want := []int32{1, 0, 0, 1}
	for k, m := range s.Mask {
		if m != want[k] {
			t.Errorf("cell %d: have mask %d, want %d", k, m, want[k])
		}
	}
}

func TestSharedCorners(t *testing.T) {
	lat := make([]float64, 9)
	for j := range lat {
		lat[j] = -80 + 20*float64(j)
	}
	lon := make([]float64, 8)
	for i := range lon {
		lon[i] = 45 * float64(i)
	}
	g, err := NewGrid(lat, lon)
	if err != nil {
		t.Fatal(err)
	}
	s := g.Scrip()
	nx, ny := s.Dims[0], s.Dims[1]
	const tol = 1e-9
	for j := 0; j < ny; j++ {
		for i := 0; i < nx-1; i++ {
			k, kr := j*nx+i, j*nx+i+1
			if d := math.Abs(s.CornerLon.Get(k, 1) - s.CornerLon.Get(kr, 0)); d > tol {
				t.Fatalf("cells %d and %d do not share an edge longitude (Δ=%g)", k, kr, d)
			}
		}
	}
	for j := 0; j < ny-1; j++ {
		for i := 0; i < nx; i++ {
			k, ku := j*nx+i, (j+1)*nx+i
			if d := math.Abs(s.CornerLat.Get(k, 2) - s.CornerLat.Get(ku, 0)); d > tol {
				t.Fatalf("cells %d and %d do not share an edge latitude (Δ=%g)", k, ku, d)
			}
		}
	}
}

func TestGlobalAreaSum(t *testing.T) {
	const ny, nx = 36, 72
	lat := make([]float64, ny)
	for j := range lat {
		lat[j] = -90 + 180/float64(ny)*(float64(j)+0.5)
	}
	lon := make([]float64, nx)
	for i := range lon {
		lon[i] = 360 / float64(nx) * float64(i)
	}
	g, err := NewGrid(lat, lon)
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, a := range g.Scrip().Area {
		sum += a
	}
	want := 4 * math.Pi * EarthRadius * EarthRadius
	if rel := math.Abs(sum-want) / want; rel > 0.01 {
		t.Errorf("have total area %g, want %g (relative error %g)", sum, want, rel)
	}
}

func TestGridNetCDFRoundTrip(t *testing.T) {
	g, err := NewGrid([]float64{-60, 0, 60}, []float64{0, 120, 240})
	if err != nil {
		t.Fatal(err)
	}
	fileName := filepath.Join(t.TempDir(), "grid.nc")
	if err := g.WriteNetCDF(fileName); err != nil {
		t.Fatal(err)
	}
	g2, err := ReadGrid(fileName, "lat", "lon")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(g2.Lat, g.Lat) {
		t.Errorf("have lat %v, want %v", g2.Lat, g.Lat)
	}
	if !reflect.DeepEqual(g2.Lon, g.Lon) {
		t.Errorf("have lon %v, want %v", g2.Lon, g.Lon)
	}
}

func TestWriteCDO(t *testing.T) {
	g, err := NewGrid([]float64{-45, 45}, []float64{0, 90, 180, 270})
	if err != nil {
		t.Fatal(err)
	}
	var b strings.Builder
	if err := g.WriteCDO(&b); err != nil {
		t.Fatal(err)
	}
	want := "gridtype = lonlat\n" +
		"xsize = 4\n" +
		"xvals = 0.000000,90.000000,180.000000,270.000000\n" +
		"ysize = 2\n" +
		"yvals = -45.000000,45.000000\n"
	if b.String() != want {
		t.Errorf("have:\n%s\nwant:\n%s", b.String(), want)
	}
}
