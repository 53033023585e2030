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
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/coecms/coecms-util/internal/ncio"
	"github.com/coecms/coecms-util/regrid"
)

func TestWriteOasis(t *testing.T) {
	lat := []float64{-60, 0, 60}
	lon := []float64{0, 90, 180, 270}
	frac := sparse.ZerosDense(3, 4)
	frac.Set(1, 2, 3)
	grids, err := AtmosGrids(frac, lat, lon)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	if err := Write(dir, grids); err != nil {
		t.Fatal(err)
	}

	// masks.nc: um_t.msk is 1 only at the land cell, the staggered
	// grids are all zero.
	msk, err := ReadMask(filepath.Join(dir, "masks.nc"), AtmosT)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(msk.Shape, []int{3, 4}) {
		t.Errorf("um_t.msk has shape %v, want [3 4]", msk.Shape)
	}
	for j := 0; j < 3; j++ {
		for i := 0; i < 4; i++ {
			want := 0.
			if j == 2 && i == 3 {
				want = 1
			}
			if got := msk.Get(j, i); got != want {
				t.Errorf("um_t.msk[%d,%d] = %g, want %g", j, i, got, want)
			}
		}
	}
	vmsk, err := ReadMask(filepath.Join(dir, "masks.nc"), AtmosV)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(vmsk.Shape, []int{4, 4}) {
		t.Errorf("um_v.msk has shape %v, want [4 4]", vmsk.Shape)
	}
	for i, v := range vmsk.Elements {
		if v != 0 {
			t.Errorf("um_v.msk element %d = %g, want 0", i, v)
		}
	}

	// grids.nc: centers unstack to (ny, nx) and corners to
	// (corner, ny, nx).
	f, ff, err := ncio.Open(filepath.Join(dir, "grids.nc"))
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()
	la, err := ncio.ReadDense(f, "um_t.lat")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(la.Shape, []int{3, 4}) {
		t.Errorf("um_t.lat has shape %v, want [3 4]", la.Shape)
	}
	if got := la.Get(1, 2); got != 0 {
		t.Errorf("um_t.lat[1,2] = %g, want 0", got)
	}
	cla, err := ncio.ReadDense(f, "um_t.cla")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cla.Shape, []int{4, 3, 4}) {
		t.Errorf("um_t.cla has shape %v, want [4 3 4]", cla.Shape)
	}
	// Bottom-left corner of the south-west cell.
	if got, want := cla.Get(0, 0, 0), -90.; got != want {
		t.Errorf("um_t.cla[0,0,0] = %g, want %g", got, want)
	}

	// areas.nc
	af, aff, err := ncio.Open(filepath.Join(dir, "areas.nc"))
	if err != nil {
		t.Fatal(err)
	}
	defer aff.Close()
	srf, err := ncio.ReadDense(af, "um_t.srf")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(srf.Shape, []int{3, 4}) {
		t.Errorf("um_t.srf has shape %v, want [3 4]", srf.Shape)
	}
	for i, a := range srf.Elements {
		if a <= 0 {
			t.Errorf("um_t.srf element %d = %g, want positive", i, a)
		}
	}
}

// writeTestGridspec creates a minimal MOM grid_spec.nc on a 2×3 grid
// with the vertex dimension leading, one dry cell, and regular
// coordinates.
func writeTestGridspec(t *testing.T, fileName string) {
	t.Helper()
	ny, nx := 2, 3
	h := cdf.NewHeader(
		[]string{"grid_y_T", "grid_x_T", "vertex"},
		[]int{ny, nx, 4})
	h.AddVariable("y_T", []string{"grid_y_T", "grid_x_T"}, []float64{0})
	h.AddVariable("x_T", []string{"grid_y_T", "grid_x_T"}, []float64{0})
	h.AddVariable("y_vert_T", []string{"vertex", "grid_y_T", "grid_x_T"}, []float64{0})
	h.AddVariable("x_vert_T", []string{"vertex", "grid_y_T", "grid_x_T"}, []float64{0})
	h.AddVariable("AREA_OCN", []string{"grid_y_T", "grid_x_T"}, []float64{0})
	h.AddVariable("wet", []string{"grid_y_T", "grid_x_T"}, []float64{0})
	h.Define()
	f, ff, err := ncio.Create(fileName, h)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()

	lats := []float64{-30, 30}
	lons := []float64{60, 180, 300}
	yT := make([]float64, ny*nx)
	xT := make([]float64, ny*nx)
	area := make([]float64, ny*nx)
	wet := make([]float64, ny*nx)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			k := j*nx + i
			yT[k] = lats[j]
			xT[k] = lons[i]
			area[k] = 1e12
			wet[k] = 1
		}
	}
	wet[4] = 0 // one dry cell
	yv := make([]float64, 4*ny*nx)
	xv := make([]float64, 4*ny*nx)
	dlat, dlon := 60., 120.
	offLat := []float64{-dlat / 2, -dlat / 2, dlat / 2, dlat / 2}
	offLon := []float64{-dlon / 2, dlon / 2, dlon / 2, -dlon / 2}
	for c := 0; c < 4; c++ {
		for k := 0; k < ny*nx; k++ {
			yv[c*ny*nx+k] = yT[k] + offLat[c]
			xv[c*ny*nx+k] = xT[k] + offLon[c]
		}
	}
	for _, v := range []struct {
		name string
		data []float64
	}{
		{"y_T", yT}, {"x_T", xT},
		{"y_vert_T", yv}, {"x_vert_T", xv},
		{"AREA_OCN", area}, {"wet", wet},
	} {
		if _, err := f.Writer(v.name, nil, nil).Write(v.data); err != nil {
			t.Fatal(err)
		}
	}
}

func TestReadGridspec(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "grid_spec.nc")
	writeTestGridspec(t, fileName)

	g, err := ReadGridspec(fileName)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(g.Dims, []int{3, 2}) {
		t.Errorf("have dims %v, want [3 2]", g.Dims)
	}
	if g.Size() != 6 {
		t.Errorf("have %d cells, want 6", g.Size())
	}
	if got := g.CenterLat[0]; got != -30 {
		t.Errorf("first center latitude %g, want -30", got)
	}
	for k, active := range g.Mask {
		want := int32(1)
		if k == 4 {
			want = 0
		}
		if active != want {
			t.Errorf("cell %d mask is %d, want %d", k, active, want)
		}
	}
	if !reflect.DeepEqual(g.CornerLat.Shape, []int{6, 4}) {
		t.Errorf("corner latitudes have shape %v, want [6 4]", g.CornerLat.Shape)
	}
	// South-west cell, bottom-left corner.
	if got := g.CornerLat.Get(0, 0); got != -60 {
		t.Errorf("corner latitude %g, want -60", got)
	}
	if got := g.CornerLon.Get(0, 1); got != 120 {
		t.Errorf("corner longitude %g, want 120", got)
	}
	for k, a := range g.Area {
		if a != 1e12 {
			t.Errorf("cell %d area %g, want 1e12", k, a)
		}
	}

	// The merged OASIS files should accept the ocean grid alongside
	// the atmosphere grids.
	dir := t.TempDir()
	if err := Write(dir, map[string]*regrid.ScripGrid{OceanT: g}); err != nil {
		t.Fatal(err)
	}
	msk, err := ReadMask(filepath.Join(dir, "masks.nc"), OceanT)
	if err != nil {
		t.Fatal(err)
	}
	if got := msk.Get(1, 1); got != 1 {
		t.Errorf("mom_t.msk[1,1] = %g, want 1 (dry cell)", got)
	}
}
