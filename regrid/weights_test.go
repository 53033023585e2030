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
	"testing"

	"github.com/ctessum/cdf"

	"github.com/coecms/coecms-util/internal/ncio"
)

// writeScripWeightFile writes a weight file in the SCRIP layout
// produced by CDO: 1-based addresses, a [num_links, num_wgts] weight
// matrix and destination centers in radians.
func writeScripWeightFile(t *testing.T, fileName string) {
	h := cdf.NewHeader(
		[]string{"num_links", "num_wgts", "src_grid_size", "dst_grid_size", "dst_grid_rank"},
		[]int{4, 1, 4, 2, 2})
	h.AddAttribute("", "title", "CDO remapping")
	h.AddVariable("src_address", []string{"num_links"}, []int32{0})
	h.AddVariable("dst_address", []string{"num_links"}, []int32{0})
	h.AddVariable("remap_matrix", []string{"num_links", "num_wgts"}, []float64{0})
	h.AddVariable("src_grid_center_lat", []string{"src_grid_size"}, []float64{0})
	h.AddVariable("dst_grid_center_lat", []string{"dst_grid_size"}, []float64{0})
	h.AddVariable("dst_grid_center_lon", []string{"dst_grid_size"}, []float64{0})
	h.AddVariable("dst_grid_dims", []string{"dst_grid_rank"}, []int32{0})
	h.Define()
	f, ff, err := ncio.Create(fileName, h)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()
	vars := []struct {
		name string
		data interface{}
	}{
		{"src_address", []int32{1, 2, 3, 4}},
		{"dst_address", []int32{1, 1, 2, 2}},
		{"remap_matrix", []float64{0.5, 0.5, 0.5, 0.5}},
		{"src_grid_center_lat", []float64{0, 0, 0, 0}},
		{"dst_grid_center_lat", []float64{0, math.Pi / 4}},
		{"dst_grid_center_lon", []float64{math.Pi / 2, math.Pi}},
		{"dst_grid_dims", []int32{2, 1}},
	}
	for _, v := range vars {
		if _, err := f.Writer(v.name, nil, nil).Write(v.data); err != nil {
			t.Fatalf("writing %s: %v", v.name, err)
		}
	}
}

// writeESMFWeightFile writes a weight file in the native
// ESMF_RegridWeightGen layout: col/row/S links and destination centers
// already in degrees.
func writeESMFWeightFile(t *testing.T, fileName string) {
	h := cdf.NewHeader(
		[]string{"n_s", "n_a", "n_b", "dst_grid_rank"},
		[]int{2, 4, 2, 2})
	h.AddAttribute("", "title", "ESMF Offline Regridding Weight Generator")
	h.AddVariable("col", []string{"n_s"}, []int32{0})
	h.AddVariable("row", []string{"n_s"}, []int32{0})
	h.AddVariable("S", []string{"n_s"}, []float64{0})
	h.AddVariable("yc_a", []string{"n_a"}, []float64{0})
	h.AddVariable("yc_b", []string{"n_b"}, []float64{0})
	h.AddVariable("xc_b", []string{"n_b"}, []float64{0})
	h.AddVariable("dst_grid_dims", []string{"dst_grid_rank"}, []int32{0})
	h.Define()
	f, ff, err := ncio.Create(fileName, h)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()
	vars := []struct {
		name string
		data interface{}
	}{
		{"col", []int32{1, 3}},
		{"row", []int32{1, 2}},
		{"S", []float64{1, 1}},
		{"yc_a", []float64{-45, -45, 45, 45}},
		{"yc_b", []float64{0, 45}},
		{"xc_b", []float64{90, 180}},
		{"dst_grid_dims", []int32{2, 1}},
	}
	for _, v := range vars {
		if _, err := f.Writer(v.name, nil, nil).Write(v.data); err != nil {
			t.Fatalf("writing %s: %v", v.name, err)
		}
	}
}

func TestReadWeightsScrip(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "weights.nc")
	writeScripWeightFile(t, fileName)
	w, err := ReadWeights(fileName)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(w.SrcAddress, []int{0, 1, 2, 3}) {
		t.Errorf("have source addresses %v, want [0 1 2 3]", w.SrcAddress)
	}
	if !reflect.DeepEqual(w.DstAddress, []int{0, 0, 1, 1}) {
		t.Errorf("have destination addresses %v, want [0 0 1 1]", w.DstAddress)
	}
	if !reflect.DeepEqual(w.S, []float64{0.5, 0.5, 0.5, 0.5}) {
		t.Errorf("have coefficients %v, want [0.5 0.5 0.5 0.5]", w.S)
	}
	if w.SrcSize != 4 || w.DstSize != 2 {
		t.Errorf("have grid sizes %d and %d, want 4 and 2", w.SrcSize, w.DstSize)
	}
	if !reflect.DeepEqual(w.DstDims, []int{2, 1}) {
		t.Errorf("have destination dims %v, want [2 1]", w.DstDims)
	}
	wantLat := []float64{0, 45}
	wantLon := []float64{90, 180}
	for i := range wantLat {
		if math.Abs(w.DstLat[i]-wantLat[i]) > 1e-12 {
			t.Errorf("have destination latitude %g, want %g", w.DstLat[i], wantLat[i])
		}
		if math.Abs(w.DstLon[i]-wantLon[i]) > 1e-12 {
			t.Errorf("have destination longitude %g, want %g", w.DstLon[i], wantLon[i])
		}
	}
}

func TestReadWeightsESMF(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "weights.nc")
	writeESMFWeightFile(t, fileName)
	w, err := ReadWeights(fileName)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(w.SrcAddress, []int{0, 2}) {
		t.Errorf("have source addresses %v, want [0 2]", w.SrcAddress)
	}
	if !reflect.DeepEqual(w.DstAddress, []int{0, 1}) {
		t.Errorf("have destination addresses %v, want [0 1]", w.DstAddress)
	}
	if w.SrcSize != 4 || w.DstSize != 2 {
		t.Errorf("have grid sizes %d and %d, want 4 and 2", w.SrcSize, w.DstSize)
	}
	// ESMF centers are already degrees; they must not be rescaled.
	if !reflect.DeepEqual(w.DstLat, []float64{0, 45}) {
		t.Errorf("have destination latitudes %v, want [0 45]", w.DstLat)
	}
	if !reflect.DeepEqual(w.DstLon, []float64{90, 180}) {
		t.Errorf("have destination longitudes %v, want [90 180]", w.DstLon)
	}
}

// The rename path: a native ESMF file read in and written back out
// must come back under the SCRIP names with nothing lost.
func TestWeightsWriteRename(t *testing.T) {
	dir := t.TempDir()
	esmfFile := filepath.Join(dir, "esmf.nc")
	writeESMFWeightFile(t, esmfFile)
	w, err := ReadWeights(esmfFile)
	if err != nil {
		t.Fatal(err)
	}

	renamed := filepath.Join(dir, "scrip.nc")
	if err := w.WriteNetCDF(renamed); err != nil {
		t.Fatal(err)
	}
	f, ff, err := ncio.Open(renamed)
	if err != nil {
		t.Fatal(err)
	}
	if !ncio.HasVar(f, "src_address") || !ncio.HasVar(f, "remap_matrix") {
		t.Error("renamed file is missing the SCRIP link variables")
	}
	ff.Close()

	w2, err := ReadWeights(renamed)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(w2.SrcAddress, w.SrcAddress) || !reflect.DeepEqual(w2.DstAddress, w.DstAddress) {
		t.Errorf("addresses changed in the rename: %v/%v, want %v/%v",
			w2.SrcAddress, w2.DstAddress, w.SrcAddress, w.DstAddress)
	}
	if !reflect.DeepEqual(w2.S, w.S) {
		t.Errorf("coefficients changed in the rename: %v, want %v", w2.S, w.S)
	}
	if !reflect.DeepEqual(w2.DstDims, w.DstDims) {
		t.Errorf("destination dims changed in the rename: %v, want %v", w2.DstDims, w.DstDims)
	}
	// Centers were written in degrees with a units attribute, so they
	// must not be rescaled on the way back in.
	if !reflect.DeepEqual(w2.DstLat, w.DstLat) || !reflect.DeepEqual(w2.DstLon, w.DstLon) {
		t.Errorf("destination centers changed in the rename: %v/%v, want %v/%v",
			w2.DstLat, w2.DstLon, w.DstLat, w.DstLon)
	}
}

func TestWeightsMatrix(t *testing.T) {
	w := &Weights{
		SrcAddress: []int{0, 1, 2, 3},
		DstAddress: []int{0, 0, 1, 1},
		S:          []float64{0.25, 0.75, 0.5, 0.5},
		SrcSize:    4,
		DstSize:    2,
	}
	m := w.Matrix()
	if have := m.Get(0, 1); have != 0.75 {
		t.Errorf("have weight %g, want 0.75", have)
	}
	if have := m.Get(1, 3); have != 0.5 {
		t.Errorf("have weight %g, want 0.5", have)
	}
	if have := m.Get(1, 0); have != 0 {
		t.Errorf("have weight %g for an unlinked pair, want 0", have)
	}
}
