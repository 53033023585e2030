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
	"math"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/coecms/coecms-util/internal/ncio"
)

// Weights is a sparse interpolation matrix mapping a flattened source
// grid to a flattened destination grid.
type Weights struct {
	// SrcAddress and DstAddress hold 0-based source and destination
	// cell indices for each link.
	SrcAddress, DstAddress []int

	// S holds the coefficient for each link.
	S []float64

	// SrcSize and DstSize are the flattened cell counts of the two
	// grids.
	SrcSize, DstSize int

	// DstDims is the destination grid shape, x first, as stored in the
	// weight file. It has one entry for unstructured destinations.
	DstDims []int

	// DstLat and DstLon are the destination cell centers [degrees] in
	// flattened grid order.
	DstLat, DstLon []float64
}

// NumLinks returns the number of links in the matrix.
func (w *Weights) NumLinks() int { return len(w.S) }

// Matrix returns the weights as a sparse matrix shaped
// [destination size, source size].
func (w *Weights) Matrix() *sparse.SparseArray {
	m := sparse.ZerosSparse(w.DstSize, w.SrcSize)
	for k, s := range w.SrcAddress {
		m.AddVal(w.S[k], w.DstAddress[k], s)
	}
	return m
}

func (w *Weights) check() error {
	if len(w.SrcAddress) != len(w.S) || len(w.DstAddress) != len(w.S) {
		return fmt.Errorf("regrid: weight link arrays disagree: %d src, %d dst, %d coefficients",
			len(w.SrcAddress), len(w.DstAddress), len(w.S))
	}
	for k, s := range w.SrcAddress {
		if s < 0 || s >= w.SrcSize {
			return fmt.Errorf("regrid: link %d source address %d outside grid of %d cells", k, s, w.SrcSize)
		}
		if d := w.DstAddress[k]; d < 0 || d >= w.DstSize {
			return fmt.Errorf("regrid: link %d destination address %d outside grid of %d cells", k, d, w.DstSize)
		}
	}
	dimsize := 1
	for _, d := range w.DstDims {
		dimsize *= d
	}
	if dimsize != w.DstSize {
		return fmt.Errorf("regrid: destination dims %v do not match size %d", w.DstDims, w.DstSize)
	}
	if len(w.DstLat) != w.DstSize || len(w.DstLon) != w.DstSize {
		return fmt.Errorf("regrid: destination coordinates have %d and %d values for %d cells",
			len(w.DstLat), len(w.DstLon), w.DstSize)
	}
	return nil
}

// ReadWeights loads a weight file written by CDO or by
// ESMF_RegridWeightGen. The two layouts are distinguished by the
// file's global title attribute, which ESMF starts with "ESMF".
func ReadWeights(fileName string) (*Weights, error) {
	f, ff, err := ncio.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("regrid: %v", err)
	}
	defer ff.Close()

	var w *Weights
	if strings.HasPrefix(ncio.AttrString(f, "", "title"), "ESMF") {
		w, err = readWeightsESMF(f)
	} else {
		w, err = readWeightsScrip(f)
	}
	if err != nil {
		return nil, fmt.Errorf("regrid: reading weights from %s: %v", fileName, err)
	}
	if err := w.check(); err != nil {
		return nil, fmt.Errorf("regrid: %s: %v", fileName, err)
	}
	return w, nil
}

// readWeightsESMF reads the native ESMF_RegridWeightGen layout:
// links in col/row/S along n_s, grids along n_a and n_b, and
// destination centers yc_b/xc_b already in degrees.
func readWeightsESMF(f *cdf.File) (*Weights, error) {
	w := &Weights{
		SrcSize: ncio.DimLen(f, "yc_a", 0),
		DstSize: ncio.DimLen(f, "yc_b", 0),
	}
	col, err := ncio.ReadInt32(f, "col")
	if err != nil {
		return nil, err
	}
	row, err := ncio.ReadInt32(f, "row")
	if err != nil {
		return nil, err
	}
	if w.S, err = ncio.ReadFloat64(f, "S"); err != nil {
		return nil, err
	}
	w.SrcAddress = toZeroBased(col)
	w.DstAddress = toZeroBased(row)
	dims, err := ncio.ReadInt32(f, "dst_grid_dims")
	if err != nil {
		return nil, err
	}
	w.DstDims = make([]int, len(dims))
	for i, d := range dims {
		w.DstDims[i] = int(d)
	}
	if w.DstLat, err = ncio.ReadFloat64(f, "yc_b"); err != nil {
		return nil, err
	}
	if w.DstLon, err = ncio.ReadFloat64(f, "xc_b"); err != nil {
		return nil, err
	}
	return w, nil
}

// readWeightsScrip reads the SCRIP layout written by CDO: links in
// src_address/dst_address/remap_matrix and destination centers in
// radians.
func readWeightsScrip(f *cdf.File) (*Weights, error) {
	w := &Weights{
		SrcSize: ncio.DimLen(f, "src_grid_center_lat", 0),
		DstSize: ncio.DimLen(f, "dst_grid_center_lat", 0),
	}
	src, err := ncio.ReadInt32(f, "src_address")
	if err != nil {
		return nil, err
	}
	dst, err := ncio.ReadInt32(f, "dst_address")
	if err != nil {
		return nil, err
	}
	w.SrcAddress = toZeroBased(src)
	w.DstAddress = toZeroBased(dst)

	// remap_matrix is [num_links, num_wgts]; only the first weight
	// column applies to first-order remapping.
	remap, err := ncio.ReadDense(f, "remap_matrix")
	if err != nil {
		return nil, err
	}
	if len(remap.Shape) != 2 {
		return nil, fmt.Errorf("remap_matrix has shape %v, want 2 dimensions", remap.Shape)
	}
	w.S = make([]float64, remap.Shape[0])
	for k := range w.S {
		w.S[k] = remap.Get(k, 0)
	}

	dims, err := ncio.ReadInt32(f, "dst_grid_dims")
	if err != nil {
		return nil, err
	}
	w.DstDims = make([]int, len(dims))
	for i, d := range dims {
		w.DstDims[i] = int(d)
	}
	lat, err := ncio.ReadFloat64(f, "dst_grid_center_lat")
	if err != nil {
		return nil, err
	}
	lon, err := ncio.ReadFloat64(f, "dst_grid_center_lon")
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(ncio.AttrString(f, "dst_grid_center_lat", "units"), "degree") {
		w.DstLat, w.DstLon = lat, lon
	} else {
		w.DstLat = radiansToDegrees(lat)
		w.DstLon = radiansToDegrees(lon)
	}
	return w, nil
}

// WriteNetCDF writes the weights to fileName using the SCRIP names
// (num_links, src_address, dst_address, remap_matrix), which is what
// OASIS and CDO expect. Together with ReadWeights this renames a
// native ESMF weight file into the SCRIP layout. Addresses go out
// 1-based; destination centers are written in degrees with a units
// attribute saying so. Source centers are not tracked here, so the
// src_grid_center_lat variable carries only the source grid size.
func (w *Weights) WriteNetCDF(fileName string) error {
	if err := w.check(); err != nil {
		return err
	}
	h := cdf.NewHeader(
		[]string{"num_links", "num_wgts", "src_grid_size", "dst_grid_size", "dst_grid_rank"},
		[]int{w.NumLinks(), 1, w.SrcSize, w.DstSize, len(w.DstDims)})
	h.AddAttribute("", "title", "SCRIP remapping")
	h.AddVariable("src_address", []string{"num_links"}, []int32{0})
	h.AddVariable("dst_address", []string{"num_links"}, []int32{0})
	h.AddVariable("remap_matrix", []string{"num_links", "num_wgts"}, []float64{0})
	h.AddVariable("dst_grid_dims", []string{"dst_grid_rank"}, []int32{0})
	h.AddVariable("src_grid_center_lat", []string{"src_grid_size"}, []float64{0})
	h.AddVariable("dst_grid_center_lat", []string{"dst_grid_size"}, []float64{0})
	h.AddAttribute("dst_grid_center_lat", "units", "degrees")
	h.AddVariable("dst_grid_center_lon", []string{"dst_grid_size"}, []float64{0})
	h.AddAttribute("dst_grid_center_lon", "units", "degrees")
	h.Define()
	f, ff, err := ncio.Create(fileName, h)
	if err != nil {
		return fmt.Errorf("regrid: %v", err)
	}
	defer ff.Close()

	dims := make([]int32, len(w.DstDims))
	for i, d := range w.DstDims {
		dims[i] = int32(d)
	}
	vars := []struct {
		name string
		data interface{}
	}{
		{"src_address", toOneBased(w.SrcAddress)},
		{"dst_address", toOneBased(w.DstAddress)},
		{"remap_matrix", w.S},
		{"dst_grid_dims", dims},
		{"src_grid_center_lat", make([]float64, w.SrcSize)},
		{"dst_grid_center_lat", w.DstLat},
		{"dst_grid_center_lon", w.DstLon},
	}
	for _, v := range vars {
		if _, err := f.Writer(v.name, nil, nil).Write(v.data); err != nil {
			return fmt.Errorf("regrid: writing %s to %s: %v", v.name, fileName, err)
		}
	}
	return nil
}

func toZeroBased(addr []int32) []int {
	out := make([]int, len(addr))
	for i, a := range addr {
		out[i] = int(a) - 1
	}
	return out
}

func toOneBased(addr []int) []int32 {
	out := make([]int32, len(addr))
	for i, a := range addr {
		out[i] = int32(a) + 1
	}
	return out
}

func radiansToDegrees(vals []float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = v * 180 / math.Pi
	}
	return out
}
