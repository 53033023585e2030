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

package um

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// TargetLevels converts a level definition to true level heights:
// Zsea (height above the reference sphere at sea level) and C (the
// terrain-following coefficient, squashed to zero at and above the
// first constant level). A level's true height is Zsea + C·orography.
func (v *VerticalLevels) TargetLevels() (zsea, c []float64) {
	zsea = append([]float64{}, v.EtaTheta...)
	floats.Scale(v.ZTop, zsea)

	c = make([]float64, len(v.EtaTheta))
	etaFC := v.EtaTheta[v.FirstConstant-1]
	for k, eta := range v.EtaTheta {
		if k >= v.FirstConstant-1 {
			c[k] = 0
			continue
		}
		r := 1 - eta/etaFC
		c[k] = r * r
	}
	return zsea, c
}

// fieldKey groups the 2-d slices belonging to one variable at one
// validity time.
type fieldKey struct {
	year, month, day, hour, minute, second, stash int64
}

func (k fieldKey) less(o fieldKey) bool {
	a := [7]int64{k.year, k.month, k.day, k.hour, k.minute, k.second, k.stash}
	b := [7]int64{o.year, o.month, o.day, o.hour, o.minute, o.second, o.stash}
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func keyOf(l *Lookup) fieldKey {
	return fieldKey{
		year:   l.Int(LBYR),
		month:  l.Int(LBMON),
		day:    l.Int(LBDAT),
		hour:   l.Int(LBHR),
		minute: l.Int(LBMIN),
		second: l.Int(LBSEC),
		stash:  l.Int(LBUSER4),
	}
}

// VerticalInterpolate moves every field of in onto the theta levels
// of the given level definition. Fields are grouped by variable and
// validity time into columns; each column is linearly interpolated in
// true height (computed from the per-level Zsea/C coefficients and
// the orography) with nearest-value extrapolation beyond the source
// span. The surface level is dropped from the output, and the output
// fields' boundary level heights are marked missing.
func VerticalInterpolate(in *File, orog *Field, levels *VerticalLevels) (*File, error) {
	targetZsea, targetC := levels.TargetLevels()

	groups := make(map[fieldKey][]*Field)
	for _, fld := range in.Fields {
		k := keyOf(&fld.Lookup)
		groups[k] = append(groups[k], fld)
	}
	keys := make([]fieldKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	out := in.Copy()
	for _, k := range keys {
		group := groups[k]
		f0 := group[0]
		ny, nx := f0.Rows(), f0.Cols()
		if len(orog.Data.Shape) != 2 || orog.Data.Shape[0] != ny || orog.Data.Shape[1] != nx {
			return nil, fmt.Errorf("um: orography shape %v does not match STASH %d fields (%d×%d)",
				orog.Data.Shape, k.stash, ny, nx)
		}

		srcZsea := make([]float64, len(group))
		srcC := make([]float64, len(group))
		for lev, fld := range group {
			if fld.Rows() != ny || fld.Cols() != nx {
				return nil, fmt.Errorf("um: STASH %d fields disagree on grid shape", k.stash)
			}
			srcZsea[lev] = fld.Lookup.Real(BLEV)
			srcC[lev] = fld.Lookup.Real(BHLEV)
		}

		newFields := make([]*Field, len(targetZsea))
		for lev := 1; lev < len(targetZsea); lev++ {
			fld := f0.Copy()
			fld.Lookup.SetInt(LBLEV, int64(lev+1))
			fld.Lookup.SetReal(BLEV, targetZsea[lev])
			fld.Lookup.SetReal(BRLEV, RealMissing)
			fld.Lookup.SetReal(BHLEV, targetC[lev])
			fld.Lookup.SetReal(BHRLEV, RealMissing)
			newFields[lev] = fld
		}

		srcZ := make([]float64, len(group))
		srcV := make([]float64, len(group))
		tgtZ := make([]float64, len(targetZsea))
		for i := 0; i < ny*nx; i++ {
			o := orog.Data.Elements[i]
			for lev := range group {
				srcZ[lev] = srcZsea[lev] + srcC[lev]*o
				srcV[lev] = group[lev].Data.Elements[i]
			}
			if !sort.Float64sAreSorted(srcZ) {
				return nil, fmt.Errorf("um: STASH %d source levels are not ascending in height", k.stash)
			}
			for lev := range tgtZ {
				tgtZ[lev] = targetZsea[lev] + targetC[lev]*o
			}
			for lev := 1; lev < len(tgtZ); lev++ {
				newFields[lev].Data.Elements[i] = interpHeight(tgtZ[lev], srcZ, srcV)
			}
		}
		out.Fields = append(out.Fields, newFields[1:]...)
	}
	return out, nil
}

// interpHeight linearly interpolates a column value at height z,
// clamping to the end values outside the source span.
func interpHeight(z float64, xs, vs []float64) float64 {
	if z <= xs[0] {
		return vs[0]
	}
	if z >= xs[len(xs)-1] {
		return vs[len(vs)-1]
	}
	i := sort.SearchFloat64s(xs, z)
	t := (z - xs[i-1]) / (xs[i] - xs[i-1])
	return vs[i-1] + t*(vs[i]-vs[i-1])
}
