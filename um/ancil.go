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
	"math"
	"time"

	"github.com/ctessum/sparse"
)

// A SurfaceSeries is one variable of a surface ancillary: a STASH
// code and a [time, lat, lon] data cube. NaN values are written as
// the missing-data sentinel.
type SurfaceSeries struct {
	Stash int
	Data  *sparse.DenseArray
}

// NewSurfaceAncillary builds a single-level time-series ancillary on
// a regular global grid, in the layout the UM reconfiguration
// expects: Gregorian calendar, ENDGAME staggering, instantaneous
// sub-daily times.
//
// The time axis must be regularly spaced. Each series must be shaped
// [len(times), len(lat), len(lon)].
func NewSurfaceAncillary(times []time.Time, lat, lon []float64, series []SurfaceSeries) (*File, error) {
	if len(times) == 0 || len(lat) < 2 || len(lon) < 2 || len(series) == 0 {
		return nil, fmt.Errorf("um: surface ancillary needs times, a 2-d grid and at least one series")
	}
	ny, nx := len(lat), len(lon)
	for _, s := range series {
		want := []int{len(times), ny, nx}
		if len(s.Data.Shape) != 3 || s.Data.Shape[0] != want[0] ||
			s.Data.Shape[1] != want[1] || s.Data.Shape[2] != want[2] {
			return nil, fmt.Errorf("um: STASH %d series has shape %v, want %v",
				s.Stash, s.Data.Shape, want)
		}
	}

	var tstep int64
	if len(times) > 1 {
		tstep = int64(times[1].Sub(times[0]) / time.Second)
	}
	dlat := lat[1] - lat[0]
	dlon := lon[1] - lon[0]

	f := new(File)
	h := &f.FixedHeader
	for i := range h {
		h[i] = IntMissing
	}
	h.SetWord(FHVersion, 20)
	h.SetWord(FHSubModel, 1)      // atmosphere
	h.SetWord(FHVertCoordType, 1) // hybrid heights
	h.SetWord(FHHorizGridType, 0) // global
	h.SetWord(FHDatasetType, DatasetAncillary)
	h.SetWord(FHCalendar, 1)       // Gregorian
	h.SetWord(FHGridStaggering, 6) // ENDGAME
	h.SetWord(FHTimeType, 1)       // time series
	h.SetWord(FHModelVersion, 1006)
	setHeaderTime(h, FHT1Year, times[0])
	setHeaderTime(h, FHT2Year, times[len(times)-1])
	for i := 0; i < 7; i++ {
		h.SetWord(FHT3Year+i, 0)
	}
	h.SetWord(FHT3Year+3, tstep/3600)
	h.SetWord(FHT3Year+4, tstep%3600/60)
	h.SetWord(FHT3Year+5, tstep%60)

	f.IntegerConstants = make([]int64, 15)
	for i := range f.IntegerConstants {
		f.IntegerConstants[i] = IntMissing
	}
	f.IntegerConstants[ICNumTimes-1] = int64(len(times))
	f.IntegerConstants[ICNumCols-1] = int64(nx)
	f.IntegerConstants[ICNumRows-1] = int64(ny)
	f.IntegerConstants[ICNumLevels-1] = 1
	f.IntegerConstants[ICNumFieldTypes-1] = int64(len(series))

	f.RealConstants = make([]float64, 6)
	f.RealConstants[RCColSpacing-1] = dlon
	f.RealConstants[RCRowSpacing-1] = dlat
	f.RealConstants[RCStartLat-1] = lat[0]
	f.RealConstants[RCStartLon-1] = lon[0]
	f.RealConstants[RCPoleLat-1] = 90
	f.RealConstants[RCPoleLon-1] = 0

	f.LevelConstants = &RealMatrix{Dim1: 1, Dim2: 4, Data: []float64{
		RealMissing, RealMissing, RealMissing, RealMissing}}

	for _, s := range series {
		for t, when := range times {
			fld := &Field{Data: sparse.ZerosDense(ny, nx)}
			l := &fld.Lookup
			setLookupTime(l, when)
			l.SetInt(LBTIM, 1)  // instantaneous, Gregorian
			l.SetInt(LBCODE, 1) // regular lat-lon
			l.SetInt(LBHEM, 0)  // global
			l.SetInt(LBROW, int64(ny))
			l.SetInt(LBNPT, int64(nx))
			l.SetInt(LBPACK, 0)
			l.SetInt(LBREL, 3) // UM 8.1 or later
			l.SetInt(LBVC, 129)
			l.SetInt(LBUSER1, TypeReal)
			l.SetInt(LBUSER4, int64(s.Stash))
			l.SetInt(LBUSER7, 1) // atmosphere
			l.SetReal(BPLAT, 90)
			l.SetReal(BPLON, 0)
			l.SetReal(BDY, dlat)
			l.SetReal(BDX, dlon)
			l.SetReal(BZY, lat[0]-dlat)
			l.SetReal(BZX, lon[0]-dlon)
			l.SetReal(BMDI, RealMissing)
			l.SetReal(BMKS, 1)

			base := t * ny * nx
			for i := range fld.Data.Elements {
				v := s.Data.Elements[base+i]
				if math.IsNaN(v) {
					v = RealMissing
				}
				fld.Data.Elements[i] = v
			}
			f.Fields = append(f.Fields, fld)
		}
	}
	return f, nil
}

// setHeaderTime fills a seven-word fixed-header time starting at pos:
// year, month, day, hour, minute, second, day of year.
func setHeaderTime(h *FixedHeader, pos int, t time.Time) {
	h.SetWord(pos, int64(t.Year()))
	h.SetWord(pos+1, int64(t.Month()))
	h.SetWord(pos+2, int64(t.Day()))
	h.SetWord(pos+3, int64(t.Hour()))
	h.SetWord(pos+4, int64(t.Minute()))
	h.SetWord(pos+5, int64(t.Second()))
	h.SetWord(pos+6, int64(t.YearDay()))
}

func setLookupTime(l *Lookup, t time.Time) {
	l.SetInt(LBYR, int64(t.Year()))
	l.SetInt(LBMON, int64(t.Month()))
	l.SetInt(LBDAT, int64(t.Day()))
	l.SetInt(LBHR, int64(t.Hour()))
	l.SetInt(LBMIN, int64(t.Minute()))
	l.SetInt(LBSEC, int64(t.Second()))
}

// ValidTime returns the field's validity time from lookup words 1-6.
func (l *Lookup) ValidTime() time.Time {
	return time.Date(int(l.Int(LBYR)), time.Month(l.Int(LBMON)), int(l.Int(LBDAT)),
		int(l.Int(LBHR)), int(l.Int(LBMIN)), int(l.Int(LBSEC)), 0, time.UTC)
}
