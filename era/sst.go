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

package era

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"

	"github.com/coecms/coecms-util/regrid"
	"github.com/coecms/coecms-util/um"
)

// sstVars maps archive variables to the UM STASH codes of a sea
// surface boundary ancillary.
var sstVars = map[string]int{
	"tos": um.StashSST,
	"sic": um.StashSeaIce,
}

// An SSTBuilder turns archived sea surface temperature and sea ice
// fields into a UM surface ancillary.
type SSTBuilder struct {
	// Archive is the reanalysis archive to read from.
	Archive *Archive

	// ESMF configures weight generation. The extrapolation method
	// defaults to "neareststod" so coastal model sea points the
	// reanalysis ocean grid does not cover are still filled.
	ESMF regrid.ESMF

	// Method is the ESMF interpolation method. If empty, "patch" is
	// used.
	Method string

	// Step is the interval between ancillary times. If zero every
	// archived step in the range is kept.
	Step time.Duration

	// Log receives progress information. If nil, the standard logger
	// is used.
	Log logrus.FieldLogger
}

func (b *SSTBuilder) method() string {
	if b.Method == "" {
		return "patch"
	}
	return b.Method
}

func (b *SSTBuilder) log() logrus.FieldLogger {
	if b.Log == nil {
		return logrus.StandardLogger()
	}
	return b.Log
}

// Build reads sea surface temperature and sea ice concentration over
// the inclusive time range [start, end], interpolates them onto the
// target grid's unmasked cells and assembles a surface ancillary.
// The source mask is taken from the missing values of the first
// temperature field.
func (b *SSTBuilder) Build(target *regrid.Grid, start, end time.Time) (*um.File, error) {
	w, err := b.weights(target, start, end)
	if err != nil {
		return nil, err
	}

	var series []um.SurfaceSeries
	var times []time.Time
	for _, variable := range []string{"tos", "sic"} {
		cube, varTimes, err := b.readSeries(variable, w, start, end)
		if err != nil {
			return nil, err
		}
		if times == nil {
			times = varTimes
		} else if !sameTimes(times, varTimes) {
			return nil, fmt.Errorf("era: tos and %s disagree on archive times", variable)
		}
		series = append(series, um.SurfaceSeries{Stash: sstVars[variable], Data: cube})
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("era: no archive steps between %v and %v", start, end)
	}

	b.log().WithFields(logrus.Fields{
		"steps": len(times),
		"start": times[0],
		"end":   times[len(times)-1],
	}).Info("assembling surface ancillary")
	return um.NewSurfaceAncillary(times, target.Lat, target.Lon, series)
}

// weights generates interpolation weights from the reanalysis ocean
// grid, masked by the first temperature field's missing values, onto
// the target grid.
func (b *SSTBuilder) weights(target *regrid.Grid, start, end time.Time) (*regrid.Weights, error) {
	r, err := b.Archive.NewReader("tos", start, end)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	_, first, err := r.Next()
	if err != nil {
		return nil, fmt.Errorf("era: reading the source mask: %v", err)
	}

	mask := sparse.ZerosDense(len(r.Lat), len(r.Lon))
	for i, v := range first.Elements {
		if !math.IsNaN(v) {
			mask.Elements[i] = 1
		}
	}
	src, err := regrid.NewMaskedGrid(r.Lat, r.Lon, mask)
	if err != nil {
		return nil, fmt.Errorf("era: source grid: %v", err)
	}

	e := b.ESMF
	if e.ExtrapMethod == "" {
		e.ExtrapMethod = "neareststod"
	}
	e.IgnoreUnmapped = true
	return e.Weights(src.Scrip(), target.Scrip(), b.method())
}

// readSeries streams one variable through the weights, stacking the
// regridded steps into a [time, lat, lon] cube.
func (b *SSTBuilder) readSeries(variable string, w *regrid.Weights, start, end time.Time) (*sparse.DenseArray, []time.Time, error) {
	r, err := b.Archive.NewReader(variable, start, end)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()

	var steps []*sparse.DenseArray
	var times []time.Time
	var next time.Time
	for {
		when, data, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		if b.Step > 0 {
			if when.Before(next) {
				continue
			}
			next = when.Add(b.Step)
		}
		res, err := w.Apply(data)
		if err != nil {
			return nil, nil, fmt.Errorf("era: regridding %s at %v: %v", variable, when, err)
		}
		steps = append(steps, res.Data)
		times = append(times, when)
	}
	if len(steps) == 0 {
		return nil, nil, fmt.Errorf("era: no %s steps between %v and %v", variable, start, end)
	}

	shape := append([]int{len(steps)}, steps[0].Shape...)
	cube := sparse.ZerosDense(shape...)
	n := len(steps[0].Elements)
	for t, step := range steps {
		copy(cube.Elements[t*n:], step.Elements)
	}
	b.log().WithFields(logrus.Fields{
		"variable": variable,
		"steps":    len(steps),
	}).Info("regridded archive variable")
	return cube, times, nil
}

func sameTimes(a, b []time.Time) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
