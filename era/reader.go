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
	"os"
	"strings"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/coecms/coecms-util/internal/ncio"
)

// A Reader streams one variable out of the archive a time step at a
// time, so a multi-year range never has to fit in memory. Packed
// values are unpacked and fill values come out as NaN.
type Reader struct {
	// Variable is the name being read.
	Variable string

	// Lat and Lon are the grid axes, available once NewReader
	// returns.
	Lat, Lon []float64

	start, end time.Time
	fileNames  []string
	fileIndex  int

	f     *cdf.File
	ff    *os.File
	times []time.Time
	index int

	scale, offset float64
	fill          float64
	hasFill       bool
}

// NewReader opens a reader for the given variable over the inclusive
// time range [start, end]. The grid axes are read from the first
// monthly file.
func (a *Archive) NewReader(variable string, start, end time.Time) (*Reader, error) {
	fileNames, err := a.FileNames(variable, start, end)
	if err != nil {
		return nil, err
	}
	r := &Reader{
		Variable:  variable,
		start:     start,
		end:       end,
		fileNames: fileNames,
	}
	if err := r.openNext(); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("era: no %s files cover %v to %v", variable, start, end)
		}
		return nil, err
	}
	return r, nil
}

// Next returns the next time step within the range, in time order.
// It returns io.EOF after the last step.
func (r *Reader) Next() (time.Time, *sparse.DenseArray, error) {
	for {
		if r.f == nil {
			if err := r.openNext(); err != nil {
				return time.Time{}, nil, err
			}
		}
		for r.index < len(r.times) {
			t := r.times[r.index]
			if t.Before(r.start) {
				r.index++
				continue
			}
			if t.After(r.end) {
				r.closeCurrent()
				r.fileIndex = len(r.fileNames)
				return time.Time{}, nil, io.EOF
			}
			data, err := ncio.ReadSlice(r.f, r.Variable, r.index)
			if err != nil {
				return time.Time{}, nil, fmt.Errorf("era: %v", err)
			}
			r.index++
			r.decode(data)
			return t, data, nil
		}
		r.closeCurrent()
	}
}

// Close releases the currently open archive file.
func (r *Reader) Close() error {
	if r.ff == nil {
		return nil
	}
	err := r.ff.Close()
	r.f, r.ff = nil, nil
	return err
}

func (r *Reader) closeCurrent() {
	if r.ff != nil {
		r.ff.Close()
	}
	r.f, r.ff = nil, nil
}

func (r *Reader) openNext() error {
	if r.fileIndex >= len(r.fileNames) {
		return io.EOF
	}
	fileName := r.fileNames[r.fileIndex]
	r.fileIndex++

	f, ff, err := ncio.Open(fileName)
	if err != nil {
		return fmt.Errorf("era: %v", err)
	}
	times, err := readTimes(f)
	if err != nil {
		ff.Close()
		return fmt.Errorf("era: reading %s: %v", fileName, err)
	}

	if r.Lat == nil {
		if r.Lat, err = ncio.ReadFloat64(f, "lat"); err != nil {
			ff.Close()
			return fmt.Errorf("era: reading %s: %v", fileName, err)
		}
		if r.Lon, err = ncio.ReadFloat64(f, "lon"); err != nil {
			ff.Close()
			return fmt.Errorf("era: reading %s: %v", fileName, err)
		}
	}

	r.f, r.ff = f, ff
	r.times = times
	r.index = 0
	r.scale = ncio.AttrFloat64(f, r.Variable, "scale_factor", 1)
	r.offset = ncio.AttrFloat64(f, r.Variable, "add_offset", 0)
	r.fill = ncio.AttrFloat64(f, r.Variable, "_FillValue", math.NaN())
	r.hasFill = !math.IsNaN(r.fill)
	if !r.hasFill {
		r.fill = ncio.AttrFloat64(f, r.Variable, "missing_value", math.NaN())
		r.hasFill = !math.IsNaN(r.fill)
	}
	return nil
}

func (r *Reader) decode(data *sparse.DenseArray) {
	for i, v := range data.Elements {
		if r.hasFill && v == r.fill {
			data.Elements[i] = math.NaN()
			continue
		}
		data.Elements[i] = v*r.scale + r.offset
	}
}

// readTimes decodes the time axis using its CF units attribute.
func readTimes(f *cdf.File) ([]time.Time, error) {
	vals, err := ncio.ReadFloat64(f, "time")
	if err != nil {
		return nil, err
	}
	step, epoch, err := parseTimeUnits(ncio.AttrString(f, "time", "units"))
	if err != nil {
		return nil, err
	}
	times := make([]time.Time, len(vals))
	for i, v := range vals {
		times[i] = epoch.Add(time.Duration(math.Round(v*step.Seconds())) * time.Second)
	}
	return times, nil
}

// parseTimeUnits interprets a CF time unit string such as
// "hours since 1900-01-01 00:00:00".
func parseTimeUnits(units string) (time.Duration, time.Time, error) {
	parts := strings.SplitN(units, " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("cannot parse time units %q", units)
	}
	var step time.Duration
	switch strings.ToLower(strings.TrimSpace(parts[0])) {
	case "days", "day":
		step = 24 * time.Hour
	case "hours", "hour":
		step = time.Hour
	case "minutes", "minute":
		step = time.Minute
	case "seconds", "second":
		step = time.Second
	default:
		return 0, time.Time{}, fmt.Errorf("unknown time unit %q", parts[0])
	}

	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(parts[1]), "UTC"))
	for _, layout := range []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	} {
		if epoch, err := time.Parse(layout, s); err == nil {
			return step, epoch, nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("cannot parse time epoch %q", parts[1])
}
