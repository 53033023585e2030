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
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ctessum/cdf"

	"github.com/coecms/coecms-util/internal/ncio"
)

func TestFileName(t *testing.T) {
	a := &Archive{Root: "/g/data1a/ub4/erai/netcdf/6hr"}

	name, err := a.FileName("tos", time.Date(2001, 2, 15, 18, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	want := "/g/data1a/ub4/erai/netcdf/6hr/ocean/oper_an_sfc/v01/tos/" +
		"tos_6hrs_ERAI_historical_an-sfc_20010201_20010228.nc"
	if name != want {
		t.Errorf("have %s, want %s", name, want)
	}

	name, err = a.FileName("sic", time.Date(2004, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	want = "/g/data1a/ub4/erai/netcdf/6hr/seaIce/oper_an_sfc/v01/sic/" +
		"sic_6hrs_ERAI_historical_an-sfc_20040201_20040229.nc"
	if name != want {
		t.Errorf("leap year: have %s, want %s", name, want)
	}

	if _, err := a.FileName("psl", time.Now()); err == nil {
		t.Error("expected an error for an unknown variable")
	}
}

func TestFileNames(t *testing.T) {
	a := &Archive{Root: "/erai"}
	start := time.Date(2000, 12, 20, 0, 0, 0, 0, time.UTC)
	end := time.Date(2001, 2, 3, 0, 0, 0, 0, time.UTC)

	names, err := a.FileNames("tos", start, end)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 3 {
		t.Fatalf("have %d files, want 3: %v", len(names), names)
	}
	if want := "tos_6hrs_ERAI_historical_an-sfc_20001201_20001231.nc"; filepath.Base(names[0]) != want {
		t.Errorf("first file: have %s, want %s", filepath.Base(names[0]), want)
	}
	if want := "tos_6hrs_ERAI_historical_an-sfc_20010201_20010228.nc"; filepath.Base(names[2]) != want {
		t.Errorf("last file: have %s, want %s", filepath.Base(names[2]), want)
	}

	if _, err := a.FileNames("tos", end, start); err == nil {
		t.Error("expected an error for a reversed range")
	}
}

var testEpoch = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// writeArchiveFile writes a 2×3 tos file holding the given time
// steps. Values are v0+cell for each successive slice, stored packed
// with an offset, and the last cell of every slice is the fill value.
func writeArchiveFile(t *testing.T, a *Archive, times []time.Time, v0 float64) {
	t.Helper()
	fileName, err := a.FileName("tos", times[0])
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(fileName), 0755); err != nil {
		t.Fatal(err)
	}

	h := cdf.NewHeader([]string{"time", "lat", "lon"}, []int{len(times), 2, 3})
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", "hours since 1900-01-01 00:00:00")
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddVariable("tos", []string{"time", "lat", "lon"}, []float32{0})
	h.AddAttribute("tos", "scale_factor", []float32{0.5})
	h.AddAttribute("tos", "add_offset", []float32{200})
	h.AddAttribute("tos", "_FillValue", []float32{-9999})
	h.Define()

	f, ff, err := ncio.Create(fileName, h)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()

	hours := make([]float64, len(times))
	for i, when := range times {
		hours[i] = when.Sub(testEpoch).Hours()
	}
	if _, err := f.Writer("time", nil, nil).Write(hours); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Writer("lat", nil, nil).Write([]float64{-45, 45}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Writer("lon", nil, nil).Write([]float64{0, 120, 240}); err != nil {
		t.Fatal(err)
	}
	vals := make([]float32, len(times)*6)
	for ti := range times {
		for cell := 0; cell < 6; cell++ {
			vals[ti*6+cell] = float32(v0) + float32(ti*6+cell)
		}
		vals[ti*6+5] = -9999
	}
	if _, err := f.Writer("tos", nil, nil).Write(vals); err != nil {
		t.Fatal(err)
	}
}

func TestReader(t *testing.T) {
	a := &Archive{Root: t.TempDir()}
	jan := []time.Time{
		time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2001, 1, 1, 6, 0, 0, 0, time.UTC),
	}
	feb := []time.Time{time.Date(2001, 2, 1, 0, 0, 0, 0, time.UTC)}
	writeArchiveFile(t, a, jan, 0)
	writeArchiveFile(t, a, feb, 100)

	// Start mid-way into January so the first slice is skipped.
	r, err := a.NewReader("tos",
		time.Date(2001, 1, 1, 3, 0, 0, 0, time.UTC),
		time.Date(2001, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if want := []float64{-45, 45}; !reflect.DeepEqual(r.Lat, want) {
		t.Errorf("lat: have %v, want %v", r.Lat, want)
	}
	if want := []float64{0, 120, 240}; !reflect.DeepEqual(r.Lon, want) {
		t.Errorf("lon: have %v, want %v", r.Lon, want)
	}

	when, data, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if !when.Equal(jan[1]) {
		t.Errorf("first step: have %v, want %v", when, jan[1])
	}
	// Stored 6..10 unpack to 200 + 0.5×value.
	for cell, want := range []float64{203, 203.5, 204, 204.5, 205} {
		if have := data.Elements[cell]; have != want {
			t.Errorf("cell %d: have %v, want %v", cell, have, want)
		}
	}
	if !math.IsNaN(data.Elements[5]) {
		t.Errorf("fill value should decode to NaN, have %v", data.Elements[5])
	}

	when, data, err = r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if !when.Equal(feb[0]) {
		t.Errorf("second step: have %v, want %v", when, feb[0])
	}
	if have, want := data.Elements[0], 250.0; have != want {
		t.Errorf("february value: have %v, want %v", have, want)
	}

	if _, _, err := r.Next(); err != io.EOF {
		t.Errorf("have %v, want io.EOF", err)
	}
}

func TestReaderEndsMidMonth(t *testing.T) {
	a := &Archive{Root: t.TempDir()}
	jan := []time.Time{
		time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2001, 1, 1, 6, 0, 0, 0, time.UTC),
	}
	writeArchiveFile(t, a, jan, 0)

	r, err := a.NewReader("tos", jan[0], jan[0].Add(3*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	when, _, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if !when.Equal(jan[0]) {
		t.Errorf("have %v, want %v", when, jan[0])
	}
	if _, _, err := r.Next(); err != io.EOF {
		t.Errorf("have %v, want io.EOF", err)
	}
}

func TestParseTimeUnits(t *testing.T) {
	cases := []struct {
		units string
		step  time.Duration
		epoch time.Time
	}{
		{"hours since 1900-01-01 00:00:00", time.Hour, testEpoch},
		{"days since 2000-01-01", 24 * time.Hour, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"seconds since 1970-01-01 00:00:00 UTC", time.Second, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		step, epoch, err := parseTimeUnits(c.units)
		if err != nil {
			t.Errorf("%q: %v", c.units, err)
			continue
		}
		if step != c.step || !epoch.Equal(c.epoch) {
			t.Errorf("%q: have (%v, %v), want (%v, %v)", c.units, step, epoch, c.step, c.epoch)
		}
	}

	for _, units := range []string{"fortnights since 2000-01-01", "1900-01-01", "hours since noon"} {
		if _, _, err := parseTimeUnits(units); err == nil {
			t.Errorf("%q: expected an error", units)
		}
	}
}
