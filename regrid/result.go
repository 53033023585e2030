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

	"github.com/ctessum/cdf"

	"github.com/coecms/coecms-util/internal/ncio"
)

// WriteNetCDF writes the regridded field to a netCDF file under the
// given variable name. For a rectilinear destination the coordinates
// come out as 1-d lat/lon axes; otherwise they are written as 2-d
// yc/xc variables alongside the data. A single leading dimension is
// named "time".
func (r *Result) WriteNetCDF(fileName, varName string) error {
	nd := len(r.Data.Shape)
	rect := len(r.Lat.Shape) == 1 && len(r.Lon.Shape) == 1 &&
		nd >= 2 && r.Lat.Shape[0] == r.Data.Shape[nd-2] && r.Lon.Shape[0] == r.Data.Shape[nd-1]

	var dims []string
	switch {
	case rect:
		dims = []string{"lat", "lon"}
	case nd >= 2:
		dims = []string{"y", "x"}
	default:
		return fmt.Errorf("regrid: result of rank %d cannot be written", nd)
	}
	lead := r.Data.Shape[:nd-2]
	leadDims := make([]string, len(lead))
	for i := range lead {
		if len(lead) == 1 {
			leadDims[i] = "time"
		} else {
			leadDims[i] = fmt.Sprintf("dim%d", i)
		}
	}
	dims = append(leadDims, dims...)

	cells := r.Data.Shape[nd-2] * r.Data.Shape[nd-1]
	coords := rect || len(r.Lat.Elements) == cells && len(r.Lon.Elements) == cells

	h := cdf.NewHeader(dims, r.Data.Shape)
	if rect {
		h.AddVariable("lat", []string{"lat"}, []float64{0})
		h.AddAttribute("lat", "units", "degrees_north")
		h.AddVariable("lon", []string{"lon"}, []float64{0})
		h.AddAttribute("lon", "units", "degrees_east")
	} else if coords {
		h.AddVariable("yc", dims[nd-2:], []float64{0})
		h.AddAttribute("yc", "units", "degrees_north")
		h.AddVariable("xc", dims[nd-2:], []float64{0})
		h.AddAttribute("xc", "units", "degrees_east")
	}
	h.AddVariable(varName, dims, []float64{0})
	h.Define()

	f, ff, err := ncio.Create(fileName, h)
	if err != nil {
		return fmt.Errorf("regrid: %v", err)
	}
	defer ff.Close()

	type v64 struct {
		name string
		data []float64
	}
	vars := []v64{{varName, r.Data.Elements}}
	if rect {
		vars = append(vars, v64{"lat", r.Lat.Elements}, v64{"lon", r.Lon.Elements})
	} else if coords {
		vars = append(vars, v64{"yc", r.Lat.Elements}, v64{"xc", r.Lon.Elements})
	}
	for _, v := range vars {
		if _, err := f.Writer(v.name, nil, nil).Write(v.data); err != nil {
			return fmt.Errorf("regrid: writing %s to %s: %v", v.name, fileName, err)
		}
	}
	return nil
}
