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

// Package era locates and reads fields from the ERA-Interim 6-hourly
// reanalysis archive.
package era

import (
	"fmt"
	"path/filepath"
	"time"
)

// DefaultRoot is the archive location on NCI's /g/data.
const DefaultRoot = "/g/data1a/ub4/erai/netcdf/6hr"

// archiveDomains maps a variable name to the realm directory it is
// archived under.
var archiveDomains = map[string]string{
	"tos": "ocean",
	"sic": "seaIce",
}

// An Archive is an ERA-Interim archive laid out in monthly files
// under <root>/<domain>/oper_an_sfc/v01/<variable>/.
type Archive struct {
	Root string
}

// FileName returns the path of the file holding the given variable
// for the month containing t.
func (a *Archive) FileName(variable string, t time.Time) (string, error) {
	domain, ok := archiveDomains[variable]
	if !ok {
		return "", fmt.Errorf("era: no archive domain is known for variable %q", variable)
	}
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	name := fmt.Sprintf("%s_6hrs_ERAI_historical_an-sfc_%s_%s.nc",
		variable, first.Format("20060102"), last.Format("20060102"))
	return filepath.Join(a.Root, domain, "oper_an_sfc", "v01", variable, name), nil
}

// FileNames returns the paths of the monthly files covering the
// inclusive time range [start, end].
func (a *Archive) FileNames(variable string, start, end time.Time) ([]string, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("era: range end %v is before start %v", end, start)
	}
	var names []string
	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	stop := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	for month := first; !month.After(stop); month = month.AddDate(0, 1, 0) {
		name, err := a.FileName(variable, month)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}
