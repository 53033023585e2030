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

package coecmsutil

import (
	"fmt"
	"time"

	"github.com/ctessum/sparse"

	"github.com/coecms/coecms-util/era"
	"github.com/coecms/coecms-util/regrid"
	"github.com/coecms/coecms-util/um"
)

// EraSST builds a UM sea surface temperature and sea ice ancillary
// from the reanalysis archive. The target grid and its sea points are
// taken from the land mask of a UM ancillary; freq is the update
// interval in hours.
func EraSST(startDate, endDate, maskFile, outputFile, root string, freq int) error {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return fmt.Errorf("coecms: invalid start date %q: %v", startDate, err)
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return fmt.Errorf("coecms: invalid end date %q: %v", endDate, err)
	}
	if end.Before(start) {
		return fmt.Errorf("coecms: end date %s is before start date %s", endDate, startDate)
	}
	if freq <= 0 {
		return fmt.Errorf("coecms: update frequency must be positive, got %d", freq)
	}

	target, err := seaGrid(maskFile)
	if err != nil {
		return err
	}

	b := era.SSTBuilder{
		Archive: &era.Archive{Root: root},
		Step:    time.Duration(freq) * time.Hour,
	}
	// The range is inclusive of the end date's own steps.
	out, err := b.Build(target, start, end.Add(24*time.Hour-time.Second))
	if err != nil {
		return err
	}
	return out.WriteFile(outputFile)
}

// seaGrid reads a UM land mask ancillary and returns its grid with the
// sea points active.
func seaGrid(maskFile string) (*regrid.Grid, error) {
	ancil, err := um.ReadFile(maskFile)
	if err != nil {
		return nil, err
	}
	fld, err := findField(ancil, um.StashLandMask)
	if err != nil {
		return nil, err
	}
	mask := sparse.ZerosDense(fld.Data.Shape...)
	for i, v := range fld.Data.Elements {
		if v == 0 {
			mask.Elements[i] = 1
		}
	}
	return regrid.NewMaskedGrid(fld.Lats(), fld.Lons(), mask)
}
