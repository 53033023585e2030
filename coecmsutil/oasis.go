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
	"github.com/sirupsen/logrus"

	"github.com/coecms/coecms-util/oasis"
	"github.com/coecms/coecms-util/um"
)

// UM2Oasis writes the OASIS description files (grids.nc, masks.nc and
// areas.nc) for a coupled UM-MOM configuration. The atmosphere t, u
// and v grids come from a UM land fraction ancillary, the ocean tracer
// grid from a MOM grid_spec.nc.
func UM2Oasis(landFracFile, gridspecFile, outDir string) error {
	ancil, err := um.ReadFile(landFracFile)
	if err != nil {
		return err
	}
	frac, err := findField(ancil, um.StashLandFrac)
	if err != nil {
		return err
	}
	grids, err := oasis.AtmosGrids(frac.Data, frac.Lats(), frac.Lons())
	if err != nil {
		return err
	}
	if gridspecFile != "" {
		ocean, err := oasis.ReadGridspec(gridspecFile)
		if err != nil {
			return err
		}
		grids[oasis.OceanT] = ocean
	}
	return oasis.Write(outDir, grids)
}

// CheckOasisMask compares the land mask of a UM ancillary against the
// mask OASIS holds for the same grid, logging the disagreeing cells.
// If shapeFile is nonempty the mismatched cell outlines are also
// written as a shapefile.
func CheckOasisMask(umFile, masksFile, gridName, shapeFile string) error {
	ancil, err := um.ReadFile(umFile)
	if err != nil {
		return err
	}
	frac, err := findField(ancil, um.StashLandFrac)
	if err != nil {
		return err
	}
	mask, err := oasis.ReadMask(masksFile, gridName)
	if err != nil {
		return err
	}
	report, err := oasis.CheckMask(frac.Data, frac.Lats(), frac.Lons(), mask)
	if err != nil {
		return err
	}

	log := logrus.WithFields(logrus.Fields{
		"grid":  gridName,
		"cells": report.Cells,
	})
	if len(report.Mismatches) == 0 {
		log.Info("model and coupler masks agree")
		return nil
	}
	log.WithFields(logrus.Fields{
		"mismatches": len(report.Mismatches),
		"area_m2":    report.Area.Value(),
	}).Warn("model and coupler masks disagree")
	for _, m := range report.Mismatches {
		logrus.WithFields(logrus.Fields{
			"row": m.Row, "col": m.Col,
			"lat": m.Lat, "lon": m.Lon,
			"model_active": m.ModelActive,
			"oasis_active": m.OasisActive,
		}).Debug("mask mismatch")
	}
	if shapeFile != "" {
		if err := report.WriteShapefile(shapeFile); err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"shapefile": shapeFile}).Info("wrote mismatch outlines")
	}
	return nil
}
