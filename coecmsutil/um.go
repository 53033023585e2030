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

	"github.com/coecms/coecms-util/regrid"
	"github.com/coecms/coecms-util/um"
)

// Demask fills the masked cells of every field in a UM ancillary by
// nearest grid point interpolation from the unmasked cells. Leaf area
// index fields (STASH 217) are additionally floored at zero, since the
// interpolation can carry small negative values onto the new cells.
func Demask(inputFile, outputFile string) error {
	in, err := um.ReadFile(inputFile)
	if err != nil {
		return err
	}
	out, err := um.Demask(in, &regrid.ESMF{}, &um.Floor{Stash: []int{217}, Min: 0})
	if err != nil {
		return err
	}
	return out.WriteFile(outputFile)
}

// CleanDump floors the moisture fields of a UM dump at zero: specific
// humidity (STASH 10) and soil moisture (STASH 9) can come out of a
// reconfiguration spuriously negative, as can the leaf area index
// (STASH 217). Extra corrections may be supplied as a TOML rules file.
func CleanDump(inputFile, outputFile, rulesFile string) error {
	in, err := um.ReadFile(inputFile)
	if err != nil {
		return err
	}
	ops := []um.Operator{&um.Floor{Stash: []int{9, 10, 217}, Min: 0}}
	if rulesFile != "" {
		rules, err := um.LoadRules(rulesFile)
		if err != nil {
			return err
		}
		ops = append(ops, rules...)
	}
	out, err := um.Apply(in, ops...)
	if err != nil {
		return err
	}
	return out.WriteFile(outputFile)
}

// InterpVertical interpolates a UM file onto the theta levels of a
// VERTLEVS namelist, taking the true level heights above an orography
// ancillary.
func InterpVertical(inputFile, orogFile, vertlevsFile, outputFile string) error {
	in, err := um.ReadFile(inputFile)
	if err != nil {
		return err
	}
	orogAncil, err := um.ReadFile(orogFile)
	if err != nil {
		return err
	}
	orog, err := findField(orogAncil, um.StashOrography)
	if err != nil {
		return err
	}
	levels, err := um.ReadVerticalLevels(vertlevsFile)
	if err != nil {
		return err
	}
	out, err := um.VerticalInterpolate(in, orog, levels)
	if err != nil {
		return err
	}
	return out.WriteFile(outputFile)
}

// findField returns the first field with the given STASH code, or the
// file's first field if the code is not present but the file holds
// exactly one field.
func findField(f *um.File, stash int) (*um.Field, error) {
	for _, fld := range f.Fields {
		if fld.Lookup.Stash() == stash {
			return fld, nil
		}
	}
	if len(f.Fields) == 1 {
		return f.Fields[0], nil
	}
	return nil, fmt.Errorf("coecms: no field with STASH code %d", stash)
}
