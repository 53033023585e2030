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
	"os"

	"github.com/coecms/coecms-util/internal/ncio"
	"github.com/coecms/coecms-util/regrid"
)

// GenerateWeights creates an interpolation weight file between the
// grids of two netCDF files, running the requested external tool.
func GenerateWeights(tool, srcFile, dstFile, latVar, lonVar, method, output string, extrapolate bool, norm string) error {
	if output == "" {
		return fmt.Errorf("coecms: no output weight file given")
	}
	src, err := regrid.ReadGrid(srcFile, latVar, lonVar)
	if err != nil {
		return err
	}
	dst, err := regrid.ReadGrid(dstFile, latVar, lonVar)
	if err != nil {
		return err
	}

	switch tool {
	case "cdo":
		c := regrid.CDO{Extrapolate: extrapolate, Norm: norm}
		return c.Generate(src, dst, method, output)
	case "esmf":
		e := regrid.ESMF{NormType: esmfNorm(norm)}
		if extrapolate {
			e.ExtrapMethod = "neareststod"
		}
		srcScrip, err := writeTempScrip("esmf_src_grid", src)
		if err != nil {
			return err
		}
		defer os.Remove(srcScrip)
		dstScrip, err := writeTempScrip("esmf_dst_grid", dst)
		if err != nil {
			return err
		}
		defer os.Remove(dstScrip)
		raw, err := os.CreateTemp("", "esmf_weights")
		if err != nil {
			return fmt.Errorf("coecms: %v", err)
		}
		raw.Close()
		defer os.Remove(raw.Name())
		if err := e.Generate(srcScrip, dstScrip, method, raw.Name()); err != nil {
			return err
		}
		// Rewrite the native ESMF layout with the SCRIP variable names
		// so OASIS and CDO can consume the file directly.
		w, err := regrid.ReadWeights(raw.Name())
		if err != nil {
			return err
		}
		return w.WriteNetCDF(output)
	}
	return fmt.Errorf("coecms: unknown weight tool %q; must be cdo or esmf", tool)
}

// esmfNorm translates the CDO normalization names the flags use into
// the ones ESMF_RegridWeightGen expects.
func esmfNorm(norm string) string {
	if norm == "destarea" {
		return "dstarea"
	}
	return norm
}

// writeTempScrip writes a grid's SCRIP descriptor to a temporary file
// and returns its name. The caller removes the file.
func writeTempScrip(prefix string, g *regrid.Grid) (string, error) {
	f, err := os.CreateTemp("", prefix)
	if err != nil {
		return "", fmt.Errorf("coecms: %v", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("coecms: %v", err)
	}
	if err := regrid.WriteScrip(name, g.Scrip()); err != nil {
		os.Remove(name)
		return "", err
	}
	return name, nil
}

// ApplyWeights interpolates a netCDF variable through an existing
// weight file, writing the result with its destination coordinates.
func ApplyWeights(weightFile, inputFile, varName, outputFile string) error {
	w, err := regrid.ReadWeights(weightFile)
	if err != nil {
		return err
	}
	f, r, err := ncio.Open(inputFile)
	if err != nil {
		return err
	}
	defer r.Close()
	data, err := ncio.ReadDense(f, varName)
	if err != nil {
		return err
	}
	res, err := w.Apply(data)
	if err != nil {
		return err
	}
	return res.WriteNetCDF(outputFile, varName)
}
