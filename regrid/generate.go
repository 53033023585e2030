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
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// esmfFillValue marks inactive cells in fields passed to
// ESMF_RegridWeightGen.
const esmfFillValue = -999999.

// CDOMethods lists the interpolation methods understood by CDO's gen*
// operators: bicubic, bilinear, first and second order conservative,
// distance-weighted, largest area fraction, nearest neighbour and YAC
// conservative.
var CDOMethods = []string{"bic", "bil", "con", "con2", "dis", "laf", "nn", "ycon"}

// CDO generates interpolation weights by running the cdo command-line
// tool. Weight generation is deterministic, so any failure is an
// input or environment problem and is returned without retrying.
type CDO struct {
	// Path is the executable to run. If empty, "cdo" is looked up on
	// $PATH.
	Path string

	// Extrapolate fills destination cells outside the source grid
	// (REMAP_EXTRAPOLATE).
	Extrapolate bool

	// Norm is the normalization for conservative methods
	// (CDO_REMAP_NORM): "fracarea" (the default) or "destarea".
	Norm string

	// AreaMin is the minimum destination area fraction
	// (REMAP_AREA_MIN).
	AreaMin float64

	// Log receives progress information. If nil, the standard logger
	// is used.
	Log logrus.FieldLogger
}

func (c *CDO) path() string {
	if c.Path == "" {
		return "cdo"
	}
	return c.Path
}

func (c *CDO) log() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}

// Generate writes a weight file for interpolating from src to dst with
// the given method, which must be one of CDOMethods.
func (c *CDO) Generate(src, dst *Grid, method, weightFile string) error {
	if !validCDOMethod(method) {
		return fmt.Errorf("regrid: unsupported CDO method %q; must be one of %v", method, CDOMethods)
	}
	norm := c.Norm
	if norm == "" {
		norm = "fracarea"
	}
	if norm != "fracarea" && norm != "destarea" {
		return fmt.Errorf("regrid: unsupported CDO normalization %q; must be fracarea or destarea", norm)
	}

	srcFile, err := tempFileName("srcgrid")
	if err != nil {
		return err
	}
	defer os.Remove(srcFile)
	dstFile, err := tempFileName("dstgrid")
	if err != nil {
		return err
	}
	defer os.Remove(dstFile)

	if err := src.WriteNetCDF(srcFile); err != nil {
		return err
	}
	if err := dst.WriteNetCDF(dstFile); err != nil {
		return err
	}

	extrapolate := "off"
	if c.Extrapolate {
		extrapolate = "on"
	}
	cmd := exec.Command(c.path(), fmt.Sprintf("gen%s,%s", method, dstFile), srcFile, weightFile)
	cmd.Env = append(os.Environ(),
		"REMAP_EXTRAPOLATE="+extrapolate,
		"CDO_REMAP_NORM="+norm,
		fmt.Sprintf("REMAP_AREA_MIN=%f", c.AreaMin),
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	c.log().WithFields(logrus.Fields{
		"method": method,
		"source": fmt.Sprintf("%d×%d", src.Ny(), src.Nx()),
		"target": fmt.Sprintf("%d×%d", dst.Ny(), dst.Nx()),
	}).Info("generating weights with CDO")

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("regrid: cdo gen%s: %v: %s", method, err, stderr.String())
	}
	return nil
}

func validCDOMethod(method string) bool {
	for _, m := range CDOMethods {
		if m == method {
			return true
		}
	}
	return false
}

// tempFileName reserves a temporary file and returns its name. The
// caller is responsible for removing it.
func tempFileName(prefix string) (string, error) {
	f, err := os.CreateTemp("", prefix)
	if err != nil {
		return "", fmt.Errorf("regrid: %v", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("regrid: %v", err)
	}
	return name, nil
}

// ESMF generates interpolation weights by running
// ESMF_RegridWeightGen. Inputs are SCRIP descriptor files; masked
// cells are taken from each file's grid_imask.
type ESMF struct {
	// Path is the executable to run. If empty, "ESMF_RegridWeightGen"
	// is looked up on $PATH.
	Path string

	// ExtrapMethod fills destination cells the source does not reach,
	// e.g. "neareststod" or "nearestidavg". If empty no extrapolation
	// is requested.
	ExtrapMethod string

	// NormType is the conservative normalization: "dstarea" or
	// "fracarea". If empty, "dstarea" is used.
	NormType string

	// IgnoreUnmapped continues even when some destination cells
	// receive no source contributions.
	IgnoreUnmapped bool

	// LineType sets the path between grid corners, e.g. "greatcircle"
	// or "cartesian".
	LineType string

	// Pole sets polar interpolation handling, e.g. "none" or "all".
	Pole string

	// SrcMissingVar and DstMissingVar name data variables in the
	// source and destination files whose fill values mark inactive
	// cells, for grids passed as plain datasets rather than SCRIP
	// descriptors.
	SrcMissingVar, DstMissingVar string

	// Log receives the tool's output. If nil, the standard logger is
	// used.
	Log logrus.FieldLogger
}

func (e *ESMF) path() string {
	if e.Path == "" {
		return "ESMF_RegridWeightGen"
	}
	return e.Path
}

func (e *ESMF) log() logrus.FieldLogger {
	if e.Log == nil {
		return logrus.StandardLogger()
	}
	return e.Log
}

// Generate writes a weight file for interpolating from the grid
// described by srcFile to the grid described by dstFile. The files may
// be SCRIP descriptors (see WriteScrip) or plain lat-lon datasets.
// Method is an ESMF method name such as "bilinear", "conserve",
// "patch" or "neareststod".
func (e *ESMF) Generate(srcFile, dstFile, method, weightFile string) error {
	args := []string{
		"--source", srcFile,
		"--destination", dstFile,
		"--weight", weightFile,
		"--method", method,
		"--norm_type", e.normType(),
		"--no-log",
		"--check",
	}
	if e.ExtrapMethod != "" {
		args = append(args, "--extrap_method", e.ExtrapMethod)
	}
	if e.SrcMissingVar != "" {
		args = append(args, "--src_missingvalue", e.SrcMissingVar)
	}
	if e.DstMissingVar != "" {
		args = append(args, "--dst_missingvalue", e.DstMissingVar)
	}
	if e.IgnoreUnmapped {
		args = append(args, "--ignore_unmapped")
	}
	if e.LineType != "" {
		args = append(args, "--line_type", e.LineType)
	}
	if e.Pole != "" {
		args = append(args, "--pole", e.Pole)
	}

	cmd := exec.Command(e.path(), args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.log().WithFields(logrus.Fields{
		"method": method,
		"source": srcFile,
		"target": dstFile,
	}).Info("generating weights with ESMF_RegridWeightGen")

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("regrid: %s --method %s: %v: %s%s",
			e.path(), method, err, stdout.String(), stderr.String())
	}
	if stdout.Len() > 0 {
		e.log().Debug(stdout.String())
	}
	return nil
}

func (e *ESMF) normType() string {
	if e.NormType == "" {
		return "dstarea"
	}
	return e.NormType
}

// Weights generates and loads weights for interpolating between two
// SCRIP grids, going through temporary descriptor and weight files.
func (e *ESMF) Weights(src, dst *ScripGrid, method string) (*Weights, error) {
	srcFile, err := tempFileName("esmf_src_grid")
	if err != nil {
		return nil, err
	}
	defer os.Remove(srcFile)
	dstFile, err := tempFileName("esmf_dst_grid")
	if err != nil {
		return nil, err
	}
	defer os.Remove(dstFile)
	weightFile, err := tempFileName("esmf_weights")
	if err != nil {
		return nil, err
	}
	defer os.Remove(weightFile)

	if err := WriteScrip(srcFile, src); err != nil {
		return nil, err
	}
	if err := WriteScrip(dstFile, dst); err != nil {
		return nil, err
	}
	if err := e.Generate(srcFile, dstFile, method, weightFile); err != nil {
		return nil, err
	}
	return ReadWeights(weightFile)
}
