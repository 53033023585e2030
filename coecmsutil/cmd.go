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

// Package coecmsutil holds the configuration and commands of the
// coecms command-line tool.
package coecmsutil

import (
	"fmt"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/coecms/coecms-util/era"
	"github.com/coecms/coecms-util/oasis"
)

// Version is the version of this set of tools.
const Version = "1.1.0"

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "regrid.tool",
			usage: `
              regrid.tool selects the weight generation tool: "cdo" or "esmf".`,
			defaultVal: "cdo",
			flagsets:   []*pflag.FlagSet{weightsCmd.Flags()},
		},
		{
			name: "regrid.src",
			usage: `
              regrid.src is a netCDF file describing the source grid.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{weightsCmd.Flags()},
		},
		{
			name: "regrid.dst",
			usage: `
              regrid.dst is a netCDF file describing the destination grid.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{weightsCmd.Flags()},
		},
		{
			name: "regrid.latvar",
			usage: `
              regrid.latvar names the latitude axis in the grid files.`,
			defaultVal: "lat",
			flagsets:   []*pflag.FlagSet{weightsCmd.Flags()},
		},
		{
			name: "regrid.lonvar",
			usage: `
              regrid.lonvar names the longitude axis in the grid files.`,
			defaultVal: "lon",
			flagsets:   []*pflag.FlagSet{weightsCmd.Flags()},
		},
		{
			name: "regrid.method",
			usage: `
              regrid.method is the interpolation method. CDO accepts bic, bil,
              con, con2, dis, laf, nn and ycon; ESMF accepts bilinear, conserve,
              patch, neareststod and nearestdtos.`,
			shorthand:  "m",
			defaultVal: "bil",
			flagsets:   []*pflag.FlagSet{weightsCmd.Flags()},
		},
		{
			name: "regrid.extrapolate",
			usage: `
              regrid.extrapolate fills destination cells the source grid
              does not reach.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{weightsCmd.Flags()},
		},
		{
			name: "regrid.norm",
			usage: `
              regrid.norm is the conservative normalization: fracarea or
              destarea.`,
			defaultVal: "fracarea",
			flagsets:   []*pflag.FlagSet{weightsCmd.Flags()},
		},
		{
			name: "regrid.output",
			usage: `
              regrid.output is the weight file to create.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{weightsCmd.Flags()},
		},
		{
			name: "apply.weights",
			usage: `
              apply.weights is the weight file to apply, from either CDO
              or ESMF_RegridWeightGen.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{applyCmd.Flags()},
		},
		{
			name: "apply.input",
			usage: `
              apply.input is the netCDF file holding the field to regrid.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{applyCmd.Flags()},
		},
		{
			name: "apply.var",
			usage: `
              apply.var names the variable to regrid. Its trailing dimensions
              must be (lat, lon) on the weights' source grid.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{applyCmd.Flags()},
		},
		{
			name: "apply.output",
			usage: `
              apply.output is the netCDF file to write the regridded field to.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{applyCmd.Flags()},
		},
		{
			name: "um2oasis.landfrac",
			usage: `
              um2oasis.landfrac is the UM land fraction ancillary describing
              the atmosphere grid.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{um2oasisCmd.Flags()},
		},
		{
			name: "um2oasis.gridspec",
			usage: `
              um2oasis.gridspec is the MOM grid_spec.nc file describing the
              ocean grid.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{um2oasisCmd.Flags()},
		},
		{
			name: "um2oasis.outdir",
			usage: `
              um2oasis.outdir is the directory to write grids.nc, masks.nc
              and areas.nc into.`,
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{um2oasisCmd.Flags()},
		},
		{
			name: "checkmask.um",
			usage: `
              checkmask.um is a UM land fraction or land mask ancillary.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{checkMaskCmd.Flags()},
		},
		{
			name: "checkmask.masks",
			usage: `
              checkmask.masks is the OASIS masks.nc file to compare against.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{checkMaskCmd.Flags()},
		},
		{
			name: "checkmask.grid",
			usage: `
              checkmask.grid is the OASIS grid name for the UM.`,
			defaultVal: oasis.AtmosT,
			flagsets:   []*pflag.FlagSet{checkMaskCmd.Flags()},
		},
		{
			name: "checkmask.shapefile",
			usage: `
              checkmask.shapefile, if set, receives the outlines of the
              mismatched cells for inspection in a GIS.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{checkMaskCmd.Flags()},
		},
		{
			name: "erasst.start",
			usage: `
              erasst.start is the first date to include (YYYY-MM-DD).`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{eraSSTCmd.Flags()},
		},
		{
			name: "erasst.end",
			usage: `
              erasst.end is the last date to include (YYYY-MM-DD).`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{eraSSTCmd.Flags()},
		},
		{
			name: "erasst.mask",
			usage: `
              erasst.mask is the UM ancillary holding the target land mask.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{eraSSTCmd.Flags()},
		},
		{
			name: "erasst.output",
			usage: `
              erasst.output is the surface ancillary to create.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{eraSSTCmd.Flags()},
		},
		{
			name: "erasst.frequency",
			usage: `
              erasst.frequency is the update frequency in hours: 6, 12 or 24.`,
			defaultVal: 24,
			flagsets:   []*pflag.FlagSet{eraSSTCmd.Flags()},
		},
		{
			name: "erasst.root",
			usage: `
              erasst.root is the root directory of the reanalysis archive.`,
			defaultVal: era.DefaultRoot,
			flagsets:   []*pflag.FlagSet{eraSSTCmd.Flags()},
		},
		{
			name: "demask.input",
			usage: `
              demask.input is the masked UM ancillary to read.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{demaskCmd.Flags()},
		},
		{
			name: "demask.output",
			usage: `
              demask.output is the unmasked UM ancillary to create.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{demaskCmd.Flags()},
		},
		{
			name: "cleandump.input",
			usage: `
              cleandump.input is the UM dump to read.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cleanDumpCmd.Flags()},
		},
		{
			name: "cleandump.output",
			usage: `
              cleandump.output is the corrected UM dump to create.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cleanDumpCmd.Flags()},
		},
		{
			name: "cleandump.rules",
			usage: `
              cleandump.rules is an optional TOML file of extra correction
              rules, each a [[rule]] table with a stash code and an expr
              evaluated per cell with "data" and "mdi" bound.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{cleanDumpCmd.Flags()},
		},
		{
			name: "vertical.input",
			usage: `
              vertical.input is the UM file to interpolate.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{interpVerticalCmd.Flags()},
		},
		{
			name: "vertical.orography",
			usage: `
              vertical.orography is the UM orography ancillary used for true
              level heights.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{interpVerticalCmd.Flags()},
		},
		{
			name: "vertical.vertlevs",
			usage: `
              vertical.vertlevs is the VERTLEVS namelist describing the
              target levels.`,
			shorthand:  "L",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{interpVerticalCmd.Flags()},
		},
		{
			name: "vertical.output",
			usage: `
              vertical.output is the interpolated UM file to create.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{interpVerticalCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("COECMS")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(weightsCmd)
	Root.AddCommand(applyCmd)
	Root.AddCommand(um2oasisCmd)
	Root.AddCommand(checkMaskCmd)
	Root.AddCommand(eraSSTCmd)
	Root.AddCommand(demaskCmd)
	Root.AddCommand(cleanDumpCmd)
	Root.AddCommand(interpVerticalCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("coecms: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "coecms",
	Short: "Utilities for preparing coupled climate model inputs.",
	Long: `coecms prepares and converts the files used to set up coupled
climate model simulations: regridding weights between the atmosphere and
ocean grids, OASIS coupler descriptions, corrected UM ancillary files and
reanalysis boundary conditions.

Configuration can be changed by using a configuration file (and providing
the path to the file using the --config flag), by using command-line
arguments, or by setting environment variables in the format 'COECMS_var'
where 'var' is the name of the variable to be set.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of coecms.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("coecms v%s\n", Version)
	},
	DisableAutoGenTag: true,
}

var weightsCmd = &cobra.Command{
	Use:   "weights",
	Short: "Generate regridding weights",
	Long: `weights generates an interpolation weight file between two
rectilinear grids by running CDO or ESMF_RegridWeightGen. The grids are
read from the coordinate axes of the given netCDF files.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return GenerateWeights(
			Cfg.GetString("regrid.tool"),
			Cfg.GetString("regrid.src"),
			Cfg.GetString("regrid.dst"),
			Cfg.GetString("regrid.latvar"),
			Cfg.GetString("regrid.lonvar"),
			Cfg.GetString("regrid.method"),
			Cfg.GetString("regrid.output"),
			Cfg.GetBool("regrid.extrapolate"),
			Cfg.GetString("regrid.norm"),
		)
	},
	DisableAutoGenTag: true,
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a weight file to a field",
	Long: `apply interpolates a netCDF variable through an existing weight
file, writing the regridded field with its destination coordinates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return ApplyWeights(
			Cfg.GetString("apply.weights"),
			Cfg.GetString("apply.input"),
			Cfg.GetString("apply.var"),
			Cfg.GetString("apply.output"),
		)
	},
	DisableAutoGenTag: true,
}

var um2oasisCmd = &cobra.Command{
	Use:   "um2oasis",
	Short: "Create OASIS coupler description files",
	Long: `um2oasis builds the grids.nc, masks.nc and areas.nc files the
OASIS coupler needs, describing the UM ENDGAME t, u and v grids (from a
land fraction ancillary) and the MOM ocean tracer grid (from its
grid_spec.nc).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return UM2Oasis(
			Cfg.GetString("um2oasis.landfrac"),
			Cfg.GetString("um2oasis.gridspec"),
			Cfg.GetString("um2oasis.outdir"),
		)
	},
	DisableAutoGenTag: true,
}

var checkMaskCmd = &cobra.Command{
	Use:   "check-mask",
	Short: "Check a UM mask against the OASIS masks",
	Long: `check-mask compares the land mask a UM ancillary describes with
the mask OASIS is using for the same grid, reporting any disagreeing
cells and their total area.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return CheckOasisMask(
			Cfg.GetString("checkmask.um"),
			Cfg.GetString("checkmask.masks"),
			Cfg.GetString("checkmask.grid"),
			Cfg.GetString("checkmask.shapefile"),
		)
	},
	DisableAutoGenTag: true,
}

var eraSSTCmd = &cobra.Command{
	Use:   "era-sst",
	Short: "Create an SST and sea ice ancillary from reanalysis",
	Long: `era-sst reads sea surface temperature and sea ice concentration
from the ERA-Interim archive over a date range, interpolates them onto
the sea points of a UM grid and writes a surface boundary ancillary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		freq, err := cast.ToIntE(Cfg.Get("erasst.frequency"))
		if err != nil {
			return fmt.Errorf("coecms: erasst.frequency: %v", err)
		}
		return EraSST(
			Cfg.GetString("erasst.start"),
			Cfg.GetString("erasst.end"),
			Cfg.GetString("erasst.mask"),
			Cfg.GetString("erasst.output"),
			Cfg.GetString("erasst.root"),
			freq,
		)
	},
	DisableAutoGenTag: true,
}

var demaskCmd = &cobra.Command{
	Use:   "demask",
	Short: "Remove masked values from a UM ancillary",
	Long: `demask fills the masked cells of every field in a UM ancillary by
nearest grid point interpolation from the unmasked cells, so the
reconfiguration never reads missing data.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Demask(
			Cfg.GetString("demask.input"),
			Cfg.GetString("demask.output"),
		)
	},
	DisableAutoGenTag: true,
}

var cleanDumpCmd = &cobra.Command{
	Use:   "clean-dump",
	Short: "Correct out-of-range fields in a UM dump",
	Long: `clean-dump floors spuriously negative moisture fields in a UM
dump at zero, optionally applying extra correction rules from a TOML
file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return CleanDump(
			Cfg.GetString("cleandump.input"),
			Cfg.GetString("cleandump.output"),
			Cfg.GetString("cleandump.rules"),
		)
	},
	DisableAutoGenTag: true,
}

var interpVerticalCmd = &cobra.Command{
	Use:   "interp-vertical",
	Short: "Interpolate a UM file to a new level set",
	Long: `interp-vertical moves the fields of a UM file onto the theta
levels of a VERTLEVS namelist, interpolating each column linearly in
true height above the orography.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return InterpVertical(
			Cfg.GetString("vertical.input"),
			Cfg.GetString("vertical.orography"),
			Cfg.GetString("vertical.vertlevs"),
			Cfg.GetString("vertical.output"),
		)
	},
	DisableAutoGenTag: true,
}

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
