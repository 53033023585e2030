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

package um

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/Knetic/govaluate"
	"github.com/ctessum/sparse"
)

// STASH codes with built-in correction policies.
const (
	StashLandMask  = 30
	StashSeaIce    = 31
	StashOrography = 33
	StashLandFrac  = 505
	StashSST       = 507
)

// An Operator rewrites one field's data, returning the replacement
// array. Operators that do not apply to the field return the input
// array unchanged.
type Operator interface {
	Transform(f *Field) (*sparse.DenseArray, error)
}

// Apply runs the operators in order over every field, returning a new
// file with the same headers and the transformed fields. Input fields
// are not modified.
func Apply(in *File, ops ...Operator) (*File, error) {
	out := in.Copy()
	for i, fld := range in.Fields {
		nf := fld.Copy()
		for _, op := range ops {
			data, err := op.Transform(nf)
			if err != nil {
				return nil, fmt.Errorf("um: field %d (STASH %d): %v", i, nf.Lookup.Stash(), err)
			}
			nf.Data = data
		}
		out.Fields = append(out.Fields, nf)
	}
	return out, nil
}

// Floor clamps values of the given STASH codes at a minimum. Other
// fields pass through unchanged.
type Floor struct {
	Stash []int
	Min   float64
}

func (o *Floor) Transform(f *Field) (*sparse.DenseArray, error) {
	if !containsStash(o.Stash, f.Lookup.Stash()) {
		return f.Data, nil
	}
	data := f.Data
	for i, v := range data.Elements {
		if v < o.Min {
			data.Elements[i] = o.Min
		}
	}
	return data, nil
}

func containsStash(codes []int, stash int) bool {
	for _, c := range codes {
		if c == stash {
			return true
		}
	}
	return false
}

// LandFraction overrides the land surface fields of an ancillary with
// a replacement land fraction:
//
//   - land mask (STASH 30) becomes 1 wherever the fraction is nonzero;
//   - orography (STASH 33) is raised to 1 m where it is negative on
//     the new land;
//   - land fraction (STASH 505) is replaced outright;
//   - in every field, missing data on newly landed cells becomes 0.
type LandFraction struct {
	Frac *sparse.DenseArray
}

func (o *LandFraction) Transform(f *Field) (*sparse.DenseArray, error) {
	data := f.Data
	if len(o.Frac.Shape) != 2 || o.Frac.Shape[0] != data.Shape[0] || o.Frac.Shape[1] != data.Shape[1] {
		return nil, fmt.Errorf("land fraction shape %v does not match field %v", o.Frac.Shape, data.Shape)
	}
	switch f.Lookup.Stash() {
	case StashLandMask:
		for i, frac := range o.Frac.Elements {
			if frac > 0 {
				data.Elements[i] = 1
			} else {
				data.Elements[i] = 0
			}
		}
	case StashOrography:
		for i, frac := range o.Frac.Elements {
			if data.Elements[i] < 0 && frac > 0 {
				data.Elements[i] = 1
			}
		}
	case StashLandFrac:
		copy(data.Elements, o.Frac.Elements)
	}
	for i, frac := range o.Frac.Elements {
		if data.Elements[i] == RealMissing && frac > 0 {
			data.Elements[i] = 0
		}
	}
	return data, nil
}

// A Rule transforms fields of one STASH code by evaluating an
// expression for every cell. The cell value is bound to "data" and
// the missing-data sentinel to "mdi", so a floor rule reads
// "data < 0 ? 0 : data".
type Rule struct {
	Stash int
	Expr  string

	expr *govaluate.EvaluableExpression
}

func (r *Rule) Transform(f *Field) (*sparse.DenseArray, error) {
	if f.Lookup.Stash() != r.Stash {
		return f.Data, nil
	}
	if r.expr == nil {
		var err error
		if r.expr, err = govaluate.NewEvaluableExpression(r.Expr); err != nil {
			return nil, fmt.Errorf("rule %q: %v", r.Expr, err)
		}
	}
	params := map[string]interface{}{"mdi": RealMissing}
	data := f.Data
	for i, v := range data.Elements {
		params["data"] = v
		result, err := r.expr.Evaluate(params)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %v", r.Expr, err)
		}
		out, ok := result.(float64)
		if !ok {
			return nil, fmt.Errorf("rule %q evaluates to %T, want a number", r.Expr, result)
		}
		data.Elements[i] = out
	}
	return data, nil
}

type ruleConfig struct {
	Rule []struct {
		Stash int    `toml:"stash"`
		Expr  string `toml:"expr"`
	} `toml:"rule"`
}

// LoadRules reads correction rules from a TOML file of [[rule]]
// tables, each with a stash code and an expr string.
func LoadRules(fileName string) ([]Operator, error) {
	var cfg ruleConfig
	if _, err := toml.DecodeFile(fileName, &cfg); err != nil {
		return nil, fmt.Errorf("um: reading rules from %s: %v", fileName, err)
	}
	ops := make([]Operator, 0, len(cfg.Rule))
	for _, r := range cfg.Rule {
		if r.Expr == "" {
			return nil, fmt.Errorf("um: rule for STASH %d in %s has no expression", r.Stash, fileName)
		}
		ops = append(ops, &Rule{Stash: r.Stash, Expr: r.Expr})
	}
	return ops, nil
}
