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
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ctessum/sparse"
)

func fieldOf(stash int64, vals ...float64) *Field {
	fld := &Field{Data: sparse.ZerosDense(2, 2)}
	fld.Lookup.SetInt(LBROW, 2)
	fld.Lookup.SetInt(LBNPT, 2)
	fld.Lookup.SetInt(LBUSER1, TypeReal)
	fld.Lookup.SetInt(LBUSER4, stash)
	fld.Lookup.SetReal(BMDI, RealMissing)
	copy(fld.Data.Elements, vals)
	return fld
}

func TestFloor(t *testing.T) {
	in := &File{Fields: []*Field{
		fieldOf(217, -5, 3, -0.5, 7),
		fieldOf(218, -5, 3, -0.5, 7),
	}}
	out, err := Apply(in, &Floor{Stash: []int{217}, Min: 0})
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{0, 3, 0, 7}; !reflect.DeepEqual(out.Fields[0].Data.Elements, want) {
		t.Errorf("floored field: have %v, want %v", out.Fields[0].Data.Elements, want)
	}
	if want := []float64{-5, 3, -0.5, 7}; !reflect.DeepEqual(out.Fields[1].Data.Elements, want) {
		t.Errorf("other field should pass through: have %v, want %v", out.Fields[1].Data.Elements, want)
	}
	if out.Fields[0] == in.Fields[0] || in.Fields[0].Data.Elements[0] != -5 {
		t.Error("input fields should not be modified")
	}
}

func TestLandFraction(t *testing.T) {
	frac := sparse.ZerosDense(2, 2)
	copy(frac.Elements, []float64{1, 0.5, 0, 0})
	op := &LandFraction{Frac: frac}

	in := &File{Fields: []*Field{
		fieldOf(StashLandMask, 9, 9, 9, 9),
		fieldOf(StashOrography, -3, 2, -4, 5),
		fieldOf(StashLandFrac, 9, 9, 9, 9),
		fieldOf(StashSST, 280, RealMissing, 281, RealMissing),
	}}
	out, err := Apply(in, op)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		want []float64
	}{
		{"land mask", []float64{1, 1, 0, 0}},
		{"orography", []float64{1, 2, -4, 5}},
		{"land fraction", []float64{1, 0.5, 0, 0}},
		{"masked field", []float64{280, 0, 281, RealMissing}},
	}
	for i, c := range cases {
		if have := out.Fields[i].Data.Elements; !reflect.DeepEqual(have, c.want) {
			t.Errorf("%s: have %v, want %v", c.name, have, c.want)
		}
	}
}

func TestLandFractionShapeMismatch(t *testing.T) {
	op := &LandFraction{Frac: sparse.ZerosDense(3, 3)}
	_, err := Apply(&File{Fields: []*Field{fieldOf(StashSST, 1, 2, 3, 4)}}, op)
	if err == nil {
		t.Fatal("expected an error for a mis-shaped land fraction")
	}
}

func TestRule(t *testing.T) {
	in := &File{Fields: []*Field{
		fieldOf(217, -1, 2, -3, 4),
		fieldOf(218, -1, 2, -3, 4),
	}}
	out, err := Apply(in, &Rule{Stash: 217, Expr: "data < 0 ? 0 : data"})
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{0, 2, 0, 4}; !reflect.DeepEqual(out.Fields[0].Data.Elements, want) {
		t.Errorf("have %v, want %v", out.Fields[0].Data.Elements, want)
	}
	if want := []float64{-1, 2, -3, 4}; !reflect.DeepEqual(out.Fields[1].Data.Elements, want) {
		t.Errorf("other STASH should pass through: have %v, want %v", out.Fields[1].Data.Elements, want)
	}
}

func TestRuleMissingValue(t *testing.T) {
	in := &File{Fields: []*Field{fieldOf(507, 280, RealMissing, 281, 282)}}
	out, err := Apply(in, &Rule{Stash: 507, Expr: "data == mdi ? 271.35 : data"})
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{280, 271.35, 281, 282}; !reflect.DeepEqual(out.Fields[0].Data.Elements, want) {
		t.Errorf("have %v, want %v", out.Fields[0].Data.Elements, want)
	}
}

func TestRuleBadExpression(t *testing.T) {
	in := &File{Fields: []*Field{fieldOf(217, 1, 2, 3, 4)}}
	if _, err := Apply(in, &Rule{Stash: 217, Expr: "data +"}); err == nil {
		t.Error("expected a parse error")
	}
	if _, err := Apply(in, &Rule{Stash: 217, Expr: "data == 1"}); err == nil {
		t.Error("expected an error for a non-numeric result")
	}
}

func TestLoadRules(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "rules.toml")
	config := `
[[rule]]
stash = 217
expr = "data < 0 ? 0 : data"

[[rule]]
stash = 218
expr = "data * 2"
`
	if err := os.WriteFile(fileName, []byte(config), 0644); err != nil {
		t.Fatal(err)
	}

	ops, err := LoadRules(fileName)
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 2 {
		t.Fatalf("have %d rules, want 2", len(ops))
	}

	in := &File{Fields: []*Field{
		fieldOf(217, -1, 2, -3, 4),
		fieldOf(218, 1, 2, 3, 4),
	}}
	out, err := Apply(in, ops...)
	if err != nil {
		t.Fatal(err)
	}
	if want := []float64{0, 2, 0, 4}; !reflect.DeepEqual(out.Fields[0].Data.Elements, want) {
		t.Errorf("first rule: have %v, want %v", out.Fields[0].Data.Elements, want)
	}
	if want := []float64{2, 4, 6, 8}; !reflect.DeepEqual(out.Fields[1].Data.Elements, want) {
		t.Errorf("second rule: have %v, want %v", out.Fields[1].Data.Elements, want)
	}
}

func TestLoadRulesMissingExpr(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "rules.toml")
	if err := os.WriteFile(fileName, []byte("[[rule]]\nstash = 217\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadRules(fileName); err == nil {
		t.Error("expected an error for a rule with no expression")
	}
}
