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
	"os"
	"strconv"
	"strings"
)

// VerticalLevels is the UM VERTLEVS level-definition namelist: the
// model top height, the first level whose height no longer follows
// the terrain, and the eta values of the theta and rho level sets.
type VerticalLevels struct {
	ZTop          float64
	FirstConstant int
	EtaTheta      []float64
	EtaRho        []float64
}

// ReadVerticalLevels parses a VERTLEVS Fortran namelist file.
func ReadVerticalLevels(fileName string) (*VerticalLevels, error) {
	raw, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("um: %v", err)
	}
	values, err := parseNamelist(string(raw), "VERTLEVS")
	if err != nil {
		return nil, fmt.Errorf("um: reading %s: %v", fileName, err)
	}

	v := new(VerticalLevels)
	ztop, err := single(values, "z_top_of_model")
	if err != nil {
		return nil, fmt.Errorf("um: reading %s: %v", fileName, err)
	}
	v.ZTop = ztop
	fc, err := single(values, "first_constant_r_rho_level")
	if err != nil {
		return nil, fmt.Errorf("um: reading %s: %v", fileName, err)
	}
	v.FirstConstant = int(fc)
	v.EtaTheta = values["eta_theta"]
	v.EtaRho = values["eta_rho"]
	if len(v.EtaTheta) == 0 {
		return nil, fmt.Errorf("um: reading %s: namelist has no eta_theta levels", fileName)
	}
	if v.FirstConstant < 1 || v.FirstConstant > len(v.EtaTheta) {
		return nil, fmt.Errorf("um: reading %s: first_constant_r_rho_level %d outside %d levels",
			fileName, v.FirstConstant, len(v.EtaTheta))
	}
	return v, nil
}

func single(values map[string][]float64, key string) (float64, error) {
	v, ok := values[key]
	if !ok || len(v) != 1 {
		return 0, fmt.Errorf("namelist needs exactly one %s value", key)
	}
	return v[0], nil
}

// parseNamelist extracts the named group from a Fortran namelist:
// "name = value, value, ..." assignments between &GROUP and the
// closing slash, with values possibly continued across lines and
// repeated with the n*value shorthand.
func parseNamelist(text, group string) (map[string][]float64, error) {
	var body strings.Builder
	inGroup := false
	for _, line := range strings.Split(text, "\n") {
		if i := strings.Index(line, "!"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if !inGroup {
			if strings.EqualFold(line, "&"+group) || strings.HasPrefix(strings.ToUpper(line), "&"+strings.ToUpper(group)+" ") {
				inGroup = true
				line = line[len(group)+1:]
			} else {
				continue
			}
		}
		if i := strings.Index(line, "/"); i >= 0 {
			body.WriteString(line[:i])
			body.WriteString(" ")
			inGroup = false
			break
		}
		body.WriteString(line)
		body.WriteString(" ")
	}
	if inGroup {
		return nil, fmt.Errorf("namelist group &%s is not terminated", group)
	}
	if body.Len() == 0 {
		return nil, fmt.Errorf("namelist group &%s not found", group)
	}

	tokens := strings.FieldsFunc(strings.ReplaceAll(body.String(), "=", " = "),
		func(r rune) bool { return r == ' ' || r == '\t' || r == ',' })
	values := make(map[string][]float64)
	key := ""
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if i+1 < len(tokens) && tokens[i+1] == "=" {
			key = strings.ToLower(tok)
			i++
			continue
		}
		if key == "" {
			return nil, fmt.Errorf("namelist value %q before any assignment", tok)
		}
		repeat := 1
		if j := strings.Index(tok, "*"); j >= 0 {
			n, err := strconv.Atoi(tok[:j])
			if err != nil {
				return nil, fmt.Errorf("bad repeat count in %q", tok)
			}
			repeat, tok = n, tok[j+1:]
		}
		v, err := strconv.ParseFloat(strings.NewReplacer("D", "E", "d", "e").Replace(tok), 64)
		if err != nil {
			return nil, fmt.Errorf("bad namelist value %q for %s", tok, key)
		}
		for r := 0; r < repeat; r++ {
			values[key] = append(values[key], v)
		}
	}
	return values, nil
}
