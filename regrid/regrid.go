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

// Package regrid builds grid-exchange descriptors from rectilinear
// grids, generates interpolation weights with the external CDO and
// ESMF_RegridWeightGen tools, and applies the resulting sparse weight
// matrices to gridded fields.
package regrid

import (
	"bytes"
	"context"
	"encoding/gob"
	"os"
	"runtime"
	"sync"

	"github.com/ctessum/requestcache"
	"github.com/ctessum/sparse"

	"github.com/coecms/coecms-util/internal/hash"
)

// A Regridder interpolates fields between two grids. Weights are
// generated with CDO the first time a grid pair is seen and reused for
// subsequent fields; with CacheDir set they are also reused across
// process runs.
type Regridder struct {
	// CDO configures weight generation.
	CDO CDO

	// Method is the CDO interpolation method. If empty, "bil" is used.
	Method string

	// CacheDir, if non-empty, is a directory where generated weights
	// are stored for reuse by later runs.
	CacheDir string

	cacheOnce sync.Once
	cache     *requestcache.Cache
}

// weightRequest identifies one weight matrix. All fields take part in
// the cache key.
type weightRequest struct {
	Src, Dst    *Grid
	Method      string
	Extrapolate bool
	Norm        string
	AreaMin     float64
}

func (r *Regridder) method() string {
	if r.Method == "" {
		return "bil"
	}
	return r.Method
}

func (r *Regridder) initCache() {
	process := func(ctx context.Context, request interface{}) (interface{}, error) {
		req := request.(weightRequest)
		weightFile, err := tempFileName("weights")
		if err != nil {
			return nil, err
		}
		defer os.Remove(weightFile)
		if err := r.CDO.Generate(req.Src, req.Dst, req.Method, weightFile); err != nil {
			return nil, err
		}
		return ReadWeights(weightFile)
	}
	funcs := []requestcache.CacheFunc{requestcache.Deduplicate(), requestcache.Memory(10)}
	if r.CacheDir != "" {
		funcs = append(funcs, requestcache.Disk(r.CacheDir, weightsMarshal, weightsUnmarshal))
	}
	r.cache = requestcache.NewCache(process, runtime.GOMAXPROCS(-1), funcs...)
}

// Weights returns the interpolation weights from src to dst,
// generating them on first use.
func (r *Regridder) Weights(ctx context.Context, src, dst *Grid) (*Weights, error) {
	r.cacheOnce.Do(r.initCache)
	req := weightRequest{
		Src:         src,
		Dst:         dst,
		Method:      r.method(),
		Extrapolate: r.CDO.Extrapolate,
		Norm:        r.CDO.Norm,
		AreaMin:     r.CDO.AreaMin,
	}
	result, err := r.cache.NewRequest(ctx, req, hash.Key("weights", req)).Result()
	if err != nil {
		return nil, err
	}
	return result.(*Weights), nil
}

// Regrid interpolates data from src onto dst. The trailing two
// dimensions of data must be (lat, lon) matching src.
func (r *Regridder) Regrid(ctx context.Context, src, dst *Grid, data *sparse.DenseArray) (*Result, error) {
	w, err := r.Weights(ctx, src, dst)
	if err != nil {
		return nil, err
	}
	return w.Apply(data)
}

// Regrid interpolates data from src onto dst, generating CDO weights
// with the given method. The weights are regenerated on every call;
// use a Regridder to reuse them across fields.
func Regrid(ctx context.Context, src, dst *Grid, data *sparse.DenseArray, method string) (*Result, error) {
	r := &Regridder{Method: method, CDO: CDO{Extrapolate: true}}
	return r.Regrid(ctx, src, dst, data)
}

func weightsMarshal(data interface{}) ([]byte, error) {
	i := data.(*interface{})
	w := (*i).(*Weights)
	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(w); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func weightsUnmarshal(b []byte) (interface{}, error) {
	w := new(Weights)
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(w); err != nil {
		return nil, err
	}
	return w, nil
}
