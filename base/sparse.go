// Copyright 2020 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package base

import (
	"github.com/juju/errors"
)

// SparseVector is an ordered list of (index, value) pairs in a feature space
// of Dim features.
type SparseVector struct {
	Dim     int32
	Indices []int32
	Values  []float64
}

// NewSparseVector creates a SparseVector. Indices must be non-negative, less
// than dim and unique.
func NewSparseVector(dim int32, indices []int32, values []float64) (*SparseVector, error) {
	if dim < 0 {
		return nil, errors.NotValidf("feature space size %d", dim)
	}
	if len(indices) != len(values) {
		return nil, errors.NotValidf("sparse vector with %d indices and %d values", len(indices), len(values))
	}
	for _, index := range indices {
		if index < 0 || index >= dim {
			return nil, errors.NotValidf("feature index %d in space of size %d", index, dim)
		}
	}
	vec := &SparseVector{Dim: dim, Indices: indices, Values: values}
	if index, found := vec.Duplicate(); found {
		return nil, errors.NotValidf("duplicate feature index %d", index)
	}
	return vec, nil
}

// Duplicate returns the first index that appears more than once.
func (vec *SparseVector) Duplicate() (int32, bool) {
	if vec == nil {
		return 0, false
	}
	seen := make(map[int32]struct{}, len(vec.Indices))
	for _, index := range vec.Indices {
		if _, exist := seen[index]; exist {
			return index, true
		}
		seen[index] = struct{}{}
	}
	return 0, false
}

// Len returns the number of non-zero entries.
func (vec *SparseVector) Len() int {
	if vec == nil {
		return 0
	}
	return len(vec.Indices)
}

// ForEach iterates non-zero entries in order.
func (vec *SparseVector) ForEach(f func(i int, index int32, value float64)) {
	if vec == nil {
		return
	}
	for i := range vec.Indices {
		f(i, vec.Indices[i], vec.Values[i])
	}
}

// Concat appends b to a, shifting the indices of b by a.Dim.
func Concat(a, b *SparseVector) *SparseVector {
	ret := &SparseVector{
		Dim:     a.Dim + b.Dim,
		Indices: make([]int32, 0, a.Len()+b.Len()),
		Values:  make([]float64, 0, a.Len()+b.Len()),
	}
	ret.Indices = append(ret.Indices, a.Indices...)
	ret.Values = append(ret.Values, a.Values...)
	for i, index := range b.Indices {
		ret.Indices = append(ret.Indices, index+a.Dim)
		ret.Values = append(ret.Values, b.Values[i])
	}
	return ret
}
