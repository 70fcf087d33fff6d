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
	"math/rand"
)

// RandomGenerator is the random generator for reco.
type RandomGenerator struct {
	*rand.Rand
}

// NewRandomGenerator creates a RandomGenerator.
func NewRandomGenerator(seed int64) RandomGenerator {
	return RandomGenerator{rand.New(rand.NewSource(seed))}
}

// UniformVector makes a vec filled with uniform random floats,
func (rng RandomGenerator) UniformVector(size int, low, high float64) []float64 {
	ret := make([]float64, size)
	scale := high - low
	for i := 0; i < len(ret); i++ {
		ret[i] = rng.Float64()*scale + low
	}
	return ret
}

// NormalVector makes a vec filled with normal random floats.
func (rng RandomGenerator) NormalVector(size int, mean, stdDev float64) []float64 {
	ret := make([]float64, size)
	for i := 0; i < len(ret); i++ {
		ret[i] = rng.NormFloat64()*stdDev + mean
	}
	return ret
}

// NormalMatrix makes a matrix filled with normal random floats. Values are
// drawn row by row.
func (rng RandomGenerator) NormalMatrix(row, col int, mean, stdDev float64) [][]float64 {
	ret := make([][]float64, row)
	for i := range ret {
		ret[i] = rng.NormalVector(col, mean, stdDev)
	}
	return ret
}

// Permutation returns a random permutation of [0, n).
func (rng RandomGenerator) Permutation(n int) []int {
	return rng.Perm(n)
}

// ShuffleInts shuffles a slice of integers in place.
func (rng RandomGenerator) ShuffleInts(a []int) {
	rng.Shuffle(len(a), func(i, j int) {
		a[i], a[j] = a[j], a[i]
	})
}

// NewMatrix creates a 2D matrix of float64.
func NewMatrix(row, col int) [][]float64 {
	ret := make([][]float64, row)
	for i := range ret {
		ret[i] = make([]float64, col)
	}
	return ret
}

// CopyMatrix copies src into dst. Both matrices must have the same shape.
func CopyMatrix(dst, src [][]float64) {
	for i := range src {
		copy(dst[i], src[i])
	}
}
