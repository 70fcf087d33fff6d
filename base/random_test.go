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
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const randomEpsilon = 0.1

func TestRandomGenerator_NormalMatrix(t *testing.T) {
	rng := NewRandomGenerator(0)
	vec := rng.NormalMatrix(1, 1000, 1, 2)[0]
	assert.False(t, math.Abs(stat.Mean(vec, nil)-1) > randomEpsilon)
	assert.False(t, math.Abs(stat.StdDev(vec, nil)-2) > randomEpsilon)
}

func TestRandomGenerator_UniformVector(t *testing.T) {
	rng := NewRandomGenerator(0)
	vec := rng.UniformVector(1000, 1, 2)
	assert.False(t, floats.Min(vec) < 1)
	assert.False(t, floats.Max(vec) > 2)
}

func TestRandomGenerator_Deterministic(t *testing.T) {
	a := NewRandomGenerator(42).NormalMatrix(3, 4, 0, 0.1)
	b := NewRandomGenerator(42).NormalMatrix(3, 4, 0, 0.1)
	assert.Equal(t, a, b)
	// one matrix of 3+2 rows equals two matrices drawn back to back
	rng := NewRandomGenerator(7)
	users := rng.NormalMatrix(3, 4, 0, 0.1)
	items := rng.NormalMatrix(2, 4, 0, 0.1)
	joint := NewRandomGenerator(7).NormalMatrix(5, 4, 0, 0.1)
	assert.Equal(t, joint, append(users, items...))
}

func TestRandomGenerator_Permutation(t *testing.T) {
	rng := NewRandomGenerator(0)
	perm := rng.Permutation(100)
	sort.Ints(perm)
	for i := range perm {
		assert.Equal(t, i, perm[i])
	}
	a := []int{0, 1, 2, 3, 4, 5, 6, 7}
	rng.ShuffleInts(a)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, a)
}

func TestCopyMatrix(t *testing.T) {
	src := [][]float64{{1, 2}, {3, 4}}
	dst := NewMatrix(2, 2)
	CopyMatrix(dst, src)
	assert.Equal(t, src, dst)
	dst[0][0] = 100
	assert.Equal(t, 1.0, src[0][0])
}
