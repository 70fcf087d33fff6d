// Copyright 2022 gorse Project Authors
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

package floats

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Zero fills zeros in a slice of floats.
func Zero(a []float64) {
	for i := range a {
		a[i] = 0
	}
}

// Dot two vectors.
func Dot(a, b []float64) float64 {
	if len(a) != len(b) {
		panic("floats: slice lengths do not match")
	}
	return floats.Dot(a, b)
}

// MulConstAdd multiplies a vector and a const, then adds to dst: dst = dst + a * c
func MulConstAdd(a []float64, c float64, dst []float64) {
	if len(a) != len(dst) {
		panic("floats: slice lengths do not match")
	}
	floats.AddScaled(dst, c, a)
}

// MulConst multiplies a vector with a const: dst = dst * c
func MulConst(dst []float64, c float64) {
	floats.Scale(c, dst)
}

// IsFinite returns true if no element is NaN or infinite.
func IsFinite(a []float64) bool {
	for _, v := range a {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// MatIsFinite returns true if no element of the matrix is NaN or infinite.
func MatIsFinite(x [][]float64) bool {
	for i := range x {
		if !IsFinite(x[i]) {
			return false
		}
	}
	return true
}
