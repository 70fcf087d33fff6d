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

package encoding

import (
	"bytes"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/stretchr/testify/assert"
)

func TestWriteMatrix(t *testing.T) {
	a := [][]float64{{1, 2}, {3, 4}}
	buf := bytes.NewBuffer(nil)
	err := WriteMatrix(buf, a)
	assert.NoError(t, err)
	assert.Equal(t, 32, buf.Len())
	b := [][]float64{{0, 0}, {0, 0}}
	err = ReadMatrix(buf, b)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestWriteVector(t *testing.T) {
	a := []float64{1, 2, 3}
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, WriteVector(buf, a))
	b := make([]float64, 3)
	assert.NoError(t, ReadVector(buf, b))
	assert.Equal(t, a, b)
	// truncated stream
	assert.Error(t, ReadVector(buf, b))
}

func TestWriteScalars(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, WriteInt64(buf, 1, 2))
	assert.NoError(t, WriteFloat64(buf, 0.5, -1.5))
	var a, b int64
	var c, d float64
	assert.NoError(t, ReadInt64(buf, &a, &b))
	assert.NoError(t, ReadFloat64(buf, &c, &d))
	assert.Equal(t, int64(1), a)
	assert.Equal(t, int64(2), b)
	assert.Equal(t, 0.5, c)
	assert.Equal(t, -1.5, d)
}

func TestWriteBitSet(t *testing.T) {
	a := bitset.New(100)
	a.Set(3).Set(64).Set(99)
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, WriteBitSet(buf, a))
	b, err := ReadBitSet(buf)
	assert.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestWriteString(t *testing.T) {
	a := "abc"
	buf := bytes.NewBuffer(nil)
	err := WriteString(buf, a)
	assert.NoError(t, err)
	var b string
	b, err = ReadString(buf)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
	// truncated stream
	buf = bytes.NewBuffer([]byte{10, 0, 0, 0, 'a'})
	_, err = ReadString(buf)
	assert.Error(t, err)
}

func TestWriteGob(t *testing.T) {
	a := "abc"
	buf := bytes.NewBuffer(nil)
	err := WriteGob(buf, a)
	assert.NoError(t, err)
	var b string
	err = ReadGob(buf, &b)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}
