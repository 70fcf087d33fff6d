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
	"encoding/binary"
	"encoding/gob"
	"io"

	"github.com/bits-and-blooms/bitset"
	"github.com/juju/errors"
)

// WriteMatrix writes matrix to byte stream in row-major order.
func WriteMatrix(w io.Writer, m [][]float64) error {
	for i := range m {
		err := binary.Write(w, binary.LittleEndian, m[i])
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// ReadMatrix reads matrix from byte stream. The shape of m must be allocated
// by the caller.
func ReadMatrix(r io.Reader, m [][]float64) error {
	for i := range m {
		err := binary.Read(r, binary.LittleEndian, m[i])
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// WriteVector writes vector to byte stream.
func WriteVector(w io.Writer, v []float64) error {
	return errors.Trace(binary.Write(w, binary.LittleEndian, v))
}

// ReadVector reads vector from byte stream.
func ReadVector(r io.Reader, v []float64) error {
	return errors.Trace(binary.Read(r, binary.LittleEndian, v))
}

// WriteInt64 writes integers to byte stream.
func WriteInt64(w io.Writer, values ...int64) error {
	for _, v := range values {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// ReadInt64 reads integers from byte stream.
func ReadInt64(r io.Reader, values ...*int64) error {
	for _, v := range values {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// WriteFloat64 writes floats to byte stream.
func WriteFloat64(w io.Writer, values ...float64) error {
	for _, v := range values {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// ReadFloat64 reads floats from byte stream.
func ReadFloat64(r io.Reader, values ...*float64) error {
	for _, v := range values {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// WriteBitSet writes bitset to byte stream.
func WriteBitSet(w io.Writer, b *bitset.BitSet) error {
	data, err := b.MarshalBinary()
	if err != nil {
		return errors.Trace(err)
	}
	return WriteBytes(w, data)
}

// ReadBitSet reads bitset from byte stream.
func ReadBitSet(r io.Reader) (*bitset.BitSet, error) {
	data, err := ReadBytes(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	b := &bitset.BitSet{}
	if err = b.UnmarshalBinary(data); err != nil {
		return nil, errors.Trace(err)
	}
	return b, nil
}

// WriteString writes string to byte stream.
func WriteString(w io.Writer, s string) error {
	return WriteBytes(w, []byte(s))
}

// ReadString reads string from byte stream.
func ReadString(r io.Reader) (string, error) {
	data, err := ReadBytes(r)
	return string(data), err
}

// WriteBytes writes bytes to byte stream.
func WriteBytes(w io.Writer, s []byte) error {
	err := binary.Write(w, binary.LittleEndian, int32(len(s)))
	if err != nil {
		return err
	}
	n, err := w.Write(s)
	if err != nil {
		return err
	} else if n != len(s) {
		return errors.New("fail to write string")
	}
	return nil
}

// ReadBytes reads bytes from byte stream.
func ReadBytes(r io.Reader) ([]byte, error) {
	var length int32
	err := binary.Read(r, binary.LittleEndian, &length)
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, errors.NotValidf("byte length %d", length)
	}
	data := make([]byte, length)
	if _, err = io.ReadFull(r, data); err != nil {
		return nil, errors.Trace(err)
	}
	return data, nil
}

// WriteGob writes object to byte stream.
func WriteGob(w io.Writer, v interface{}) error {
	buffer := bytes.NewBuffer(nil)
	encoder := gob.NewEncoder(buffer)
	err := encoder.Encode(v)
	if err != nil {
		return err
	}
	return WriteBytes(w, buffer.Bytes())
}

// ReadGob read object from byte stream.
func ReadGob(r io.Reader, v interface{}) error {
	data, err := ReadBytes(r)
	if err != nil {
		return err
	}
	buffer := bytes.NewBuffer(data)
	decoder := gob.NewDecoder(buffer)
	return decoder.Decode(v)
}
