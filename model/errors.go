// Copyright 2026 gorse Project Authors
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

package model

import (
	"fmt"

	"github.com/juju/errors"
)

// ConfigError reports an invalid hyper-parameter. It is raised before any
// training step and matches errors.NotValid.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return errors.NotValid
}

// DimensionMismatchError reports an index outside its declared space.
type DimensionMismatchError struct {
	Index int32
	Size  int32
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("index %d out of range [0, %d)", e.Index, e.Size)
}

func (e *DimensionMismatchError) Unwrap() error {
	return errors.NotValid
}

// DivergenceError reports that parameters became non-finite. The model keeps
// the parameters of the last finished epoch.
type DivergenceError struct {
	Epoch        int
	LearningRate float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("model diverged at epoch %d with learning rate %v", e.Epoch, e.LearningRate)
}

// ColdStartError reports a prediction that involves an entity or feature
// never observed in training. It is only returned in strict mode.
type ColdStartError struct {
	Entity string
	Index  int32
}

func (e *ColdStartError) Error() string {
	return fmt.Sprintf("%s %d not observed in training", e.Entity, e.Index)
}
