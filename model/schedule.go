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
	"math"
)

const (
	ScheduleConstant    = "constant"
	ScheduleStep        = "step"
	ScheduleInverseTime = "inverse_time"
)

// Schedule decides the learning rate of each epoch.
type Schedule struct {
	Type      string  `mapstructure:"type" validate:"oneof=constant step inverse_time"`
	DecayRate float64 `mapstructure:"decay_rate" validate:"gte=0,finite"`
	StepSize  int     `mapstructure:"step_size" validate:"gt=0"`
}

// LearningRate returns the learning rate of a zero-based epoch.
func (s Schedule) LearningRate(lr float64, epoch int) float64 {
	switch s.Type {
	case ScheduleStep:
		return lr * math.Pow(s.DecayRate, float64(epoch/s.StepSize))
	case ScheduleInverseTime:
		return lr / (1 + s.DecayRate*float64(epoch))
	default:
		return lr
	}
}
