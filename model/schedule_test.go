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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchedule_LearningRate(t *testing.T) {
	constant := Schedule{Type: ScheduleConstant, DecayRate: 0.5, StepSize: 10}
	assert.Equal(t, 0.1, constant.LearningRate(0.1, 0))
	assert.Equal(t, 0.1, constant.LearningRate(0.1, 100))

	step := Schedule{Type: ScheduleStep, DecayRate: 0.5, StepSize: 10}
	assert.Equal(t, 0.1, step.LearningRate(0.1, 0))
	assert.Equal(t, 0.1, step.LearningRate(0.1, 9))
	assert.InDelta(t, 0.05, step.LearningRate(0.1, 10), 1e-12)
	assert.InDelta(t, 0.025, step.LearningRate(0.1, 25), 1e-12)

	inverse := Schedule{Type: ScheduleInverseTime, DecayRate: 0.5, StepSize: 10}
	assert.Equal(t, 0.1, inverse.LearningRate(0.1, 0))
	assert.InDelta(t, 0.05, inverse.LearningRate(0.1, 2), 1e-12)
	assert.InDelta(t, 0.025, inverse.LearningRate(0.1, 6), 1e-12)
}
