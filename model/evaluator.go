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

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// RMSE returns the root mean square error of predictions.
func RMSE(prediction, truth []float64) float64 {
	return WeightedRMSE(prediction, truth, nil)
}

// WeightedRMSE returns the weighted root mean square error of predictions. Nil
// weights are read as unit weights.
func WeightedRMSE(prediction, truth, weights []float64) float64 {
	if len(prediction) != len(truth) {
		panic("model: slice lengths do not match")
	}
	if len(prediction) == 0 {
		return 0
	}
	squared := make([]float64, len(prediction))
	for i := range prediction {
		squared[i] = (prediction[i] - truth[i]) * (prediction[i] - truth[i])
	}
	return math.Sqrt(stat.Mean(squared, weights))
}

// MAE returns the mean absolute error of predictions.
func MAE(prediction, truth []float64) float64 {
	if len(prediction) != len(truth) {
		panic("model: slice lengths do not match")
	}
	if len(prediction) == 0 {
		return 0
	}
	absolute := make([]float64, len(prediction))
	for i := range prediction {
		absolute[i] = math.Abs(prediction[i] - truth[i])
	}
	return stat.Mean(absolute, nil)
}

// Score summarizes errors of a model on a data set.
type Score struct {
	RMSE float64
	MAE  float64
}

// NewScore computes the score of predictions.
func NewScore(prediction, truth []float64) Score {
	return Score{
		RMSE: RMSE(prediction, truth),
		MAE:  MAE(prediction, truth),
	}
}

func (score Score) ZapFields() []zap.Field {
	return []zap.Field{
		zap.Float64("RMSE", score.RMSE),
		zap.Float64("MAE", score.MAE),
	}
}
