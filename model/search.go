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
	"github.com/c-bata/goptuna"
	"github.com/juju/errors"
)

// SearchResult is the best trial of a hyper-parameter search.
type SearchResult struct {
	Params Params
	Config *Config
	Score  float64
	Trials int
}

// Update keeps the result with the lowest score.
func (r *SearchResult) Update(params Params, config *Config, score float64) {
	if r.Trials == 0 || score < r.Score {
		r.Params = params.Copy()
		r.Config = config
		r.Score = score
	}
	r.Trials++
}

// SuggestParams samples hyper-parameters for a trial.
func SuggestParams(trial goptuna.Trial) (Params, error) {
	nFactors, err := trial.SuggestInt(string(NFactors), 4, 64)
	if err != nil {
		return nil, errors.Trace(err)
	}
	lr, err := trial.SuggestLogFloat(string(Lr), 0.001, 0.1)
	if err != nil {
		return nil, errors.Trace(err)
	}
	regBias, err := trial.SuggestLogFloat(string(RegBias), 0.001, 0.1)
	if err != nil {
		return nil, errors.Trace(err)
	}
	regFactor, err := trial.SuggestLogFloat(string(RegFactor), 0.001, 0.1)
	if err != nil {
		return nil, errors.Trace(err)
	}
	initStdDev, err := trial.SuggestLogFloat(string(InitStdDev), 0.001, 0.1)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return Params{
		NFactors:   nFactors,
		Lr:         lr,
		RegBias:    regBias,
		RegFactor:  regFactor,
		InitMean:   0.0,
		InitStdDev: initStdDev,
	}, nil
}
