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

package cf

import (
	"context"
	"math"

	"github.com/c-bata/goptuna"
	"github.com/gorse-io/reco/base/log"
	"github.com/gorse-io/reco/dataset"
	"github.com/gorse-io/reco/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// ModelSearch searches hyper-parameters of SVD minimizing validation RMSE.
type ModelSearch struct {
	config   *model.Config
	trainSet *dataset.RatingSet
	validSet *dataset.RatingSet
	result   model.SearchResult
}

func NewModelSearch(config *model.Config, trainSet, validSet *dataset.RatingSet) *ModelSearch {
	return &ModelSearch{
		config:   config,
		trainSet: trainSet,
		validSet: validSet,
	}
}

func (ms *ModelSearch) Objective(trial goptuna.Trial) (float64, error) {
	params, err := model.SuggestParams(trial)
	if err != nil {
		return 0, errors.Trace(err)
	}
	config := ms.config.Overwrite(params)
	svd := NewSVD(config)
	result, err := svd.Fit(context.Background(), ms.trainSet, ms.validSet)
	score := result.ValidRMSE
	if !result.HasValid {
		score = result.TrainRMSE
	}
	var divergenceError *model.DivergenceError
	if errors.As(err, &divergenceError) {
		log.Logger().Warn("trial diverged", zap.String("params", params.ToString()))
		score = math.MaxFloat32
	} else if err != nil {
		return 0, errors.Trace(err)
	}
	ms.result.Update(params, config, score)
	return score, nil
}

func (ms *ModelSearch) Result() model.SearchResult {
	return ms.result
}
