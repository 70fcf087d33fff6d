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

package ctr

import (
	"github.com/gorse-io/reco/base"
	"github.com/gorse-io/reco/dataset"
	"github.com/gorse-io/reco/model"
	"github.com/samber/lo"
)

// EvaluateRegression evaluates a factorization machine on a data set.
func EvaluateRegression(fm *FM, testSet *dataset.FeatureSet, jobs int) model.Score {
	x := lo.Map(testSet.Samples, func(s dataset.Sample, _ int) *base.SparseVector { return s.Features })
	targets := lo.Map(testSet.Samples, func(s dataset.Sample, _ int) float64 { return s.Target })
	return model.NewScore(fm.BatchPredict(x, jobs), targets)
}
