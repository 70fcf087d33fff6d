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
	"github.com/gorse-io/reco/dataset"
	"github.com/gorse-io/reco/model"
	"github.com/samber/lo"
)

// EvaluateRegression evaluates a FunkSVD model on a data set.
func EvaluateRegression(svd *SVD, testSet *dataset.RatingSet, jobs int) model.Score {
	pairs := lo.Map(testSet.Ratings, func(r dataset.Rating, _ int) lo.Tuple2[int32, int32] {
		return lo.Tuple2[int32, int32]{A: r.UserIndex, B: r.ItemIndex}
	})
	targets := lo.Map(testSet.Ratings, func(r dataset.Rating, _ int) float64 { return r.Target })
	return model.NewScore(svd.BatchPredict(pairs, jobs), targets)
}
