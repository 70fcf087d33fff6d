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

package dataset

import (
	"math"

	"github.com/gorse-io/reco/base"
	"github.com/gorse-io/reco/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// Rating is an observed target of a (user, item) pair.
type Rating struct {
	UserIndex int32
	ItemIndex int32
	Target    float64
	Weight    float64
}

// GetWeight returns the weight of the rating. Zero weight is read as one.
func (r Rating) GetWeight() float64 {
	if r.Weight == 0 {
		return 1
	}
	return r.Weight
}

// RatingSet is a list of ratings in a space of NumUsers users and NumItems items.
type RatingSet struct {
	NumUsers int32
	NumItems int32
	Ratings  []Rating
	UserDict *FreqDict
	ItemDict *FreqDict
}

func NewRatingSet(numUsers, numItems int32, ratings []Rating) *RatingSet {
	return &RatingSet{
		NumUsers: numUsers,
		NumItems: numItems,
		Ratings:  ratings,
	}
}

func (set *RatingSet) Count() int {
	if set == nil {
		return 0
	}
	return len(set.Ratings)
}

// Validate checks that every index is inside its space and every weight is
// non-negative.
func (set *RatingSet) Validate() error {
	if set.NumUsers < 0 || set.NumItems < 0 {
		return errors.NotValidf("rating set of %d users and %d items", set.NumUsers, set.NumItems)
	}
	for _, rating := range set.Ratings {
		if rating.UserIndex < 0 || rating.UserIndex >= set.NumUsers {
			return errors.Annotate(&model.DimensionMismatchError{Index: rating.UserIndex, Size: set.NumUsers}, "user")
		}
		if rating.ItemIndex < 0 || rating.ItemIndex >= set.NumItems {
			return errors.Annotate(&model.DimensionMismatchError{Index: rating.ItemIndex, Size: set.NumItems}, "item")
		}
		if err := validateTarget(rating.Target, rating.Weight); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Mean returns the weighted mean of targets.
func (set *RatingSet) Mean() float64 {
	if set.Count() == 0 {
		return 0
	}
	targets := lo.Map(set.Ratings, func(r Rating, _ int) float64 { return r.Target })
	weights := lo.Map(set.Ratings, func(r Rating, _ int) float64 { return r.GetWeight() })
	return stat.Mean(targets, weights)
}

// TargetRange returns the minimal and maximal targets.
func (set *RatingSet) TargetRange() (float64, float64) {
	return targetRange(lo.Map(set.Ratings, func(r Rating, _ int) float64 { return r.Target }))
}

// Split a rating set into a training set and a validation set. The validation
// set contains a random ratio of ratings.
func (set *RatingSet) Split(ratio float64, seed int64) (*RatingSet, *RatingSet) {
	trainSet := &RatingSet{NumUsers: set.NumUsers, NumItems: set.NumItems, UserDict: set.UserDict, ItemDict: set.ItemDict}
	validSet := &RatingSet{NumUsers: set.NumUsers, NumItems: set.NumItems, UserDict: set.UserDict, ItemDict: set.ItemDict}
	mask := sampleMask(set.Count(), ratio, seed)
	for i, rating := range set.Ratings {
		if mask[i] {
			validSet.Ratings = append(validSet.Ratings, rating)
		} else {
			trainSet.Ratings = append(trainSet.Ratings, rating)
		}
	}
	return trainSet, validSet
}

// Sample is an observed target of a sparse feature vector.
type Sample struct {
	Features *base.SparseVector
	Target   float64
	Weight   float64
}

// GetWeight returns the weight of the sample. Zero weight is read as one.
func (s Sample) GetWeight() float64 {
	if s.Weight == 0 {
		return 1
	}
	return s.Weight
}

// FeatureSet is a list of samples in a space of Dim features.
type FeatureSet struct {
	Dim     int32
	Samples []Sample
}

func NewFeatureSet(dim int32, samples []Sample) *FeatureSet {
	return &FeatureSet{Dim: dim, Samples: samples}
}

func (set *FeatureSet) Count() int {
	if set == nil {
		return 0
	}
	return len(set.Samples)
}

// Validate checks that every feature is inside the feature space and appears
// once per sample, and that every weight is non-negative.
func (set *FeatureSet) Validate() error {
	if set.Dim < 0 {
		return errors.NotValidf("feature space of size %d", set.Dim)
	}
	for _, sample := range set.Samples {
		if sample.Features == nil {
			return errors.NotValidf("sample without features")
		}
		if len(sample.Features.Indices) != len(sample.Features.Values) {
			return errors.NotValidf("sparse vector with %d indices and %d values",
				len(sample.Features.Indices), len(sample.Features.Values))
		}
		for _, index := range sample.Features.Indices {
			if index < 0 || index >= set.Dim {
				return errors.Trace(&model.DimensionMismatchError{Index: index, Size: set.Dim})
			}
		}
		if index, found := sample.Features.Duplicate(); found {
			return errors.NotValidf("duplicate feature index %d", index)
		}
		if err := validateTarget(sample.Target, sample.Weight); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Mean returns the weighted mean of targets.
func (set *FeatureSet) Mean() float64 {
	if set.Count() == 0 {
		return 0
	}
	targets := lo.Map(set.Samples, func(s Sample, _ int) float64 { return s.Target })
	weights := lo.Map(set.Samples, func(s Sample, _ int) float64 { return s.GetWeight() })
	return stat.Mean(targets, weights)
}

// TargetRange returns the minimal and maximal targets.
func (set *FeatureSet) TargetRange() (float64, float64) {
	return targetRange(lo.Map(set.Samples, func(s Sample, _ int) float64 { return s.Target }))
}

// Split a feature set into a training set and a validation set. The validation
// set contains a random ratio of samples.
func (set *FeatureSet) Split(ratio float64, seed int64) (*FeatureSet, *FeatureSet) {
	trainSet := &FeatureSet{Dim: set.Dim}
	validSet := &FeatureSet{Dim: set.Dim}
	mask := sampleMask(set.Count(), ratio, seed)
	for i, sample := range set.Samples {
		if mask[i] {
			validSet.Samples = append(validSet.Samples, sample)
		} else {
			trainSet.Samples = append(trainSet.Samples, sample)
		}
	}
	return trainSet, validSet
}

// OneHot encodes each rating as one-hot(user) concatenated with one-hot(item).
// Users take features [0, NumUsers) and items take [NumUsers, NumUsers+NumItems).
func OneHot(set *RatingSet) *FeatureSet {
	features := &FeatureSet{
		Dim:     set.NumUsers + set.NumItems,
		Samples: make([]Sample, len(set.Ratings)),
	}
	for i, rating := range set.Ratings {
		features.Samples[i] = Sample{
			Features: base.Concat(
				&base.SparseVector{Dim: set.NumUsers, Indices: []int32{rating.UserIndex}, Values: []float64{1}},
				&base.SparseVector{Dim: set.NumItems, Indices: []int32{rating.ItemIndex}, Values: []float64{1}},
			),
			Target: rating.Target,
			Weight: rating.Weight,
		}
	}
	return features
}

func validateTarget(target, weight float64) error {
	if math.IsNaN(target) || math.IsInf(target, 0) {
		return errors.NotValidf("target %v", target)
	}
	if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return errors.NotValidf("weight %v", weight)
	}
	return nil
}

func targetRange(targets []float64) (float64, float64) {
	if len(targets) == 0 {
		return 0, 0
	}
	return lo.Min(targets), lo.Max(targets)
}

func sampleMask(n int, ratio float64, seed int64) []bool {
	mask := make([]bool, n)
	numValid := lo.Clamp(int(float64(n)*ratio), 0, n)
	rng := base.NewRandomGenerator(seed)
	for _, i := range rng.Permutation(n)[:numValid] {
		mask[i] = true
	}
	return mask
}
