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
	"context"
	"io"
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/reco/base"
	"github.com/gorse-io/reco/base/encoding"
	"github.com/gorse-io/reco/base/log"
	"github.com/gorse-io/reco/common/floats"
	"github.com/gorse-io/reco/common/parallel"
	"github.com/gorse-io/reco/dataset"
	"github.com/gorse-io/reco/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const headerFM = "fm"

// FM is a factorization machine for regression. Pairwise interactions of
// features are modeled by dot products of their latent factors.
type FM struct {
	Config *model.Config
	// Model parameters
	B         float64
	W         []float64
	V         [][]float64
	MinTarget float64
	MaxTarget float64
	Observed  *bitset.BitSet
	// Training state
	trainSet   *dataset.FeatureSet
	validSet   *dataset.FeatureSet
	checkpoint *fmParams
	temp       []float64
}

// fmParams is a copy of mutable parameters.
type fmParams struct {
	b float64
	w []float64
	v [][]float64
}

// NewFM creates a factorization machine. A nil config is replaced by the default config.
func NewFM(config *model.Config) *FM {
	if config == nil {
		config = model.NewConfig()
	}
	return &FM{
		Config:   config,
		Observed: bitset.New(0),
	}
}

// NumFeatures returns the size of the feature space.
func (fm *FM) NumFeatures() int32 {
	return int32(len(fm.W))
}

// Predict the target of a sparse feature vector. Every index is checked
// before computing and a *model.DimensionMismatchError is returned for an
// index outside the feature space or a vector declaring a wider space. Features never observed in training are
// ignored. A *model.ColdStartError is returned with the fallback prediction in
// strict mode.
func (fm *FM) Predict(x *base.SparseVector) (float64, error) {
	if x != nil {
		if len(x.Indices) != len(x.Values) {
			return 0, errors.NotValidf("sparse vector with %d indices and %d values", len(x.Indices), len(x.Values))
		}
		for _, index := range x.Indices {
			if index < 0 || index >= fm.NumFeatures() {
				return 0, &model.DimensionMismatchError{Index: index, Size: fm.NumFeatures()}
			}
		}
		if x.Dim > fm.NumFeatures() {
			return 0, &model.DimensionMismatchError{Index: x.Dim - 1, Size: fm.NumFeatures()}
		}
		if index, found := x.Duplicate(); found {
			return 0, errors.NotValidf("duplicate feature index %d", index)
		}
	}
	prediction, unseen := fm.predict(x)
	if unseen >= 0 {
		if fm.Config.StrictColdStart {
			return prediction, &model.ColdStartError{Entity: "feature", Index: unseen}
		}
		log.Logger().Debug("cold start prediction", zap.Int32("feature", unseen))
	}
	return prediction, nil
}

// PredictWithFlag predicts the target of a sparse feature vector and reports
// whether every feature was observed in training. Features outside the
// feature space are treated as unobserved.
func (fm *FM) PredictWithFlag(x *base.SparseVector) (float64, bool) {
	prediction, unseen := fm.predict(x)
	return prediction, unseen < 0
}

// BatchPredict predicts targets of sparse feature vectors in parallel.
func (fm *FM) BatchPredict(x []*base.SparseVector, jobs int) []float64 {
	predictions := make([]float64, len(x))
	parallel.ForEach(x, jobs, func(i int, v *base.SparseVector) {
		predictions[i], _ = fm.PredictWithFlag(v)
	})
	return predictions
}

// predict returns the prediction over observed features and the first
// unobserved feature (-1 if none).
func (fm *FM) predict(x *base.SparseVector) (float64, int32) {
	unseen := int32(-1)
	// w_0
	pred := fm.B
	sum := make([]float64, fm.Config.NumFactors)
	squares := 0.0
	x.ForEach(func(_ int, j int32, xj float64) {
		if j < 0 || j >= fm.NumFeatures() || !fm.Observed.Test(uint(j)) {
			if xj != 0 && unseen < 0 {
				unseen = j
			}
			return
		}
		// \sum^n_{j=1} w_j x_j
		pred += fm.W[j] * xj
		// \sum^n_{j=1} v_{j,k} x_j
		floats.MulConstAdd(fm.V[j], xj, sum)
		// \sum^n_{j=1} \sum_k v^2_{j,k} x^2_j
		squares += floats.Dot(fm.V[j], fm.V[j]) * xj * xj
	})
	// \sum^n_{i=1}\sum^n_{j=i+1} <v_i,v_j> x_i x_j
	pred += (floats.Dot(sum, sum) - squares) / 2
	if fm.Config.Clip {
		pred = min(max(pred, fm.MinTarget), fm.MaxTarget)
	}
	return pred, unseen
}

// internalPredict predicts a training sample and leaves \sum_j v_{j,k} x_j in sum.
func (fm *FM) internalPredict(x *base.SparseVector, sum []float64) float64 {
	pred := fm.B
	floats.Zero(sum)
	squares := 0.0
	for it, j := range x.Indices {
		xj := x.Values[it]
		pred += fm.W[j] * xj
		floats.MulConstAdd(fm.V[j], xj, sum)
		squares += floats.Dot(fm.V[j], fm.V[j]) * xj * xj
	}
	return pred + (floats.Dot(sum, sum)-squares)/2
}

// Fit the model on a training set. The validation set is optional. Parameters
// of the last finished epoch are kept if training diverges.
func (fm *FM) Fit(ctx context.Context, trainSet, validSet *dataset.FeatureSet, reporters ...model.Reporter) (model.Result, error) {
	if err := fm.Config.Validate(); err != nil {
		return model.Result{}, errors.Trace(err)
	}
	if trainSet == nil {
		return model.Result{}, errors.NotValidf("nil training set")
	}
	if err := trainSet.Validate(); err != nil {
		return model.Result{}, errors.Trace(err)
	}
	if validSet != nil {
		if err := validSet.Validate(); err != nil {
			return model.Result{}, errors.Trace(err)
		}
	}
	log.Logger().Info("fit fm",
		zap.Int("train_set_size", trainSet.Count()),
		zap.Int("valid_set_size", validSet.Count()),
		zap.Int32("n_features", trainSet.Dim),
		zap.Any("config", fm.Config))
	rng := fm.init(trainSet)
	fm.trainSet, fm.validSet = trainSet, validSet
	defer func() {
		fm.trainSet, fm.validSet, fm.checkpoint = nil, nil, nil
	}()
	result, err := model.NewTrainer(headerFM, fm.Config, rng.Int63(), reporters...).Fit(ctx, fm)
	if err != nil {
		return result, errors.Trace(err)
	}
	log.Logger().Info("fit fm complete", result.ZapFields()...)
	return result, nil
}

func (fm *FM) init(trainSet *dataset.FeatureSet) base.RandomGenerator {
	rng := base.NewRandomGenerator(fm.Config.Seed)
	fm.V = rng.NormalMatrix(int(trainSet.Dim), fm.Config.NumFactors, fm.Config.InitMean, fm.Config.InitStdDev)
	fm.W = make([]float64, trainSet.Dim)
	fm.B = trainSet.Mean()
	fm.MinTarget, fm.MaxTarget = trainSet.TargetRange()
	fm.Observed = bitset.New(uint(trainSet.Dim))
	for _, sample := range trainSet.Samples {
		sample.Features.ForEach(func(_ int, index int32, value float64) {
			if value != 0 {
				fm.Observed.Set(uint(index))
			}
		})
	}
	fm.temp = make([]float64, fm.Config.NumFactors)
	return rng
}

func (fm *FM) NumSamples() int {
	return fm.trainSet.Count()
}

// Update applies one SGD step. Gradients of factors are computed from
// \sum_j v_{j,k} x_j before any factor is updated.
func (fm *FM) Update(sample int, lr float64) float64 {
	s := fm.trainSet.Samples[sample]
	e := s.GetWeight() * (s.Target - fm.internalPredict(s.Features, fm.temp))
	// Update w_0
	if fm.Config.FitGlobalBias {
		fm.B += lr * (e - fm.Config.RegGlobalBias*fm.B)
	}
	for it, j := range s.Features.Indices {
		xj := s.Features.Values[it]
		// Update w_j
		fm.W[j] += lr * (e*xj - fm.Config.RegWeight*fm.W[j])
		// Update v_{j,k}
		v := fm.V[j]
		for k := range v {
			v[k] += lr * (e*(xj*fm.temp[k]-v[k]*xj*xj) - fm.Config.RegFactor*v[k])
		}
	}
	return e
}

// Loss returns RMSE on the training set and the validation set.
func (fm *FM) Loss() (float64, float64, bool) {
	train := fm.evaluate(fm.trainSet)
	if fm.validSet.Count() == 0 {
		return train, 0, false
	}
	return train, fm.evaluate(fm.validSet), true
}

func (fm *FM) evaluate(set *dataset.FeatureSet) float64 {
	predictions := make([]float64, len(set.Samples))
	targets := make([]float64, len(set.Samples))
	weights := make([]float64, len(set.Samples))
	for i, sample := range set.Samples {
		predictions[i], _ = fm.PredictWithFlag(sample.Features)
		targets[i] = sample.Target
		weights[i] = sample.GetWeight()
	}
	return model.WeightedRMSE(predictions, targets, weights)
}

func (fm *FM) Finite() bool {
	return floats.IsFinite([]float64{fm.B}) &&
		floats.IsFinite(fm.W) &&
		floats.MatIsFinite(fm.V)
}

func (fm *FM) Checkpoint() {
	if fm.checkpoint == nil {
		fm.checkpoint = &fmParams{
			w: make([]float64, len(fm.W)),
			v: base.NewMatrix(len(fm.V), fm.Config.NumFactors),
		}
	}
	fm.checkpoint.b = fm.B
	copy(fm.checkpoint.w, fm.W)
	base.CopyMatrix(fm.checkpoint.v, fm.V)
}

func (fm *FM) Rollback() {
	fm.B = fm.checkpoint.b
	copy(fm.W, fm.checkpoint.w)
	base.CopyMatrix(fm.V, fm.checkpoint.v)
}

// MarshalModel writes a model with its header.
func MarshalModel(w io.Writer, fm *FM) error {
	if err := encoding.WriteString(w, headerFM); err != nil {
		return errors.Trace(err)
	}
	return fm.Marshal(w)
}

// UnmarshalModel reads a model written by MarshalModel.
func UnmarshalModel(r io.Reader) (*FM, error) {
	header, err := encoding.ReadString(r)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if header != headerFM {
		return nil, errors.NotValidf("model %q", header)
	}
	fm := NewFM(nil)
	if err = fm.Unmarshal(r); err != nil {
		return nil, errors.Trace(err)
	}
	return fm, nil
}

// Marshal model into byte stream.
func (fm *FM) Marshal(w io.Writer) error {
	// write config
	if err := encoding.WriteGob(w, fm.Config); err != nil {
		return errors.Trace(err)
	}
	// write header
	if err := encoding.WriteInt64(w, int64(fm.NumFeatures()), int64(fm.Config.NumFactors)); err != nil {
		return errors.Trace(err)
	}
	// write scalars
	if err := encoding.WriteFloat64(w, fm.B, fm.MinTarget, fm.MaxTarget); err != nil {
		return errors.Trace(err)
	}
	// write vector
	if err := encoding.WriteVector(w, fm.W); err != nil {
		return errors.Trace(err)
	}
	// write matrix
	if err := encoding.WriteMatrix(w, fm.V); err != nil {
		return errors.Trace(err)
	}
	return encoding.WriteBitSet(w, fm.Observed)
}

// Unmarshal model from byte stream.
func (fm *FM) Unmarshal(r io.Reader) error {
	// read config
	config := &model.Config{}
	if err := encoding.ReadGob(r, config); err != nil {
		return errors.Trace(err)
	}
	// read header
	var numFeatures, numFactors int64
	if err := encoding.ReadInt64(r, &numFeatures, &numFactors); err != nil {
		return errors.Trace(err)
	}
	if numFeatures < 0 || numFeatures > math.MaxInt32 || numFactors != int64(config.NumFactors) {
		return errors.NotValidf("fm of %d features and %d factors", numFeatures, numFactors)
	}
	fm.Config = config
	// read scalars
	if err := encoding.ReadFloat64(r, &fm.B, &fm.MinTarget, &fm.MaxTarget); err != nil {
		return errors.Trace(err)
	}
	// read vector
	fm.W = make([]float64, numFeatures)
	if err := encoding.ReadVector(r, fm.W); err != nil {
		return errors.Trace(err)
	}
	// read matrix
	fm.V = base.NewMatrix(int(numFeatures), int(numFactors))
	if err := encoding.ReadMatrix(r, fm.V); err != nil {
		return errors.Trace(err)
	}
	var err error
	if fm.Observed, err = encoding.ReadBitSet(r); err != nil {
		return errors.Trace(err)
	}
	return nil
}
