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
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gorse-io/reco/base"
	"github.com/gorse-io/reco/base/log"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Learner is a model that can be trained by stochastic gradient descent.
// A Trainer owns the learner exclusively during Fit.
type Learner interface {
	// NumSamples returns the number of training samples.
	NumSamples() int
	// Update applies one gradient step on a sample and returns the residual.
	Update(sample int, lr float64) float64
	// Loss returns the RMSE on the training set and on the validation set if exists.
	Loss() (train float64, valid float64, hasValid bool)
	// Finite returns false if any parameter is NaN or infinite.
	Finite() bool
	// Checkpoint remembers current parameters as the last valid parameters.
	Checkpoint()
	// Rollback restores the last valid parameters.
	Rollback()
}

// EpochReport is reported after each finished epoch.
type EpochReport struct {
	Model        string
	Epoch        int
	NumEpochs    int
	LearningRate float64
	TrainRMSE    float64
	ValidRMSE    float64
	HasValid     bool
	Duration     time.Duration
}

func (report EpochReport) ZapFields() []zap.Field {
	fields := []zap.Field{
		zap.Float64("lr", report.LearningRate),
		zap.Float64("train_rmse", report.TrainRMSE),
		zap.String("fit_time", report.Duration.String()),
	}
	if report.HasValid {
		fields = append(fields, zap.Float64("valid_rmse", report.ValidRMSE))
	}
	return fields
}

// Reporter consumes epoch reports.
type Reporter interface {
	Report(report EpochReport)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(report EpochReport)

func (f ReporterFunc) Report(report EpochReport) {
	f(report)
}

// Result summarizes a training run.
type Result struct {
	Epochs    int
	Converged bool
	TrainRMSE float64
	ValidRMSE float64
	HasValid  bool
	History   []EpochReport
}

func (result Result) ZapFields() []zap.Field {
	fields := []zap.Field{
		zap.Int("epochs", result.Epochs),
		zap.Bool("converged", result.Converged),
		zap.Float64("train_rmse", result.TrainRMSE),
	}
	if result.HasValid {
		fields = append(fields, zap.Float64("valid_rmse", result.ValidRMSE))
	}
	return fields
}

// Trainer drives the epoch loop shared by all models.
type Trainer struct {
	name      string
	config    *Config
	rng       base.RandomGenerator
	reporters []Reporter
}

// NewTrainer creates a trainer. The seed drives sample shuffling.
func NewTrainer(name string, config *Config, seed int64, reporters ...Reporter) *Trainer {
	return &Trainer{
		name:      name,
		config:    config,
		rng:       base.NewRandomGenerator(seed),
		reporters: reporters,
	}
}

// Fit trains the learner for at most NumEpochs epochs. The context is only
// checked between epochs. If parameters diverge, the learner is rolled back to
// the last finished epoch and a *DivergenceError is returned.
func (t *Trainer) Fit(ctx context.Context, learner Learner) (Result, error) {
	ctx, span := otel.Tracer("github.com/gorse-io/reco/model").Start(ctx, "Fit")
	defer span.End()
	span.SetAttributes(
		attribute.String("model", t.name),
		attribute.Int("n_samples", learner.NumSamples()),
		attribute.Int("n_epochs", t.config.NumEpochs))

	var result Result
	learner.Checkpoint()
	order := lo.Range(learner.NumSamples())
	if t.config.Shuffle == ShuffleOnce {
		t.rng.ShuffleInts(order)
	}
	previous := math.Inf(1)
	stale := 0
	for epoch := 0; epoch < t.config.NumEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			return result, errors.Trace(err)
		}
		lr := t.config.Schedule.LearningRate(t.config.LearningRate, epoch)
		if t.config.Shuffle == ShuffleEpoch {
			t.rng.ShuffleInts(order)
		}
		fitStart := time.Now()
		finite := true
		for _, sample := range order {
			residual := learner.Update(sample, lr)
			if math.IsNaN(residual) || math.IsInf(residual, 0) {
				finite = false
				break
			}
		}
		var train, valid float64
		var hasValid bool
		if finite && learner.Finite() {
			train, valid, hasValid = learner.Loss()
			finite = !math.IsNaN(train) && !math.IsInf(train, 0)
		} else {
			finite = false
		}
		if !finite {
			learner.Rollback()
			log.Logger().Warn("model diverged",
				zap.String("model", t.name),
				zap.Int("epoch", epoch+1),
				zap.Float64("lr", lr))
			err := &DivergenceError{Epoch: epoch + 1, LearningRate: lr}
			span.RecordError(err)
			return result, err
		}
		learner.Checkpoint()

		report := EpochReport{
			Model:        t.name,
			Epoch:        epoch + 1,
			NumEpochs:    t.config.NumEpochs,
			LearningRate: lr,
			TrainRMSE:    train,
			ValidRMSE:    valid,
			HasValid:     hasValid,
			Duration:     time.Since(fitStart),
		}
		log.Logger().Debug(fmt.Sprintf("fit %s %v/%v", t.name, epoch+1, t.config.NumEpochs), report.ZapFields()...)
		for _, reporter := range t.reporters {
			reporter.Report(report)
		}
		result.Epochs = epoch + 1
		result.TrainRMSE = train
		result.ValidRMSE = valid
		result.HasValid = hasValid
		result.History = append(result.History, report)

		// early stopping
		if t.config.Tolerance > 0 {
			current := lo.Ternary(hasValid, valid, train)
			if previous-current < t.config.Tolerance {
				stale++
				if stale >= t.config.Patience {
					result.Converged = true
					break
				}
			} else {
				stale = 0
			}
			previous = current
		}
	}
	span.SetAttributes(attribute.Int("epochs", result.Epochs), attribute.Bool("converged", result.Converged))
	return result, nil
}
