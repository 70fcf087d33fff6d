// Copyright 2023 gorse Project Authors
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

package monitor

import (
	"net/http"

	"github.com/gorse-io/reco/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	LabelModel = "model"
	LabelSet   = "set"
)

// Monitor exports training progress as Prometheus metrics.
type Monitor struct {
	registry          *prometheus.Registry
	EpochsTotal       *prometheus.CounterVec
	CurrentEpoch      *prometheus.GaugeVec
	LearningRate      *prometheus.GaugeVec
	RMSE              *prometheus.GaugeVec
	EpochSeconds      *prometheus.HistogramVec
	DivergencesTotal  *prometheus.CounterVec
	TrainSecondsTotal *prometheus.CounterVec
}

func NewMonitor(namespace string) *Monitor {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Monitor{
		registry: registry,
		EpochsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "epochs_total",
		}, []string{LabelModel}),
		CurrentEpoch: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "current_epoch",
		}, []string{LabelModel}),
		LearningRate: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "learning_rate",
		}, []string{LabelModel}),
		RMSE: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "rmse",
		}, []string{LabelModel, LabelSet}),
		EpochSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "epoch_seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{LabelModel}),
		DivergencesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "divergences_total",
		}, []string{LabelModel}),
		TrainSecondsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "training",
			Name:      "seconds_total",
		}, []string{LabelModel}),
	}
}

// Report implements model.Reporter.
func (m *Monitor) Report(report model.EpochReport) {
	m.EpochsTotal.WithLabelValues(report.Model).Inc()
	m.CurrentEpoch.WithLabelValues(report.Model).Set(float64(report.Epoch))
	m.LearningRate.WithLabelValues(report.Model).Set(report.LearningRate)
	m.RMSE.WithLabelValues(report.Model, "train").Set(report.TrainRMSE)
	if report.HasValid {
		m.RMSE.WithLabelValues(report.Model, "valid").Set(report.ValidRMSE)
	}
	m.EpochSeconds.WithLabelValues(report.Model).Observe(report.Duration.Seconds())
	m.TrainSecondsTotal.WithLabelValues(report.Model).Add(report.Duration.Seconds())
}

// Diverged counts a diverged training run.
func (m *Monitor) Diverged(modelName string) {
	m.DivergencesTotal.WithLabelValues(modelName).Inc()
}

// Handler serves metrics in the Prometheus exposition format.
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
