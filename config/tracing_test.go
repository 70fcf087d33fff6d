// Copyright 2022 gorse Project Authors
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

package config

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestTracingConfig(t *testing.T) {
	// disabled
	tracing := GetDefaultConfig().Tracing
	tp, err := tracing.NewTracerProvider()
	assert.NoError(t, err)
	assert.Nil(t, tp)

	for _, exporter := range []string{"zipkin", "otlphttp"} {
		tracing = TracingConfig{
			EnableTracing:     true,
			Exporter:          exporter,
			CollectorEndpoint: "localhost:9411",
			Sampler:           "ratio",
			Ratio:             0.5,
		}
		if exporter == "zipkin" {
			tracing.CollectorEndpoint = "http://localhost:9411/api/v2/spans"
		}
		tp, err = tracing.NewTracerProvider()
		assert.NoError(t, err, exporter)
		if assert.NotNil(t, tp, exporter) {
			assert.NoError(t, tp.Shutdown(context.Background()))
		}
	}

	tracing = TracingConfig{EnableTracing: true, Exporter: "jaeger", Sampler: "always"}
	_, err = tracing.NewTracerProvider()
	assert.True(t, errors.Is(err, errors.NotSupported))
	tracing = TracingConfig{EnableTracing: true, Exporter: "zipkin", CollectorEndpoint: "http://localhost:9411/api/v2/spans", Sampler: "sometimes"}
	_, err = tracing.NewTracerProvider()
	assert.True(t, errors.Is(err, errors.NotSupported))
}
