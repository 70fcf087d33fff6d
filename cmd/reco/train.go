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

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gorse-io/reco/base/log"
	"github.com/gorse-io/reco/common/monitor"
	"github.com/gorse-io/reco/config"
	"github.com/gorse-io/reco/model"
	"github.com/gorse-io/reco/model/cf"
	"github.com/gorse-io/reco/model/ctr"
	"github.com/gorse-io/reco/storage/blob"
	"github.com/gorse-io/reco/storage/meta"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Train a model and save it to the blob store",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig(cmd.Flags())
		if err != nil {
			return errors.Trace(err)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		_, err = train(ctx, conf, cmd.OutOrStdout())
		return err
	},
}

func init() {
	rootCommand.AddCommand(trainCommand)
	trainCommand.Flags().String("model", config.ModelSVD, "model to train (svd or fm)")
	trainCommand.Flags().String("train", "", "training data path")
	trainCommand.Flags().String("valid", "", "validation data path")
	trainCommand.Flags().String("format", config.FormatCSV, "data format (csv or libfm)")
	trainCommand.Flags().Int("jobs", 1, "number of jobs for evaluation")
}

// train fits a model, saves the archive and records the run. The run is
// returned even if training fails.
func train(ctx context.Context, conf *config.Config, out io.Writer) (*meta.Run, error) {
	if conf.Training.Model == config.ModelSVD && conf.Data.Format == config.FormatLibFM {
		return nil, errors.NotSupportedf("svd on libfm data")
	}
	data, err := loadData(conf.Data)
	if err != nil {
		return nil, errors.Trace(err)
	}
	store, err := blob.Open(conf.Storage)
	if err != nil {
		return nil, errors.Trace(err)
	}
	database, err := openMeta(conf.Storage)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer database.Close()

	// setup tracing
	tp, err := conf.Tracing.NewTracerProvider()
	if err != nil {
		return nil, errors.Trace(err)
	}
	if tp != nil {
		otel.SetTracerProvider(tp)
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				log.Logger().Warn("failed to flush spans", zap.Error(err))
			}
		}()
	}

	// record the run
	params := conf.Training.Params
	run := meta.NewRun(conf.Training.Model, &params)
	if err = database.PutRun(run); err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("start training", zap.String("run", run.ID), zap.String("model", run.Model))

	// serve metrics
	m := monitor.NewMonitor(conf.Metrics.Namespace)
	if conf.Metrics.Listen != "" {
		server := serveMetrics(conf.Metrics.Listen, m)
		defer func() {
			_ = server.Shutdown(context.Background())
		}()
	}
	saveCtx := ctx
	if conf.Training.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, conf.Training.Timeout)
		defer cancel()
	}

	bar := progressbar.NewOptions(max(params.NumEpochs, 1),
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("fit "+conf.Training.Model),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false))
	progress := model.ReporterFunc(func(report model.EpochReport) {
		_ = bar.Add(1)
	})

	a := &archive{userDict: data.userDict, itemDict: data.itemDict}
	var (
		result model.Result
		score  model.Score
	)
	switch conf.Training.Model {
	case config.ModelSVD:
		a.svd = cf.NewSVD(&params)
		result, err = a.svd.Fit(ctx, data.trainRatings, data.validRatings, m, progress)
		if err == nil && data.validRatings.Count() > 0 {
			score = cf.EvaluateRegression(a.svd, data.validRatings, conf.Training.Jobs)
		}
	case config.ModelFM:
		trainSet, validSet := data.features()
		a.fm = ctr.NewFM(&params)
		result, err = a.fm.Fit(ctx, trainSet, validSet, m, progress)
		if err == nil && validSet.Count() > 0 {
			score = ctr.EvaluateRegression(a.fm, validSet, conf.Training.Jobs)
		}
	default:
		err = errors.NotSupportedf("model %s", conf.Training.Model)
	}
	_ = bar.Finish()
	_, _ = fmt.Fprintln(out)
	run.Finish(result, err)
	if err != nil {
		var divergenceError *model.DivergenceError
		if errors.As(err, &divergenceError) {
			m.Diverged(conf.Training.Model)
		}
		if putErr := database.PutRun(run); putErr != nil {
			log.Logger().Error("failed to record run", zap.String("run", run.ID), zap.Error(putErr))
		}
		return run, errors.Trace(err)
	}

	// save the archive
	run.Archive = fmt.Sprintf("%s/%s", run.Model, run.ID)
	if err = blob.SaveWithRetry(saveCtx, store, run.Archive, conf.Storage.MaxTries, a.Marshal); err != nil {
		run.Status, run.Message = meta.StatusFailed, err.Error()
		_ = database.PutRun(run)
		return run, errors.Trace(err)
	}
	if err = database.PutRun(run); err != nil {
		return run, errors.Trace(err)
	}
	if err = database.Put(meta.LatestKey(run.Model), run.ID); err != nil {
		return run, errors.Trace(err)
	}
	log.Logger().Info("complete training", append([]zap.Field{
		zap.String("run", run.ID), zap.String("archive", run.Archive)}, result.ZapFields()...)...)
	return run, errors.Trace(renderHistory(out, run, result, score))
}

func openMeta(cfg config.StorageConfig) (meta.Database, error) {
	database, err := meta.Open(cfg.MetaStore)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = database.Init(); err != nil {
		_ = database.Close()
		return nil, errors.Trace(err)
	}
	return database, nil
}

func serveMetrics(listen string, m *monitor.Monitor) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Logger().Error("failed to serve metrics", zap.String("listen", listen), zap.Error(err))
		}
	}()
	log.Logger().Info("serve metrics", zap.String("listen", listen))
	return server
}

func renderHistory(out io.Writer, run *meta.Run, result model.Result, score model.Score) error {
	table := tablewriter.NewWriter(out)
	table.Header("Epoch", "Learning Rate", "Train RMSE", "Valid RMSE", "Time")
	for _, report := range result.History {
		validRMSE := "-"
		if report.HasValid {
			validRMSE = fmt.Sprintf("%.6f", report.ValidRMSE)
		}
		if err := table.Append([]string{
			fmt.Sprintf("%d/%d", report.Epoch, report.NumEpochs),
			fmt.Sprintf("%g", report.LearningRate),
			fmt.Sprintf("%.6f", report.TrainRMSE),
			validRMSE,
			report.Duration.String(),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	if err := table.Render(); err != nil {
		return errors.Trace(err)
	}
	_, err := fmt.Fprintf(out, "run %s saved to %s (converged: %v, valid RMSE: %.6f, valid MAE: %.6f)\n",
		run.ID, run.Archive, result.Converged, score.RMSE, score.MAE)
	return errors.Trace(err)
}
