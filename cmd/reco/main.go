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
	"fmt"
	"os"

	"github.com/gorse-io/reco/base/log"
	"github.com/gorse-io/reco/cmd/version"
	"github.com/gorse-io/reco/config"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:           "reco",
	Short:         "Train and serve rating prediction models.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// setup logger
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
		otel.SetErrorHandler(log.GetErrorHandler())
		return nil
	},
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Show the version of reco",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(version.BuildInfo())
	},
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.AddCommand(versionCommand)
}

// loadConfig loads the configuration file and applies command line overrides.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	configPath, _ := flags.GetString("config")
	if configPath != "" {
		log.Logger().Info("load config", zap.String("config", configPath))
	}
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if flags.Lookup("model") != nil && flags.Changed("model") {
		conf.Training.Model, _ = flags.GetString("model")
	}
	if flags.Lookup("train") != nil && flags.Changed("train") {
		conf.Data.TrainPath, _ = flags.GetString("train")
	}
	if flags.Lookup("valid") != nil && flags.Changed("valid") {
		conf.Data.ValidPath, _ = flags.GetString("valid")
	}
	if flags.Lookup("format") != nil && flags.Changed("format") {
		conf.Data.Format, _ = flags.GetString("format")
	}
	if flags.Lookup("jobs") != nil && flags.Changed("jobs") {
		conf.Training.Jobs, _ = flags.GetInt("jobs")
	}
	if err = conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return conf, nil
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Error("reco failed", zap.Error(err))
		os.Exit(1)
	}
}
