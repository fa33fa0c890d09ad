// Copyright 2018 The Nakama Authors
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
	"runtime"
	"strconv"
	"time"

	"github.com/heroiclabs/cmdlog/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	version  string = "1.0.0"
	commitID string = "dev"
)

func main() {
	semver := fmt.Sprintf("%s+%s", version, commitID)

	tmpLogger := server.NewJSONLogger(os.Stdout, zapcore.InfoLevel)

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Println(semver)
		return
	}

	config := server.ParseArgs(tmpLogger, os.Args)
	if problems := server.CheckConfig(config); len(problems) > 0 {
		for _, problem := range problems {
			tmpLogger.Error("Invalid configuration", zap.String("problem", problem))
		}
		tmpLogger.Fatal("Could not start with invalid configuration")
	}
	logger, startupLogger := server.SetupLogging(tmpLogger, config)

	startupLogger.Info("Command log starting")
	startupLogger.Info("Node", zap.String("name", config.GetName()), zap.String("version", semver), zap.String("runtime", runtime.Version()), zap.Int("cpu", runtime.NumCPU()))
	if config.GetConfig() != "" {
		startupLogger.Info("Config file", zap.String("path", config.GetConfig()))
	}

	metrics := server.NewLocalMetrics(logger, startupLogger, config)
	cmdLog := server.NewLocalCommandLog(logger, metrics, config.GetIndex())

	runDriver(logger, cmdLog, config.GetDriver(), time.Now)

	metrics.Stop(logger)
	_ = logger.Sync()
}

// runDriver appends driver.Count sample commands stamped with the current
// millisecond, appends one more stamped driver.FindOffsetMs into the future,
// then looks it up.
func runDriver(logger *zap.Logger, cmdLog server.CommandLog, driver *server.DriverConfig, now func() time.Time) (string, bool) {
	startedAt := time.Now()
	for i := 0; i < driver.Count; i++ {
		ts := uint64(now().UnixMilli()) + 1
		if err := cmdLog.Append(ts, strconv.Itoa(i)+" command"); err != nil {
			logger.Error("Could not append command", zap.Int("index", i), zap.Error(err))
		}
	}

	aim := uint64(now().UnixMilli() + driver.FindOffsetMs)
	if err := cmdLog.Append(aim, "Find command"); err != nil {
		logger.Error("Could not append final command", zap.Uint64("timestamp", aim), zap.Error(err))
		return "", false
	}
	logger.Info("Commands appended", zap.Int("count", cmdLog.Len()), zap.Duration("elapsed", time.Since(startedAt)))

	command, found := cmdLog.Find(aim)
	if !found {
		logger.Info("Command not found", zap.Uint64("timestamp", aim))
		return "", false
	}

	executedAt := time.UnixMilli(int64(aim)).Local()
	logger.Info("Command found", zap.String("command", command), zap.String("executed_at", executedAt.Format("2006-01-02 15:04:05 -07:00")))
	return command, true
}
