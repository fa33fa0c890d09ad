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

package server

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const CONFIG_FILE = "testdata/config_test.yml"

func TestConfigDefaults(t *testing.T) {
	c := ParseArgs(zaptest.NewLogger(t), []string{"cmdlog"})

	assert.True(t, strings.HasPrefix(c.GetName(), "cmdlog-"))
	assert.Equal(t, 10, c.GetIndex().MaxLevel)
	assert.False(t, c.GetIndex().StrictOrder)
	assert.Equal(t, 100_001, c.GetDriver().Count)
	assert.EqualValues(t, 100, c.GetDriver().FindOffsetMs)
	assert.Equal(t, "info", c.GetLogger().Level)
	assert.Equal(t, 0, c.GetMetrics().PrometheusPort)
	assert.Empty(t, CheckConfig(c))
}

func TestConfigLoad(t *testing.T) {
	c := ParseArgs(zaptest.NewLogger(t), []string{"cmdlog", "--config", CONFIG_FILE})

	assert.Equal(t, CONFIG_FILE, c.GetConfig())
	assert.Equal(t, "cmdlog-test", c.GetName())
	assert.Equal(t, "debug", c.GetLogger().Level)
	assert.False(t, c.GetLogger().Stdout)
	assert.Equal(t, filepath.Join(c.GetDataDir(), "logs/cmdlog.log"), c.GetLogger().File)
	assert.Equal(t, 12, c.GetIndex().MaxLevel)
	assert.EqualValues(t, 7, c.GetIndex().Seed)
	assert.True(t, c.GetIndex().StrictOrder)
	assert.Equal(t, 0, c.GetMetrics().ReportingFreqSec)
	assert.Equal(t, "test", c.GetMetrics().Prefix)
	assert.Equal(t, 500, c.GetDriver().Count)
	// Untouched sections keep their defaults.
	assert.EqualValues(t, 100, c.GetDriver().FindOffsetMs)
	assert.Equal(t, 100, c.GetLogger().MaxSize)
}

func TestConfigLoadOverride(t *testing.T) {
	c := ParseArgs(zaptest.NewLogger(t), []string{
		"cmdlog",
		"--config",
		CONFIG_FILE,
		"--logger.stdout",
		"--index.max_level",
		"4",
		"--driver.count",
		"25",
	})

	assert.Equal(t, "cmdlog-test", c.GetName())
	assert.True(t, c.GetLogger().Stdout)
	assert.Equal(t, 4, c.GetIndex().MaxLevel)
	assert.Equal(t, 25, c.GetDriver().Count)
	assert.True(t, c.GetIndex().StrictOrder)
}

func TestConfigMissingFileUsesDefaults(t *testing.T) {
	c := ParseArgs(zaptest.NewLogger(t), []string{"cmdlog", "--config", "testdata/does_not_exist.yml"})

	assert.Equal(t, "", c.GetConfig())
	assert.Equal(t, 10, c.GetIndex().MaxLevel)
}

func TestCheckConfig(t *testing.T) {
	c := NewConfig()
	c.Logger.Level = "verbose"
	c.Logger.Rotation = true
	c.Index.MaxLevel = 0
	c.Metrics.ReportingFreqSec = -1
	c.Driver.Count = 0
	c.Driver.FindOffsetMs = 0

	problems := CheckConfig(c)
	require.Len(t, problems, 6)
	assert.Contains(t, problems[0], "logger.level")
	assert.Contains(t, problems[1], "logger.rotation")
	assert.Contains(t, problems[2], "index.max_level")
	assert.Contains(t, problems[3], "metrics.reporting_freq_sec")
	assert.Contains(t, problems[4], "driver.count")
	assert.Contains(t, problems[5], "driver.find_offset_ms")

	c = NewConfig()
	c.Index.MaxLevel = 33
	require.Len(t, CheckConfig(c), 1)
}

func TestCheckConfigPrometheus(t *testing.T) {
	c := NewConfig()
	c.Metrics.PrometheusPort = 9100
	assert.Empty(t, CheckConfig(c))

	c.Metrics.ReportingFreqSec = 0
	problems := CheckConfig(c)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "metrics.prometheus_port")

	c.Metrics.PrometheusPort = 70000
	problems = CheckConfig(c)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "between 0 and 65535")
}

func TestCheckConfigFindOffset(t *testing.T) {
	c := NewConfig()
	c.Driver.FindOffsetMs = -5
	problems := CheckConfig(c)
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "driver.find_offset_ms")
}
