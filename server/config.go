// Copyright 2017 The Nakama Authors
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
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/heroiclabs/cmdlog/flags"
	"github.com/heroiclabs/cmdlog/internal/skiplist"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config interface is the command log configuration
type Config interface {
	GetName() string
	GetDataDir() string
	GetConfig() string
	GetLogger() *LoggerConfig
	GetIndex() *IndexConfig
	GetMetrics() *MetricsConfig
	GetDriver() *DriverConfig
}

// ParseArgs loads the YAML file named by --config, if any, then applies
// command line overrides on top of it.
func ParseArgs(logger *zap.Logger, args []string) Config {
	config := NewConfig()

	if len(args) > 2 && args[1] == "--config" {
		configPath := args[2]
		data, err := os.ReadFile(configPath)
		if err != nil {
			logger.Error("Could not read config file, using defaults", zap.Error(err))
		} else {
			err = yaml.Unmarshal(data, config)
			if err != nil {
				logger.Error("Could not parse config file, using defaults", zap.Error(err))
			} else {
				config.Config = configPath
			}
		}
		args = append(args[:1:1], args[3:]...)
	}

	flagSet := flag.NewFlagSet("cmdlog", flag.ExitOnError)
	fm := flags.NewFlagMakerFlagSet(&flags.FlagMakingOptions{
		UseLowerCase: true,
		Flatten:      false,
		TagName:      "yaml",
		TagUsage:     "usage",
	}, flagSet)

	if _, err := fm.ParseArgs(config, args[1:]); err != nil {
		logger.Error("Could not parse command line arguments - ignoring command-line overrides", zap.Error(err))
	}

	// if the log file path is relative, place it under the data directory
	if config.GetLogger().File != "" && !filepath.IsAbs(config.GetLogger().File) {
		config.GetLogger().File = filepath.Join(config.GetDataDir(), config.GetLogger().File)
	}

	return config
}

// CheckConfig returns every problem found in config. An empty result means
// the config is usable.
func CheckConfig(config Config) []string {
	var problems []string

	switch strings.ToLower(config.GetLogger().Level) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, "logger.level must be one of: debug, info, warn, error")
	}
	if config.GetLogger().Rotation && config.GetLogger().File == "" {
		problems = append(problems, "logger.rotation requires logger.file to be set")
	}
	if l := config.GetIndex().MaxLevel; l < 1 || l > skiplist.SKIPLIST_MAXLEVEL {
		problems = append(problems, fmt.Sprintf("index.max_level must be between 1 and %d", skiplist.SKIPLIST_MAXLEVEL))
	}
	if config.GetMetrics().ReportingFreqSec < 0 {
		problems = append(problems, "metrics.reporting_freq_sec must be >= 0")
	}
	if p := config.GetMetrics().PrometheusPort; p < 0 || p > 65535 {
		problems = append(problems, "metrics.prometheus_port must be between 0 and 65535")
	} else if p > 0 && config.GetMetrics().ReportingFreqSec < 1 {
		problems = append(problems, "metrics.reporting_freq_sec must be >= 1 when metrics.prometheus_port is set")
	}
	if config.GetDriver().Count < 1 {
		problems = append(problems, "driver.count must be >= 1")
	}
	if config.GetDriver().FindOffsetMs < 1 {
		problems = append(problems, "driver.find_offset_ms must be >= 1")
	}

	return problems
}

type config struct {
	Name    string         `yaml:"name" json:"name" usage:"Node name, used as a log and metrics label."`
	Config  string         `yaml:"config" json:"config" usage:"The absolute file path to configuration YAML file."`
	Datadir string         `yaml:"data_dir" json:"data_dir" usage:"An absolute path to a writeable folder where log files are placed."`
	Logger  *LoggerConfig  `yaml:"logger" json:"logger" usage:"Logger levels and output."`
	Index   *IndexConfig   `yaml:"index" json:"index" usage:"Command index settings."`
	Metrics *MetricsConfig `yaml:"metrics" json:"metrics" usage:"Metrics settings."`
	Driver  *DriverConfig  `yaml:"driver" json:"driver" usage:"Sample command run settings."`
}

// NewConfig constructs a Config struct with default settings.
func NewConfig() *config {
	cwd, _ := os.Getwd()
	dataDirectory := filepath.Join(cwd, "data")
	nodeName := "cmdlog-" + strings.Split(uuid.Must(uuid.NewV4()).String(), "-")[3]
	return &config{
		Name:    nodeName,
		Datadir: dataDirectory,
		Logger:  NewLoggerConfig(),
		Index:   NewIndexConfig(),
		Metrics: NewMetricsConfig(),
		Driver:  NewDriverConfig(),
	}
}

func (c *config) GetName() string {
	return c.Name
}

func (c *config) GetDataDir() string {
	return c.Datadir
}

func (c *config) GetConfig() string {
	return c.Config
}

func (c *config) GetLogger() *LoggerConfig {
	return c.Logger
}

func (c *config) GetIndex() *IndexConfig {
	return c.Index
}

func (c *config) GetMetrics() *MetricsConfig {
	return c.Metrics
}

func (c *config) GetDriver() *DriverConfig {
	return c.Driver
}

// LoggerConfig is configuration relevant to logging levels and output.
type LoggerConfig struct {
	Level      string `yaml:"level" json:"level" usage:"Log level to set. Valid values are 'debug', 'info', 'warn', 'error'."`
	Stdout     bool   `yaml:"stdout" json:"stdout" usage:"Log to standard console output (as well as to a log file if set)."`
	File       string `yaml:"file" json:"file" usage:"Log output to a file (as well as stdout if set). Relative paths are placed under the data directory."`
	Rotation   bool   `yaml:"rotation" json:"rotation" usage:"Rotate log files. Default is false."`
	MaxSize    int    `yaml:"max_size" json:"max_size" usage:"The maximum size in megabytes of the log file before it gets rotated. It defaults to 100 megabytes."`
	MaxAge     int    `yaml:"max_age" json:"max_age" usage:"The maximum number of days to retain old log files based on the timestamp encoded in their filename. The default is not to remove old log files based on age."`
	MaxBackups int    `yaml:"max_backups" json:"max_backups" usage:"The maximum number of old log files to retain. The default is to retain all old log files (though MaxAge may still cause them to get deleted.)"`
	LocalTime  bool   `yaml:"local_time" json:"local_time" usage:"This determines if the time used for formatting the timestamps in backup files is the computer's local time. The default is to use UTC time."`
	Compress   bool   `yaml:"compress" json:"compress" usage:"This determines if the rotated log files should be compressed using gzip."`
}

// NewLoggerConfig creates a new LoggerConfig struct.
func NewLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:      "info",
		Stdout:     true,
		File:       "",
		Rotation:   false,
		MaxSize:    100,
		MaxAge:     0,
		MaxBackups: 0,
		LocalTime:  false,
		Compress:   false,
	}
}

// IndexConfig is configuration relevant to the command index.
type IndexConfig struct {
	MaxLevel    int   `yaml:"max_level" json:"max_level" usage:"Highest level index a command may be linked at."`
	Seed        int64 `yaml:"seed" json:"seed" usage:"Seed for level selection. 0 seeds from the clock."`
	StrictOrder bool  `yaml:"strict_order" json:"strict_order" usage:"Reject commands whose timestamp is lower than the last appended one."`
}

// NewIndexConfig creates a new IndexConfig struct.
func NewIndexConfig() *IndexConfig {
	return &IndexConfig{
		MaxLevel:    skiplist.DEFAULT_MAXLEVEL,
		Seed:        0,
		StrictOrder: false,
	}
}

// MetricsConfig is configuration relevant to metrics capturing and output.
type MetricsConfig struct {
	ReportingFreqSec int    `yaml:"reporting_freq_sec" json:"reporting_freq_sec" usage:"Frequency of metrics reporting. Default is 60 seconds."`
	Namespace        string `yaml:"namespace" json:"namespace" usage:"Namespace for metrics labels. Default is empty."`
	Prefix           string `yaml:"prefix" json:"prefix" usage:"Prefix for metric names. Default is 'cmdlog'."`
	PrometheusPort   int    `yaml:"prometheus_port" json:"prometheus_port" usage:"Port to expose Prometheus. If '0' Prometheus exports are disabled."`
}

// NewMetricsConfig creates a new MetricsConfig struct.
func NewMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		ReportingFreqSec: 60,
		Namespace:        "",
		Prefix:           "cmdlog",
		PrometheusPort:   0,
	}
}

// DriverConfig controls the sample command run.
type DriverConfig struct {
	Count        int   `yaml:"count" json:"count" usage:"Number of sample commands to append before the final one."`
	FindOffsetMs int64 `yaml:"find_offset_ms" json:"find_offset_ms" usage:"Milliseconds past the current time to stamp the final command with."`
}

// NewDriverConfig creates a new DriverConfig struct.
func NewDriverConfig() *DriverConfig {
	return &DriverConfig{
		Count:        100_001,
		FindOffsetMs: 100,
	}
}
