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
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/uber-go/tally/v4"
	"github.com/uber-go/tally/v4/prometheus"
	"go.uber.org/zap"
)

type Metrics interface {
	Stop(logger *zap.Logger)

	CommandAppend(length int)
	CommandAppendRejected()
	CommandFind(elapsed time.Duration, found bool)
}

var _ Metrics = &LocalMetrics{}

type LocalMetrics struct {
	scope       tally.Scope
	scopeCloser io.Closer

	prometheusHTTPServer *http.Server
}

// NewLocalMetrics reports to Prometheus when metrics.prometheus_port is set,
// otherwise to the logger every reporting interval.
func NewLocalMetrics(logger, startupLogger *zap.Logger, config Config) *LocalMetrics {
	tags := map[string]string{"node_name": config.GetName()}
	if namespace := config.GetMetrics().Namespace; namespace != "" {
		tags["namespace"] = namespace
	}

	reportingFreq := time.Duration(config.GetMetrics().ReportingFreqSec) * time.Second
	scopeOptions := tally.ScopeOptions{
		Prefix:    config.GetMetrics().Prefix,
		Tags:      tags,
		Separator: prometheus.DefaultSeparator,
	}

	var reporter prometheus.Reporter
	if config.GetMetrics().PrometheusPort > 0 {
		reporter = prometheus.NewReporter(prometheus.Options{
			Registerer: prom.NewRegistry(),
			OnRegisterError: func(err error) {
				logger.Error("Error registering Prometheus metric", zap.Error(err))
			},
		})
		scopeOptions.CachedReporter = reporter
		scopeOptions.SanitizeOptions = &prometheus.DefaultSanitizerOpts
	} else if reportingFreq > 0 {
		scopeOptions.Reporter = newLoggerReporter(logger)
	} else {
		scopeOptions.Reporter = tally.NullStatsReporter
	}

	scope, scopeCloser := tally.NewRootScope(scopeOptions, reportingFreq)
	m := NewLocalMetricsFromScope(scope, scopeCloser)

	startupLogger.Info("Metrics initialised", zap.String("prefix", config.GetMetrics().Prefix), zap.Duration("reporting_freq", reportingFreq))

	if reporter != nil {
		m.prometheusHTTPServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", config.GetMetrics().PrometheusPort),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
			Handler:      newPrometheusHandler(reporter),
		}

		startupLogger.Info("Starting Prometheus server to serve metrics requests", zap.Int("port", config.GetMetrics().PrometheusPort))
		go func() {
			if err := m.prometheusHTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				startupLogger.Fatal("Prometheus listener failed", zap.Error(err))
			}
		}()
	}

	return m
}

func newPrometheusHandler(reporter prometheus.Reporter) http.Handler {
	router := mux.NewRouter()
	router.Handle("/", reporter.HTTPHandler()).Methods("GET", "HEAD")
	CORSHeaders := handlers.AllowedHeaders([]string{"Content-Type", "User-Agent"})
	CORSOrigins := handlers.AllowedOrigins([]string{"*"})
	CORSMethods := handlers.AllowedMethods([]string{"GET", "HEAD"})
	return handlers.CORS(CORSHeaders, CORSOrigins, CORSMethods)(router)
}

// NewLocalMetricsFromScope wraps an existing scope. The closer may be nil.
func NewLocalMetricsFromScope(scope tally.Scope, scopeCloser io.Closer) *LocalMetrics {
	return &LocalMetrics{
		scope:       scope,
		scopeCloser: scopeCloser,
	}
}

func (m *LocalMetrics) Stop(logger *zap.Logger) {
	if m.prometheusHTTPServer != nil {
		if err := m.prometheusHTTPServer.Shutdown(context.Background()); err != nil {
			logger.Error("Prometheus listener shutdown failed", zap.Error(err))
		}
	}
	if m.scopeCloser == nil {
		return
	}
	// Closing the root scope reports once more before it stops.
	if err := m.scopeCloser.Close(); err != nil {
		logger.Error("Error closing metrics scope", zap.Error(err))
	}
}

func (m *LocalMetrics) CommandAppend(length int) {
	m.scope.Counter("append_count").Inc(1)
	m.scope.Gauge("length").Update(float64(length))
}

func (m *LocalMetrics) CommandAppendRejected() {
	m.scope.Counter("append_rejected_count").Inc(1)
}

func (m *LocalMetrics) CommandFind(elapsed time.Duration, found bool) {
	if found {
		m.scope.Counter("find_hit_count").Inc(1)
	} else {
		m.scope.Counter("find_miss_count").Inc(1)
	}
	m.scope.Timer("find_latency").Record(elapsed)
}

// loggerReporter writes each reported value as a debug log line.
type loggerReporter struct {
	logger *zap.Logger
}

func newLoggerReporter(logger *zap.Logger) tally.StatsReporter {
	return &loggerReporter{logger: logger.With(zap.String("subsystem", "metrics"))}
}

func (r *loggerReporter) Capabilities() tally.Capabilities {
	return r
}

func (r *loggerReporter) Reporting() bool {
	return true
}

func (r *loggerReporter) Tagging() bool {
	return true
}

func (r *loggerReporter) Flush() {
	_ = r.logger.Sync()
}

func (r *loggerReporter) ReportCounter(name string, tags map[string]string, value int64) {
	r.logger.Debug("Counter", zap.String("name", name), zap.Any("tags", tags), zap.Int64("value", value))
}

func (r *loggerReporter) ReportGauge(name string, tags map[string]string, value float64) {
	r.logger.Debug("Gauge", zap.String("name", name), zap.Any("tags", tags), zap.Float64("value", value))
}

func (r *loggerReporter) ReportTimer(name string, tags map[string]string, interval time.Duration) {
	r.logger.Debug("Timer", zap.String("name", name), zap.Any("tags", tags), zap.Duration("value", interval))
}

func (r *loggerReporter) ReportHistogramValueSamples(name string, tags map[string]string, buckets tally.Buckets, bucketLowerBound, bucketUpperBound float64, samples int64) {
	r.logger.Debug("Histogram", zap.String("name", name), zap.Any("tags", tags), zap.Float64("lower", bucketLowerBound), zap.Float64("upper", bucketUpperBound), zap.Int64("samples", samples))
}

func (r *loggerReporter) ReportHistogramDurationSamples(name string, tags map[string]string, buckets tally.Buckets, bucketLowerBound, bucketUpperBound time.Duration, samples int64) {
	r.logger.Debug("Histogram", zap.String("name", name), zap.Any("tags", tags), zap.Duration("lower", bucketLowerBound), zap.Duration("upper", bucketUpperBound), zap.Int64("samples", samples))
}
