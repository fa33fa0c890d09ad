// Copyright 2020 The Nakama Authors
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
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/heroiclabs/cmdlog/internal/skiplist"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var ErrCommandOutOfOrder = errors.New("command timestamp is lower than the last appended timestamp")

// CommandLog indexes commands by the millisecond timestamp they were issued at.
type CommandLog interface {
	Append(timestamp uint64, command string) error
	Find(timestamp uint64) (string, bool)
	Len() int
}

var _ CommandLog = &LocalCommandLog{}

// LocalCommandLog guards a single skiplist with a read/write lock. Lookups
// run concurrently, appends are exclusive.
type LocalCommandLog struct {
	sync.RWMutex
	logger      *zap.Logger
	metrics     Metrics
	strictOrder bool
	length      *atomic.Int64
	index       *skiplist.SkipList
}

func NewLocalCommandLog(logger *zap.Logger, metrics Metrics, config *IndexConfig) *LocalCommandLog {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &LocalCommandLog{
		logger:      logger,
		metrics:     metrics,
		strictOrder: config.StrictOrder,
		length:      atomic.NewInt64(0),
		index:       skiplist.NewWithRand(config.MaxLevel, rand.New(rand.NewSource(seed))),
	}
}

// Append adds a command stamped with timestamp. Timestamps must not go
// backwards; with strict ordering enabled a lower timestamp is rejected,
// otherwise later lookups may miss entries.
func (l *LocalCommandLog) Append(timestamp uint64, command string) error {
	l.Lock()
	if l.strictOrder {
		if last, ok := l.index.LastKey(); ok && timestamp < last {
			l.Unlock()
			l.metrics.CommandAppendRejected()
			l.logger.Warn("Rejected out of order command", zap.Uint64("timestamp", timestamp), zap.Uint64("last_timestamp", last))
			return fmt.Errorf("%w: %d < %d", ErrCommandOutOfOrder, timestamp, last)
		}
	}
	l.index.Append(timestamp, command)
	length := l.index.Len()
	// Stored under the lock so Len never goes backwards.
	l.length.Store(int64(length))
	l.metrics.CommandAppend(length)
	l.Unlock()

	if ce := l.logger.Check(zap.DebugLevel, "Appended command"); ce != nil {
		ce.Write(zap.Uint64("timestamp", timestamp), zap.Int("length", length))
	}

	return nil
}

// Find returns the command stamped with exactly timestamp.
func (l *LocalCommandLog) Find(timestamp uint64) (string, bool) {
	start := time.Now()
	l.RLock()
	command, found := l.index.Find(timestamp)
	l.RUnlock()

	l.metrics.CommandFind(time.Since(start), found)
	if ce := l.logger.Check(zap.DebugLevel, "Command lookup"); ce != nil {
		ce.Write(zap.Uint64("timestamp", timestamp), zap.Bool("found", found))
	}

	return command, found
}

// Len returns the number of commands appended.
func (l *LocalCommandLog) Len() int {
	return int(l.length.Load())
}
