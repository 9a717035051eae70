// Copyright 2022 The OpenZipkin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package zipkintracer

import (
	"sync"
	"time"
)

// StateLogger reports collector failures without flooding the log: an error
// is logged when its message differs from the previous one or when
// logErrorInterval has passed since it was last logged.
type StateLogger struct {
	logger           Logger
	logErrorInterval time.Duration
	failing          bool
	lastMessage      string
	lastLogged       time.Time
	mu               sync.Mutex
	now              func() time.Time
}

// NewStateLogger creates a StateLogger on top of logger. A zero interval
// logs every error.
func NewStateLogger(logger Logger, logErrorInterval time.Duration) *StateLogger {
	return &StateLogger{
		logger:           logger,
		logErrorInterval: logErrorInterval,
		now:              time.Now,
	}
}

// LogError logs err together with keyvals unless the same failure was
// already reported within the interval.
func (sl *StateLogger) LogError(err error, keyvals ...interface{}) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	msg := err.Error()
	now := sl.now()
	if sl.failing && msg == sl.lastMessage && now.Sub(sl.lastLogged) < sl.logErrorInterval {
		return
	}
	_ = sl.logger.Log(append([]interface{}{"err", msg}, keyvals...)...)
	sl.failing = true
	sl.lastMessage = msg
	sl.lastLogged = now
}

// Fixed marks the failure as resolved. keyvals are logged once if an error
// was reported since the last call, so the next error is always logged.
func (sl *StateLogger) Fixed(keyvals ...interface{}) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if !sl.failing {
		return
	}
	if sl.logErrorInterval > 0 {
		_ = sl.logger.Log(keyvals...)
	}
	sl.failing = false
	sl.lastMessage = ""
}
