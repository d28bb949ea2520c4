// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package circuitbreaker is the shared closed/open/half-open primitive used
// by both the Registry (discovery backends) and the Router (per-instance
// failure tracking).
package circuitbreaker

import (
	"sync"
	"time"
)

// State is one of the three circuit-breaker states.
type State string

const (
	Closed State = "closed"
	Open State = "open"
	HalfOpen State = "half_open"
)

// Config parameterizes one breaker. DefaultConfig matches the router and
// registry's default knobs (failureThreshold=5, resetTimeoutMs=60000).
type Config struct {
	FailureThreshold int
	ResetTimeout time.Duration
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{FailureThreshold: 5, ResetTimeout: 60 * time.Second}
}

// breakerState is the mutable state for a single key.
type breakerState struct {
	state State
	consecutiveFailures int
	lastFailureTime time.Time
	totalRequests int64
	successfulRequests int64
}

// Breaker tracks circuit-breaker state for an arbitrary set of string keys
// (provider instance ids, or discovery backend names). It is safe for
// concurrent use.
type Breaker struct {
	mu sync.Mutex
	cfg Config
	states map[string]*breakerState
}

// New creates a Breaker with the given config. A zero-value FailureThreshold
// or ResetTimeout falls back to DefaultConfig's values.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
 cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
 cfg.ResetTimeout = DefaultConfig().ResetTimeout
	}
	return &Breaker{
 cfg: cfg,
 states: make(map[string]*breakerState),
	}
}

func (b *Breaker) stateFor(key string) *breakerState {
	s, ok:= b.states[key]
	if !ok {
 s = &breakerState{state: Closed}
 b.states[key] = s
	}
	return s
}

// Allow reports whether a call through key may proceed right now. It also
// performs the open -> half-open transition when the reset timeout has
// elapsed, so callers should check Allow immediately before attempting the
// guarded operation.
func (b *Breaker) Allow(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	s:= b.stateFor(key)
	switch s.state {
	case Closed:
 return true
	case HalfOpen:
 // A probe is already in flight; subsequent callers while half-open
 // are still allowed to race a single-flight collapse is unnecessary
 // here since RecordSuccess/RecordFailure settle the state quickly.
 return true
	case Open:
 if time.Since(s.lastFailureTime) > b.cfg.ResetTimeout {
 s.state = HalfOpen
 return true
 }
 return false
	}
	return false
}

// RecordSuccess reports a successful call through key.
func (b *Breaker) RecordSuccess(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s:= b.stateFor(key)
	s.totalRequests++
	s.successfulRequests++

	switch s.state {
	case HalfOpen:
 s.state = Closed
 s.consecutiveFailures = 0
	case Closed:
 if s.consecutiveFailures > 0 {
 s.consecutiveFailures--
 }
	}
}

// RecordFailure reports a failed call through key.
func (b *Breaker) RecordFailure(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s:= b.stateFor(key)
	s.totalRequests++
	s.lastFailureTime = time.Now()

	switch s.state {
	case HalfOpen:
 s.state = Open
	case Closed:
 s.consecutiveFailures++
 if s.consecutiveFailures >= b.cfg.FailureThreshold {
 s.state = Open
 }
	case Open:
 // already open; refresh lastFailureTime so the reset window restarts
	}
}

// Snapshot is a point-in-time, read-only view of one key's breaker state.
type Snapshot struct {
	Key string
	State State
	ConsecutiveFailures int
	LastFailureTime time.Time
	TotalRequests int64
	SuccessfulRequests int64
}

// Get returns the current snapshot for key. If key has never been recorded
// against, it reports state Closed with zero counters.
func (b *Breaker) Get(key string) Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s:= b.stateFor(key)
	return Snapshot{
 Key: key,
 State: s.state,
 ConsecutiveFailures: s.consecutiveFailures,
 LastFailureTime: s.lastFailureTime,
 TotalRequests: s.totalRequests,
 SuccessfulRequests: s.successfulRequests,
	}
}

// All returns a snapshot of every key the breaker has ever tracked.
func (b *Breaker) All() []Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	out:= make([]Snapshot, 0, len(b.states))
	for k, s:= range b.states {
 out = append(out, Snapshot{
 Key: k,
 State: s.state,
 ConsecutiveFailures: s.consecutiveFailures,
 LastFailureTime: s.lastFailureTime,
 TotalRequests: s.totalRequests,
 SuccessfulRequests: s.successfulRequests,
 })
	}
	return out
}

// Reset clears all recorded state for key, returning it to Closed.
func (b *Breaker) Reset(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.states, key)
}
