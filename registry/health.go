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

package registry

import (
	"context"
	"sync"
	"time"
)

// HealthCheckFunc probes a single instance and reports how long the probe
// took. Callers typically bind instance endpoint/auth by closure.
type HealthCheckFunc func(ctx context.Context, inst *Instance) (time.Duration, error)

// HealthMonitorConfig controls the periodic health-monitoring loop.
type HealthMonitorConfig struct {
	Interval time.Duration
	Timeout time.Duration
	RemovalGracePeriod time.Duration
}

// DefaultHealthMonitorConfig returns the spec's documented defaults.
func DefaultHealthMonitorConfig() HealthMonitorConfig {
	return HealthMonitorConfig{
 Interval: 30 * time.Second,
 Timeout: 5 * time.Second,
 RemovalGracePeriod: 5 * time.Minute,
	}
}

// StartHealthMonitoring launches the periodic health-check loop. check is
// invoked once per registered instance per tick, bounded by cfg.Timeout. A
// single instance's check failing never aborts the remaining checks in the
// same tick. Calling StartHealthMonitoring while already running is a no-op.
func (r *Registry) StartHealthMonitoring(ctx context.Context, cfg HealthMonitorConfig, check HealthCheckFunc) {
	r.mu.Lock()
	if r.healthCancel != nil {
 r.mu.Unlock()
 return
	}
	monitorCtx, cancel:= context.WithCancel(ctx)
	r.healthCancel = cancel
	r.healthDone = make(chan struct{})
	r.mu.Unlock()

	if cfg.Interval <= 0 {
 cfg = DefaultHealthMonitorConfig()
	}

	go r.runHealthLoop(monitorCtx, cfg, check)
}

func (r *Registry) runHealthLoop(ctx context.Context, cfg HealthMonitorConfig, check HealthCheckFunc) {
	defer close(r.healthDone)

	ticker:= time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	pending:= make(map[string]context.CancelFunc)
	var pendingMu sync.Mutex

	for {
 select {
 case <-ctx.Done():
 pendingMu.Lock()
 for _, cancel:= range pending {
 cancel()
 }
 pendingMu.Unlock()
 return
 case <-ticker.C:
 r.runHealthTick(ctx, cfg, check, pending, &pendingMu)
 }
	}
}

func (r *Registry) runHealthTick(ctx context.Context, cfg HealthMonitorConfig, check HealthCheckFunc, pending map[string]context.CancelFunc, pendingMu *sync.Mutex) {
	for _, inst:= range r.List() {
 checkCtx, cancel:= context.WithTimeout(ctx, cfg.Timeout)
 elapsed, err:= check(checkCtx, inst)
 cancel()

 var newHealth Health
 switch {
 case err != nil:
 newHealth = HealthUnhealthy
 case elapsed <= cfg.Timeout*4/5:
 newHealth = HealthHealthy
 case elapsed <= cfg.Timeout:
 newHealth = HealthDegraded
 default:
 newHealth = HealthUnhealthy
 }

 before:= inst.Health
 reason:= ""
 if err != nil {
 reason = err.Error()
 }
 _ = r.SetHealth(inst.ID, newHealth, reason)

 if before != newHealth && newHealth == HealthUnhealthy {
 r.events.publish(Event{Kind: EventInstanceFailed, InstanceID: inst.ID, Reason: reason})
 r.scheduleRemoval(ctx, inst.ID, cfg.RemovalGracePeriod, pending, pendingMu)
 }
 if newHealth != HealthUnhealthy {
 r.cancelScheduledRemoval(inst.ID, pending, pendingMu)
 }
	}
}

// scheduleRemoval arms a grace-period timer that unregisters the instance if
// it is still unhealthy when the timer fires. Recovery before the timer
// fires cancels it.
func (r *Registry) scheduleRemoval(ctx context.Context, id string, grace time.Duration, pending map[string]context.CancelFunc, pendingMu *sync.Mutex) {
	pendingMu.Lock()
	if _, exists:= pending[id]; exists {
 pendingMu.Unlock()
 return
	}
	timerCtx, cancel:= context.WithCancel(ctx)
	pending[id] = cancel
	pendingMu.Unlock()

	go func() {
 select {
 case <-timerCtx.Done():
 return
 case <-time.After(grace):
 }

 pendingMu.Lock()
 delete(pending, id)
 pendingMu.Unlock()

 inst, err:= r.Get(id)
 if err != nil || inst.Health != HealthUnhealthy {
 return
 }
 _ = r.Unregister(context.Background(), id)
	}()
}

func (r *Registry) cancelScheduledRemoval(id string, pending map[string]context.CancelFunc, pendingMu *sync.Mutex) {
	pendingMu.Lock()
	defer pendingMu.Unlock()
	if cancel, exists:= pending[id]; exists {
 cancel()
 delete(pending, id)
	}
}

// StopHealthMonitoring stops the periodic loop and waits for it to exit.
// A no-op if monitoring was never started.
func (r *Registry) StopHealthMonitoring() {
	r.mu.Lock()
	cancel:= r.healthCancel
	done:= r.healthDone
	r.healthCancel = nil
	r.mu.Unlock()

	if cancel == nil {
 return
	}
	cancel()
	<-done
}
