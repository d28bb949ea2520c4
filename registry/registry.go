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
	"math/rand"
	"sort"
	"sync"
	"time"

	"axonflow/platform/agent/circuitbreaker"
	"axonflow/platform/provider"
	"axonflow/platform/shared/logger"
)

// Registry is the process-wide catalog of known worker Instances. It tracks
// health and capacity, and answers SelectInstance calls for the Router.
type Registry struct {
	mu sync.RWMutex
	instances map[string]*Instance

	storage Storage
	logger *logger.Logger
	breaker *circuitbreaker.Breaker
	events *eventBus

	discoveryStrategies []DiscoveryStrategy

	rrMu sync.Mutex
	rrIndex int

	healthCancel context.CancelFunc
	healthDone chan struct{}

	capMu sync.Mutex
	lastAvailable int
	lastHealthy int
	haveCapSnapshot bool
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithStorage sets the persistence backend. Defaults to an in-memory store.
func WithStorage(s Storage) Option {
	return func(r *Registry) { r.storage = s }
}

// WithLogger sets the structured logger used for registry lifecycle events.
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithCircuitBreaker wires a shared circuit breaker keyed by instance ID;
// SelectInstance skips instances whose breaker is open.
func WithCircuitBreaker(b *circuitbreaker.Breaker) Option {
	return func(r *Registry) { r.breaker = b }
}

// WithDiscoveryStrategies registers the strategies DiscoverInstances will run,
// in order.
func WithDiscoveryStrategies(strategies...DiscoveryStrategy) Option {
	return func(r *Registry) { r.discoveryStrategies = strategies }
}

// New constructs a Registry. The registry starts empty: configs already in
// storage are not loaded into it.
func New(opts...Option) *Registry {
	r:= &Registry{
 instances: make(map[string]*Instance),
 storage: NewMemoryStorage(),
 events: newEventBus(),
	}
	for _, opt:= range opts {
 opt(r)
	}
	if r.logger == nil {
 r.logger = logger.New("registry")
	}
	return r
}

// Subscribe returns a channel of future Registry events.
func (r *Registry) Subscribe(buffer int) <-chan Event {
	return r.events.Subscribe(buffer)
}

// Register adds a new Instance and persists its config, emitting
// EventInstanceRegistered. Registering an id that already exists replaces
// it: the prior instance is unregistered("replaced") first.
func (r *Registry) Register(ctx context.Context, cfg InstanceConfig) (*Instance, error) {
	if cfg.ID == "" {
 return nil, newError(ErrCodeInvalidConfig, "instance id is required", nil)
	}
	if cfg.MaxConcurrent < 0 {
 return nil, newError(ErrCodeInvalidConfig, "max concurrent must be >= 0", nil)
	}

	r.mu.Lock()
	_, replacing:= r.instances[cfg.ID]
	r.mu.Unlock()

	if replacing {
 r.mu.Lock()
 delete(r.instances, cfg.ID)
 r.mu.Unlock()
 if err:= r.storage.DeleteInstance(ctx, cfg.ID); err != nil {
 return nil, err
 }
 r.events.publish(Event{Kind: EventInstanceUnregistered, InstanceID: cfg.ID, Reason: "replaced"})
	}

	r.mu.Lock()
	now:= time.Now()
	inst:= &Instance{
 ID: cfg.ID,
 Name: cfg.Name,
 ProviderID: cfg.ProviderID,
 ModelID: cfg.ModelID,
 DeploymentMode: cfg.DeploymentMode,
 Endpoint: cfg.Endpoint,
 Health: HealthUnknown,
 Capabilities: append([]provider.Capability(nil), cfg.Capabilities...),
 Region: cfg.Region,
 Capacity: Capacity{MaxConcurrent: cfg.MaxConcurrent},
 LastHeartbeat: now,
 RegisteredAt: now,
 Auth: cfg.Auth,
 Metadata: cfg.Metadata,
 Tags: append([]string(nil), cfg.Tags...),
	}
	inst.Capacity.Recompute()
	r.instances[cfg.ID] = inst
	r.mu.Unlock()

	if err:= r.storage.SaveInstance(ctx, cfg); err != nil {
 r.mu.Lock()
 delete(r.instances, cfg.ID)
 r.mu.Unlock()
 return nil, err
	}

	r.logger.Info("", "", "instance registered", map[string]interface{}{"instance_id": cfg.ID, "provider": string(cfg.ProviderID)})
	r.events.publish(Event{Kind: EventInstanceRegistered, InstanceID: cfg.ID})
	r.checkCapacityChangedSignificantly()
	return inst.Clone(), nil
}

// Unregister removes an Instance and its persisted config.
func (r *Registry) Unregister(ctx context.Context, id string) error {
	r.mu.Lock()
	if _, ok:= r.instances[id]; !ok {
 r.mu.Unlock()
 return newError(ErrCodeNotFound, "instance not found: "+id, nil)
	}
	delete(r.instances, id)
	r.mu.Unlock()

	if err:= r.storage.DeleteInstance(ctx, id); err != nil {
 return err
	}
	r.events.publish(Event{Kind: EventInstanceUnregistered, InstanceID: id})
	return nil
}

// Get returns a clone of the Instance with the given ID.
func (r *Registry) Get(id string) (*Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok:= r.instances[id]
	if !ok {
 return nil, newError(ErrCodeNotFound, "instance not found: "+id, nil)
	}
	return inst.Clone(), nil
}

// Has reports whether an instance with the given ID is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok:= r.instances[id]
	return ok
}

// Count returns the number of registered instances.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// List returns clones of every registered Instance, ordered by ID for
// deterministic iteration.
func (r *Registry) List() []*Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out:= make([]*Instance, 0, len(r.instances))
	for _, inst:= range r.instances {
 out = append(out, inst.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListByProvider returns clones of every Instance registered under the
// given provider ID.
func (r *Registry) ListByProvider(id provider.ID) []*Instance {
	all:= r.List()
	out:= make([]*Instance, 0, len(all))
	for _, inst:= range all {
 if inst.ProviderID == id {
 out = append(out, inst)
 }
	}
	return out
}

// ListHealthy returns clones of every Instance currently classified healthy.
func (r *Registry) ListHealthy() []*Instance {
	all:= r.List()
	out:= make([]*Instance, 0, len(all))
	for _, inst:= range all {
 if inst.Health == HealthHealthy {
 out = append(out, inst)
 }
	}
	return out
}

// UpdateInstanceCapacity sets ActiveTasks for an instance and recomputes its
// derived capacity fields, emitting EventCapacityChanged.
func (r *Registry) UpdateInstanceCapacity(id string, activeTasks int) error {
	r.mu.Lock()
	inst, ok:= r.instances[id]
	if !ok {
 r.mu.Unlock()
 return newError(ErrCodeNotFound, "instance not found: "+id, nil)
	}
	inst.Capacity.ActiveTasks = activeTasks
	inst.Capacity.Recompute()
	r.mu.Unlock()

	r.checkCapacityChangedSignificantly()
	return nil
}

// checkCapacityChangedSignificantly emits capacity.changed iff the
// aggregate available capacity moved by more than 10% from the last
// observation or the healthy-instance count changed.
func (r *Registry) checkCapacityChangedSignificantly() {
	report:= r.GetAvailableCapacity()

	r.capMu.Lock()
	defer r.capMu.Unlock()

	significant:= !r.haveCapSnapshot
	if r.haveCapSnapshot {
 if report.HealthyInstances != r.lastHealthy {
 significant = true
 } else if r.lastAvailable > 0 {
 delta:= report.TotalAvailable - r.lastAvailable
 if delta < 0 {
 delta = -delta
 }
 if float64(delta)/float64(r.lastAvailable) > 0.10 {
 significant = true
 }
 } else if report.TotalAvailable != r.lastAvailable {
 significant = true
 }
	}

	r.lastAvailable = report.TotalAvailable
	r.lastHealthy = report.HealthyInstances
	r.haveCapSnapshot = true

	if significant {
 r.events.publish(Event{Kind: EventCapacityChanged})
	}
}

// SetHealth updates an instance's health classification directly (used by
// the heartbeat path and tests; the periodic monitor in health.go drives
// this from timeout-based sampling in production).
func (r *Registry) SetHealth(id string, health Health, reason string) error {
	r.mu.Lock()
	inst, ok:= r.instances[id]
	if !ok {
 r.mu.Unlock()
 return newError(ErrCodeNotFound, "instance not found: "+id, nil)
	}
	before:= inst.Health
	inst.Health = health
	inst.LastHeartbeat = time.Now()
	r.mu.Unlock()

	if before != health {
 r.events.publish(Event{Kind: EventInstanceHealthChanged, InstanceID: id, Reason: reason, HealthBefore: before, HealthAfter: health})
 r.checkCapacityChangedSignificantly()
	}
	return nil
}

// GetAvailableCapacity summarizes capacity across all registered instances.
func (r *Registry) GetAvailableCapacity() CapacityReport {
	all:= r.List()
	report:= CapacityReport{
 ByProvider: make(map[provider.ID]int),
 ByRegion: make(map[string]int),
	}
	for _, inst:= range all {
 report.TotalAvailable += inst.Capacity.Available
 report.TotalMax += inst.Capacity.MaxConcurrent
 report.ByProvider[inst.ProviderID] += inst.Capacity.Available
 report.ByRegion[inst.Region] += inst.Capacity.Available
 if inst.Health == HealthHealthy {
 report.HealthyInstances++
 }
	}
	return report
}

// GetStats summarizes registry population by health classification.
func (r *Registry) GetStats() Stats {
	all:= r.List()
	stats:= Stats{
 TotalInstances: len(all),
 ByProvider: make(map[provider.ID]int),
	}
	for _, inst:= range all {
 stats.ByProvider[inst.ProviderID]++
 switch inst.Health {
 case HealthHealthy:
 stats.HealthyCount++
 case HealthDegraded:
 stats.DegradedCount++
 case HealthUnhealthy:
 stats.UnhealthyCount++
 }
 if inst.Health != HealthUnknown {
 stats.InstantiatedCount++
 }
	}
	return stats
}

// SelectInstance picks one Instance matching criteria using the requested
// strategy. Returns
// ErrCodeNotFound if no instance satisfies criteria.
func (r *Registry) SelectInstance(criteria SelectionCriteria) (*Instance, error) {
	candidates:= r.eligibleCandidates(criteria)
	if len(candidates) == 0 {
 return nil, newError(ErrCodeNotFound, "no eligible instance for criteria", nil)
	}

	switch criteria.Strategy {
	case StrategyRoundRobin:
 return r.selectRoundRobin(candidates), nil
	case StrategyRandom:
 return candidates[rand.Intn(len(candidates))].Clone(), nil
	case StrategyCapabilityMatch:
 return r.selectCapabilityMatch(candidates, criteria.RequiredCapabilities), nil
	default:
 return r.selectLeastLoaded(candidates), nil
	}
}

func (r *Registry) eligibleCandidates(criteria SelectionCriteria) []*Instance {
	all:= r.List()
	out:= make([]*Instance, 0, len(all))
	for _, inst:= range all {
 if inst.Health == HealthUnhealthy {
 continue
 }
 if criteria.Exclude != nil {
 if _, excluded:= criteria.Exclude[inst.ID]; excluded {
 continue
 }
 }
 if r.breaker != nil && !r.breaker.Allow(inst.ID) {
 continue
 }
 if criteria.PreferredProvider != "" && inst.ProviderID != criteria.PreferredProvider {
 continue
 }
 if criteria.Region != "" && inst.Region != criteria.Region {
 continue
 }
 if !inst.HasAllCapabilities(criteria.RequiredCapabilities) {
 continue
 }
 if !inst.HasAnyTag(criteria.Tags) {
 continue
 }
 if inst.Capacity.Available < criteria.MinAvailableCapacity {
 continue
 }
 out = append(out, inst)
	}
	return out
}

// selectLeastLoaded sorts by available desc, then utilizationPercent asc,
// then id asc, and picks the first.
func (r *Registry) selectLeastLoaded(candidates []*Instance) *Instance {
	best:= candidates[0]
	for _, inst:= range candidates[1:] {
 switch {
 case inst.Capacity.Available != best.Capacity.Available:
 if inst.Capacity.Available > best.Capacity.Available {
 best = inst
 }
 case inst.Capacity.UtilizationPercent != best.Capacity.UtilizationPercent:
 if inst.Capacity.UtilizationPercent < best.Capacity.UtilizationPercent {
 best = inst
 }
 case inst.ID < best.ID:
 best = inst
 }
	}
	return best
}

func (r *Registry) selectRoundRobin(candidates []*Instance) *Instance {
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	r.rrMu.Lock()
	idx:= r.rrIndex % len(candidates)
	r.rrIndex++
	r.rrMu.Unlock()
	return candidates[idx]
}

// capabilityMatchScore computes (matchingRequiredCaps/requiredCaps)*100 +
// available. Candidates reaching this stage have
// already passed the conjunctive required-capability filter, so the match
// ratio is always 1 when required is non-empty; an empty required set is
// also treated as a full (1.0) match.
func capabilityMatchScore(inst *Instance, required []provider.Capability) float64 {
	matched:= 0
	for _, c:= range required {
 if inst.HasCapability(c) {
 matched++
 }
	}
	ratio:= 1.0
	if len(required) > 0 {
 ratio = float64(matched) / float64(len(required))
	}
	return ratio*100 + float64(inst.Capacity.Available)
}

// selectCapabilityMatch picks the candidate with the highest
// capabilityMatchScore, breaking ties by instance id.
func (r *Registry) selectCapabilityMatch(candidates []*Instance, required []provider.Capability) *Instance {
	best:= candidates[0]
	bestScore:= capabilityMatchScore(best, required)
	for _, inst:= range candidates[1:] {
 score:= capabilityMatchScore(inst, required)
 if score > bestScore || (score == bestScore && inst.ID < best.ID) {
 best = inst
 bestScore = score
 }
	}
	return best
}

// Close stops background monitoring if running.
func (r *Registry) Close() error {
	r.StopHealthMonitoring()
	return nil
}
