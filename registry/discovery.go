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
	"fmt"
)

// DiscoveryStrategyKind names one of the Registry's built-in discovery
// backends.
type DiscoveryStrategyKind string

const (
	DiscoveryStatic DiscoveryStrategyKind = "static"
	DiscoveryGateway DiscoveryStrategyKind = "gateway"
	DiscoveryKubernetes DiscoveryStrategyKind = "kubernetes"
	DiscoveryAutoSpawn DiscoveryStrategyKind = "auto-spawn"
)

// DiscoveryResult is what a single strategy run produces.
type DiscoveryResult struct {
	Strategy DiscoveryStrategyKind
	Found []InstanceConfig
	Err error
}

// DiscoveryStrategy is a pluggable discovery backend. AutoRegister controls
// whether discoverInstances registers the instances it finds; Kind identifies it for circuit-breaker keying and
// event reporting.
type DiscoveryStrategy interface {
	Kind() DiscoveryStrategyKind
	AutoRegister() bool
	Discover(ctx context.Context) ([]InstanceConfig, error)
}

// StaticStrategy returns a fixed, operator-supplied list of instances. It is
// never guarded by a circuit breaker since it performs no I/O.
type StaticStrategy struct {
	Instances []InstanceConfig
}

func (s *StaticStrategy) Kind() DiscoveryStrategyKind { return DiscoveryStatic }
func (s *StaticStrategy) AutoRegister() bool { return true }
func (s *StaticStrategy) Discover(_ context.Context) ([]InstanceConfig, error) {
	return append([]InstanceConfig(nil), s.Instances...), nil
}

// GatewayFetcher is the transport hook a GatewayStrategy calls to list
// instances known to an external gateway service.
type GatewayFetcher func(ctx context.Context) ([]InstanceConfig, error)

// GatewayStrategy discovers instances behind a remote gateway API; guarded
// by the registry's shared circuit breaker under the "gateway" key.
type GatewayStrategy struct {
	Fetch GatewayFetcher
}

func (s *GatewayStrategy) Kind() DiscoveryStrategyKind { return DiscoveryGateway }
func (s *GatewayStrategy) AutoRegister() bool { return true }
func (s *GatewayStrategy) Discover(ctx context.Context) ([]InstanceConfig, error) {
	if s.Fetch == nil {
 return nil, nil
	}
	return s.Fetch(ctx)
}

// KubernetesFetcher lists worker pods/services from a cluster (e.g. via a
// label-selector query against client-go) and maps them to InstanceConfig.
type KubernetesFetcher func(ctx context.Context) ([]InstanceConfig, error)

// KubernetesStrategy discovers instances running as cluster workloads;
// guarded by the shared circuit breaker under the "kubernetes" key.
type KubernetesStrategy struct {
	Fetch KubernetesFetcher
}

func (s *KubernetesStrategy) Kind() DiscoveryStrategyKind { return DiscoveryKubernetes }
func (s *KubernetesStrategy) AutoRegister() bool { return true }
func (s *KubernetesStrategy) Discover(ctx context.Context) ([]InstanceConfig, error) {
	if s.Fetch == nil {
 return nil, nil
	}
	return s.Fetch(ctx)
}

// Spawner starts one new worker process/pod for provider/model and returns
// its InstanceConfig once ready.
type Spawner func(ctx context.Context, providerHint string) (InstanceConfig, error)

// AutoSpawnStrategy spawns additional workers when matching available
// capacity is at or below CapacityThreshold, clamped to never spawn more
// than MinInstances per call:
// needed = max(0, min(maxInstances-currentMatching, minInstances)).
type AutoSpawnStrategy struct {
	ProviderHint string
	MinInstances int
	MaxInstances int
	CapacityThreshold int
	CurrentMatching func() int
	AggregateAvailable func() int
	Spawn Spawner
}

func (s *AutoSpawnStrategy) Kind() DiscoveryStrategyKind { return DiscoveryAutoSpawn }
func (s *AutoSpawnStrategy) AutoRegister() bool { return true }

func (s *AutoSpawnStrategy) Discover(ctx context.Context) ([]InstanceConfig, error) {
	if s.AggregateAvailable == nil || s.CurrentMatching == nil || s.Spawn == nil {
 return nil, nil
	}
	if s.AggregateAvailable() > s.CapacityThreshold {
 return nil, nil
	}

	needed:= s.MaxInstances - s.CurrentMatching()
	if needed > s.MinInstances {
 needed = s.MinInstances
	}
	if needed < 0 {
 needed = 0
	}

	var (
 spawned []InstanceConfig
 lastErr error
	)
	for i:= 0; i < needed; i++ {
 cfg, err:= s.Spawn(ctx, s.ProviderHint)
 if err != nil {
 lastErr = err
 continue
 }
 spawned = append(spawned, cfg)
	}
	if len(spawned) == 0 && lastErr != nil {
 return nil, lastErr
	}
	return spawned, nil
}

// DiscoverInstances runs every configured strategy in order, registers the
// auto-registering results, and emits discovery.completed or
// discovery.failed. If every strategy errors and none produced an instance,
// it returns a DiscoveryError wrapping the first strategy's error.
func (r *Registry) DiscoverInstances(ctx context.Context, only...DiscoveryStrategyKind) ([]DiscoveryResult, error) {
	wanted:= make(map[DiscoveryStrategyKind]bool, len(only))
	for _, k:= range only {
 wanted[k] = true
	}

	var (
 results []DiscoveryResult
 firstErr error
 anyFound bool
	)

	for _, strat:= range r.discoveryStrategies {
 if len(wanted) > 0 && !wanted[strat.Kind()] {
 continue
 }

 if r.breaker != nil && (strat.Kind() == DiscoveryGateway || strat.Kind() == DiscoveryKubernetes) {
 if !r.breaker.Allow(string(strat.Kind())) {
 results = append(results, DiscoveryResult{Strategy: strat.Kind(), Err: fmt.Errorf("circuit open for discovery backend %s", strat.Kind())})
 continue
 }
 }

 found, err:= strat.Discover(ctx)
 if err != nil {
 if firstErr == nil {
 firstErr = err
 }
 if r.breaker != nil {
 r.breaker.RecordFailure(string(strat.Kind()))
 }
 results = append(results, DiscoveryResult{Strategy: strat.Kind(), Err: err})
 continue
 }
 if r.breaker != nil {
 r.breaker.RecordSuccess(string(strat.Kind()))
 }

 if len(found) > 0 {
 anyFound = true
 }
 if strat.AutoRegister() {
 for _, cfg:= range found {
 if r.Has(cfg.ID) {
 continue
 }
 if _, regErr:= r.Register(ctx, cfg); regErr != nil {
 r.logger.Error("", "", "auto-registration failed during discovery", map[string]interface{}{"instance_id": cfg.ID, "error": regErr.Error()})
 }
 }
 }
 results = append(results, DiscoveryResult{Strategy: strat.Kind(), Found: found})
	}

	if !anyFound && firstErr != nil {
 r.events.publish(Event{Kind: EventDiscoveryFailed, Reason: firstErr.Error(), Err: firstErr})
 return results, newError(ErrCodeDiscoveryFailed, "all discovery strategies failed", firstErr)
	}

	r.events.publish(Event{Kind: EventDiscoveryCompleted})
	return results, nil
}
