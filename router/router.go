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

package router

import (
	"context"
	"time"

	"axonflow/platform/agent/circuitbreaker"
	"axonflow/platform/provider"
	"axonflow/platform/registry"
	"axonflow/platform/shared/logger"
)

// Executor performs the actual call to a selected instance (typically a
// workerrpc.Client method). The Router is agnostic to the response shape.
type Executor func(ctx context.Context, inst *registry.Instance, req Request) (interface{}, error)

// Router selects a worker Instance per Request using a pluggable Strategy,
// then (via ExecuteWithFallback) drives cost-budgeted, circuit-broken,
// ordered-fallback execution.
type Router struct {
	registry *registry.Registry
	strategies *StrategyRegistry
	defaultStrategy string
	breaker *circuitbreaker.Breaker
	budget *budgetTracker
	logger *logger.Logger
	executor Executor
	maxAttempts int
}

// Option configures a Router at construction time.
type Option func(*Router)

// WithRegistry sets the backing Instance Registry.
func WithRegistry(r *registry.Registry) Option {
	return func(router *Router) { router.registry = r }
}

// WithDefaultStrategy sets the strategy name used when Route is called
// without an explicit override. Defaults to "capability_matched".
func WithDefaultStrategy(name string) Option {
	return func(router *Router) { router.defaultStrategy = name }
}

// WithCircuitBreaker wires the per-instance circuit breaker used by
// ExecuteWithFallback.
func WithCircuitBreaker(b *circuitbreaker.Breaker) Option {
	return func(router *Router) { router.breaker = b }
}

// WithBudget sets the cost-budget configuration.
func WithBudget(cfg BudgetConfig) Option {
	return func(router *Router) { router.budget = newBudgetTracker(cfg) }
}

// WithLogger sets the structured logger.
func WithLogger(l *logger.Logger) Option {
	return func(router *Router) { router.logger = l }
}

// WithExecutor sets the function ExecuteWithFallback uses to perform the
// actual call against a selected instance.
func WithExecutor(e Executor) Option {
	return func(router *Router) { router.executor = e }
}

// WithMaxAttempts caps how many providers ExecuteWithFallback will try.
// Defaults to 4 (primary + 3 fallback hops).
func WithMaxAttempts(n int) Option {
	return func(router *Router) { router.maxAttempts = n }
}

// New constructs a Router.
func New(opts...Option) *Router {
	r:= &Router{
 strategies: NewStrategyRegistry(),
 defaultStrategy: "capability_matched",
 breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
 budget: newBudgetTracker(DefaultBudgetConfig()),
 maxAttempts: 4,
	}
	for _, opt:= range opts {
 opt(r)
	}
	if r.logger == nil {
 r.logger = logger.New("router")
	}
	if r.registry == nil {
 r.registry = registry.New()
	}
	return r
}

// RegisterStrategy adds or overrides a named strategy.
func (r *Router) RegisterStrategy(name string, strat Strategy) {
	r.strategies.Register(name, strat)
}

// SetDefaultStrategy changes the strategy used when none is specified.
func (r *Router) SetDefaultStrategy(name string) {
	r.defaultStrategy = name
}

// GetFallbackChain returns the provider priority order used by
// fallback_chain, with primary moved to the front.
func (r *Router) GetFallbackChain(primary provider.ID) []provider.ID {
	chain:= make([]provider.ID, 0, len(defaultFallbackPriority)+1)
	chain = append(chain, primary)
	for _, id:= range defaultFallbackPriority {
 if id != primary {
 chain = append(chain, id)
 }
	}
	return chain
}

// Route selects an instance for req using the named strategy (or the
// router's default), rejecting the request if its estimated cost exceeds
// the per-request budget.
func (r *Router) Route(req Request, strategyName string) (*Decision, error) {
	if strategyName == "" {
 strategyName = r.defaultStrategy
	}
	strat, ok:= r.strategies.Get(strategyName)
	if !ok {
 return nil, newError(ErrCodeUnknownStrategy, "unknown routing strategy: "+strategyName, nil)
	}

	estimatedCost:= estimateRequestCost(req.EstimatedTokens)
	if req.MaxCost > 0 && estimatedCost > req.MaxCost {
 return nil, newError(ErrCodeCostLimitExceeded, "estimated request cost exceeds request maxCost", nil)
	}
	if err:= r.budget.checkEstimate(estimatedCost); err != nil {
 return nil, err
	}

	candidates:= r.eligibleCandidates(req)
	if len(candidates) == 0 {
 return nil, newError(ErrCodeNoCandidates, "no eligible instance for request", nil)
	}

	scored:= strat(req, candidates)
	if len(scored) == 0 {
 return nil, newError(ErrCodeNoCandidates, "strategy produced no ranked candidates", nil)
	}

	best:= scored[0]
	instanceCost:= estimateCost(best.Instance.ProviderID, req.EstimatedTokens, defaultInputRatio)

	return &Decision{
 Instance: best.Instance,
 Strategy: strategyName,
 Score: best.Score,
 Alternatives: scored[1:],
 EstimatedCost: instanceCost.TotalCost,
 ExpectedLatency: expectedLatencyFor(best.Instance),
 Timestamp: time.Now(),
 FallbackChain: r.GetFallbackChain(best.Instance.ProviderID),
	}, nil
}

func expectedLatencyFor(inst *registry.Instance) time.Duration {
	if desc, ok:= provider.Get(inst.ProviderID); ok {
 return time.Duration(desc.DefaultLatencyMs) * time.Millisecond
	}
	return 0
}

func (r *Router) eligibleCandidates(req Request) []*registry.Instance {
	var all []*registry.Instance
	if req.PreferredProvider != "" {
 all = r.registry.ListByProvider(req.PreferredProvider)
	} else {
 all = r.registry.List()
	}

	out:= make([]*registry.Instance, 0, len(all))
	for _, inst:= range all {
 if inst.Health == registry.HealthUnhealthy {
 continue
 }
 if r.breaker != nil && !r.breaker.Allow(inst.ID) {
 continue
 }
 out = append(out, inst)
	}
	return out
}

// RecordActualCost records real spend against the router's budget tracker.
func (r *Router) RecordActualCost(id provider.ID, cost float64) {
	r.budget.recordActualCost(id, cost)
}

// GetAverageCost returns the average per-request cost recorded for id
// within the current period. timeframe is accepted for interface parity
// with the cost-tracking API but the tracker only retains the current
// rolling period.
func (r *Router) GetAverageCost(id provider.ID, timeframe time.Duration) float64 {
	summary:= r.budget.summary()
	if summary.Total == 0 {
 return 0
	}
	return summary.ByProvider[id]
}

// GetBudgetStatus reports current budget consumption.
func (r *Router) GetBudgetStatus() BudgetStatus {
	return r.budget.status()
}

// GetCostSummary reports cumulative spend by provider for the current
// period.
func (r *Router) GetCostSummary() CostSummary {
	return r.budget.summary()
}

// GetProviderHealth summarizes instance health and breaker state per
// provider.
func (r *Router) GetProviderHealth() map[provider.ID]ProviderHealth {
	out:= make(map[provider.ID]ProviderHealth)
	for _, inst:= range r.registry.List() {
 ph, ok:= out[inst.ProviderID]
 if !ok {
 ph = ProviderHealth{ProviderID: inst.ProviderID}
 }
 ph.TotalInstances++
 if inst.Health == registry.HealthHealthy {
 ph.HealthyInstances++
 }
 if r.breaker != nil && !r.breaker.Allow(inst.ID) {
 ph.CircuitOpen = true
 }
 out[inst.ProviderID] = ph
	}
	return out
}

// Registry returns the underlying Instance Registry.
func (r *Router) Registry() *registry.Registry {
	return r.registry
}
