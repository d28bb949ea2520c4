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
	"sort"

	"axonflow/platform/provider"
	"axonflow/platform/registry"
)

// maxReasonableCostUSD backs the cost_optimized strategy's normalization.
const maxReasonableCostUSD = 10.0

// defaultExpectedLatencyCapMs backs the latency_optimized strategy.
const defaultExpectedLatencyCapMs = 5000.0

// defaultFallbackPriority is used by the fallback_chain strategy when the
// caller supplies no explicit priority list.
var defaultFallbackPriority = []provider.ID{
	provider.Anthropic, provider.OpenAI, provider.Google,
	provider.Kimi, provider.Groq, provider.Cerebras, provider.MiniMax,
}

// Strategy is a pure function of a request and its eligible candidates: it
// scores and ranks them without mutating shared state.
type Strategy func(req Request, candidates []*registry.Instance) []ScoredCandidate

// StrategyRegistry holds the named strategies RegisterStrategy/Route can use.
type StrategyRegistry struct {
	strategies map[string]Strategy
}

// NewStrategyRegistry returns a registry pre-populated with the four
// built-in strategies.
func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{
 strategies: map[string]Strategy{
 "cost_optimized": costOptimizedStrategy,
 "capability_matched": capabilityMatchedStrategy,
 "latency_optimized": latencyOptimizedStrategy,
 "fallback_chain": fallbackChainStrategy,
 },
	}
}

// Register adds or overrides a named strategy.
func (s *StrategyRegistry) Register(name string, strat Strategy) {
	s.strategies[name] = strat
}

// Get looks up a strategy by name.
func (s *StrategyRegistry) Get(name string) (Strategy, bool) {
	strat, ok:= s.strategies[name]
	return strat, ok
}

func hasAllCapabilities(inst *registry.Instance, required []provider.Capability) bool {
	return inst.HasAllCapabilities(required)
}

func rankDescending(scored []ScoredCandidate) []ScoredCandidate {
	sort.SliceStable(scored, func(i, j int) bool {
 if scored[i].Score != scored[j].Score {
 return scored[i].Score > scored[j].Score
 }
 return scored[i].Instance.ID < scored[j].Instance.ID
	})
	return scored
}

// costOptimizedStrategy scores inversely by estimated cost.
func costOptimizedStrategy(req Request, candidates []*registry.Instance) []ScoredCandidate {
	var scored []ScoredCandidate
	for _, inst:= range candidates {
 if !hasAllCapabilities(inst, req.RequiredCapabilities) {
 continue
 }
 estimate:= estimateCost(inst.ProviderID, req.EstimatedTokens, defaultInputRatio)
 score:= (maxReasonableCostUSD - estimate.TotalCost) / maxReasonableCostUSD * 100
 if score < 0 {
 score = 0
 }
 scored = append(scored, ScoredCandidate{Instance: inst, Score: score, Reason: "cost_optimized"})
	}
	return rankDescending(scored)
}

// capabilityMatchedStrategy is the default strategy: weighted blend of
// capability match, provider quality, context-window adequacy, and
// historical success rate.
func capabilityMatchedStrategy(req Request, candidates []*registry.Instance) []ScoredCandidate {
	var scored []ScoredCandidate
	for _, inst:= range candidates {
 capScore:= capabilityMatchFraction(inst, req.RequiredCapabilities) * 100

 qualityScore:= 50.0
 windowScore:= 0.0
 if desc, ok:= provider.Get(inst.ProviderID); ok {
 qualityScore = float64(desc.QualityScore)
 windowScore = contextWindowScore(desc.ContextWindowTokens, req.EstimatedTokens)
 }

 successRate:= 0.5
 score:= 0.4*capScore + 0.3*qualityScore + 0.2*windowScore + 0.1*successRate*100

 if req.MinQualityScore > 0 && qualityScore < req.MinQualityScore {
 continue
 }
 scored = append(scored, ScoredCandidate{Instance: inst, Score: score, Reason: "capability_matched"})
	}
	return rankDescending(scored)
}

func capabilityMatchFraction(inst *registry.Instance, required []provider.Capability) float64 {
	if len(required) == 0 {
 return 1.0
	}
	matched:= 0
	for _, c:= range required {
 if inst.HasCapability(c) {
 matched++
 }
	}
	return float64(matched) / float64(len(required))
}

// contextWindowScore implements the spec's stepped context-window adequacy
// score: 20 if window >= 2x required, 15 if >= 1.5x, 10 if >= 1x, 5 if
// >= 0.75x, else 0.
func contextWindowScore(windowTokens, requiredTokens int) float64 {
	if requiredTokens <= 0 {
 return 20
	}
	ratio:= float64(windowTokens) / float64(requiredTokens)
	switch {
	case ratio >= 2:
 return 20
	case ratio >= 1.5:
 return 15
	case ratio >= 1:
 return 10
	case ratio >= 0.75:
 return 5
	default:
 return 0
	}
}

// latencyOptimizedStrategy scores non-unhealthy candidates by expected
// latency: an instance's "expected_latency_ms" metadata hint wins, then the
// provider catalog's default latency, then the midpoint of the scoring range.
func latencyOptimizedStrategy(req Request, candidates []*registry.Instance) []ScoredCandidate {
	var scored []ScoredCandidate
	for _, inst:= range candidates {
 if inst.Health == registry.HealthUnhealthy {
 continue
 }
 if !hasAllCapabilities(inst, req.RequiredCapabilities) {
 continue
 }
 expectedMs:= defaultExpectedLatencyCapMs / 2
 if desc, ok:= provider.Get(inst.ProviderID); ok && desc.DefaultLatencyMs > 0 {
 expectedMs = float64(desc.DefaultLatencyMs)
 }
 if v, ok:= inst.Metadata["expected_latency_ms"]; ok {
 if ms, ok:= v.(float64); ok {
 expectedMs = ms
 }
 }
 score:= (defaultExpectedLatencyCapMs - expectedMs) / defaultExpectedLatencyCapMs * 100
 if score < 0 {
 score = 0
 }
 scored = append(scored, ScoredCandidate{Instance: inst, Score: score, Reason: "latency_optimized"})
	}
	return rankDescending(scored)
}

// fallbackChainStrategy orders candidates by a configured provider priority
// list; within a priority tier, healthy instances rank first; providers not
// present in the list rank at the end.
func fallbackChainStrategy(req Request, candidates []*registry.Instance) []ScoredCandidate {
	priority:= defaultFallbackPriority
	if v, ok:= req.Context["fallback_priority"]; ok {
 if list, ok:= v.([]provider.ID); ok && len(list) > 0 {
 priority = list
 }
	}

	rank:= make(map[provider.ID]int, len(priority))
	for i, id:= range priority {
 rank[id] = i
	}

	var scored []ScoredCandidate
	for _, inst:= range candidates {
 if !hasAllCapabilities(inst, req.RequiredCapabilities) {
 continue
 }
 pos, known:= rank[inst.ProviderID]
 if !known {
 pos = len(priority)
 }
 // Higher score == earlier in the fallback chain. Healthy instances
 // get a half-tier bonus so they sort before degraded siblings at
 // the same priority.
 score:= float64(len(priority)-pos) * 10
 if inst.Health == registry.HealthHealthy {
 score += 5
 }
 scored = append(scored, ScoredCandidate{Instance: inst, Score: score, Reason: "fallback_chain"})
	}
	return rankDescending(scored)
}
