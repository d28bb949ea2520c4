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

// Package router selects a worker Instance for a routing request using a
// pluggable scoring strategy, then executes the request with cost budgeting,
// per-instance circuit breaking, and ordered-fallback retry.
package router

import (
	"time"

	"axonflow/platform/provider"
	"axonflow/platform/registry"
)

// Priority is a routing request's urgency hint.
type Priority string

const (
	PriorityLow Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh Priority = "high"
	PriorityCritical Priority = "critical"
)

// Request is the input to Route/ExecuteWithFallback.
type Request struct {
	RequestID string
	TaskType string
	RequiredCapabilities []provider.Capability
	EstimatedTokens int
	Priority Priority
	PreferredProvider provider.ID
	MaxCost float64
	MaxLatency time.Duration
	MinQualityScore float64
	Context map[string]interface{}
}

// Decision is the result of Route.
type Decision struct {
	Instance *registry.Instance
	Strategy string
	Score float64
	Alternatives []ScoredCandidate
	EstimatedCost float64
	ExpectedLatency time.Duration
	Timestamp time.Time
	FallbackChain []provider.ID
}

// ScoredCandidate pairs a candidate instance with its strategy score.
type ScoredCandidate struct {
	Instance *registry.Instance
	Score float64
	Reason string
}

// ErrorCategory classifies a provider-call failure for retry/fallback
// decisions.
type ErrorCategory string

const (
	ErrorTransient ErrorCategory = "transient"
	ErrorRateLimit ErrorCategory = "rate_limit"
	ErrorAuth ErrorCategory = "auth"
	ErrorInvalidRequest ErrorCategory = "invalid_request"
	ErrorContextLength ErrorCategory = "context_length"
	ErrorFatal ErrorCategory = "fatal"
	ErrorUnknown ErrorCategory = "unknown"
)

// CallError carries classification hints surfaced by a provider/worker call.
type CallError struct {
	Message string
	Code string
	RetryAfter time.Duration
	Cause error
}

func (e *CallError) Error() string {
	if e.Cause != nil {
 return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *CallError) Unwrap() error { return e.Cause }

// CostEstimate is the result of estimateCost/estimateRequestCost.
type CostEstimate struct {
	InputTokens int
	OutputTokens int
	InputCost float64
	OutputCost float64
	TotalCost float64
}

// BudgetStatus is the result of GetBudgetStatus.
type BudgetStatus struct {
	MaxCostPerRequest float64
	MaxBudgetPerPeriod float64
	CurrentPeriodCost float64
	PeriodStart time.Time
	PeriodDuration time.Duration
	Remaining float64
}

// CostSummary is the result of GetCostSummary.
type CostSummary struct {
	ByProvider map[provider.ID]float64
	Total float64
}

// ProviderHealth summarizes the observed health of one provider's instances
// for the Router's own bookkeeping (distinct from Registry.Health, which is
// per instance).
type ProviderHealth struct {
	ProviderID provider.ID
	HealthyInstances int
	TotalInstances int
	CircuitOpen bool
}
