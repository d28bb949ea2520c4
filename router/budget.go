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
	"sync"
	"time"

	"axonflow/platform/provider"
)

// BudgetConfig controls per-request and per-period cost limits.
type BudgetConfig struct {
	MaxCostPerRequest float64
	MaxBudgetPerPeriod float64
	PeriodDuration time.Duration
}

// DefaultBudgetConfig returns the spec's documented defaults.
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
 MaxCostPerRequest: 10.0,
 MaxBudgetPerPeriod: 100.0,
 PeriodDuration: time.Hour,
	}
}

// budgetTracker accumulates actual spend within a rolling period, resetting
// the period lazily on check.
type budgetTracker struct {
	mu sync.Mutex
	cfg BudgetConfig
	currentPeriodCost float64
	periodStart time.Time
	byProvider map[provider.ID]float64
}

func newBudgetTracker(cfg BudgetConfig) *budgetTracker {
	if cfg.PeriodDuration <= 0 {
 cfg.PeriodDuration = time.Hour
	}
	return &budgetTracker{
 cfg: cfg,
 periodStart: time.Now(),
 byProvider: make(map[provider.ID]float64),
	}
}

func (b *budgetTracker) maybeResetPeriod(now time.Time) {
	if now.Sub(b.periodStart) > b.cfg.PeriodDuration {
 b.currentPeriodCost = 0
 b.byProvider = make(map[provider.ID]float64)
 b.periodStart = now
	}
}

// checkEstimate returns an error if estimatedCost exceeds MaxCostPerRequest.
func (b *budgetTracker) checkEstimate(estimatedCost float64) error {
	if b.cfg.MaxCostPerRequest > 0 && estimatedCost > b.cfg.MaxCostPerRequest {
 return newError(ErrCodeCostLimitExceeded, "estimated request cost exceeds maxCostPerRequest", nil)
	}
	return nil
}

// recordActualCost accumulates actual spend into the current period.
func (b *budgetTracker) recordActualCost(id provider.ID, cost float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeResetPeriod(time.Now())
	b.currentPeriodCost += cost
	b.byProvider[id] += cost
}

func (b *budgetTracker) status() BudgetStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeResetPeriod(time.Now())
	remaining:= b.cfg.MaxBudgetPerPeriod - b.currentPeriodCost
	if remaining < 0 {
 remaining = 0
	}
	return BudgetStatus{
 MaxCostPerRequest: b.cfg.MaxCostPerRequest,
 MaxBudgetPerPeriod: b.cfg.MaxBudgetPerPeriod,
 CurrentPeriodCost: b.currentPeriodCost,
 PeriodStart: b.periodStart,
 PeriodDuration: b.cfg.PeriodDuration,
 Remaining: remaining,
	}
}

func (b *budgetTracker) summary() CostSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	byProvider:= make(map[provider.ID]float64, len(b.byProvider))
	total:= 0.0
	for id, cost:= range b.byProvider {
 byProvider[id] = cost
 total += cost
	}
	return CostSummary{ByProvider: byProvider, Total: total}
}
