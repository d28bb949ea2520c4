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

	"axonflow/platform/provider"
	"axonflow/platform/registry"
)

// ExecuteWithFallback computes an initial routing decision, then walks the
// chain [primary] ++ fallbackChain (up to maxAttempts providers), executing
// via the configured Executor. Auth/invalid-request/fatal failures abort
// immediately; other failures record on the circuit breaker, sleep for
// getRetryDelay, and move to the next provider in the chain.
func (r *Router) ExecuteWithFallback(ctx context.Context, req Request) (interface{}, *Decision, error) {
	decision, err:= r.Route(req, "")
	if err != nil {
 return nil, nil, err
	}
	if r.executor == nil {
 return nil, decision, newError(ErrCodeAllProvidersFailed, "no executor configured", nil)
	}

	chain:= append([]provider.ID{decision.Instance.ProviderID}, decision.FallbackChain...)
	chain = dedupeProviders(chain)

	var lastErr error
	for attempt, providerID:= range chain {
 if attempt >= r.maxAttempts {
 break
 }

 inst, ok:= r.pickHealthyInstance(providerID, req)
 if !ok {
 continue
 }

 resp, err:= r.executor(ctx, inst, req)
 if err == nil {
 if r.breaker != nil {
 r.breaker.RecordSuccess(inst.ID)
 }
 return resp, decision, nil
 }

 lastErr = err
 category:= classifyError(err)
 if category == ErrorAuth || category == ErrorInvalidRequest || category == ErrorFatal {
 return nil, decision, err
 }

 if r.breaker != nil {
 r.breaker.RecordFailure(inst.ID)
 }

 delay:= getRetryDelay(err, attempt+1)
 if delay < 0 {
 continue
 }
 select {
 case <-ctx.Done():
 return nil, decision, ctx.Err()
 case <-time.After(delay):
 }
	}

	if lastErr == nil {
 lastErr = newError(ErrCodeNoCandidates, "no healthy instance found in fallback chain", nil)
	}
	return nil, decision, newError(ErrCodeAllProvidersFailed, "all providers in fallback chain failed", lastErr)
}

func (r *Router) pickHealthyInstance(id provider.ID, req Request) (*registry.Instance, bool) {
	for _, inst:= range r.registry.ListByProvider(id) {
 if inst.Health == registry.HealthUnhealthy {
 continue
 }
 if !inst.HasAllCapabilities(req.RequiredCapabilities) {
 continue
 }
 if r.breaker != nil && !r.breaker.Allow(inst.ID) {
 continue
 }
 return inst, true
	}
	return nil, false
}

func dedupeProviders(ids []provider.ID) []provider.ID {
	seen:= make(map[provider.ID]struct{}, len(ids))
	out:= make([]provider.ID, 0, len(ids))
	for _, id:= range ids {
 if _, ok:= seen[id]; ok {
 continue
 }
 seen[id] = struct{}{}
 out = append(out, id)
	}
	return out
}
