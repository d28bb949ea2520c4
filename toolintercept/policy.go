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

package toolintercept

import (
	"sort"
	"sync"
)

// policyStore holds the registered policies plus the default, and runs
// the priority-ordered evaluation pass.
type policyStore struct {
	mu sync.Mutex
	policies []*Policy
	seq int
	fallback Decision
}

func newPolicyStore() *policyStore {
	return &policyStore{fallback: Decision{Action: ActionAllow, Reason: "default policy"}}
}

func (ps *policyStore) add(p Policy) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	cp:= p
	ps.seq++
	cp.seq = ps.seq
	ps.policies = append(ps.policies, &cp)
	sort.SliceStable(ps.policies, func(i, j int) bool {
 if ps.policies[i].Priority != ps.policies[j].Priority {
 return ps.policies[i].Priority > ps.policies[j].Priority
 }
 return ps.policies[i].seq < ps.policies[j].seq
	})
}

func (ps *policyStore) remove(name string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out:= ps.policies[:0]
	for _, p:= range ps.policies {
 if p.Name != name {
 out = append(out, p)
 }
	}
	ps.policies = out
}

func (ps *policyStore) setDefault(d Decision) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.fallback = d
}

func (ps *policyStore) list() []Policy {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out:= make([]Policy, 0, len(ps.policies))
	for _, p:= range ps.policies {
 out = append(out, *p)
	}
	return out
}

// evaluate runs every registered policy, in priority order, against
// call/cctx. A deny short-circuits immediately. A require-approval
// decision is remembered but evaluation continues; if nothing
// else decides, the remembered approval decision (if any) is returned,
// otherwise the default policy applies.
func (ps *policyStore) evaluate(call ToolCall, cctx CallContext) (Decision, string) {
	ps.mu.Lock()
	policies:= make([]*Policy, len(ps.policies))
	copy(policies, ps.policies)
	fallback:= ps.fallback
	ps.mu.Unlock()

	var pendingApproval *Decision
	var pendingApprovalName string

	for _, p:= range policies {
 decision, ok:= p.Condition(call, cctx)
 if !ok {
 continue
 }
 if decision.Action == ActionDeny {
 return decision, p.Name
 }
 if decision.Action == ActionRequireApproval && pendingApproval == nil {
 d:= decision
 pendingApproval = &d
 pendingApprovalName = p.Name
 }
	}
	if pendingApproval != nil {
 return *pendingApproval, pendingApprovalName
	}
	return fallback, ""
}
