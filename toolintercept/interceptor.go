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
	"context"
	"sync"
	"time"

	"axonflow/platform/agent/hitl"
	agentpolicy "axonflow/platform/agent/policy"
	"axonflow/platform/shared/logger"
	"axonflow/platform/tree"
)

// defaultToolTimeout is applied when a ToolCall doesn't specify one:
// execution is bounded by tool.timeout, default 60s.
const defaultToolTimeout = 60 * time.Second

// Interceptor is the mediator every tool call passes through: policy
// evaluation, then dispatch to a remote executor or local tool, with an
// audit record of the outcome.
type Interceptor struct {
	mu sync.RWMutex
	tools map[string]Tool
	remotes []RemoteExecutor
	policies *policyStore
	audit AuditSink
	approvals *hitl.Service
	perms *agentpolicy.PermissionEvaluator
	todos *todoStore
	logger *logger.Logger
}

// Option configures an Interceptor at construction time.
type Option func(*Interceptor)

// WithAuditSink overrides the default bounded in-memory ring sink.
func WithAuditSink(sink AuditSink) Option {
	return func(i *Interceptor) { i.audit = sink }
}

// WithApprovalService sets the human-in-the-loop approval queue used for
// require_approval decisions.
func WithApprovalService(s *hitl.Service) Option {
	return func(i *Interceptor) { i.approvals = s }
}

// WithTreeManager wires the conversation tree manager the tree_navigate
// built-in tool drives.
func WithTreeManager(t *tree.Manager) Option {
	return func(i *Interceptor) {
 i.tools["tree_navigate"] = &treeNavigateTool{trees: t}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *logger.Logger) Option {
	return func(i *Interceptor) { i.logger = l }
}

// New constructs an Interceptor with the built-in tool set registered.
func New(opts...Option) *Interceptor {
	todos:= newTodoStore()
	i:= &Interceptor{
 tools: make(map[string]Tool),
 policies: newPolicyStore(),
 audit: NewRingSink(defaultAuditRingCapacity),
 approvals: hitl.NewService(hitl.DefaultServiceConfig()),
 perms: agentpolicy.NewPermissionEvaluator(),
 todos: todos,
	}
	i.tools["read"] = readTool{}
	i.tools["write"] = writeTool{}
	i.tools["edit"] = editTool{}
	i.tools["bash"] = bashTool{}
	i.tools["todo_write"] = &todoWriteTool{store: todos}
	i.tools["tree_navigate"] = &treeNavigateTool{}

	for _, opt:= range opts {
 opt(i)
	}
	if i.logger == nil {
 i.logger = logger.New("toolintercept")
	}
	return i
}

// RegisterTool adds or replaces a local tool definition.
func (i *Interceptor) RegisterTool(t Tool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tools[t.Name()] = t
}

// UnregisterTool removes a local tool definition.
func (i *Interceptor) UnregisterTool(name string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.tools, name)
}

// RegisterRemoteExecutor adds a remote executor, tried in registration
// order ahead of local tools.
func (i *Interceptor) RegisterRemoteExecutor(r RemoteExecutor) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.remotes = append(i.remotes, r)
}

// UnregisterRemoteExecutor removes a remote executor by name.
func (i *Interceptor) UnregisterRemoteExecutor(name string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	out:= i.remotes[:0]
	for _, r:= range i.remotes {
 if r.Name() != name {
 out = append(out, r)
 }
	}
	i.remotes = out
}

// AddPolicy registers a policy.
func (i *Interceptor) AddPolicy(p Policy) { i.policies.add(p) }

// RemovePolicy removes a policy by name.
func (i *Interceptor) RemovePolicy(name string) { i.policies.remove(name) }

// SetDefaultPolicy overrides the fallback decision applied when no
// registered policy fires.
func (i *Interceptor) SetDefaultPolicy(d Decision) { i.policies.setDefault(d) }

// GetPolicies returns the currently registered policies.
func (i *Interceptor) GetPolicies() []Policy { return i.policies.list() }

// ListAvailableTools returns the names of local tools and remote
// executors available to cctx (every built-in is currently
// context-independent; remote executors filter by canHandle against a
// synthetic probe is not attempted here — callers query per-tool).
func (i *Interceptor) ListAvailableTools(cctx CallContext) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out:= make([]string, 0, len(i.tools)+len(i.remotes))
	for name:= range i.tools {
 out = append(out, name)
	}
	for _, r:= range i.remotes {
 out = append(out, r.Name())
	}
	return out
}

// GetSessionTodos returns the most recent todo_write payload for sessionID.
func (i *Interceptor) GetSessionTodos(sessionID string) []Todo {
	return i.todos.get(sessionID)
}

// QueryAudit runs filter against the configured audit sink.
func (i *Interceptor) QueryAudit(filter AuditFilter) []AuditEvent {
	return i.audit.Query(filter)
}

// Intercept runs the full contract for one tool call: policy evaluation,
// dispatch, timeout enforcement, and audit.
func (i *Interceptor) Intercept(ctx context.Context, call ToolCall, cctx CallContext) ToolResult {
	started:= time.Now().UTC()
	i.audit.Record(newAuditEvent(call.SessionID, call.Name, EventStarted, "", "", call.Args))

	decision, policyName:= i.policies.evaluate(call, cctx)

	if decision.Action == ActionDeny {
 promToolDenials.WithLabelValues(call.Name, policyName).Inc()
 promToolCalls.WithLabelValues(call.Name, "blocked").Inc()
 i.audit.Record(newAuditEvent(call.SessionID, call.Name, EventBlocked, policyName, decision.Reason, call.Args))
 return ToolResult{Success: false, Error: decision.Reason, Blocked: true, BlockedBy: policyName, Started: started, Duration: time.Since(started)}
	}

	if decision.Action == ActionRequireApproval && !i.approvalGranted(cctx) {
 req:= i.approvals.Submit(call.SessionID, call.Name, call.Args, policyName, decision.Reason)
 promToolCalls.WithLabelValues(call.Name, "blocked").Inc()
 i.audit.Record(newAuditEvent(call.SessionID, call.Name, EventBlocked, policyName, "approval required: "+req.ID, call.Args))
 return ToolResult{
 Success: false,
 Error: "approval required",
 Blocked: true,
 BlockedBy: policyName,
 Result: map[string]interface{}{"approval_request_id": req.ID},
 Started: started,
 Duration: time.Since(started),
 }
	}

	result, err:= i.dispatch(ctx, call, cctx)
	duration:= time.Since(started)
	promToolDuration.WithLabelValues(call.Name).Observe(float64(duration.Milliseconds()))

	if err != nil {
 promToolCalls.WithLabelValues(call.Name, "failed").Inc()
 i.audit.Record(newAuditEvent(call.SessionID, call.Name, EventFailed, policyName, err.Error(), call.Args))
 i.logger.Warn(call.SessionID, "", "tool call failed", map[string]interface{}{"tool": call.Name, "error": err.Error()})
 return ToolResult{Success: false, Error: err.Error(), Started: started, Duration: duration}
	}

	promToolCalls.WithLabelValues(call.Name, "completed").Inc()
	i.audit.Record(newAuditEvent(call.SessionID, call.Name, EventCompleted, policyName, "", call.Args))
	return ToolResult{Success: true, Result: result, Started: started, Duration: duration}
}

// approvalGranted checks whether cctx carries a hitl request id that has
// already been decided approved, allowing a replayed call to bypass the
// require_approval policy that originally deferred it.
func (i *Interceptor) approvalGranted(cctx CallContext) bool {
	if cctx.ApprovalID == "" || i.approvals == nil {
 return false
	}
	req, err:= i.approvals.Get(cctx.ApprovalID)
	return err == nil && req.Status == hitl.Approved
}

func (i *Interceptor) dispatch(ctx context.Context, call ToolCall, cctx CallContext) (interface{}, error) {
	timeout:= call.Timeout
	if timeout <= 0 {
 timeout = defaultToolTimeout
	}
	dctx, cancel:= context.WithTimeout(ctx, timeout)
	defer cancel()

	i.mu.RLock()
	for _, r:= range i.remotes {
 if r.CanHandle(call.Name, cctx) {
 i.mu.RUnlock()
 return r.Execute(dctx, call, cctx)
 }
	}
	tool, ok:= i.tools[call.Name]
	i.mu.RUnlock()
	if !ok {
 return nil, newError(ErrCodeToolNotFound, "no tool or remote executor handles "+call.Name, nil)
	}
	return tool.Execute(dctx, call, cctx)
}
