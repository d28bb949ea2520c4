// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"axonflow/platform/agent"
	"axonflow/platform/agent/circuitbreaker"
	"axonflow/platform/agent/policy"
)

// precheckRequest is the body of POST /v1/precheck: a tool call a worker
// wants to make, submitted for static-policy and permission evaluation
// before the worker is allowed to proceed (Gateway Mode: pre-check then
// direct call, a latency-sensitive path that avoids round-tripping every
// tool call through the full interceptor).
type precheckRequest struct {
	SessionID   string            `json:"sessionId"`
	ToolName    string            `json:"toolName"`
	Operation   string            `json:"operation"`
	Permissions []string          `json:"permissions"`
	Args        map[string]string `json:"args"`
}

type precheckResponse struct {
	Decision   string             `json:"decision"`
	Violations []agent.Violation  `json:"violations,omitempty"`
	Reason     string             `json:"reason,omitempty"`
}

// gateway is cmd/agent's sub-10ms policy enforcement layer: it evaluates
// every tool call against the static policy engine and the permission
// evaluator, records an immutable decision-chain entry, and audits
// denials, before the caller is allowed to reach the orchestrator.
type gateway struct {
	static    *agent.StaticPolicyEngine
	perms     *policy.PermissionEvaluator
	decisions *agent.DecisionChainTracker
	audit     *agent.AuditQueue
	breaker   *circuitbreaker.Breaker
	cfg       Config
}

func newGateway(cfg Config) (*gateway, error) {
	static, err := agent.NewStaticPolicyEngine()
	if err != nil {
		return nil, err
	}

	decisions, err := agent.NewDecisionChainTracker(agent.DecisionChainTrackerConfig{
		SystemID: "axonflow-agent/1.0.0",
	})
	if err != nil {
		return nil, err
	}

	auditMode := agent.AuditModeCompliance
	if cfg.AuditMode == "performance" {
		auditMode = agent.AuditModePerformance
	}
	auditQueue, err := agent.NewAuditQueue(auditMode, 1000, 2, nil, "agent-audit-fallback.jsonl")
	if err != nil {
		return nil, err
	}

	return &gateway{
		static:    static,
		perms:     policy.NewPermissionEvaluator(),
		decisions: decisions,
		audit:     auditQueue,
		breaker:   circuitbreaker.New(circuitbreaker.DefaultConfig()),
		cfg:       cfg,
	}, nil
}

func (g *gateway) handlePrecheck(w http.ResponseWriter, r *http.Request) {
	var req precheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, precheckResponse{Decision: "error", Reason: "invalid request body"})
		return
	}

	start := time.Now()
	var violations []agent.Violation
	for _, v := range req.Args {
		violations = append(violations, g.static.Evaluate(v)...)
	}

	outcome := agent.DecisionOutcomeApproved
	decision := "approved"
	reason := ""

	if agent.HasViolationKind(violations, agent.ViolationDangerousSQL) || agent.HasViolationKind(violations, agent.ViolationSQLInjection) {
		outcome = agent.DecisionOutcomeBlocked
		decision = "blocked"
		reason = "static policy violation"
	} else if len(req.Permissions) > 0 || req.Operation != "" {
		allowed, err := g.perms.EvaluatePermission(req.Permissions, req.ToolName, req.Operation)
		if err != nil {
			outcome = agent.DecisionOutcomeError
			decision = "error"
			reason = err.Error()
		} else if !allowed {
			outcome = agent.DecisionOutcomeBlocked
			decision = "blocked"
			reason = "missing required permission"
		}
	}

	entry := agent.DecisionEntry{
		ID:               uuid.NewString(),
		ChainID:          req.SessionID,
		RequestID:        uuid.NewString(),
		DecisionType:     agent.DecisionTypePolicyEnforcement,
		DecisionOutcome:  outcome,
		SystemID:         "axonflow-agent/1.0.0",
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		CreatedAt:        time.Now().UTC(),
	}
	if len(violations) > 0 {
		entry.PolicyTriggered = string(violations[0].Kind) + ":" + violations[0].Label
		entry.RiskLevel = agent.RiskLevelHigh
	} else {
		entry.RiskLevel = agent.RiskLevelMinimal
	}
	_ = g.decisions.RecordDecision(r.Context(), entry)

	if decision == "blocked" {
		g.breaker.RecordFailure(req.ToolName)
		_ = g.audit.LogViolation(agent.AuditEntry{
			Timestamp: time.Now().UTC(),
			Severity:  "warning",
			Details: map[string]interface{}{
				"sessionId": req.SessionID,
				"toolName":  req.ToolName,
				"reason":    reason,
			},
		})
	} else {
		g.breaker.RecordSuccess(req.ToolName)
	}

	writeJSON(w, http.StatusOK, precheckResponse{Decision: decision, Violations: violations, Reason: reason})
}

func (g *gateway) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
