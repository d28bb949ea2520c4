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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// defaultAuditRingCapacity bounds the default in-memory audit sink: a
// bounded ring with a capacity of ~10,000 entries.
const defaultAuditRingCapacity = 10000

var (
	promToolCalls = prometheus.NewCounterVec(
 prometheus.CounterOpts{
 Name: "axonflow_tool_calls_total",
 Help: "Total number of tool calls intercepted",
 },
 []string{"tool", "outcome"},
	)
	promToolDuration = prometheus.NewHistogramVec(
 prometheus.HistogramOpts{
 Name: "axonflow_tool_call_duration_milliseconds",
 Help: "Tool call duration in milliseconds",
 Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 10000, 60000},
 },
 []string{"tool"},
	)
	promToolDenials = prometheus.NewCounterVec(
 prometheus.CounterOpts{
 Name: "axonflow_tool_call_denials_total",
 Help: "Total number of tool calls blocked by policy",
 },
 []string{"tool", "policy"},
	)
)

func init() {
	prometheus.MustRegister(promToolCalls, promToolDuration, promToolDenials)
}

// AuditSink is the pluggable audit destination intercept writes to.
// The default, RingSink, is bounded in-memory; a deployment wanting a
// durable trail layers a different sink (e.g. backed by Mongo) behind
// the same interface.
type AuditSink interface {
	Record(evt AuditEvent)
	Query(filter AuditFilter) []AuditEvent
}

// RingSink is a fixed-capacity circular buffer of audit events, the
// default sink, grounded on decision_chain.go's
// in-memory decision store generalized from an unbounded per-chain
// slice to a single bounded ring shared across all sessions.
type RingSink struct {
	mu sync.Mutex
	buf []AuditEvent
	cap int
	next int
	size int
}

// NewRingSink creates a RingSink with the given capacity (<=0 uses the
// default ~10 000).
func NewRingSink(capacity int) *RingSink {
	if capacity <= 0 {
 capacity = defaultAuditRingCapacity
	}
	return &RingSink{buf: make([]AuditEvent, capacity), cap: capacity}
}

func (r *RingSink) Record(evt AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = evt
	r.next = (r.next + 1) % r.cap
	if r.size < r.cap {
 r.size++
	}
}

func (r *RingSink) Query(filter AuditFilter) []AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out:= make([]AuditEvent, 0, r.size)
	start:= r.next - r.size
	if start < 0 {
 start += r.cap
	}
	for i:= 0; i < r.size; i++ {
 evt:= r.buf[(start+i)%r.cap]
 if filter.SessionID != "" && evt.SessionID != filter.SessionID {
 continue
 }
 if filter.ToolName != "" && evt.ToolName != filter.ToolName {
 continue
 }
 if filter.Type != "" && evt.Type != filter.Type {
 continue
 }
 if !filter.Since.IsZero() && evt.Timestamp.Before(filter.Since) {
 continue
 }
 out = append(out, evt)
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
 out = out[len(out)-filter.Limit:]
	}
	return out
}

// computeAuditHash derives a stable content hash for the event, the same
// tamper-evidence idea as decision_chain.go's computeAuditHash.
func computeAuditHash(evt AuditEvent) string {
	input:= fmt.Sprintf("%s|%s|%s|%s|%s", evt.SessionID, evt.ToolName, evt.Type, evt.PolicyName, evt.Timestamp.Format(time.RFC3339Nano))
	sum:= sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

func newAuditEvent(sessionID, toolName string, typ EventType, policyName, reason string, args map[string]interface{}) AuditEvent {
	evt:= AuditEvent{
 ID: uuid.NewString(),
 SessionID: sessionID,
 ToolName: toolName,
 Type: typ,
 PolicyName: policyName,
 Reason: reason,
 Args: args,
 Timestamp: time.Now().UTC(),
	}
	evt.Hash = computeAuditHash(evt)
	return evt
}
