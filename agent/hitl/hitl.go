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

// Package hitl implements the human-in-the-loop approval workflow the Tool
// Interceptor defers to when a policy decision carries requireApproval.
package hitl

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of one approval request.
type Status string

const (
	Pending Status = "pending"
	Approved Status = "approved"
	Denied Status = "denied"
	Expired Status = "expired"
)

var (
	// ErrRequestNotFound is returned when an approval id is unknown.
	ErrRequestNotFound = errors.New("hitl: approval request not found")
	// ErrAlreadyDecided is returned when Approve/Deny is called on a
	// request that has already left the pending state.
	ErrAlreadyDecided = errors.New("hitl: approval request already decided")
)

// Request represents one pending human approval for a tool call.
type Request struct {
	ID string
	SessionID string
	ToolName string
	Args map[string]interface{}
	PolicyName string
	Reason string
	Status Status
	CreatedAt time.Time
	ExpiresAt time.Time
	DecidedAt time.Time
	DecidedBy string
	Justification string
}

// ServiceConfig parameterizes expiry for new requests.
type ServiceConfig struct {
	DefaultExpiry time.Duration
	MaxExpiry time.Duration
}

// DefaultServiceConfig gives a bounded approval window: short enough that
// a stale approval request doesn't linger, long enough for a human to act.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{DefaultExpiry: 5 * time.Minute, MaxExpiry: time.Hour}
}

// Service is the in-memory human-approval queue. A durable Repository may
// be layered underneath by callers that need the queue to survive process
// restarts; Service itself owns only the in-process pending set plus
// expiry bookkeeping.
type Service struct {
	mu sync.Mutex
	cfg ServiceConfig
	requests map[string]*Request
}

// NewService creates a Service. A zero-value config falls back to
// DefaultServiceConfig.
func NewService(cfg ServiceConfig) *Service {
	if cfg.DefaultExpiry <= 0 {
 cfg = DefaultServiceConfig()
	}
	return &Service{
 cfg: cfg,
 requests: make(map[string]*Request),
	}
}

// Submit creates a new pending approval request and returns it.
func (s *Service) Submit(sessionID, toolName string, args map[string]interface{}, policyName, reason string) *Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	now:= time.Now().UTC()
	req:= &Request{
 ID: uuid.NewString(),
 SessionID: sessionID,
 ToolName: toolName,
 Args: args,
 PolicyName: policyName,
 Reason: reason,
 Status: Pending,
 CreatedAt: now,
 ExpiresAt: now.Add(s.cfg.DefaultExpiry),
	}
	s.requests[req.ID] = req
	return req
}

// Get returns the request by id, expiring it first if its window has
// elapsed while still pending.
func (s *Service) Get(id string) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

func (s *Service) getLocked(id string) (*Request, error) {
	req, ok:= s.requests[id]
	if !ok {
 return nil, ErrRequestNotFound
	}
	if req.Status == Pending && time.Now().UTC().After(req.ExpiresAt) {
 req.Status = Expired
 req.DecidedAt = time.Now().UTC()
	}
	return req, nil
}

// Approve transitions a pending request to approved.
func (s *Service) Approve(id, decidedBy, justification string) (*Request, error) {
	return s.decide(id, Approved, decidedBy, justification)
}

// Deny transitions a pending request to denied.
func (s *Service) Deny(id, decidedBy, justification string) (*Request, error) {
	return s.decide(id, Denied, decidedBy, justification)
}

func (s *Service) decide(id string, status Status, decidedBy, justification string) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, err:= s.getLocked(id)
	if err != nil {
 return nil, err
	}
	if req.Status != Pending {
 return req, ErrAlreadyDecided
	}
	req.Status = status
	req.DecidedAt = time.Now().UTC()
	req.DecidedBy = decidedBy
	req.Justification = justification
	return req, nil
}

// ListPending returns every request still awaiting a decision for sessionID
// (or for all sessions if sessionID is empty), expiring stale entries first.
func (s *Service) ListPending(sessionID string) []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	now:= time.Now().UTC()
	out:= make([]*Request, 0)
	for _, req:= range s.requests {
 if req.Status == Pending && now.After(req.ExpiresAt) {
 req.Status = Expired
 req.DecidedAt = now
 }
 if req.Status != Pending {
 continue
 }
 if sessionID != "" && req.SessionID != sessionID {
 continue
 }
 out = append(out, req)
	}
	return out
}
