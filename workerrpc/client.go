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

package workerrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"axonflow/platform/registry"
	"axonflow/platform/session"
	"axonflow/platform/shared/logger"
)

const (
	defaultTimeout = 30 * time.Second
	defaultMaxResponseSize = 10 * 1024 * 1024
	defaultMaxRetries = 3
	defaultRetryDelay = 100 * time.Millisecond
	maxRetryDelay = 5 * time.Second

	// Extension methods beyond the worker RPC contract's documented
	// catalog, needed by the Session Manager's checkpoint/migrate flow
	// (session/checkpoint.go, session/migrate.go): capturing/restoring/
	// verifying a worker's full
	// internal state as an opaque blob, distinct from the session.send
	// checkpoint reference.
	methodSerializeState = "session.serialize_state"
	methodRestoreState = "session.restore_state"
	methodVerifyState = "session.verify_state"
)

// InstanceResolver looks up the endpoint and auth descriptor for an
// instance id, matching registry.Registry.Get's signature so the real
// Registry can be passed directly.
type InstanceResolver interface {
	Get(id string) (*registry.Instance, error)
}

// Client is an HTTP-based implementation of session.WorkerClient and the
// richer extension method catalog above, grounded on
// connectors/http/connector.go's retrying, SSRF-hardened HTTP client
// wrapper: fixed-size connection pool,
// exponential backoff on transient errors, and a response-size ceiling.
type Client struct {
	resolver InstanceResolver
	httpClient *http.Client
	resolveCred CredentialResolver
	maxRetries int
	retryDelay time.Duration
	maxRespSize int64
	logger *logger.Logger
}

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// WithCredentialResolver overrides how an AuthDescriptor's
// CredentialKeyName is resolved to a secret value.
func WithCredentialResolver(r CredentialResolver) ClientOption {
	return func(c *Client) { c.resolveCred = r }
}

// WithHTTPClient overrides the underlying *http.Client (tests typically
// point this at an httptest.Server).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithMaxRetries overrides the transient-error retry budget.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *logger.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient builds a Client that resolves instance endpoints through
// resolver (typically a *registry.Registry).
func NewClient(resolver InstanceResolver, opts...ClientOption) *Client {
	c:= &Client{
 resolver: resolver,
 httpClient: &http.Client{Timeout: defaultTimeout},
 resolveCred: EnvCredentialResolver,
 maxRetries: defaultMaxRetries,
 retryDelay: defaultRetryDelay,
 maxRespSize: defaultMaxResponseSize,
	}
	for _, opt:= range opts {
 opt(c)
	}
	if c.logger == nil {
 c.logger = logger.New("workerrpc")
	}
	return c
}

var _ session.WorkerClient = (*Client)(nil)

// Init starts a new worker-side session on instanceID (session.init).
func (c *Client) Init(ctx context.Context, instanceID string, req session.InitRequest) (*session.InitResponse, error) {
	var result SessionInitResult
	if err:= c.call(ctx, instanceID, "", MethodSessionInit, SessionInitParams{
 Provider: req.Provider,
 Model: req.Model,
 Tools: req.Tools,
 SystemPrompt: req.SystemPrompt,
 WorktreePath: req.WorktreePath,
 InheritContext: req.InheritContext,
	}, &result); err != nil {
 return nil, err
	}
	return &session.InitResponse{
 WorkerSessionID: result.SessionID,
 Provider: result.Provider,
 Model: result.Model,
 Tools: result.Tools,
 CreatedAt: result.CreatedAt,
 WorktreePath: result.WorktreePath,
	}, nil
}

// Close gracefully ends the worker-side session (session.close).
func (c *Client) Close(ctx context.Context, instanceID, workerSessionID string) error {
	return c.call(ctx, instanceID, workerSessionID, MethodSessionClose, struct{}{}, nil)
}

// Kill forcibly ends the worker-side session (session.kill), used when
// Close fails to complete within grace.
func (c *Client) Kill(ctx context.Context, instanceID, workerSessionID string) error {
	return c.call(ctx, instanceID, workerSessionID, MethodSessionKill, struct{}{}, nil)
}

// Status polls the worker-side session's current state (session.status).
func (c *Client) Status(ctx context.Context, instanceID, workerSessionID string) (*session.StatusResponse, error) {
	var result SessionStatusResult
	if err:= c.call(ctx, instanceID, workerSessionID, MethodSessionStatus, struct{}{}, &result); err != nil {
 return nil, err
	}
	return &session.StatusResponse{
 WorkerSessionID: result.SessionID,
 State: result.State,
 Provider: result.Provider,
 Model: result.Model,
 MessageCount: result.MessageCount,
 LastActivityAt: result.LastActivityAt,
	}, nil
}

// Send delivers content (and any outstanding tool results) to the
// worker-side session (session.send).
func (c *Client) Send(ctx context.Context, instanceID, workerSessionID string, params SessionSendParams) (*SessionSendResult, error) {
	var result SessionSendResult
	if err:= c.call(ctx, instanceID, workerSessionID, MethodSessionSend, params, &result); err != nil {
 return nil, err
	}
	return &result, nil
}

// SubmitToolResult feeds one tool's outcome back into an in-flight
// worker-side turn (session.submit_tool_result).
func (c *Client) SubmitToolResult(ctx context.Context, instanceID, workerSessionID, toolCallID string, result interface{}) error {
	return c.call(ctx, instanceID, workerSessionID, MethodSessionSubmitToolResult, SubmitToolResultParams{
 ToolCallID: toolCallID,
 Result: result,
	}, nil)
}

// SwitchModel moves the worker-side session to a different model
// (session.switch_model) without losing its conversation state.
func (c *Client) SwitchModel(ctx context.Context, instanceID, workerSessionID, model string) error {
	return c.call(ctx, instanceID, workerSessionID, MethodSessionSwitchModel, SwitchModelParams{Model: model}, nil)
}

// SwitchProvider moves the worker-side session to a different provider
// (session.switch_provider).
func (c *Client) SwitchProvider(ctx context.Context, instanceID, workerSessionID, provider string) error {
	return c.call(ctx, instanceID, workerSessionID, MethodSessionSwitchProvider, SwitchProviderParams{Provider: provider}, nil)
}

// TreeBranch creates a new branch from a node (tree.branch).
func (c *Client) TreeBranch(ctx context.Context, instanceID, workerSessionID, fromNodeID, name string) error {
	return c.call(ctx, instanceID, workerSessionID, MethodTreeBranch, TreeBranchParams{FromNodeID: fromNodeID, Name: name}, nil)
}

// TreeSwitchBranch moves the worker-side session's current pointer onto a
// different branch (tree.switch_branch).
func (c *Client) TreeSwitchBranch(ctx context.Context, instanceID, workerSessionID, branchID string) error {
	return c.call(ctx, instanceID, workerSessionID, MethodTreeSwitchBranch, TreeSwitchBranchParams{BranchID: branchID}, nil)
}

// TreeFork creates a sibling session rooted at fromNodeID (tree.fork).
func (c *Client) TreeFork(ctx context.Context, instanceID, workerSessionID, fromNodeID string) error {
	return c.call(ctx, instanceID, workerSessionID, MethodTreeFork, TreeForkParams{FromNodeID: fromNodeID}, nil)
}

// TreeCompact asks the worker to compact history older than threshold
// tokens (tree.compact).
func (c *Client) TreeCompact(ctx context.Context, instanceID, workerSessionID string, threshold int) error {
	return c.call(ctx, instanceID, workerSessionID, MethodTreeCompact, TreeCompactParams{Threshold: threshold}, nil)
}

// RestoreState re-hydrates a worker-side session from a serialized
// checkpoint state, returning the resulting worker session id.
func (c *Client) RestoreState(ctx context.Context, instanceID string, state map[string]interface{}) (string, error) {
	var result struct {
 SessionID string `json:"session_id"`
	}
	if err:= c.call(ctx, instanceID, "", methodRestoreState, map[string]interface{}{"state": state}, &result); err != nil {
 return "", err
	}
	return result.SessionID, nil
}

// SerializeState captures the current worker-side session state for
// checkpointing.
func (c *Client) SerializeState(ctx context.Context, instanceID, workerSessionID string) (map[string]interface{}, error) {
	var result struct {
 State map[string]interface{} `json:"state"`
	}
	if err:= c.call(ctx, instanceID, workerSessionID, methodSerializeState, struct{}{}, &result); err != nil {
 return nil, err
	}
	return result.State, nil
}

// VerifyState confirms the worker-side session's serialized state matches
// want, used by migrate's post-restore verify step.
func (c *Client) VerifyState(ctx context.Context, instanceID, workerSessionID string, want map[string]interface{}) (bool, error) {
	var result struct {
 Match bool `json:"match"`
	}
	if err:= c.call(ctx, instanceID, workerSessionID, methodVerifyState, map[string]interface{}{"want": want}, &result); err != nil {
 return false, err
	}
	return result.Match, nil
}

// call resolves instanceID's endpoint and auth, signs a bearer token,
// POSTs an Envelope{method, params} with retry-with-backoff on transient
// failures, and decodes the reply's result into out (nil to discard it).
func (c *Client) call(ctx context.Context, instanceID, workerSessionID, method string, params interface{}, out interface{}) error {
	inst, err:= c.resolver.Get(instanceID)
	if err != nil {
 return newError(ErrCodeInstanceNotFound, "instance "+instanceID+" not found", err)
	}
	if inst.Endpoint == "" {
 return newError(ErrCodeNoEndpoint, "instance "+instanceID+" has no endpoint", nil)
	}

	envelope:= Envelope{ID: uuid.NewString(), Method: method, Params: params}
	body, err:= json.Marshal(envelope)
	if err != nil {
 return newError(ErrCodeRequestFailed, "failed to marshal request", err)
	}

	token, err:= c.bearerToken(inst)
	if err != nil {
 return err
	}

	url:= inst.Endpoint + "/rpc"
	if workerSessionID != "" {
 url = inst.Endpoint + "/sessions/" + workerSessionID + "/rpc"
	}

	var lastErr error
	var resp *http.Response
	for attempt:= 0; attempt <= c.maxRetries; attempt++ {
 if attempt > 0 {
 select {
 case <-ctx.Done():
 return newError(ErrCodeRequestFailed, "context cancelled during retry", ctx.Err())
 case <-time.After(c.backoff(attempt)):
 }
 }

 httpReq, reqErr:= http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
 if reqErr != nil {
 return newError(ErrCodeRequestFailed, "failed to build request", reqErr)
 }
 httpReq.Header.Set("Content-Type", "application/json")
 httpReq.Header.Set("Accept", "application/json")
 if token != "" {
 httpReq.Header.Set("Authorization", "Bearer "+token)
 }

 resp, lastErr = c.httpClient.Do(httpReq)
 if lastErr == nil && !isRetryableStatus(resp.StatusCode) {
 break
 }
 if resp != nil {
 _, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
 _ = resp.Body.Close()
 }
 if lastErr == nil {
 lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
 }
 c.logger.Warn(workerSessionID, envelope.ID, "worker rpc attempt failed", map[string]interface{}{
 "method": method, "attempt": attempt, "error": lastErr.Error(),
 })
	}
	if lastErr != nil {
 return newError(ErrCodeRequestFailed, method+" request failed after retries", lastErr)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err:= io.ReadAll(io.LimitReader(resp.Body, c.maxRespSize+1))
	if err != nil {
 return newError(ErrCodeBadResponse, "failed to read response body", err)
	}
	if int64(len(respBody)) > c.maxRespSize {
 return newError(ErrCodeBadResponse, "response exceeds size limit", nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
 return newError(ErrCodeRequestFailed, fmt.Sprintf("%s returned HTTP %d", method, resp.StatusCode), nil)
	}

	var reply ResultEnvelope
	if err:= json.Unmarshal(respBody, &reply); err != nil {
 return newError(ErrCodeBadResponse, "failed to decode response", err)
	}
	if reply.Error != nil {
 return newError(ErrCodeWorkerError, reply.Error.Message, reply.Error)
	}
	if out == nil || reply.Result == nil {
 return nil
	}
	raw, err:= json.Marshal(reply.Result)
	if err != nil {
 return newError(ErrCodeBadResponse, "failed to re-marshal result", err)
	}
	if err:= json.Unmarshal(raw, out); err != nil {
 return newError(ErrCodeBadResponse, "failed to decode result into target type", err)
	}
	return nil
}

func (c *Client) bearerToken(inst *registry.Instance) (string, error) {
	if inst.Auth.Scheme != "bearer" || inst.Auth.CredentialKeyName == "" {
 return "", nil
	}
	secret, err:= c.resolveCred(inst.Auth.CredentialKeyName)
	if err != nil {
 return "", err
	}
	return signBearerToken(inst.ID, secret)
}

func (c *Client) backoff(attempt int) time.Duration {
	d:= c.retryDelay * time.Duration(1<<uint(attempt-1))
	if d > maxRetryDelay {
 return maxRetryDelay
	}
	return d
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
 http.StatusInternalServerError, http.StatusBadGateway,
 http.StatusServiceUnavailable, http.StatusGatewayTimeout:
 return true
	default:
 return false
	}
}
