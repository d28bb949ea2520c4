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

// Package workerrpc is the transport-level client for the Pi worker RPC
// surface: message-level request/response/notification
// contracts plus an HTTP-based Client implementing session.WorkerClient.
// The framing (HTTP+JSON today) is deliberately kept out of the message
// types themselves, so a future transport can reuse them unchanged.
package workerrpc

import "time"

// Method names on the worker RPC surface.
const (
	MethodSessionInit = "session.init"
	MethodSessionClose = "session.close"
	MethodSessionKill = "session.kill"
	MethodSessionSend = "session.send"
	MethodSessionSendStream = "session.send_stream"
	MethodSessionSubmitToolResult = "session.submit_tool_result"
	MethodSessionStatus = "session.status"
	MethodSessionSwitchModel = "session.switch_model"
	MethodSessionSwitchProvider = "session.switch_provider"
	MethodTreeGet = "tree.get"
	MethodTreeBranch = "tree.branch"
	MethodTreeSwitchBranch = "tree.switch_branch"
	MethodTreeFork = "tree.fork"
	MethodTreeCompact = "tree.compact"
)

// Envelope is the wire-level request frame: every call carries a
// caller-supplied id the worker echoes back, a method name and a
// method-specific params payload.
type Envelope struct {
	ID string `json:"id"`
	Method string `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

// ResultEnvelope is the wire-level reply frame.
type ResultEnvelope struct {
	ID string `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error *WorkerRPCError `json:"error,omitempty"`
}

// WorkerRPCError is the error shape a worker reply carries on failure.
type WorkerRPCError struct {
	Code string `json:"code"`
	Message string `json:"message"`
}

func (e *WorkerRPCError) Error() string { return e.Code + ": " + e.Message }

// SessionInitParams is the session.init request body.
type SessionInitParams struct {
	Provider string `json:"provider"`
	Model string `json:"model"`
	Tools []string `json:"tools,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	WorktreePath string `json:"worktree_path,omitempty"`
	InheritContext bool `json:"inherit_context,omitempty"`
}

// SessionInitResult is the session.init reply.
type SessionInitResult struct {
	SessionID string `json:"session_id"`
	Provider string `json:"provider"`
	Model string `json:"model"`
	Tools []string `json:"tools,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	WorktreePath string `json:"worktree_path,omitempty"`
}

// SessionSendParams is the session.send / session.send_stream request body.
type SessionSendParams struct {
	Content string `json:"content"`
	ToolResults []ToolResultParam `json:"tool_results,omitempty"`
	Checkpoint map[string]interface{} `json:"checkpoint,omitempty"`
}

// ToolResultParam carries one tool's outcome back to the worker as part of
// a session.send request.
type ToolResultParam struct {
	ToolCallID string `json:"tool_call_id"`
	Result interface{} `json:"result"`
}

// SessionSendResult is the session.send reply.
type SessionSendResult struct {
	MessageID string `json:"message_id"`
	Content string `json:"content"`
	ToolCalls []ToolCallParam `json:"tool_calls,omitempty"`
	CheckpointRef string `json:"checkpoint_ref,omitempty"`
}

// ToolCallParam is one tool invocation the worker is requesting the caller
// execute and feed back via session.submit_tool_result.
type ToolCallParam struct {
	ID string `json:"id"`
	Name string `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// StreamChunkType enumerates the chunk kinds a session.send_stream reply
// streams.
type StreamChunkType string

const (
	StreamContent StreamChunkType = "content"
	StreamToolCall StreamChunkType = "tool_call"
	StreamToolResult StreamChunkType = "tool_result"
	StreamError StreamChunkType = "error"
	StreamDone StreamChunkType = "done"
)

// StreamChunk is one unit of a streamed session.send_stream reply.
type StreamChunk struct {
	Type StreamChunkType `json:"type"`
	Content string `json:"content,omitempty"`
	ToolCall *ToolCallParam `json:"tool_call,omitempty"`
	Result interface{} `json:"result,omitempty"`
	Error string `json:"error,omitempty"`
}

// SubmitToolResultParams is the session.submit_tool_result request body.
type SubmitToolResultParams struct {
	ToolCallID string `json:"tool_call_id"`
	Result interface{} `json:"result"`
}

// TokenUsage reports a session's cumulative token consumption.
type TokenUsage struct {
	Prompt int `json:"prompt"`
	Completion int `json:"completion"`
	Total int `json:"total"`
}

// SessionStatusResult is the session.status reply.
type SessionStatusResult struct {
	SessionID string `json:"session_id"`
	State string `json:"state"`
	Provider string `json:"provider"`
	Model string `json:"model"`
	MessageCount int `json:"message_count"`
	TokenUsage TokenUsage `json:"token_usage"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// SwitchModelParams is the session.switch_model request body.
type SwitchModelParams struct {
	Model string `json:"model"`
}

// SwitchProviderParams is the session.switch_provider request body.
type SwitchProviderParams struct {
	Provider string `json:"provider"`
}

// TreeBranchParams is the tree.branch request body.
type TreeBranchParams struct {
	FromNodeID string `json:"from_node_id"`
	Name string `json:"name"`
}

// TreeSwitchBranchParams is the tree.switch_branch request body.
type TreeSwitchBranchParams struct {
	BranchID string `json:"branch_id"`
}

// TreeForkParams is the tree.fork request body.
type TreeForkParams struct {
	FromNodeID string `json:"from_node_id"`
}

// TreeCompactParams is the tree.compact request body.
type TreeCompactParams struct {
	Threshold int `json:"threshold"`
}

// Notification is a server-initiated, out-of-band message.
type Notification struct {
	Type string `json:"type"`
	Event string `json:"event"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// Notification events the worker may emit.
const (
	EventStatusChange = "status_change"
	EventModelChange = "model_change"
)

// ModelChangeData is the payload of an EventModelChange notification.
type ModelChangeData struct {
	Model string `json:"model"`
	Previous string `json:"previous"`
}
