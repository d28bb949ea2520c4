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

package session

import (
	"context"
	"time"
)

// InitRequest is the worker-side session.init payload.
type InitRequest struct {
	Provider string
	Model string
	Tools []string
	SystemPrompt string
	WorktreePath string
	InheritContext bool
}

// InitResponse is the worker's session.init reply.
type InitResponse struct {
	WorkerSessionID string
	Provider string
	Model string
	Tools []string
	CreatedAt time.Time
	WorktreePath string
}

// StatusResponse is the worker's session.status reply.
type StatusResponse struct {
	WorkerSessionID string
	State string
	Provider string
	Model string
	MessageCount int
	LastActivityAt time.Time
}

// WorkerClient is the subset of the Pi worker RPC surface the Session
// Manager drives directly. The transport is
// implemented by the workerrpc package; the Manager depends only on this
// interface so it can be exercised against a fake in tests.
type WorkerClient interface {
	// Init starts a new worker-side session on instanceID.
	Init(ctx context.Context, instanceID string, req InitRequest) (*InitResponse, error)
	// Close gracefully ends the worker-side session.
	Close(ctx context.Context, instanceID, workerSessionID string) error
	// Status polls the worker-side session's current state.
	Status(ctx context.Context, instanceID, workerSessionID string) (*StatusResponse, error)
	// RestoreState re-hydrates a worker-side session from a serialized
	// checkpoint state on instanceID, returning the resulting worker
	// session id.
	RestoreState(ctx context.Context, instanceID string, state map[string]interface{}) (string, error)
	// SerializeState captures the current worker-side session state for
	// checkpointing.
	SerializeState(ctx context.Context, instanceID, workerSessionID string) (map[string]interface{}, error)
	// VerifyState confirms the worker-side session's serialized state
	// matches want, used by migrate's post-restore verify step.
	VerifyState(ctx context.Context, instanceID, workerSessionID string, want map[string]interface{}) (bool, error)
}
