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

// Package session is the lifecycle state machine for agent sessions:
// create/pause/resume/terminate, checkpoint cadence, restore, and
// migration with verify-and-rollback.
package session

import (
	"sync"
	"time"

	"axonflow/platform/synchronizer"
)

// State is a Session's lifecycle state.
type State string

const (
	StateCreating State = "creating"
	StateActive State = "active"
	StatePaused State = "paused"
	StateResuming State = "resuming"
	StateTerminating State = "terminating"
	StateTerminated State = "terminated"
	StateFailed State = "failed"
)

// transitions is the closed set of legal state edges.
var transitions = map[State]map[State]bool{
	StateCreating: {StateActive: true, StateFailed: true},
	StateActive: {StatePaused: true, StateTerminating: true, StateFailed: true},
	StatePaused: {StateResuming: true, StateTerminating: true, StateFailed: true},
	StateResuming: {StateActive: true, StateFailed: true},
	StateTerminating: {StateTerminated: true, StateFailed: true},
}

// IsTerminal reports whether s cannot transition further.
func (s State) IsTerminal() bool {
	return s == StateTerminated || s == StateFailed
}

func (s State) canTransitionTo(next State) bool {
	edges, ok:= transitions[s]
	if !ok {
 return false
	}
	return edges[next]
}

// PersistenceConfig controls checkpoint cadence and history compaction.
// Zero-valued fields are replaced by normalizeConfig's defaults.
type PersistenceConfig struct {
	AutoCheckpoint bool
	CheckpointInterval int
	CompactThreshold int
}

// Config is the caller-supplied input to Create.
type Config struct {
	AgentID string
	Provider string
	Model string
	Tools []string
	SystemPrompt string
	WorktreePath string
	InheritContext bool
	Persistence PersistenceConfig
	RequiredCapabilities []string
	PreferredProvider string
	Metadata map[string]interface{}
}

// disableAutoCheckpointKey lets a caller opt out of the default cadence,
// since the zero value of PersistenceConfig.AutoCheckpoint (false) is
// indistinguishable from "unset".
const disableAutoCheckpointKey = "disable_auto_checkpoint"

func normalizeConfig(cfg Config) Config {
	if cfg.Persistence.CheckpointInterval == 0 {
 cfg.Persistence.CheckpointInterval = 10
	}
	if cfg.Persistence.CompactThreshold == 0 {
 cfg.Persistence.CompactThreshold = 4000
	}
	cfg.Persistence.AutoCheckpoint = true
	if disabled, ok:= cfg.Metadata[disableAutoCheckpointKey].(bool); ok && disabled {
 cfg.Persistence.AutoCheckpoint = false
	}
	return cfg
}

// ToolCallState tracks in-flight and completed tool calls for a session.
type ToolCallState struct {
	Pending map[string]interface{}
	Completed map[string]interface{}
	Current string
}

// Session is a single agent conversation's lifecycle record, owned by the
// Manager.
type Session struct {
	ID string
	AgentID string
	State State
	InstanceID string
	Config Config
	RootNodeID string
	CurrentNodeID string
	ToolCalls ToolCallState
	MessageCount int
	CheckpointCount int
	CreatedAt time.Time
	LastActivityAt time.Time
	LastCheckpointAt time.Time
	Metadata map[string]interface{}

	mu sync.Mutex
}

func newSession(id string, cfg Config) *Session {
	now:= time.Now().UTC()
	return &Session{
 ID: id,
 AgentID: cfg.AgentID,
 State: StateCreating,
 Config: cfg,
 ToolCalls: ToolCallState{Pending: map[string]interface{}{}, Completed: map[string]interface{}{}},
 CreatedAt: now,
 LastActivityAt: now,
 Metadata: map[string]interface{}{},
	}
}

// transition moves the session to next, returning an error if the edge is
// illegal or the session is already terminal.
func (s *Session) transition(next State) error {
	if s.State.IsTerminal() {
 return newError(ErrCodeTerminal, "session "+s.ID+" is terminal ("+string(s.State)+")", nil)
	}
	if !s.State.canTransitionTo(next) {
 return newError(ErrCodeInvalidTransition, "illegal transition "+string(s.State)+" -> "+string(next)+" for session "+s.ID, nil)
	}
	s.State = next
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// EventKind is one of the Session Manager's emitted event types.
type EventKind string

const (
	EventStateChanged EventKind = "session.state_changed"
	EventCheckpointed EventKind = "session.checkpointed"
	EventFailed EventKind = "session.failed"
)

// Event is a typed record emitted by the Manager.
type Event struct {
	Kind EventKind
	SessionID string
	StateBefore State
	StateAfter State
	CheckpointID string
	Reason string
	Err error
}

// Checkpoint is the Manager's lightweight view of a saved checkpoint,
// mirroring synchronizer.CheckpointData without the full state payload.
type Checkpoint struct {
	ID string
	SessionID string
	Trigger synchronizer.Trigger
	TokenCount int
	CreatedAt time.Time
}
