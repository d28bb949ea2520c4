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
	"sync"
	"time"

	"github.com/google/uuid"

	"axonflow/platform/provider"
	"axonflow/platform/registry"
	"axonflow/platform/shared/logger"
	"axonflow/platform/synchronizer"
	"axonflow/platform/tree"
)

// minAutoCheckpointInterval is the per-session floor between
// trigger=auto checkpoints.
const minAutoCheckpointInterval = 5 * time.Second

// cadenceTick is how often the auto-checkpoint supervisor wakes to
// evaluate each active session.
const cadenceTick = 5 * time.Second

// Manager drives the session lifecycle state machine: create, pause,
// resume, terminate, checkpoint, restore, and migrate.
type Manager struct {
	mu sync.RWMutex
	sessions map[string]*Session

	registry *registry.Registry
	sync *synchronizer.Synchronizer
	tree *tree.Manager
	worker WorkerClient
	logger *logger.Logger
	events *eventBus

	cadenceMu sync.Mutex
	cadence map[string]context.CancelFunc

	lastCheckpointMu sync.Mutex
	lastCheckpointAt map[string]time.Time
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithRegistry sets the Instance Registry used for instance selection.
func WithRegistry(r *registry.Registry) Option {
	return func(m *Manager) { m.registry = r }
}

// WithSynchronizer sets the checkpoint/state persistence layer.
func WithSynchronizer(s *synchronizer.Synchronizer) Option {
	return func(m *Manager) { m.sync = s }
}

// WithTreeManager sets the conversation tree manager.
func WithTreeManager(t *tree.Manager) Option {
	return func(m *Manager) { m.tree = t }
}

// WithWorkerClient sets the Pi worker RPC client.
func WithWorkerClient(w WorkerClient) Option {
	return func(m *Manager) { m.worker = w }
}

// WithLogger sets the structured logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New constructs a Manager.
func New(opts...Option) *Manager {
	m:= &Manager{
 sessions: make(map[string]*Session),
 cadence: make(map[string]context.CancelFunc),
 lastCheckpointAt: make(map[string]time.Time),
 events: newEventBus(),
	}
	for _, opt:= range opts {
 opt(m)
	}
	if m.logger == nil {
 m.logger = logger.New("session")
	}
	if m.registry == nil {
 m.registry = registry.New()
	}
	return m
}

// Subscribe returns a channel of future Manager events.
func (m *Manager) Subscribe(buffer int) <-chan Event {
	return m.events.Subscribe(buffer)
}

// Get returns the in-memory Session record for id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok:= m.sessions[id]
	if !ok {
 return nil, newError(ErrCodeNotFound, "session not found: "+id, nil)
	}
	return s, nil
}

func (m *Manager) selectInstance(cfg Config, exclude map[string]struct{}) (*registry.Instance, error) {
	caps:= make([]provider.Capability, 0, len(cfg.RequiredCapabilities))
	for _, c:= range cfg.RequiredCapabilities {
 caps = append(caps, provider.Capability(c))
	}
	inst, err:= m.registry.SelectInstance(registry.SelectionCriteria{
 PreferredProvider: provider.ID(cfg.PreferredProvider),
 RequiredCapabilities: caps,
 Exclude: exclude,
 Strategy: registry.StrategyLeastLoaded,
	})
	if err != nil {
 return nil, newError(ErrCodeNoInstanceAvailable, "no instance available for session", err)
	}
	return inst, nil
}

// Create starts a new session: selects an instance, initializes it
// worker-side, and (if enabled) starts the auto-checkpoint cadence.
func (m *Manager) Create(ctx context.Context, cfg Config) (*Session, error) {
	cfg = normalizeConfig(cfg)
	id:= uuid.NewString()
	s:= newSession(id, cfg)

	inst, err:= m.selectInstance(cfg, nil)
	if err != nil {
 s.State = StateFailed
 m.registerLocked(s)
 m.events.publish(Event{Kind: EventFailed, SessionID: id, Reason: err.Error(), Err: err})
 return nil, err
	}
	s.InstanceID = inst.ID

	resp, err:= m.worker.Init(ctx, inst.ID, InitRequest{
 Provider: cfg.Provider,
 Model: cfg.Model,
 Tools: cfg.Tools,
 SystemPrompt: cfg.SystemPrompt,
 WorktreePath: cfg.WorktreePath,
 InheritContext: cfg.InheritContext,
	})
	if err != nil {
 s.State = StateFailed
 m.registerLocked(s)
 wrapped:= newError(ErrCodeInitFailed, "worker-side init failed for session "+id, err)
 m.events.publish(Event{Kind: EventFailed, SessionID: id, Reason: wrapped.Error(), Err: wrapped})
 return nil, wrapped
	}
	_ = resp

	if m.tree != nil {
 t, err:= m.tree.CreateTree(ctx, id, cfg.SystemPrompt)
 if err == nil {
 s.RootNodeID = t.RootID
 s.CurrentNodeID = t.CurrentNodeID
 }
	}

	before:= s.State
	if err:= s.transition(StateActive); err != nil {
 return nil, err
	}
	m.registerLocked(s)
	m.events.publish(Event{Kind: EventStateChanged, SessionID: id, StateBefore: before, StateAfter: StateActive})

	if cfg.Persistence.AutoCheckpoint {
 m.startCadence(id)
	}
	return s, nil
}

func (m *Manager) registerLocked(s *Session) {
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
}

// Pause attempts a best-effort pre-pause checkpoint, stops the cadence,
// and transitions the session to paused.
func (m *Manager) Pause(ctx context.Context, sessionID string) error {
	s, err:= m.Get(sessionID)
	if err != nil {
 return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err:= m.checkpointLocked(ctx, s, synchronizer.TriggerPrePause); err != nil {
 m.logger.Warn(sessionID, "", "pre-pause checkpoint failed", map[string]interface{}{"error": err.Error()})
	}
	m.stopCadence(sessionID)

	before:= s.State
	if err:= s.transition(StatePaused); err != nil {
 return err
	}
	m.events.publish(Event{Kind: EventStateChanged, SessionID: sessionID, StateBefore: before, StateAfter: StatePaused})
	return nil
}

// Resume transitions a paused session back to active, migrating to a new
// instance first if the original is missing or unhealthy.
func (m *Manager) Resume(ctx context.Context, sessionID string) error {
	s, err:= m.Get(sessionID)
	if err != nil {
 return err
	}
	s.mu.Lock()
	before:= s.State
	if err:= s.transition(StateResuming); err != nil {
 s.mu.Unlock()
 return err
	}
	s.mu.Unlock()
	m.events.publish(Event{Kind: EventStateChanged, SessionID: sessionID, StateBefore: before, StateAfter: StateResuming})

	inst, err:= m.registry.Get(s.InstanceID)
	needsMigration:= err != nil || inst.Health == registry.HealthUnhealthy
	if needsMigration {
 target, err:= m.selectInstance(s.Config, map[string]struct{}{s.InstanceID: {}})
 if err != nil {
 s.mu.Lock()
 s.State = StateFailed
 s.mu.Unlock()
 m.events.publish(Event{Kind: EventFailed, SessionID: sessionID, Reason: err.Error(), Err: err})
 return err
 }
 s.mu.Lock()
 defer s.mu.Unlock()
 return m.migrateLocked(ctx, s, target.ID)
	}

	state, err:= m.worker.SerializeState(ctx, s.InstanceID, sessionID)
	if err == nil {
 _, _ = m.worker.RestoreState(ctx, s.InstanceID, state)
	}

	s.mu.Lock()
	before = s.State
	terr:= s.transition(StateActive)
	s.mu.Unlock()
	if terr != nil {
 return terr
	}
	m.events.publish(Event{Kind: EventStateChanged, SessionID: sessionID, StateBefore: before, StateAfter: StateActive})
	if s.Config.Persistence.AutoCheckpoint {
 m.startCadence(sessionID)
	}
	return nil
}

// TerminateOptions controls Terminate's final-checkpoint behavior.
type TerminateOptions struct {
	FinalCheckpoint bool
}

// Terminate releases a session's resources, optionally taking a final
// checkpoint first. Idempotent for already-terminated sessions.
func (m *Manager) Terminate(ctx context.Context, sessionID string, opts TerminateOptions) error {
	s, err:= m.Get(sessionID)
	if err != nil {
 return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State.IsTerminal() {
 m.logger.Warn(sessionID, "", "terminate called on already-terminal session", map[string]interface{}{"state": string(s.State)})
 return nil
	}

	before:= s.State
	if before != StateTerminating {
 if err:= s.transition(StateTerminating); err != nil {
 return err
 }
 m.events.publish(Event{Kind: EventStateChanged, SessionID: sessionID, StateBefore: before, StateAfter: StateTerminating})
	}

	if opts.FinalCheckpoint {
 if _, err:= m.checkpointLocked(ctx, s, synchronizer.TriggerFinal); err != nil {
 m.logger.Warn(sessionID, "", "final checkpoint failed", map[string]interface{}{"error": err.Error()})
 }
	}

	m.stopCadence(sessionID)
	if err:= m.worker.Close(ctx, s.InstanceID, sessionID); err != nil {
 m.logger.Warn(sessionID, "", "worker-side close failed", map[string]interface{}{"error": err.Error()})
	}

	before = s.State
	if err:= s.transition(StateTerminated); err != nil {
 return err
	}
	m.events.publish(Event{Kind: EventStateChanged, SessionID: sessionID, StateBefore: before, StateAfter: StateTerminated})
	return nil
}
