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

	"github.com/google/uuid"

	"axonflow/platform/registry"
	"axonflow/platform/synchronizer"
)

// serializeLocked captures s's state (caller must hold s.mu) as a
// synchronizer-friendly map. It does not include the worker-side state;
// that is layered in by checkpointLocked via SerializeState.
func (s *Session) serializeLocked() map[string]interface{} {
	return map[string]interface{}{
 "id": s.ID,
 "agent_id": s.AgentID,
 "state": string(s.State),
 "instance_id": s.InstanceID,
 "root_node_id": s.RootNodeID,
 "current_node_id": s.CurrentNodeID,
 "message_count": s.MessageCount,
 "checkpoint_count": s.CheckpointCount,
 "created_at": s.CreatedAt,
 "last_activity_at": s.LastActivityAt,
 "metadata": s.Metadata,
 "auto_checkpoint": s.Config.Persistence.AutoCheckpoint,
 "checkpoint_interval": s.Config.Persistence.CheckpointInterval,
 "compact_threshold": s.Config.Persistence.CompactThreshold,
	}
}

// intFromState reads an int field that may have round-tripped through the
// synchronizer's JSON encoding as a float64.
func intFromState(state map[string]interface{}, key string) (int, bool) {
	switch v:= state[key].(type) {
	case int:
 return v, true
	case float64:
 return int(v), true
	default:
 return 0, false
	}
}

// estimateTokenCount is a cheap proxy for the checkpointed state's size,
// consistent with tree's chars/4 estimator.
func estimateTokenCount(state map[string]interface{}) int {
	n:= 0
	for k, v:= range state {
 n += len(k)
 if str, ok:= v.(string); ok {
 n += len(str)
 }
	}
	return (n + 3) / 4
}

// checkpointLocked performs the actual checkpoint (caller must hold s.mu).
// trigger=auto is rate-limited to minAutoCheckpointInterval; other
// triggers always proceed.
func (m *Manager) checkpointLocked(ctx context.Context, s *Session, trigger synchronizer.Trigger) (*Checkpoint, error) {
	if trigger == synchronizer.TriggerAuto {
 m.lastCheckpointMu.Lock()
 last, ok:= m.lastCheckpointAt[s.ID]
 m.lastCheckpointMu.Unlock()
 if ok && time.Since(last) < minAutoCheckpointInterval {
 return nil, nil
 }
	}
	if m.sync == nil {
 return nil, newError(ErrCodeCheckpointNotFound, "no synchronizer configured", nil)
	}

	state:= s.serializeLocked()
	if m.worker != nil && s.InstanceID != "" {
 if workerState, err:= m.worker.SerializeState(ctx, s.InstanceID, s.ID); err == nil {
 state["worker_state"] = workerState
 }
	}

	cp:= &synchronizer.CheckpointData{
 ID: uuid.NewString(),
 SessionID: s.ID,
 Trigger: trigger,
 State: state,
 TokenCount: estimateTokenCount(state),
 CreatedAt: time.Now().UTC(),
	}
	if _, err:= m.sync.SaveCheckpoint(ctx, cp); err != nil {
 return nil, err
	}

	s.CheckpointCount++
	s.LastCheckpointAt = cp.CreatedAt
	m.lastCheckpointMu.Lock()
	m.lastCheckpointAt[s.ID] = cp.CreatedAt
	m.lastCheckpointMu.Unlock()

	m.events.publish(Event{Kind: EventCheckpointed, SessionID: s.ID, CheckpointID: cp.ID})
	return &Checkpoint{ID: cp.ID, SessionID: cp.SessionID, Trigger: cp.Trigger, TokenCount: cp.TokenCount, CreatedAt: cp.CreatedAt}, nil
}

// Checkpoint takes an explicit checkpoint of sessionID under trigger.
func (m *Manager) Checkpoint(ctx context.Context, sessionID string, trigger synchronizer.Trigger) (*Checkpoint, error) {
	s, err:= m.Get(sessionID)
	if err != nil {
 return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State.IsTerminal() {
 return nil, newError(ErrCodeTerminal, "cannot checkpoint terminal session "+sessionID, nil)
	}
	return m.checkpointLocked(ctx, s, trigger)
}

// Restore loads checkpointID via the synchronizer, selects an instance
// (falling back to the registry if the recorded one is gone), restores on
// the worker, and marks the session active.
func (m *Manager) Restore(ctx context.Context, checkpointID string) (*Session, error) {
	if m.sync == nil {
 return nil, newError(ErrCodeCheckpointNotFound, "no synchronizer configured", nil)
	}
	cp, err:= m.sync.LoadCheckpoint(ctx, checkpointID)
	if err != nil {
 return nil, newError(ErrCodeCheckpointNotFound, "checkpoint not found: "+checkpointID, err)
	}

	s:= newSession(cp.SessionID, Config{})
	if v, ok:= cp.State["agent_id"].(string); ok {
 s.AgentID = v
	}
	if v, ok:= cp.State["instance_id"].(string); ok {
 s.InstanceID = v
	}
	if v, ok:= cp.State["root_node_id"].(string); ok {
 s.RootNodeID = v
	}
	if v, ok:= cp.State["current_node_id"].(string); ok {
 s.CurrentNodeID = v
	}
	if v, ok:= intFromState(cp.State, "message_count"); ok {
 s.MessageCount = v
	}
	if v, ok:= intFromState(cp.State, "checkpoint_count"); ok {
 s.CheckpointCount = v
	}
	if v, ok:= cp.State["auto_checkpoint"].(bool); ok {
 s.Config.Persistence.AutoCheckpoint = v
	}
	if v, ok:= intFromState(cp.State, "checkpoint_interval"); ok {
 s.Config.Persistence.CheckpointInterval = v
	}
	if v, ok:= intFromState(cp.State, "compact_threshold"); ok {
 s.Config.Persistence.CompactThreshold = v
	}

	inst, err:= m.registry.Get(s.InstanceID)
	if err != nil || inst.Health == registry.HealthUnhealthy {
 replacement, err:= m.selectInstance(s.Config, nil)
 if err != nil {
 return nil, err
 }
 s.InstanceID = replacement.ID
	}

	if m.worker != nil {
 workerState, _:= cp.State["worker_state"].(map[string]interface{})
 if _, err:= m.worker.RestoreState(ctx, s.InstanceID, workerState); err != nil {
 s.State = StateFailed
 m.registerLocked(s)
 return nil, newError(ErrCodeInitFailed, "worker-side restore failed for session "+s.ID, err)
 }
	}

	s.State = StateActive
	s.LastActivityAt = time.Now().UTC()
	m.registerLocked(s)
	if s.Config.Persistence.AutoCheckpoint {
 m.startCadence(s.ID)
	}
	return s, nil
}
