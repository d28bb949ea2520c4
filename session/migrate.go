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

	"axonflow/platform/registry"
	"axonflow/platform/synchronizer"
)

// Migrate moves sessionID's worker-side execution to targetInstanceID,
// verifying the transferred state and rolling back to the source instance
// on verify failure.
func (m *Manager) Migrate(ctx context.Context, sessionID, targetInstanceID string) error {
	s, err:= m.Get(sessionID)
	if err != nil {
 return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return m.migrateLocked(ctx, s, targetInstanceID)
}

// migrateLocked performs the migration; caller must hold s.mu.
func (m *Manager) migrateLocked(ctx context.Context, s *Session, targetInstanceID string) error {
	target, err:= m.registry.Get(targetInstanceID)
	if err != nil {
 return newError(ErrCodeNoInstanceAvailable, "migration target unknown: "+targetInstanceID, err)
	}
	if target.Health == registry.HealthUnhealthy {
 return newError(ErrCodeNoInstanceAvailable, "migration target unhealthy: "+targetInstanceID, nil)
	}

	sourceInstanceID:= s.InstanceID

	if _, err:= m.checkpointLocked(ctx, s, synchronizer.TriggerPreMigrate); err != nil {
 return newError(ErrCodeMigrationFailed, "pre-migration checkpoint failed for session "+s.ID, err)
	}
	m.stopCadence(s.ID)

	state, err:= m.worker.SerializeState(ctx, sourceInstanceID, s.ID)
	if err != nil {
 return m.failMigration(s, sourceInstanceID, targetInstanceID, err)
	}

	s.InstanceID = targetInstanceID
	if _, err:= m.worker.RestoreState(ctx, targetInstanceID, state); err != nil {
 return m.rollbackMigration(ctx, s, sourceInstanceID, targetInstanceID, err)
	}

	ok, err:= m.worker.VerifyState(ctx, targetInstanceID, s.ID, state)
	if err != nil || !ok {
 var cause error
 if err != nil {
 cause = err
 } else {
 cause = newError(ErrCodeMigrationFailed, "verify reported state mismatch", nil)
 }
 return m.rollbackMigration(ctx, s, sourceInstanceID, targetInstanceID, cause)
	}

	before:= s.State
	if err:= s.transition(StateActive); err != nil {
 return err
	}
	m.events.publish(Event{Kind: EventStateChanged, SessionID: s.ID, StateBefore: before, StateAfter: StateActive})
	m.startCadence(s.ID)
	return nil
}

// rollbackMigration reverts s.InstanceID to sourceInstanceID and attempts a
// worker-side restore there before surfacing a MigrationError. Cadence is
// not restarted if the operation failed, and the resulting state is
// resuming or active depending on rollback success.
func (m *Manager) rollbackMigration(ctx context.Context, s *Session, sourceInstanceID, targetInstanceID string, cause error) error {
	s.InstanceID = sourceInstanceID
	_, restoreErr:= m.worker.RestoreState(ctx, sourceInstanceID, nil)
	rolledBack:= restoreErr == nil

	if rolledBack {
 _ = s.transition(StateActive)
	} else {
 s.State = StateFailed
	}

	migErr:= &MigrationError{
 SessionID: s.ID,
 FromInstanceID: sourceInstanceID,
 ToInstanceID: targetInstanceID,
 RolledBack: rolledBack,
 RollbackErr: restoreErr,
 Cause: cause,
	}
	m.events.publish(Event{Kind: EventFailed, SessionID: s.ID, Reason: migErr.Error(), Err: migErr})
	return migErr
}

func (m *Manager) failMigration(s *Session, sourceInstanceID, targetInstanceID string, cause error) error {
	migErr:= &MigrationError{
 SessionID: s.ID,
 FromInstanceID: sourceInstanceID,
 ToInstanceID: targetInstanceID,
 RolledBack: true,
 Cause: cause,
	}
	m.events.publish(Event{Kind: EventFailed, SessionID: s.ID, Reason: migErr.Error(), Err: migErr})
	return migErr
}
