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

	"axonflow/platform/synchronizer"
)

// startCadence launches (or restarts) the auto-checkpoint supervisor for
// sessionID.
func (m *Manager) startCadence(sessionID string) {
	m.cadenceMu.Lock()
	defer m.cadenceMu.Unlock()
	if cancel, ok:= m.cadence[sessionID]; ok {
 cancel()
	}
	ctx, cancel:= context.WithCancel(context.Background())
	m.cadence[sessionID] = cancel
	go m.runCadence(ctx, sessionID)
}

// stopCadence cancels sessionID's supervisor, if running.
func (m *Manager) stopCadence(sessionID string) {
	m.cadenceMu.Lock()
	defer m.cadenceMu.Unlock()
	if cancel, ok:= m.cadence[sessionID]; ok {
 cancel()
 delete(m.cadence, sessionID)
	}
}

func (m *Manager) runCadence(ctx context.Context, sessionID string) {
	ticker:= time.NewTicker(cadenceTick)
	defer ticker.Stop()
	for {
 select {
 case <-ctx.Done():
 return
 case <-ticker.C:
 m.evaluateCadence(ctx, sessionID)
 }
	}
}

// evaluateCadence implements "if session.state = active and messageCount >
// 0 and messageCount mod interval == 0, schedule an auto checkpoint"
//, honoring the 5s min-interval rule inside
// checkpointLocked.
func (m *Manager) evaluateCadence(ctx context.Context, sessionID string) {
	s, err:= m.Get(sessionID)
	if err != nil {
 return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State != StateActive || s.MessageCount <= 0 {
 return
	}
	interval:= s.Config.Persistence.CheckpointInterval
	if interval <= 0 || s.MessageCount%interval != 0 {
 return
	}
	if _, err:= m.checkpointLocked(ctx, s, synchronizer.TriggerAuto); err != nil {
 m.logger.Warn(sessionID, "", "auto-checkpoint failed", map[string]interface{}{"error": err.Error()})
	}
}
