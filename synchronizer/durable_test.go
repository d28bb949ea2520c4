// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package synchronizer

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestDurableTierSaveCheckpoint(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO sync_checkpoints").
		WithArgs("cp-1", "sess-1", "manual", sqlmock.AnyArg(), 42, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	d := newDurableTier(db)
	cp := &CheckpointData{
		ID: "cp-1", SessionID: "sess-1", Trigger: TriggerManual,
		State: map[string]interface{}{"x": float64(1)}, TokenCount: 42, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, d.saveCheckpoint(context.Background(), cp))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDurableTierLoadCheckpointNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, session_id, trigger, state, token_count, created_at FROM sync_checkpoints").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	d := newDurableTier(db)
	_, err = d.loadCheckpoint(context.Background(), "missing")
	require.Error(t, err)
}

func TestDurableTierListCheckpointsOrderedDesc(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	payload, err := EncodeState(map[string]interface{}{})
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"id", "session_id", "trigger", "state", "token_count", "created_at"}).
		AddRow("cp-2", "sess-1", "auto", payload, 0, time.Now().UTC()).
		AddRow("cp-1", "sess-1", "auto", payload, 0, time.Now().UTC().Add(-time.Hour))

	mock.ExpectQuery("SELECT id, session_id, trigger, state, token_count, created_at FROM sync_checkpoints WHERE session_id").
		WithArgs("sess-1").
		WillReturnRows(rows)

	d := newDurableTier(db)
	got, err := d.listCheckpoints(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "cp-2", got[0].ID)
}

func TestDurableTierCleanupOldCheckpointsReturnsRowsAffected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM sync_checkpoints").
		WithArgs("sess-1", 5).
		WillReturnResult(sqlmock.NewResult(0, 3))

	d := newDurableTier(db)
	n, err := d.cleanupOldCheckpoints(context.Background(), "sess-1", 5)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestDurableTierSessionStateRoundTripViaMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO sync_session_states").
		WithArgs("sess-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	d := newDurableTier(db)
	require.NoError(t, d.saveSessionState(context.Background(), "sess-1", map[string]interface{}{"a": float64(1)}))

	payload, err := EncodeState(map[string]interface{}{"a": float64(1)})
	require.NoError(t, err)
	mock.ExpectQuery("SELECT state FROM sync_session_states").
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow(payload))

	got, err := d.loadSessionState(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"a": float64(1)}, got)
}
