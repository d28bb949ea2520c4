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

package synchronizer

import (
	"context"
	"database/sql"
)

// durableTier is the Synchronizer's authoritative store, backed by
// PostgreSQL via database/sql + lib/pq, following connectors/postgres's
// connection-pool conventions.
type durableTier struct {
	db *sql.DB
}

func newDurableTier(db *sql.DB) *durableTier {
	return &durableTier{db: db}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sync_checkpoints (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	trigger TEXT NOT NULL,
	state JSONB NOT NULL,
	token_count INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS sync_checkpoints_session_idx ON sync_checkpoints (session_id, created_at DESC);

CREATE TABLE IF NOT EXISTS sync_session_states (
	session_id TEXT PRIMARY KEY,
	state JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sync_tree_states (
	session_id TEXT PRIMARY KEY,
	tree JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// EnsureSchema creates the durable tier's tables if they do not exist.
func (d *durableTier) EnsureSchema(ctx context.Context) error {
	_, err:= d.db.ExecContext(ctx, schemaSQL)
	return err
}

func (d *durableTier) saveCheckpoint(ctx context.Context, cp *CheckpointData) error {
	payload, err:= EncodeState(cp.State)
	if err != nil {
 return err
	}
	const q = `
	INSERT INTO sync_checkpoints (id, session_id, trigger, state, token_count, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, token_count = EXCLUDED.token_count`
	_, err = d.db.ExecContext(ctx, q, cp.ID, cp.SessionID, string(cp.Trigger), payload, cp.TokenCount, cp.CreatedAt)
	return err
}

func (d *durableTier) loadCheckpoint(ctx context.Context, id string) (*CheckpointData, error) {
	const q = `SELECT id, session_id, trigger, state, token_count, created_at FROM sync_checkpoints WHERE id = $1`
	var (
 cp CheckpointData
 trigger string
 payload []byte
	)
	err:= d.db.QueryRowContext(ctx, q, id).Scan(&cp.ID, &cp.SessionID, &trigger, &payload, &cp.TokenCount, &cp.CreatedAt)
	if err != nil {
 return nil, err
	}
	cp.Trigger = Trigger(trigger)
	state, err:= DecodeState(payload)
	if err != nil {
 return nil, err
	}
	cp.State = state
	return &cp, nil
}

func (d *durableTier) listCheckpoints(ctx context.Context, sessionID string) ([]*CheckpointData, error) {
	const q = `SELECT id, session_id, trigger, state, token_count, created_at FROM sync_checkpoints WHERE session_id = $1 ORDER BY created_at DESC`
	rows, err:= d.db.QueryContext(ctx, q, sessionID)
	if err != nil {
 return nil, err
	}
	defer rows.Close()

	var out []*CheckpointData
	for rows.Next() {
 var (
 cp CheckpointData
 trigger string
 payload []byte
 )
 if err:= rows.Scan(&cp.ID, &cp.SessionID, &trigger, &payload, &cp.TokenCount, &cp.CreatedAt); err != nil {
 return nil, err
 }
 cp.Trigger = Trigger(trigger)
 state, err:= DecodeState(payload)
 if err != nil {
 return nil, err
 }
 cp.State = state
 out = append(out, &cp)
	}
	return out, nil
}

func (d *durableTier) deleteCheckpoint(ctx context.Context, id string) error {
	_, err:= d.db.ExecContext(ctx, `DELETE FROM sync_checkpoints WHERE id = $1`, id)
	return err
}

func (d *durableTier) saveSessionState(ctx context.Context, sessionID string, state map[string]interface{}) error {
	payload, err:= EncodeState(state)
	if err != nil {
 return err
	}
	const q = `
	INSERT INTO sync_session_states (session_id, state, updated_at)
	VALUES ($1, $2, now())
	ON CONFLICT (session_id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`
	_, err = d.db.ExecContext(ctx, q, sessionID, payload)
	return err
}

func (d *durableTier) loadSessionState(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	var payload []byte
	err:= d.db.QueryRowContext(ctx, `SELECT state FROM sync_session_states WHERE session_id = $1`, sessionID).Scan(&payload)
	if err != nil {
 return nil, err
	}
	return DecodeState(payload)
}

func (d *durableTier) saveTreeState(ctx context.Context, sessionID string, tree map[string]interface{}) error {
	payload, err:= EncodeState(tree)
	if err != nil {
 return err
	}
	const q = `
	INSERT INTO sync_tree_states (session_id, tree, updated_at)
	VALUES ($1, $2, now())
	ON CONFLICT (session_id) DO UPDATE SET tree = EXCLUDED.tree, updated_at = now()`
	_, err = d.db.ExecContext(ctx, q, sessionID, payload)
	return err
}

func (d *durableTier) loadTreeState(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	var payload []byte
	err:= d.db.QueryRowContext(ctx, `SELECT tree FROM sync_tree_states WHERE session_id = $1`, sessionID).Scan(&payload)
	if err != nil {
 return nil, err
	}
	return DecodeState(payload)
}

func (d *durableTier) cleanupOldCheckpoints(ctx context.Context, sessionID string, keepCount int) (int, error) {
	const q = `
	DELETE FROM sync_checkpoints
	WHERE id IN (
 SELECT id FROM sync_checkpoints
 WHERE session_id = $1
 ORDER BY created_at DESC
 OFFSET $2
	)`
	res, err:= d.db.ExecContext(ctx, q, sessionID, keepCount)
	if err != nil {
 return 0, err
	}
	affected, err:= res.RowsAffected()
	if err != nil {
 return 0, err
	}
	return int(affected), nil
}
