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

package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"axonflow/platform/provider"
)

// MySQLStorage is a Storage implementation for deployments that run their
// durable instance store on MySQL instead of Postgres. It persists the same
// shape PostgresStorage does, behind the same interface.
type MySQLStorage struct {
	db *sql.DB
}

// NewMySQLStorage wraps an already-opened *sql.DB (opened with the "mysql"
// driver registered by github.com/go-sql-driver/mysql).
func NewMySQLStorage(db *sql.DB) *MySQLStorage {
	return &MySQLStorage{db: db}
}

const createInstancesTableMySQL = `
CREATE TABLE IF NOT EXISTS instances (
	id VARCHAR(128) PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	provider_id VARCHAR(128) NOT NULL,
	model_id VARCHAR(255) NOT NULL,
	deployment_mode VARCHAR(64) NOT NULL,
	endpoint TEXT NOT NULL,
	config JSON NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`

// EnsureSchema creates the instances table if it does not already exist.
func (m *MySQLStorage) EnsureSchema(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, createInstancesTableMySQL)
	return err
}

func (m *MySQLStorage) SaveInstance(ctx context.Context, cfg InstanceConfig) error {
	row := postgresRow{
		Capabilities:  cfg.Capabilities,
		Region:        cfg.Region,
		MaxConcurrent: cfg.MaxConcurrent,
		Auth:          cfg.Auth,
		Metadata:      cfg.Metadata,
		Tags:          cfg.Tags,
	}
	payload, err := json.Marshal(row)
	if err != nil {
		return newError(ErrCodeStorageError, "failed to marshal instance config", err)
	}

	const upsert = `
	INSERT INTO instances (id, name, provider_id, model_id, deployment_mode, endpoint, config, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON DUPLICATE KEY UPDATE
		name = VALUES(name),
		provider_id = VALUES(provider_id),
		model_id = VALUES(model_id),
		deployment_mode = VALUES(deployment_mode),
		endpoint = VALUES(endpoint),
		config = VALUES(config),
		updated_at = CURRENT_TIMESTAMP`

	_, err = m.db.ExecContext(ctx, upsert, cfg.ID, cfg.Name, string(cfg.ProviderID), cfg.ModelID, string(cfg.DeploymentMode), cfg.Endpoint, payload)
	if err != nil {
		return newError(ErrCodeStorageError, "failed to upsert instance", err)
	}
	return nil
}

func (m *MySQLStorage) GetInstance(ctx context.Context, id string) (*InstanceConfig, error) {
	const q = `SELECT id, name, provider_id, model_id, deployment_mode, endpoint, config FROM instances WHERE id = ?`
	var (
		cfg     InstanceConfig
		pid, dm string
		payload []byte
	)
	err := m.db.QueryRowContext(ctx, q, id).Scan(&cfg.ID, &cfg.Name, &pid, &cfg.ModelID, &dm, &cfg.Endpoint, &payload)
	if err == sql.ErrNoRows {
		return nil, newError(ErrCodeNotFound, fmt.Sprintf("instance %s not found in storage", id), nil)
	}
	if err != nil {
		return nil, newError(ErrCodeStorageError, "failed to query instance", err)
	}
	cfg.ProviderID = provider.ID(pid)
	cfg.DeploymentMode = DeploymentMode(dm)

	var row postgresRow
	if err := json.Unmarshal(payload, &row); err != nil {
		return nil, newError(ErrCodeStorageError, "failed to unmarshal instance config", err)
	}
	cfg.Capabilities = row.Capabilities
	cfg.Region = row.Region
	cfg.MaxConcurrent = row.MaxConcurrent
	cfg.Auth = row.Auth
	cfg.Metadata = row.Metadata
	cfg.Tags = row.Tags
	return &cfg, nil
}

func (m *MySQLStorage) DeleteInstance(ctx context.Context, id string) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM instances WHERE id = ?`, id)
	if err != nil {
		return newError(ErrCodeStorageError, "failed to delete instance", err)
	}
	return nil
}

func (m *MySQLStorage) ListInstances(ctx context.Context) ([]InstanceConfig, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT id FROM instances`)
	if err != nil {
		return nil, newError(ErrCodeStorageError, "failed to list instances", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, newError(ErrCodeStorageError, "failed to scan instance id", err)
		}
		ids = append(ids, id)
	}

	out := make([]InstanceConfig, 0, len(ids))
	for _, id := range ids {
		cfg, err := m.GetInstance(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, *cfg)
	}
	return out, nil
}
