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
	"sync"

	"axonflow/platform/provider"
)

// Storage persists Instance configuration across process restarts. The
// interface shape is grounded on orchestrator/llm/registry.go's Storage
// interface (SaveProvider/GetProvider/DeleteProvider/ListProviders),
// generalized from LLM-provider configs to worker Instances.
type Storage interface {
	SaveInstance(ctx context.Context, cfg InstanceConfig) error
	GetInstance(ctx context.Context, id string) (*InstanceConfig, error)
	DeleteInstance(ctx context.Context, id string) error
	ListInstances(ctx context.Context) ([]InstanceConfig, error)
}

// MemoryStorage is an in-process Storage used by default and in tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	configs map[string]InstanceConfig
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{configs: make(map[string]InstanceConfig)}
}

func (m *MemoryStorage) SaveInstance(_ context.Context, cfg InstanceConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfg.ID] = cfg
	return nil
}

func (m *MemoryStorage) GetInstance(_ context.Context, id string) (*InstanceConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[id]
	if !ok {
		return nil, newError(ErrCodeNotFound, fmt.Sprintf("instance %s not found in storage", id), nil)
	}
	return &cfg, nil
}

func (m *MemoryStorage) DeleteInstance(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.configs, id)
	return nil
}

func (m *MemoryStorage) ListInstances(_ context.Context) ([]InstanceConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]InstanceConfig, 0, len(m.configs))
	for _, cfg := range m.configs {
		out = append(out, cfg)
	}
	return out, nil
}

// postgresRow is the JSON-serialized shape persisted in the `instances`
// table's config column, grounded on connectors/postgres's upsert style.
type postgresRow struct {
	Capabilities []provider.Capability `json:"capabilities"`
	Region       string                `json:"region"`
	MaxConcurrent int                  `json:"max_concurrent"`
	Auth         AuthDescriptor        `json:"auth"`
	Metadata     map[string]interface{} `json:"metadata"`
	Tags         []string              `json:"tags"`
}

// PostgresStorage persists instance configs to a `instances` table via
// database/sql + lib/pq, mirroring connectors/postgres's connection-pool
// conventions and connectors/registry/postgres_storage.go's upsert shape.
type PostgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage wraps an already-opened *sql.DB (opened with the
// "postgres" driver registered by github.com/lib/pq).
func NewPostgresStorage(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

const createInstancesTableSQL = `
CREATE TABLE IF NOT EXISTS instances (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	provider_id TEXT NOT NULL,
	model_id TEXT NOT NULL,
	deployment_mode TEXT NOT NULL,
	endpoint TEXT NOT NULL,
	config JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// EnsureSchema creates the instances table if it does not already exist.
func (p *PostgresStorage) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, createInstancesTableSQL)
	return err
}

func (p *PostgresStorage) SaveInstance(ctx context.Context, cfg InstanceConfig) error {
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
	VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		provider_id = EXCLUDED.provider_id,
		model_id = EXCLUDED.model_id,
		deployment_mode = EXCLUDED.deployment_mode,
		endpoint = EXCLUDED.endpoint,
		config = EXCLUDED.config,
		updated_at = now()`

	_, err = p.db.ExecContext(ctx, upsert, cfg.ID, cfg.Name, string(cfg.ProviderID), cfg.ModelID, string(cfg.DeploymentMode), cfg.Endpoint, payload)
	if err != nil {
		return newError(ErrCodeStorageError, "failed to upsert instance", err)
	}
	return nil
}

func (p *PostgresStorage) GetInstance(ctx context.Context, id string) (*InstanceConfig, error) {
	const q = `SELECT id, name, provider_id, model_id, deployment_mode, endpoint, config FROM instances WHERE id = $1`
	var (
		cfg     InstanceConfig
		pid, dm string
		payload []byte
	)
	err := p.db.QueryRowContext(ctx, q, id).Scan(&cfg.ID, &cfg.Name, &pid, &cfg.ModelID, &dm, &cfg.Endpoint, &payload)
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

func (p *PostgresStorage) DeleteInstance(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM instances WHERE id = $1`, id)
	if err != nil {
		return newError(ErrCodeStorageError, "failed to delete instance", err)
	}
	return nil
}

func (p *PostgresStorage) ListInstances(ctx context.Context) ([]InstanceConfig, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id FROM instances`)
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
		cfg, err := p.GetInstance(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, *cfg)
	}
	return out, nil
}
