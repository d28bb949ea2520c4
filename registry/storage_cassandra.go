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
	"encoding/json"
	"fmt"

	"github.com/gocql/gocql"

	"axonflow/platform/provider"
)

// CassandraStorage is a Storage implementation for geo-distributed
// deployments that need Cassandra's multi-datacenter replication for
// instance records, behind the same Storage interface PostgresStorage and
// MySQLStorage implement.
type CassandraStorage struct {
	session *gocql.Session
	keyspace string
}

// NewCassandraStorage wraps an already-connected *gocql.Session.
func NewCassandraStorage(session *gocql.Session, keyspace string) *CassandraStorage {
	return &CassandraStorage{session: session, keyspace: keyspace}
}

// EnsureSchema creates the instances table if it does not already exist.
func (c *CassandraStorage) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.instances (
		id text PRIMARY KEY,
		name text,
		provider_id text,
		model_id text,
		deployment_mode text,
		endpoint text,
		config text
	)`, c.keyspace)
	return c.session.Query(stmt).WithContext(ctx).Exec()
}

func (c *CassandraStorage) SaveInstance(ctx context.Context, cfg InstanceConfig) error {
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

	stmt := fmt.Sprintf(`INSERT INTO %s.instances (id, name, provider_id, model_id, deployment_mode, endpoint, config) VALUES (?, ?, ?, ?, ?, ?, ?)`, c.keyspace)
	err = c.session.Query(stmt, cfg.ID, cfg.Name, string(cfg.ProviderID), cfg.ModelID, string(cfg.DeploymentMode), cfg.Endpoint, string(payload)).WithContext(ctx).Exec()
	if err != nil {
		return newError(ErrCodeStorageError, "failed to upsert instance", err)
	}
	return nil
}

func (c *CassandraStorage) GetInstance(ctx context.Context, id string) (*InstanceConfig, error) {
	stmt := fmt.Sprintf(`SELECT id, name, provider_id, model_id, deployment_mode, endpoint, config FROM %s.instances WHERE id = ?`, c.keyspace)
	var (
		cfg        InstanceConfig
		pid, dm    string
		payload    string
	)
	err := c.session.Query(stmt, id).WithContext(ctx).Scan(&cfg.ID, &cfg.Name, &pid, &cfg.ModelID, &dm, &cfg.Endpoint, &payload)
	if err == gocql.ErrNotFound {
		return nil, newError(ErrCodeNotFound, fmt.Sprintf("instance %s not found in storage", id), nil)
	}
	if err != nil {
		return nil, newError(ErrCodeStorageError, "failed to query instance", err)
	}
	cfg.ProviderID = provider.ID(pid)
	cfg.DeploymentMode = DeploymentMode(dm)

	var row postgresRow
	if err := json.Unmarshal([]byte(payload), &row); err != nil {
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

func (c *CassandraStorage) DeleteInstance(ctx context.Context, id string) error {
	stmt := fmt.Sprintf(`DELETE FROM %s.instances WHERE id = ?`, c.keyspace)
	if err := c.session.Query(stmt, id).WithContext(ctx).Exec(); err != nil {
		return newError(ErrCodeStorageError, "failed to delete instance", err)
	}
	return nil
}

func (c *CassandraStorage) ListInstances(ctx context.Context) ([]InstanceConfig, error) {
	stmt := fmt.Sprintf(`SELECT id FROM %s.instances`, c.keyspace)
	iter := c.session.Query(stmt).WithContext(ctx).Iter()

	var ids []string
	var id string
	for iter.Scan(&id) {
		ids = append(ids, id)
	}
	if err := iter.Close(); err != nil {
		return nil, newError(ErrCodeStorageError, "failed to list instances", err)
	}

	out := make([]InstanceConfig, 0, len(ids))
	for _, id := range ids {
		cfg, err := c.GetInstance(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, *cfg)
	}
	return out, nil
}
