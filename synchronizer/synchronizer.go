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

	"github.com/go-redis/redis/v8"

	"axonflow/platform/shared/logger"
)

// Synchronizer persists checkpoints, session state, and tree state across a
// fast cache tier and an authoritative durable tier. Every
// write goes to both tiers; a write succeeds if either tier accepts it.
// Reads try the cache first and repopulate it from the durable tier on a
// cache miss.
type Synchronizer struct {
	cache *cacheTier
	durable *durableTier
	logger *logger.Logger
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithRedisClient sets the cache tier's Redis client.
func WithRedisClient(client *redis.Client) Option {
	return func(s *Synchronizer) { s.cache = newCacheTier(client) }
}

// WithDB sets the durable tier's SQL connection.
func WithDB(db *sql.DB) Option {
	return func(s *Synchronizer) { s.durable = newDurableTier(db) }
}

// WithLogger overrides the default logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Synchronizer) { s.logger = l }
}

// New builds a Synchronizer. At least one of WithRedisClient/WithDB should be
// supplied; with neither tier configured, every save fails with
// ErrCodeBothTiersFailed, every load fails with ErrCodeNotFound, and list,
// delete and cleanup return empty results without error.
func New(opts...Option) *Synchronizer {
	s:= &Synchronizer{}
	for _, opt:= range opts {
 opt(s)
	}
	if s.logger == nil {
 s.logger = logger.New("synchronizer")
	}
	return s
}

// EnsureSchema creates the durable tier's tables, if a durable tier is
// configured.
func (s *Synchronizer) EnsureSchema(ctx context.Context) error {
	if s.durable == nil {
 return nil
	}
	return s.durable.EnsureSchema(ctx)
}

// SaveCheckpoint writes cp to both tiers. The write succeeds if either tier
// accepts it.
func (s *Synchronizer) SaveCheckpoint(ctx context.Context, cp *CheckpointData) (SaveResult, error) {
	var result SaveResult

	if s.cache != nil {
 if err:= s.cache.saveCheckpoint(ctx, cp); err != nil {
 s.logger.Warn(cp.SessionID, "", "cache checkpoint write failed", map[string]interface{}{"error": err.Error()})
 } else {
 result.CacheOK = true
 }
	}
	if s.durable != nil {
 if err:= s.durable.saveCheckpoint(ctx, cp); err != nil {
 s.logger.Warn(cp.SessionID, "", "durable checkpoint write failed", map[string]interface{}{"error": err.Error()})
 } else {
 result.DurableOK = true
 }
	}

	if !result.Succeeded() {
 return result, newError(ErrCodeBothTiersFailed, "checkpoint write failed on both tiers", nil)
	}
	return result, nil
}

// LoadCheckpoint reads a checkpoint, trying the cache first and falling back
// to the durable tier. A durable-tier hit repopulates the cache.
func (s *Synchronizer) LoadCheckpoint(ctx context.Context, id string) (*CheckpointData, error) {
	if s.cache != nil {
 cp, err:= s.cache.loadCheckpoint(ctx, id)
 if err == nil {
 return cp, nil
 }
	}
	if s.durable == nil {
 return nil, newError(ErrCodeNotFound, "checkpoint not found: "+id, nil)
	}
	cp, err:= s.durable.loadCheckpoint(ctx, id)
	if err != nil {
 if err == sql.ErrNoRows {
 return nil, newError(ErrCodeNotFound, "checkpoint not found: "+id, err)
 }
 return nil, err
	}
	if s.cache != nil {
 if err:= s.cache.saveCheckpoint(ctx, cp); err != nil {
 s.logger.Warn(cp.SessionID, "", "cache repopulate failed", map[string]interface{}{"error": err.Error()})
 }
	}
	return cp, nil
}

// ListCheckpoints lists a session's checkpoint ids newest-first. It prefers
// the cache's sorted-set index; on a cache miss it falls back to a durable
// query ordered by createdAt desc.
func (s *Synchronizer) ListCheckpoints(ctx context.Context, sessionID string) ([]*CheckpointData, error) {
	if s.cache != nil {
 ids, err:= s.cache.listCheckpointIDs(ctx, sessionID)
 if err == nil && len(ids) > 0 {
 out:= make([]*CheckpointData, 0, len(ids))
 for _, id:= range ids {
 cp, err:= s.cache.loadCheckpoint(ctx, id)
 if err != nil {
 continue
 }
 out = append(out, cp)
 }
 if len(out) > 0 {
 return out, nil
 }
 }
	}
	if s.durable == nil {
 return nil, nil
	}
	return s.durable.listCheckpoints(ctx, sessionID)
}

// DeleteCheckpoint removes a checkpoint from both tiers.
func (s *Synchronizer) DeleteCheckpoint(ctx context.Context, sessionID, id string) error {
	var cacheErr, durableErr error
	if s.cache != nil {
 cacheErr = s.cache.deleteCheckpoint(ctx, sessionID, id)
	}
	if s.durable != nil {
 durableErr = s.durable.deleteCheckpoint(ctx, id)
	}
	if cacheErr != nil && durableErr != nil {
 return newError(ErrCodeBothTiersFailed, "checkpoint delete failed on both tiers", cacheErr)
	}
	return nil
}

// CleanupOldCheckpoints trims a session's checkpoint history on both tiers,
// retaining only the keepCount most recent, and returns the number removed
// from the durable tier.
func (s *Synchronizer) CleanupOldCheckpoints(ctx context.Context, sessionID string, keepCount int) (int, error) {
	if s.cache != nil {
 ids, err:= s.cache.listCheckpointIDs(ctx, sessionID)
 if err == nil && len(ids) > keepCount {
 for _, id:= range ids[keepCount:] {
 if err:= s.cache.deleteCheckpoint(ctx, sessionID, id); err != nil {
 s.logger.Warn(sessionID, "", "cache cleanup delete failed", map[string]interface{}{"error": err.Error()})
 }
 }
 }
	}
	if s.durable == nil {
 return 0, nil
	}
	return s.durable.cleanupOldCheckpoints(ctx, sessionID, keepCount)
}

// SaveSessionState writes session state to both tiers (either-tier-succeeds
// policy).
func (s *Synchronizer) SaveSessionState(ctx context.Context, sessionID string, state map[string]interface{}) (SaveResult, error) {
	var result SaveResult
	if s.cache != nil {
 if err:= s.cache.saveSessionState(ctx, sessionID, state); err == nil {
 result.CacheOK = true
 }
	}
	if s.durable != nil {
 if err:= s.durable.saveSessionState(ctx, sessionID, state); err == nil {
 result.DurableOK = true
 }
	}
	if !result.Succeeded() {
 return result, newError(ErrCodeBothTiersFailed, "session state write failed on both tiers", nil)
	}
	return result, nil
}

// LoadSessionState reads session state, cache-first with durable fallback
// and repopulation.
func (s *Synchronizer) LoadSessionState(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	if s.cache != nil {
 state, err:= s.cache.loadSessionState(ctx, sessionID)
 if err == nil {
 return state, nil
 }
	}
	if s.durable == nil {
 return nil, newError(ErrCodeNotFound, "session state not found: "+sessionID, nil)
	}
	state, err:= s.durable.loadSessionState(ctx, sessionID)
	if err != nil {
 if err == sql.ErrNoRows {
 return nil, newError(ErrCodeNotFound, "session state not found: "+sessionID, err)
 }
 return nil, err
	}
	if s.cache != nil {
 if err:= s.cache.saveSessionState(ctx, sessionID, state); err != nil {
 s.logger.Warn(sessionID, "", "cache repopulate failed", map[string]interface{}{"error": err.Error()})
 }
	}
	return state, nil
}

// SaveTreeState writes tree state to both tiers (either-tier-succeeds
// policy).
func (s *Synchronizer) SaveTreeState(ctx context.Context, sessionID string, tree map[string]interface{}) (SaveResult, error) {
	var result SaveResult
	if s.cache != nil {
 if err:= s.cache.saveTreeState(ctx, sessionID, tree); err == nil {
 result.CacheOK = true
 }
	}
	if s.durable != nil {
 if err:= s.durable.saveTreeState(ctx, sessionID, tree); err == nil {
 result.DurableOK = true
 }
	}
	if !result.Succeeded() {
 return result, newError(ErrCodeBothTiersFailed, "tree state write failed on both tiers", nil)
	}
	return result, nil
}

// LoadTreeState reads tree state, cache-first with durable fallback and
// repopulation.
func (s *Synchronizer) LoadTreeState(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	if s.cache != nil {
 tree, err:= s.cache.loadTreeState(ctx, sessionID)
 if err == nil {
 return tree, nil
 }
	}
	if s.durable == nil {
 return nil, newError(ErrCodeNotFound, "tree state not found: "+sessionID, nil)
	}
	tree, err:= s.durable.loadTreeState(ctx, sessionID)
	if err != nil {
 if err == sql.ErrNoRows {
 return nil, newError(ErrCodeNotFound, "tree state not found: "+sessionID, err)
 }
 return nil, err
	}
	if s.cache != nil {
 if err:= s.cache.saveTreeState(ctx, sessionID, tree); err != nil {
 s.logger.Warn(sessionID, "", "cache repopulate failed", map[string]interface{}{"error": err.Error()})
 }
	}
	return tree, nil
}

// SaveAll writes a batch of checkpoint/session-state/tree-state items,
// continuing past individual failures and returning the results in the same
// order.
func (s *Synchronizer) SaveAll(ctx context.Context, items []BatchItem) ([]SaveResult, error) {
	results:= make([]SaveResult, len(items))
	for i, item:= range items {
 var (
 res SaveResult
 err error
 )
 switch item.Kind {
 case BatchCheckpoint:
 res, err = s.SaveCheckpoint(ctx, item.Checkpoint)
 case BatchSessionState:
 res, err = s.SaveSessionState(ctx, item.SessionID, item.State)
 case BatchTreeState:
 res, err = s.SaveTreeState(ctx, item.SessionID, item.Tree)
 }
 results[i] = res
 if err != nil {
 s.logger.Warn(item.SessionID, "", "batch item write failed", map[string]interface{}{"kind": string(item.Kind), "error": err.Error()})
 }
	}
	return results, nil
}
