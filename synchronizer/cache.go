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
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// cacheTier is the Synchronizer's fast read path, backed by Redis. Key layout mirrors connectors/redis's
// single-client, JSON-value convention.
type cacheTier struct {
	client *redis.Client
}

func newCacheTier(client *redis.Client) *cacheTier {
	return &cacheTier{client: client}
}

func checkpointKey(id string) string { return fmt.Sprintf("sync:checkpoint:%s", id) }
func checkpointListKey(sessionID string) string { return fmt.Sprintf("sync:checkpoint_list:%s", sessionID) }
func sessionStateKey(sessionID string) string { return fmt.Sprintf("sync:session_state:%s", sessionID) }
func treeStateKey(sessionID string) string { return fmt.Sprintf("sync:tree_state:%s", sessionID) }

func (c *cacheTier) saveCheckpoint(ctx context.Context, cp *CheckpointData) error {
	payload, err:= json.Marshal(cp)
	if err != nil {
 return err
	}
	pipe:= c.client.TxPipeline()
	pipe.Set(ctx, checkpointKey(cp.ID), payload, checkpointTTL)
	pipe.ZAdd(ctx, checkpointListKey(cp.SessionID), &redis.Z{Score: float64(cp.CreatedAt.UnixNano()), Member: cp.ID})
	pipe.Expire(ctx, checkpointListKey(cp.SessionID), checkpointTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *cacheTier) loadCheckpoint(ctx context.Context, id string) (*CheckpointData, error) {
	raw, err:= c.client.Get(ctx, checkpointKey(id)).Bytes()
	if err != nil {
 return nil, err
	}
	var cp CheckpointData
	if err:= json.Unmarshal(raw, &cp); err != nil {
 return nil, err
	}
	return &cp, nil
}

func (c *cacheTier) listCheckpointIDs(ctx context.Context, sessionID string) ([]string, error) {
	ids, err:= c.client.ZRevRange(ctx, checkpointListKey(sessionID), 0, -1).Result()
	if err != nil {
 return nil, err
	}
	return ids, nil
}

func (c *cacheTier) deleteCheckpoint(ctx context.Context, sessionID, id string) error {
	pipe:= c.client.TxPipeline()
	pipe.Del(ctx, checkpointKey(id))
	pipe.ZRem(ctx, checkpointListKey(sessionID), id)
	_, err:= pipe.Exec(ctx)
	return err
}

func (c *cacheTier) saveSessionState(ctx context.Context, sessionID string, state map[string]interface{}) error {
	payload, err:= EncodeState(state)
	if err != nil {
 return err
	}
	return c.client.Set(ctx, sessionStateKey(sessionID), payload, sessionStateTTL).Err()
}

func (c *cacheTier) loadSessionState(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	raw, err:= c.client.Get(ctx, sessionStateKey(sessionID)).Bytes()
	if err != nil {
 return nil, err
	}
	return DecodeState(raw)
}

func (c *cacheTier) saveTreeState(ctx context.Context, sessionID string, tree map[string]interface{}) error {
	payload, err:= EncodeState(tree)
	if err != nil {
 return err
	}
	return c.client.Set(ctx, treeStateKey(sessionID), payload, treeStateTTL).Err()
}

func (c *cacheTier) loadTreeState(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	raw, err:= c.client.Get(ctx, treeStateKey(sessionID)).Bytes()
	if err != nil {
 return nil, err
	}
	return DecodeState(raw)
}
