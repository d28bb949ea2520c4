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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func newTestCacheTier(t *testing.T) (*cacheTier, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return newCacheTier(client), mr
}

func TestCacheTierSaveAndLoadCheckpoint(t *testing.T) {
	c, _ := newTestCacheTier(t)
	ctx := context.Background()

	cp := &CheckpointData{
		ID:        "cp-1",
		SessionID: "sess-1",
		Trigger:   TriggerManual,
		State:     map[string]interface{}{"step": float64(1)},
		CreatedAt: time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, c.saveCheckpoint(ctx, cp))

	got, err := c.loadCheckpoint(ctx, "cp-1")
	require.NoError(t, err)
	require.Equal(t, cp.SessionID, got.SessionID)
	require.Equal(t, cp.Trigger, got.Trigger)
}

func TestCacheTierListCheckpointIDsNewestFirst(t *testing.T) {
	c, _ := newTestCacheTier(t)
	ctx := context.Background()

	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"cp-1", "cp-2", "cp-3"} {
		cp := &CheckpointData{
			ID: id, SessionID: "sess-1", Trigger: TriggerAuto,
			State: map[string]interface{}{}, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, c.saveCheckpoint(ctx, cp))
	}

	ids, err := c.listCheckpointIDs(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, []string{"cp-3", "cp-2", "cp-1"}, ids)
}

func TestCacheTierDeleteCheckpointRemovesFromIndex(t *testing.T) {
	c, _ := newTestCacheTier(t)
	ctx := context.Background()

	cp := &CheckpointData{ID: "cp-1", SessionID: "sess-1", Trigger: TriggerAuto, State: map[string]interface{}{}, CreatedAt: time.Now().UTC()}
	require.NoError(t, c.saveCheckpoint(ctx, cp))
	require.NoError(t, c.deleteCheckpoint(ctx, "sess-1", "cp-1"))

	_, err := c.loadCheckpoint(ctx, "cp-1")
	require.Error(t, err)

	ids, err := c.listCheckpointIDs(ctx, "sess-1")
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestCacheTierSessionAndTreeStateRoundTrip(t *testing.T) {
	c, _ := newTestCacheTier(t)
	ctx := context.Background()

	state := map[string]interface{}{"active": true, "turn": float64(2)}
	require.NoError(t, c.saveSessionState(ctx, "sess-1", state))
	got, err := c.loadSessionState(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, state, got)

	tree := map[string]interface{}{"root": "node-1"}
	require.NoError(t, c.saveTreeState(ctx, "sess-1", tree))
	gotTree, err := c.loadTreeState(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, tree, gotTree)
}

func TestCacheTierLoadMissingKeyErrors(t *testing.T) {
	c, _ := newTestCacheTier(t)
	ctx := context.Background()

	_, err := c.loadSessionState(ctx, "does-not-exist")
	require.Error(t, err)
}
