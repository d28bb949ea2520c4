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

package tree

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"axonflow/platform/synchronizer"
)

// fakeStore is an in-memory stateStore double for tests.
type fakeStore struct {
	mu    sync.Mutex
	trees map[string]map[string]interface{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{trees: map[string]map[string]interface{}{}}
}

func (f *fakeStore) SaveTreeState(ctx context.Context, sessionID string, tree map[string]interface{}) (synchronizer.SaveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trees[sessionID] = tree
	return synchronizer.SaveResult{CacheOK: true, DurableOK: true}, nil
}

func (f *fakeStore) LoadTreeState(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trees[sessionID]
	if !ok {
		return nil, newError(ErrCodeTreeNotFound, "not found", nil)
	}
	return t, nil
}

func TestCreateTreeSeedsRootAndMainBranch(t *testing.T) {
	m := New(WithStore(newFakeStore()))
	ctx := context.Background()

	tr, err := m.CreateTree(ctx, "sess-1", "you are a helpful agent")
	require.NoError(t, err)
	require.Equal(t, 1, tr.Metadata.TotalNodes)
	require.Equal(t, 1, tr.Metadata.TotalBranches)
	require.Equal(t, tr.RootID, tr.CurrentNodeID)

	root, err := GetNode(tr, tr.RootID)
	require.NoError(t, err)
	require.True(t, root.IsRoot())
	require.Equal(t, RoleSystem, root.Role)
}

func TestAddNodeAdvancesCurrentAndAccumulatesTokens(t *testing.T) {
	m := New(WithStore(newFakeStore()))
	ctx := context.Background()
	tr, err := m.CreateTree(ctx, "sess-1", "")
	require.NoError(t, err)

	n1, err := m.AddNode(ctx, "sess-1", RoleUser, "hello there", AddNodeOptions{})
	require.NoError(t, err)
	require.Equal(t, tr.RootID, n1.ParentID)
	require.Equal(t, estimateTokens("hello there"), n1.TokenCount)

	n2, err := m.AddNode(ctx, "sess-1", RoleAssistant, "hi, how can I help?", AddNodeOptions{})
	require.NoError(t, err)
	require.Equal(t, n1.ID, n2.ParentID)
	require.Equal(t, n1.CumulativeTokens+n2.TokenCount, n2.CumulativeTokens)

	reloaded, err := m.GetTree(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, n2.ID, reloaded.CurrentNodeID)
	require.Equal(t, 3, reloaded.Metadata.TotalNodes)
}

func TestGetPathToRootAndChildrenAndDescendants(t *testing.T) {
	m := New(WithStore(newFakeStore()))
	ctx := context.Background()
	tr, _ := m.CreateTree(ctx, "sess-1", "")
	n1, _ := m.AddNode(ctx, "sess-1", RoleUser, "one", AddNodeOptions{})
	n2, _ := m.AddNode(ctx, "sess-1", RoleAssistant, "two", AddNodeOptions{})

	tr, _ = m.GetTree(ctx, "sess-1")
	path, err := GetPathToRoot(tr, n2.ID)
	require.NoError(t, err)
	require.Len(t, path, 3)
	require.Equal(t, tr.RootID, path[0].ID)
	require.Equal(t, n2.ID, path[2].ID)

	children, err := GetChildren(tr, tr.RootID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	require.Equal(t, n1.ID, children[0].ID)

	descendants, err := GetDescendants(tr, tr.RootID)
	require.NoError(t, err)
	require.Len(t, descendants, 2)
}

func TestUpdateNodeContentRecomputesCumulativeForDescendants(t *testing.T) {
	m := New(WithStore(newFakeStore()))
	ctx := context.Background()
	m.CreateTree(ctx, "sess-1", "")
	n1, _ := m.AddNode(ctx, "sess-1", RoleUser, "short", AddNodeOptions{})
	n2, _ := m.AddNode(ctx, "sess-1", RoleAssistant, "also short", AddNodeOptions{})

	err := m.UpdateNodeContent(ctx, "sess-1", n1.ID, "a much, much longer piece of content than before")
	require.NoError(t, err)

	tr, _ := m.GetTree(ctx, "sess-1")
	updated, _ := GetNode(tr, n1.ID)
	reChild, _ := GetNode(tr, n2.ID)
	require.Equal(t, updated.CumulativeTokens+reChild.TokenCount, reChild.CumulativeTokens)
}

func TestDeleteNodeRemovesDescendantsAndRejectsRoot(t *testing.T) {
	m := New(WithStore(newFakeStore()))
	ctx := context.Background()
	tr, _ := m.CreateTree(ctx, "sess-1", "")
	n1, _ := m.AddNode(ctx, "sess-1", RoleUser, "one", AddNodeOptions{})
	m.AddNode(ctx, "sess-1", RoleAssistant, "two", AddNodeOptions{})

	err := m.DeleteNode(ctx, "sess-1", tr.RootID)
	require.Error(t, err)

	err = m.DeleteNode(ctx, "sess-1", n1.ID)
	require.NoError(t, err)

	after, _ := m.GetTree(ctx, "sess-1")
	require.Equal(t, 1, after.Metadata.TotalNodes)
	_, exists := after.Nodes[n1.ID]
	require.False(t, exists)
}

func TestNavigateToNodeUpdatesCurrentPointer(t *testing.T) {
	m := New(WithStore(newFakeStore()))
	ctx := context.Background()
	tr, _ := m.CreateTree(ctx, "sess-1", "")
	require.NoError(t, m.NavigateToNode(ctx, "sess-1", tr.RootID))

	reloaded, _ := m.GetTree(ctx, "sess-1")
	require.Equal(t, tr.RootID, reloaded.CurrentNodeID)
}

func TestSearchNodesMatchesContentCaseInsensitive(t *testing.T) {
	m := New(WithStore(newFakeStore()))
	ctx := context.Background()
	m.CreateTree(ctx, "sess-1", "")
	m.AddNode(ctx, "sess-1", RoleUser, "Please check the Widget inventory", AddNodeOptions{})

	tr, _ := m.GetTree(ctx, "sess-1")
	found := SearchNodes(tr, "widget")
	require.Len(t, found, 1)
}
