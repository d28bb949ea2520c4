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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForkSessionCopiesPathWithFreshIDs(t *testing.T) {
	m := New(WithStore(newFakeStore()))
	ctx := context.Background()
	m.CreateTree(ctx, "sess-1", "system prompt")
	n1, _ := m.AddNode(ctx, "sess-1", RoleUser, "first message", AddNodeOptions{})
	n2, _ := m.AddNode(ctx, "sess-1", RoleAssistant, "first reply", AddNodeOptions{})

	fork, err := m.ForkSession(ctx, "sess-1", n2.ID, "sess-2")
	require.NoError(t, err)
	require.Equal(t, 3, fork.Metadata.TotalNodes)
	require.NotEqual(t, n1.ID, fork.RootID)

	path, err := GetPathToRoot(fork, fork.CurrentNodeID)
	require.NoError(t, err)
	require.Len(t, path, 3)
	require.Equal(t, "system prompt", path[0].Content)
	require.Equal(t, "first message", path[1].Content)
	require.Equal(t, "first reply", path[2].Content)

	// Token counts preserved, cumulative recomputed from the new root.
	require.Equal(t, path[0].TokenCount, path[0].CumulativeTokens)
	require.Equal(t, path[0].CumulativeTokens+path[1].TokenCount, path[1].CumulativeTokens)
}

func TestForkSessionDoesNotMutateSourceTree(t *testing.T) {
	m := New(WithStore(newFakeStore()))
	ctx := context.Background()
	m.CreateTree(ctx, "sess-1", "")
	n1, _ := m.AddNode(ctx, "sess-1", RoleUser, "hi", AddNodeOptions{})

	_, err := m.ForkSession(ctx, "sess-1", n1.ID, "sess-2")
	require.NoError(t, err)

	source, _ := m.GetTree(ctx, "sess-1")
	require.Equal(t, 2, source.Metadata.TotalNodes)
}
