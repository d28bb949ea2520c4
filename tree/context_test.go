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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetMessagesForContextKeepsLongestAffordableTailSuffix(t *testing.T) {
	m := New(WithStore(newFakeStore()))
	ctx := context.Background()
	m.CreateTree(ctx, "sess-1", "")

	// Each node's content is exactly 40 chars -> 10 tokens.
	chunk := strings.Repeat("a", 40)
	var lastID string
	for i := 0; i < 5; i++ {
		n, err := m.AddNode(ctx, "sess-1", RoleUser, chunk, AddNodeOptions{})
		require.NoError(t, err)
		lastID = n.ID
	}

	tr, _ := m.GetTree(ctx, "sess-1")
	msgs, err := GetMessagesForContext(tr, lastID, 25)
	require.NoError(t, err)
	// budget 25 tokens / 10 tokens per node -> only the last 2 nodes fit.
	require.Len(t, msgs, 2)
}

func TestGetMessagesForContextUsesSummaryWhenCompacted(t *testing.T) {
	m := New(WithStore(newFakeStore()))
	ctx := context.Background()
	tr, _ := m.CreateTree(ctx, "sess-1", "")
	n, err := m.AddNode(ctx, "sess-1", RoleUser, "original long content", AddNodeOptions{})
	require.NoError(t, err)

	tr, _ = m.GetTree(ctx, "sess-1")
	node, _ := GetNode(tr, n.ID)
	node.Compacted = true
	node.Summary = "short summary"

	msgs, err := GetMessagesForContext(tr, n.ID, 10_000)
	require.NoError(t, err)
	require.Equal(t, "short summary", msgs[len(msgs)-1].Content)
}

func TestGetMessagesForContextEmitsToolCallsAndResults(t *testing.T) {
	m := New(WithStore(newFakeStore()))
	ctx := context.Background()
	m.CreateTree(ctx, "sess-1", "")
	call := ToolCall{ID: "call-1", Name: "read", Arguments: map[string]interface{}{"path": "a.txt"}}
	assistantNode, err := m.AddNode(ctx, "sess-1", RoleAssistant, "let me check that file", AddNodeOptions{ToolCalls: []ToolCall{call}})
	require.NoError(t, err)

	result := ToolResult{ToolCallID: "call-1", Content: "file contents"}
	toolNode, err := m.AddNode(ctx, "sess-1", RoleTool, "", AddNodeOptions{ToolResults: []ToolResult{result}})
	require.NoError(t, err)

	tr, _ := m.GetTree(ctx, "sess-1")
	msgs, err := GetMessagesForContext(tr, toolNode.ID, 10_000)
	require.NoError(t, err)

	var sawAssistantCall, sawToolResult bool
	for _, msg := range msgs {
		if msg.Role == RoleAssistant && len(msg.ToolCalls) == 1 && msg.ToolCalls[0].ID == "call-1" {
			sawAssistantCall = true
		}
		if msg.Role == RoleTool && msg.ToolCallID == "call-1" && msg.Content == "file contents" {
			sawToolResult = true
		}
	}
	require.True(t, sawAssistantCall)
	require.True(t, sawToolResult)
	_ = assistantNode
}
