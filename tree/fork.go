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

package tree

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ForkSession copies the root-to-fromNodeId path of an existing session's
// tree into a brand new session's tree, assigning fresh node/branch ids.
// Token counts of copied nodes are preserved; cumulative counts are
// recomputed from the new root.
func (m *Manager) ForkSession(ctx context.Context, fromSessionID, fromNodeID, newSessionID string) (*Tree, error) {
	source, err:= m.GetTree(ctx, fromSessionID)
	if err != nil {
 return nil, err
	}
	path, err:= GetPathToRoot(source, fromNodeID)
	if err != nil {
 return nil, err
	}

	unlock:= m.lockSession(newSessionID)
	defer unlock()

	now:= time.Now().UTC()
	branchID:= uuid.NewString()
	nodes:= map[string]*Node{}

	var prevID string
	var cumulative int
	var totalTokens int
	for _, orig:= range path {
 newID:= uuid.NewString()
 cumulative += orig.TokenCount
 n:= &Node{
 ID: newID,
 Role: orig.Role,
 Content: orig.Content,
 ParentID: prevID,
 ChildIDs: []string{},
 BranchID: branchID,
 TokenCount: orig.TokenCount,
 CumulativeTokens: cumulative,
 CreatedAt: now,
 Compacted: orig.Compacted,
 Summary: orig.Summary,
 }
 if prevID != "" {
 nodes[prevID].ChildIDs = append(nodes[prevID].ChildIDs, newID)
 }
 nodes[newID] = n
 prevID = newID
 totalTokens += orig.TokenCount
	}

	rootID:= rootIDOf(nodes)
	t:= &Tree{
 SessionID: newSessionID,
 SystemPrompt: source.SystemPrompt,
 RootID: rootID,
 CurrentBranchID: branchID,
 CurrentNodeID: prevID,
 Nodes: nodes,
 Branches: map[string]*Branch{
 branchID: {ID: branchID, Name: "main", BaseNodeID: rootID, HeadNodeID: prevID, CreatedAt: now, Status: BranchActive},
 },
 Metadata: Metadata{
 TotalNodes: len(nodes),
 TotalBranches: 1,
 TotalTokens: totalTokens,
 CreatedAt: now,
 UpdatedAt: now,
 Version: 1,
 },
	}

	m.mu.Lock()
	m.trees[newSessionID] = t
	m.mu.Unlock()

	if m.store != nil {
 if _, err:= m.store.SaveTreeState(ctx, newSessionID, toStateMap(t)); err != nil {
 m.logger.Warn(newSessionID, "", "tree fork persist failed", map[string]interface{}{"error": err.Error()})
 }
	}
	return t, nil
}

// rootIDOf finds the copied node with no parent (the new root).
func rootIDOf(nodes map[string]*Node) string {
	for _, n:= range nodes {
 if n.ParentID == "" {
 return n.ID
 }
	}
	return ""
}
