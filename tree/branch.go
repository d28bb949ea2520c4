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

// CreateBranch diverges a new branch from fromNodeId; the branch head starts
// at the base node.
func (m *Manager) CreateBranch(ctx context.Context, sessionID, fromNodeID, name string) (*Branch, error) {
	unlock:= m.lockSession(sessionID)
	defer unlock()

	t, err:= m.getTreeLocked(ctx, sessionID)
	if err != nil {
 return nil, err
	}
	for _, b:= range t.Branches {
 if b.Name == name {
 return nil, newError(ErrCodeDuplicateBranch, "branch name already exists: "+name, nil)
 }
	}
	if _, ok:= t.Nodes[fromNodeID]; !ok {
 return nil, newError(ErrCodeNodeNotFound, "node not found: "+fromNodeID, nil)
	}

	branch:= &Branch{
 ID: uuid.NewString(),
 Name: name,
 BaseNodeID: fromNodeID,
 HeadNodeID: fromNodeID,
 CreatedAt: time.Now().UTC(),
 Status: BranchActive,
	}
	t.Branches[branch.ID] = branch
	t.Metadata.TotalBranches++
	t.Metadata.UpdatedAt = branch.CreatedAt
	t.Metadata.Version++

	if m.store != nil {
 if _, err:= m.store.SaveTreeState(ctx, sessionID, toStateMap(t)); err != nil {
 m.logger.Warn(sessionID, "", "tree createBranch persist failed", map[string]interface{}{"error": err.Error()})
 }
	}
	return branch, nil
}

// SwitchBranch sets the tree's current branch and moves currentNodeId to
// the branch's head.
func (m *Manager) SwitchBranch(ctx context.Context, sessionID, branchID string) error {
	unlock:= m.lockSession(sessionID)
	defer unlock()

	t, err:= m.getTreeLocked(ctx, sessionID)
	if err != nil {
 return err
	}
	branch, ok:= t.Branches[branchID]
	if !ok {
 return newError(ErrCodeBranchNotFound, "branch not found: "+branchID, nil)
	}
	t.CurrentBranchID = branch.ID
	t.CurrentNodeID = branch.HeadNodeID
	return nil
}

// MergeBranch attaches a system merge-marker node as a child of both the
// target node (primary parent) and the source branch's head (secondary
// parent reference), then marks the source branch merged.
func (m *Manager) MergeBranch(ctx context.Context, sessionID, sourceBranchID, targetNodeID string) (*Node, error) {
	unlock:= m.lockSession(sessionID)
	defer unlock()

	t, err:= m.getTreeLocked(ctx, sessionID)
	if err != nil {
 return nil, err
	}
	source, ok:= t.Branches[sourceBranchID]
	if !ok {
 return nil, newError(ErrCodeBranchNotFound, "branch not found: "+sourceBranchID, nil)
	}
	target, ok:= t.Nodes[targetNodeID]
	if !ok {
 return nil, newError(ErrCodeNodeNotFound, "node not found: "+targetNodeID, nil)
	}
	sourceHead, ok:= t.Nodes[source.HeadNodeID]
	if !ok {
 return nil, newError(ErrCodeNodeNotFound, "branch head missing: "+source.HeadNodeID, nil)
	}

	now:= time.Now().UTC()
	merge:= &Node{
 ID: uuid.NewString(),
 Role: RoleSystem,
 Content: "merge: " + source.Name + " into " + targetNodeID,
 ParentID: target.ID,
 SecondaryParentID: sourceHead.ID,
 ChildIDs: []string{},
 BranchID: t.CurrentBranchID,
 CreatedAt: now,
 CumulativeTokens: target.CumulativeTokens,
	}
	t.Nodes[merge.ID] = merge
	target.ChildIDs = append(target.ChildIDs, merge.ID)
	sourceHead.ChildIDs = append(sourceHead.ChildIDs, merge.ID)

	source.Status = BranchMerged
	t.Metadata.TotalNodes++
	t.Metadata.UpdatedAt = now
	t.Metadata.Version++

	if m.store != nil {
 if _, err:= m.store.SaveTreeState(ctx, sessionID, toStateMap(t)); err != nil {
 m.logger.Warn(sessionID, "", "tree mergeBranch persist failed", map[string]interface{}{"error": err.Error()})
 }
	}
	return merge, nil
}

// AbandonBranch marks a branch abandoned without removing any nodes.
func (m *Manager) AbandonBranch(ctx context.Context, sessionID, branchID string) error {
	unlock:= m.lockSession(sessionID)
	defer unlock()

	t, err:= m.getTreeLocked(ctx, sessionID)
	if err != nil {
 return err
	}
	branch, ok:= t.Branches[branchID]
	if !ok {
 return newError(ErrCodeBranchNotFound, "branch not found: "+branchID, nil)
	}
	branch.Status = BranchAbandoned
	t.Metadata.UpdatedAt = time.Now().UTC()
	t.Metadata.Version++
	return nil
}

// RenameBranch changes a branch's name, rejecting a collision with another
// branch.
func (m *Manager) RenameBranch(ctx context.Context, sessionID, branchID, newName string) error {
	unlock:= m.lockSession(sessionID)
	defer unlock()

	t, err:= m.getTreeLocked(ctx, sessionID)
	if err != nil {
 return err
	}
	branch, ok:= t.Branches[branchID]
	if !ok {
 return newError(ErrCodeBranchNotFound, "branch not found: "+branchID, nil)
	}
	for id, b:= range t.Branches {
 if id != branchID && b.Name == newName {
 return newError(ErrCodeDuplicateBranch, "branch name already exists: "+newName, nil)
 }
	}
	branch.Name = newName
	return nil
}

// ListBranches returns all branches for a session's tree.
func (m *Manager) ListBranches(ctx context.Context, sessionID string) ([]*Branch, error) {
	t, err:= m.GetTree(ctx, sessionID)
	if err != nil {
 return nil, err
	}
	out:= make([]*Branch, 0, len(t.Branches))
	for _, b:= range t.Branches {
 out = append(out, b)
	}
	return out, nil
}
