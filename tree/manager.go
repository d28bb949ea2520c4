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
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"axonflow/platform/shared/logger"
	"axonflow/platform/synchronizer"
)

// stateStore is the persistence contract the Manager needs from the
// Synchronizer; narrowed to two methods so tests can fake it.
type stateStore interface {
	SaveTreeState(ctx context.Context, sessionID string, tree map[string]interface{}) (synchronizer.SaveResult, error)
	LoadTreeState(ctx context.Context, sessionID string) (map[string]interface{}, error)
}

// Manager owns the in-memory arena of conversation trees, one per session,
// and persists them through the Synchronizer.
type Manager struct {
	mu sync.RWMutex
	trees map[string]*Tree
	sessionMus map[string]*sync.Mutex
	store stateStore
	logger *logger.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore sets the persistence backend.
func WithStore(store stateStore) Option {
	return func(m *Manager) { m.store = store }
}

// WithLogger overrides the default logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// New builds a Manager.
func New(opts...Option) *Manager {
	m:= &Manager{
 trees: map[string]*Tree{},
 sessionMus: map[string]*sync.Mutex{},
	}
	for _, opt:= range opts {
 opt(m)
	}
	if m.logger == nil {
 m.logger = logger.New("tree")
	}
	return m
}

func (m *Manager) lockSession(sessionID string) func() {
	m.mu.Lock()
	lock, ok:= m.sessionMus[sessionID]
	if !ok {
 lock = &sync.Mutex{}
 m.sessionMus[sessionID] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// CreateTree initializes a fresh conversation tree for a session, optionally
// seeded with a system prompt node as root.
func (m *Manager) CreateTree(ctx context.Context, sessionID string, systemPrompt string) (*Tree, error) {
	unlock:= m.lockSession(sessionID)
	defer unlock()

	now:= time.Now().UTC()
	rootID:= uuid.NewString()
	branchID:= uuid.NewString()

	root:= &Node{
 ID: rootID,
 Role: RoleSystem,
 Content: systemPrompt,
 ChildIDs: []string{},
 BranchID: branchID,
 CreatedAt: now,
	}
	if systemPrompt != "" {
 root.TokenCount = estimateTokens(systemPrompt)
 root.CumulativeTokens = root.TokenCount
	}

	t:= &Tree{
 SessionID: sessionID,
 SystemPrompt: systemPrompt,
 RootID: rootID,
 CurrentBranchID: branchID,
 CurrentNodeID: rootID,
 Nodes: map[string]*Node{rootID: root},
 Branches: map[string]*Branch{
 branchID: {ID: branchID, Name: "main", BaseNodeID: rootID, HeadNodeID: rootID, CreatedAt: now, Status: BranchActive},
 },
 Metadata: Metadata{
 TotalNodes: 1,
 TotalBranches: 1,
 TotalTokens: root.TokenCount,
 CreatedAt: now,
 UpdatedAt: now,
 Version: 1,
 },
	}

	m.mu.Lock()
	m.trees[sessionID] = t
	m.mu.Unlock()

	if m.store != nil {
 if _, err:= m.store.SaveTreeState(ctx, sessionID, toStateMap(t)); err != nil {
 m.logger.Warn(sessionID, "", "tree create persist failed", map[string]interface{}{"error": err.Error()})
 }
	}
	return t, nil
}

// GetTree returns the in-memory tree for a session, loading it from the
// store on a cache miss.
func (m *Manager) GetTree(ctx context.Context, sessionID string) (*Tree, error) {
	m.mu.RLock()
	t, ok:= m.trees[sessionID]
	m.mu.RUnlock()
	if ok {
 return t, nil
	}

	if m.store == nil {
 return nil, newError(ErrCodeTreeNotFound, "tree not found for session "+sessionID, nil)
	}
	raw, err:= m.store.LoadTreeState(ctx, sessionID)
	if err != nil {
 return nil, newError(ErrCodeTreeNotFound, "tree not found for session "+sessionID, err)
	}
	t = fromStateMap(raw)
	m.mu.Lock()
	m.trees[sessionID] = t
	m.mu.Unlock()
	return t, nil
}

// SaveTree persists a tree, bumping its version and updatedAt.
func (m *Manager) SaveTree(ctx context.Context, t *Tree) error {
	unlock:= m.lockSession(t.SessionID)
	defer unlock()

	t.Metadata.Version++
	t.Metadata.UpdatedAt = time.Now().UTC()

	m.mu.Lock()
	m.trees[t.SessionID] = t
	m.mu.Unlock()

	if m.store == nil {
 return nil
	}
	if _, err:= m.store.SaveTreeState(ctx, t.SessionID, toStateMap(t)); err != nil {
 return newError(ErrCodeTreeNotFound, "tree save failed", err)
	}
	return nil
}

// AddNode appends a new node as a child of the tree's current node, on the
// current branch, and advances currentNodeId / the branch head.
func (m *Manager) AddNode(ctx context.Context, sessionID string, role Role, content string, opts AddNodeOptions) (*Node, error) {
	unlock:= m.lockSession(sessionID)
	defer unlock()

	t, err:= m.getTreeLocked(ctx, sessionID)
	if err != nil {
 return nil, err
	}

	parent, ok:= t.Nodes[t.CurrentNodeID]
	if !ok {
 return nil, newError(ErrCodeNodeNotFound, "current node missing: "+t.CurrentNodeID, nil)
	}

	tokenCount:= 0
	if opts.SkipTokenEstimate {
 tokenCount = opts.TokenCountOverride
	} else {
 tokenCount = estimateTokens(content)
	}

	now:= time.Now().UTC()
	node:= &Node{
 ID: uuid.NewString(),
 Role: role,
 Content: content,
 ParentID: parent.ID,
 ChildIDs: []string{},
 BranchID: t.CurrentBranchID,
 ToolCalls: opts.ToolCalls,
 ToolResults: opts.ToolResults,
 TokenCount: tokenCount,
 CumulativeTokens: parent.CumulativeTokens + tokenCount,
 CreatedAt: now,
	}

	t.Nodes[node.ID] = node
	parent.ChildIDs = append(parent.ChildIDs, node.ID)
	t.CurrentNodeID = node.ID
	if branch, ok:= t.Branches[t.CurrentBranchID]; ok {
 branch.HeadNodeID = node.ID
	}
	t.Metadata.TotalNodes++
	t.Metadata.TotalTokens += tokenCount
	t.Metadata.UpdatedAt = now
	t.Metadata.Version++

	if m.store != nil {
 if _, err:= m.store.SaveTreeState(ctx, sessionID, toStateMap(t)); err != nil {
 m.logger.Warn(sessionID, "", "tree addNode persist failed", map[string]interface{}{"error": err.Error()})
 }
	}
	return node, nil
}

func (m *Manager) getTreeLocked(ctx context.Context, sessionID string) (*Tree, error) {
	m.mu.RLock()
	t, ok:= m.trees[sessionID]
	m.mu.RUnlock()
	if ok {
 return t, nil
	}
	if m.store == nil {
 return nil, newError(ErrCodeTreeNotFound, "tree not found for session "+sessionID, nil)
	}
	raw, err:= m.store.LoadTreeState(ctx, sessionID)
	if err != nil {
 return nil, newError(ErrCodeTreeNotFound, "tree not found for session "+sessionID, err)
	}
	t = fromStateMap(raw)
	m.mu.Lock()
	m.trees[sessionID] = t
	m.mu.Unlock()
	return t, nil
}

// GetNode looks up a node by id.
func GetNode(t *Tree, id string) (*Node, error) {
	n, ok:= t.Nodes[id]
	if !ok {
 return nil, newError(ErrCodeNodeNotFound, "node not found: "+id, nil)
	}
	return n, nil
}

// GetPathToRoot returns the path from root to the given node, inclusive,
// root first.
func GetPathToRoot(t *Tree, id string) ([]*Node, error) {
	var path []*Node
	cur, err:= GetNode(t, id)
	if err != nil {
 return nil, err
	}
	for {
 path = append([]*Node{cur}, path...)
 if cur.IsRoot() {
 break
 }
 parent, ok:= t.Nodes[cur.ParentID]
 if !ok {
 return nil, newError(ErrCodeNodeNotFound, "parent missing for node: "+cur.ID, nil)
 }
 cur = parent
	}
	return path, nil
}

// GetChildren returns a node's direct children.
func GetChildren(t *Tree, id string) ([]*Node, error) {
	n, err:= GetNode(t, id)
	if err != nil {
 return nil, err
	}
	children:= make([]*Node, 0, len(n.ChildIDs))
	for _, cid:= range n.ChildIDs {
 if c, ok:= t.Nodes[cid]; ok {
 children = append(children, c)
 }
	}
	return children, nil
}

// GetDescendants returns every node reachable from id, excluding id itself.
func GetDescendants(t *Tree, id string) ([]*Node, error) {
	root, err:= GetNode(t, id)
	if err != nil {
 return nil, err
	}
	var out []*Node
	queue:= append([]string{}, root.ChildIDs...)
	for len(queue) > 0 {
 nid:= queue[0]
 queue = queue[1:]
 n, ok:= t.Nodes[nid]
 if !ok {
 continue
 }
 out = append(out, n)
 queue = append(queue, n.ChildIDs...)
	}
	return out, nil
}

// UpdateNodeContent replaces a node's content and recomputes its token count
// and the cumulative counts of it and all descendants.
func (m *Manager) UpdateNodeContent(ctx context.Context, sessionID, nodeID, content string) error {
	unlock:= m.lockSession(sessionID)
	defer unlock()

	t, err:= m.getTreeLocked(ctx, sessionID)
	if err != nil {
 return err
	}
	n, ok:= t.Nodes[nodeID]
	if !ok {
 return newError(ErrCodeNodeNotFound, "node not found: "+nodeID, nil)
	}

	oldTokens:= n.TokenCount
	n.Content = content
	n.TokenCount = estimateTokens(content)
	t.Metadata.TotalTokens += n.TokenCount - oldTokens

	if n.IsRoot() {
 n.CumulativeTokens = n.TokenCount
	} else if parent, ok:= t.Nodes[n.ParentID]; ok {
 n.CumulativeTokens = parent.CumulativeTokens + n.TokenCount
	}
	m.recomputeCumulativeDescendants(t, n)

	t.Metadata.UpdatedAt = time.Now().UTC()
	t.Metadata.Version++

	if m.store != nil {
 if _, err:= m.store.SaveTreeState(ctx, sessionID, toStateMap(t)); err != nil {
 m.logger.Warn(sessionID, "", "tree updateNodeContent persist failed", map[string]interface{}{"error": err.Error()})
 }
	}
	return nil
}

func (m *Manager) recomputeCumulativeDescendants(t *Tree, n *Node) {
	for _, cid:= range n.ChildIDs {
 c, ok:= t.Nodes[cid]
 if !ok {
 continue
 }
 c.CumulativeTokens = n.CumulativeTokens + c.TokenCount
 m.recomputeCumulativeDescendants(t, c)
	}
}

// DeleteNode removes a non-root node and all its descendants.
func (m *Manager) DeleteNode(ctx context.Context, sessionID, nodeID string) error {
	unlock:= m.lockSession(sessionID)
	defer unlock()

	t, err:= m.getTreeLocked(ctx, sessionID)
	if err != nil {
 return err
	}
	n, ok:= t.Nodes[nodeID]
	if !ok {
 return newError(ErrCodeNodeNotFound, "node not found: "+nodeID, nil)
	}
	if n.IsRoot() {
 return newError(ErrCodeRootDeletion, "cannot delete root node", nil)
	}

	descendants, _:= GetDescendants(t, nodeID)
	toRemove:= append([]*Node{n}, descendants...)
	var tokensRemoved int
	for _, rn:= range toRemove {
 tokensRemoved += rn.TokenCount
 delete(t.Nodes, rn.ID)
 t.Metadata.TotalNodes--
	}
	t.Metadata.TotalTokens -= tokensRemoved

	if parent, ok:= t.Nodes[n.ParentID]; ok {
 parent.ChildIDs = removeString(parent.ChildIDs, nodeID)
	}
	t.Metadata.UpdatedAt = time.Now().UTC()
	t.Metadata.Version++

	if m.store != nil {
 if _, err:= m.store.SaveTreeState(ctx, sessionID, toStateMap(t)); err != nil {
 m.logger.Warn(sessionID, "", "tree deleteNode persist failed", map[string]interface{}{"error": err.Error()})
 }
	}
	return nil
}

func removeString(ss []string, target string) []string {
	out:= ss[:0]
	for _, s:= range ss {
 if s != target {
 out = append(out, s)
 }
	}
	return out
}

// NavigateToNode sets the tree's current node (and current branch to match).
func (m *Manager) NavigateToNode(ctx context.Context, sessionID, nodeID string) error {
	unlock:= m.lockSession(sessionID)
	defer unlock()

	t, err:= m.getTreeLocked(ctx, sessionID)
	if err != nil {
 return err
	}
	n, ok:= t.Nodes[nodeID]
	if !ok {
 return newError(ErrCodeNodeNotFound, "node not found: "+nodeID, nil)
	}
	t.CurrentNodeID = n.ID
	t.CurrentBranchID = n.BranchID
	return nil
}

// SearchNodes returns nodes whose content or summary contains query
// (case-insensitive substring match).
func SearchNodes(t *Tree, query string) []*Node {
	q:= strings.ToLower(query)
	var out []*Node
	for _, n:= range t.Nodes {
 if strings.Contains(strings.ToLower(n.Content), q) || strings.Contains(strings.ToLower(n.Summary), q) {
 out = append(out, n)
 }
	}
	return out
}
