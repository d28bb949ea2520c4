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

import "time"

// toStateMap converts a Tree to the map[string]interface{} shape the
// Synchronizer persists, keeping time.Time values intact (rather than
// pre-stringifying them) so the Synchronizer's own encoding applies its
// lossless time markers exactly once.
func toStateMap(t *Tree) map[string]interface{} {
	nodes := make(map[string]interface{}, len(t.Nodes))
	for id, n := range t.Nodes {
		nodes[id] = nodeToMap(n)
	}
	branches := make(map[string]interface{}, len(t.Branches))
	for id, b := range t.Branches {
		branches[id] = branchToMap(b)
	}
	return map[string]interface{}{
		"session_id":        t.SessionID,
		"system_prompt":     t.SystemPrompt,
		"root_id":           t.RootID,
		"current_branch_id": t.CurrentBranchID,
		"current_node_id":   t.CurrentNodeID,
		"nodes":             nodes,
		"branches":          branches,
		"metadata": map[string]interface{}{
			"total_nodes":      float64(t.Metadata.TotalNodes),
			"total_branches":   float64(t.Metadata.TotalBranches),
			"total_tokens":     float64(t.Metadata.TotalTokens),
			"created_at":       t.Metadata.CreatedAt,
			"updated_at":       t.Metadata.UpdatedAt,
			"version":          float64(t.Metadata.Version),
			"compaction_count": float64(t.Metadata.CompactionCount),
		},
	}
}

func nodeToMap(n *Node) map[string]interface{} {
	toolCalls := make([]interface{}, len(n.ToolCalls))
	for i, tc := range n.ToolCalls {
		args := make(map[string]interface{}, len(tc.Arguments))
		for k, v := range tc.Arguments {
			args[k] = v
		}
		toolCalls[i] = map[string]interface{}{"id": tc.ID, "name": tc.Name, "arguments": args}
	}
	toolResults := make([]interface{}, len(n.ToolResults))
	for i, tr := range n.ToolResults {
		toolResults[i] = map[string]interface{}{"tool_call_id": tr.ToolCallID, "content": tr.Content, "is_error": tr.IsError}
	}
	childIDs := make([]interface{}, len(n.ChildIDs))
	for i, c := range n.ChildIDs {
		childIDs[i] = c
	}
	return map[string]interface{}{
		"id":                  n.ID,
		"role":                string(n.Role),
		"content":             n.Content,
		"parent_id":           n.ParentID,
		"secondary_parent_id": n.SecondaryParentID,
		"child_ids":           childIDs,
		"branch_id":           n.BranchID,
		"tool_calls":          toolCalls,
		"tool_results":        toolResults,
		"token_count":         float64(n.TokenCount),
		"cumulative_tokens":   float64(n.CumulativeTokens),
		"created_at":          n.CreatedAt,
		"compacted":           n.Compacted,
		"summary":             n.Summary,
	}
}

func branchToMap(b *Branch) map[string]interface{} {
	return map[string]interface{}{
		"id":           b.ID,
		"name":         b.Name,
		"base_node_id": b.BaseNodeID,
		"head_node_id": b.HeadNodeID,
		"created_at":   b.CreatedAt,
		"status":       string(b.Status),
	}
}

// fromStateMap reverses toStateMap, as produced by the Synchronizer after
// DecodeState resolves time markers back to time.Time.
func fromStateMap(m map[string]interface{}) *Tree {
	t := &Tree{
		SessionID:       str(m["session_id"]),
		SystemPrompt:    str(m["system_prompt"]),
		RootID:          str(m["root_id"]),
		CurrentBranchID: str(m["current_branch_id"]),
		CurrentNodeID:   str(m["current_node_id"]),
		Nodes:           map[string]*Node{},
		Branches:        map[string]*Branch{},
	}

	if nodesRaw, ok := m["nodes"].(map[string]interface{}); ok {
		for id, raw := range nodesRaw {
			if nm, ok := raw.(map[string]interface{}); ok {
				t.Nodes[id] = nodeFromMap(nm)
			}
		}
	}
	if branchesRaw, ok := m["branches"].(map[string]interface{}); ok {
		for id, raw := range branchesRaw {
			if bm, ok := raw.(map[string]interface{}); ok {
				t.Branches[id] = branchFromMap(bm)
			}
		}
	}
	if meta, ok := m["metadata"].(map[string]interface{}); ok {
		t.Metadata = Metadata{
			TotalNodes:      int(num(meta["total_nodes"])),
			TotalBranches:   int(num(meta["total_branches"])),
			TotalTokens:     int(num(meta["total_tokens"])),
			CreatedAt:       tm(meta["created_at"]),
			UpdatedAt:       tm(meta["updated_at"]),
			Version:         int(num(meta["version"])),
			CompactionCount: int(num(meta["compaction_count"])),
		}
	}
	return t
}

func nodeFromMap(m map[string]interface{}) *Node {
	n := &Node{
		ID:                str(m["id"]),
		Role:              Role(str(m["role"])),
		Content:           str(m["content"]),
		ParentID:          str(m["parent_id"]),
		SecondaryParentID: str(m["secondary_parent_id"]),
		BranchID:          str(m["branch_id"]),
		TokenCount:        int(num(m["token_count"])),
		CumulativeTokens:  int(num(m["cumulative_tokens"])),
		CreatedAt:         tm(m["created_at"]),
		Compacted:         boolVal(m["compacted"]),
		Summary:           str(m["summary"]),
	}
	if raw, ok := m["child_ids"].([]interface{}); ok {
		for _, v := range raw {
			n.ChildIDs = append(n.ChildIDs, str(v))
		}
	}
	if raw, ok := m["tool_calls"].([]interface{}); ok {
		for _, v := range raw {
			if tcm, ok := v.(map[string]interface{}); ok {
				args, _ := tcm["arguments"].(map[string]interface{})
				n.ToolCalls = append(n.ToolCalls, ToolCall{ID: str(tcm["id"]), Name: str(tcm["name"]), Arguments: args})
			}
		}
	}
	if raw, ok := m["tool_results"].([]interface{}); ok {
		for _, v := range raw {
			if trm, ok := v.(map[string]interface{}); ok {
				n.ToolResults = append(n.ToolResults, ToolResult{ToolCallID: str(trm["tool_call_id"]), Content: str(trm["content"]), IsError: boolVal(trm["is_error"])})
			}
		}
	}
	return n
}

func branchFromMap(m map[string]interface{}) *Branch {
	return &Branch{
		ID:         str(m["id"]),
		Name:       str(m["name"]),
		BaseNodeID: str(m["base_node_id"]),
		HeadNodeID: str(m["head_node_id"]),
		CreatedAt:  tm(m["created_at"]),
		Status:     BranchStatus(str(m["status"])),
	}
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func num(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func boolVal(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func tm(v interface{}) time.Time {
	if t, ok := v.(time.Time); ok {
		return t
	}
	return time.Time{}
}
