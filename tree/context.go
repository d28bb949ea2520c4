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

const defaultMaxContextTokens = 128_000

// ContextMessage is one entry of the wire shape the worker RPC's
// session.send expects: assistant messages carry a tool-calls
// list, tool messages carry a tool-call-id correlation.
type ContextMessage struct {
	Role Role `json:"role"`
	Content string `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// GetMessagesForContext materializes the root→nodeId path, using each
// node's content (or its summary if compacted), keeping the longest tail
// suffix of that path whose cumulative tokens do not exceed maxTokens
//. maxTokens <= 0
// defaults to 128k.
func GetMessagesForContext(t *Tree, nodeID string, maxTokens int) ([]ContextMessage, error) {
	if maxTokens <= 0 {
 maxTokens = defaultMaxContextTokens
	}
	path, err:= GetPathToRoot(t, nodeID)
	if err != nil {
 return nil, err
	}

	type entry struct {
 node *Node
 text string
 tokenCost int
	}
	entries:= make([]entry, len(path))
	for i, n:= range path {
 text:= n.Content
 tokenCost:= n.TokenCount
 if n.Compacted {
 text = n.Summary
 tokenCost = estimateTokens(text)
 }
 entries[i] = entry{node: n, text: text, tokenCost: tokenCost}
	}

	// Walk from the tail backwards, including nodes while the running total
	// stays within budget, then emit in root→tail order.
	firstIncluded:= len(entries)
	var used int
	for i:= len(entries) - 1; i >= 0; i-- {
 if used+entries[i].tokenCost > maxTokens {
 break
 }
 used += entries[i].tokenCost
 firstIncluded = i
	}

	messages:= make([]ContextMessage, 0, len(entries)-firstIncluded)
	for i:= firstIncluded; i < len(entries); i++ {
 e:= entries[i]
 msg:= ContextMessage{Role: e.node.Role, Content: e.text}
 if e.node.Role == RoleAssistant && len(e.node.ToolCalls) > 0 {
 msg.ToolCalls = e.node.ToolCalls
 }
 if e.node.Role == RoleTool && len(e.node.ToolResults) > 0 {
 msg.ToolCallID = e.node.ToolResults[0].ToolCallID
 msg.Content = e.node.ToolResults[0].Content
 }
 messages = append(messages, msg)
	}
	return messages, nil
}
