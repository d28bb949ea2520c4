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
)

const summaryPreviewChars = 200

// CompactionReport summarizes the effect of a compactHistory call.
type CompactionReport struct {
	SessionID string
	NodesCompacted int
	TokensReclaimed int
	TotalTokensAfter int
}

// CompactHistory truncates the oldest half of the root-to-current path into
// summaries once totalTokens crosses threshold (default ~100k).
func (m *Manager) CompactHistory(ctx context.Context, sessionID string, threshold int) (*CompactionReport, error) {
	unlock:= m.lockSession(sessionID)
	defer unlock()

	t, err:= m.getTreeLocked(ctx, sessionID)
	if err != nil {
 return nil, err
	}

	if threshold <= 0 {
 threshold = 100_000
	}

	report:= &CompactionReport{SessionID: sessionID, TotalTokensAfter: t.Metadata.TotalTokens}
	if t.Metadata.TotalTokens < threshold {
 return report, nil
	}

	path, err:= GetPathToRoot(t, t.CurrentNodeID)
	if err != nil {
 return nil, err
	}

	candidates:= candidateIndices(path)

	now:= time.Now().UTC()
	var reclaimed int
	for _, idx:= range candidates {
 n:= path[idx]
 if n.Compacted {
 continue
 }
 n.Compacted = true
 n.Summary = truncatePreview(n.Content)
 reclaimed += n.TokenCount
 report.NodesCompacted++
	}

	t.Metadata.TotalTokens -= reclaimed
	t.Metadata.CompactionCount++
	t.Metadata.UpdatedAt = now
	t.Metadata.Version++

	report.TokensReclaimed = reclaimed
	report.TotalTokensAfter = t.Metadata.TotalTokens

	if m.store != nil {
 if _, err:= m.store.SaveTreeState(ctx, sessionID, toStateMap(t)); err != nil {
 m.logger.Warn(sessionID, "", "tree compactHistory persist failed", map[string]interface{}{"error": err.Error()})
 }
	}
	return report, nil
}

// candidateIndices returns the indices of path eligible for compaction:
// first the path is narrowed to exclude an empty-content root and the final
// two nodes; the first 50% of that narrowed range is then taken, and any
// system-role node within that prefix is excluded.
func candidateIndices(path []*Node) []int {
	if len(path) == 0 {
 return nil
	}
	start:= 0
	if path[0].Role == RoleSystem && path[0].Content == "" {
 start = 1
	}
	end:= len(path) - 2
	if end < start {
 end = start
	}

	half:= start + (end-start)/2

	var out []int
	for i:= start; i < half; i++ {
 if path[i].Role == RoleSystem {
 continue
 }
 out = append(out, i)
	}
	return out
}

func truncatePreview(content string) string {
	runes:= []rune(content)
	if len(runes) <= summaryPreviewChars {
 return content
	}
	return string(runes[:summaryPreviewChars]) + "…"
}
