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

// Package synchronizer is the hybrid two-tier (cache + durable) persistence
// layer for checkpoints, session state, and tree state.
package synchronizer

import "time"

// Trigger names what caused a checkpoint to be taken.
type Trigger string

const (
	TriggerAuto Trigger = "auto"
	TriggerManual Trigger = "manual"
	TriggerPrePause Trigger = "pre_pause"
	TriggerPreMigrate Trigger = "pre_migrate"
	TriggerFinal Trigger = "final"
)

// CheckpointData is a single saved snapshot of session state.
type CheckpointData struct {
	ID string
	SessionID string
	Trigger Trigger
	State map[string]interface{}
	TokenCount int
	CreatedAt time.Time
}

// SaveResult reports which tiers accepted a write, for callers that need to
// know about partial (single-tier) success.
type SaveResult struct {
	CacheOK bool
	DurableOK bool
}

// Succeeded reports whether the write satisfied the "either tier" policy.
func (s SaveResult) Succeeded() bool {
	return s.CacheOK || s.DurableOK
}

// BatchItem is one entry of a saveAll batch.
type BatchItem struct {
	Kind BatchItemKind
	SessionID string
	Checkpoint *CheckpointData
	State map[string]interface{}
	Tree map[string]interface{}
}

// BatchItemKind discriminates the payload carried by a BatchItem.
type BatchItemKind string

const (
	BatchCheckpoint BatchItemKind = "checkpoint"
	BatchSessionState BatchItemKind = "session_state"
	BatchTreeState BatchItemKind = "tree_state"
)

// Default TTLs for the cache tier.
const (
	checkpointTTL = 24 * time.Hour
	sessionStateTTL = time.Hour
	treeStateTTL = time.Hour
)
