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

package toolintercept

import (
	"path/filepath"
	"strings"
)

// resolveInWorktree resolves relative against worktreeRoot and rejects
// any result that escapes the root via lexical parent-directory
// detection.
func resolveInWorktree(relative, worktreeRoot string) (string, error) {
	if worktreeRoot == "" {
 return "", newError(ErrCodePathEscape, "no worktree root configured", nil)
	}
	root:= filepath.Clean(worktreeRoot)
	joined:= filepath.Join(root, relative)
	resolved:= filepath.Clean(joined)

	if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
 return "", newError(ErrCodePathEscape, "path escapes worktree root: "+relative, nil)
	}
	return resolved, nil
}
