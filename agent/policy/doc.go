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

/*
Package policy provides the wildcard permission matcher used by the Tool
Interceptor's policy conditions.

# Permission Format

Permissions follow a hierarchical format:

	tool:name:operation

Examples:
  - "tool:bash:execute" - specific operation on the bash tool
  - "tool:bash:*" - all operations on the bash tool
  - "tool:*" - all tool operations
  - "*" - global wildcard

# Usage

	evaluator := policy.NewPermissionEvaluator()
	allowed, err := evaluator.EvaluatePermission(context.Permissions, "bash", "execute")
	if !allowed {
	    return fmt.Errorf("permission denied: %v", err)
	}

# Evaluation order

 1. Exact match: "tool:bash:execute"
 2. Tool wildcard: "tool:bash:*"
 3. Global tool wildcard: "tool:*"
 4. Absolute wildcard: "*"

# Thread safety

PermissionEvaluator is safe for concurrent use from multiple goroutines.
*/
package policy
