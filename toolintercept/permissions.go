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

// PermissionCondition builds a ConditionFunc that denies a tool call
// unless cctx.Permissions grants "tool:<name>:<operation>" (or a
// matching wildcard), via the shared wildcard permission matcher
//. operation is typically "execute" for
// most tools, or the specific sub-action a caller cares about.
func (i *Interceptor) PermissionCondition(operation string) ConditionFunc {
	return func(call ToolCall, cctx CallContext) (Decision, bool) {
 allowed, err:= i.perms.EvaluatePermission(cctx.Permissions, call.Name, operation)
 if err != nil || !allowed {
 reason:= "missing permission"
 if err != nil {
 reason = err.Error()
 }
 return Decision{Action: ActionDeny, Reason: reason}, true
 }
 return Decision{}, false
	}
}
