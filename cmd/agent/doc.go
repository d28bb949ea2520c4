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
Command agent runs the AxonFlow Agent process, the worker-adjacent
pre-check gateway.

It sits in front of a worker's tool calls, evaluating each one against a
static policy engine (SQL-injection/dangerous-query detection, PII pattern
matching) and permission rules, recording a tamper-evident decision-chain
entry for every call, before the worker is allowed to reach the
Orchestrator.

# Usage

	agent

# Environment Variables

Optional:
  - PORT: HTTP server port (default: 8080)
  - ORCHESTRATOR_URL: URL of the Orchestrator admin API (default: http://localhost:8081)
  - DATABASE_URL: PostgreSQL connection string for the decision-chain
    durable tier; when unset the tracker runs in memory mode
  - AUDIT_MODE: "compliance" (sync writes for violations) or
    "performance" (async for everything); default compliance

# Example

	export ORCHESTRATOR_URL="http://localhost:8081"
	./agent
*/
package main
