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
	"context"
	"fmt"

	"axonflow/platform/connectors/base"
	"axonflow/platform/connectors/sdk"
)

// ConnectorExecutor adapts an MCP base.Connector into a RemoteExecutor:
// tool names matching one of the connector's advertised capabilities are
// routed to it as a base.Command.
//
// Retry and per-agent rate limiting are applied around every dispatch using
// the shared connector SDK helpers, so a flaky or overloaded downstream
// connector doesn't take down tool dispatch for every caller: Retry and
// Limiter default to DefaultRetryConfig and a generous shared limiter when
// left nil, so existing callers that only set Connector keep working.
type ConnectorExecutor struct {
	Connector base.Connector
	Retry *sdk.RetryConfig
	Limiter *sdk.MultiTenantRateLimiter
}

func (c *ConnectorExecutor) retryConfig() *sdk.RetryConfig {
	if c.Retry != nil {
 return c.Retry
	}
	return sdk.DefaultRetryConfig()
}

func (c *ConnectorExecutor) limiter() *sdk.MultiTenantRateLimiter {
	if c.Limiter != nil {
 return c.Limiter
	}
	return defaultConnectorLimiter
}

// defaultConnectorLimiter backs every ConnectorExecutor that doesn't set its
// own Limiter: 20 req/s per agent with a burst of 40, shared across
// connectors so the default stays a single allocation rather than one per
// executor instance.
var defaultConnectorLimiter = sdk.NewMultiTenantRateLimiter(20, 40)

// Name identifies this executor for audit/listAvailableTools purposes.
func (c *ConnectorExecutor) Name() string { return c.Connector.Name() }

// CanHandle reports whether toolName is one of the connector's advertised
// capabilities.
func (c *ConnectorExecutor) CanHandle(toolName string, cctx CallContext) bool {
	for _, capability:= range c.Connector.Capabilities() {
 if capability == toolName {
 return true
 }
	}
	return false
}

// Execute maps the tool call onto the connector's Command/Execute shape,
// rate-limited per agent and retried with backoff on transient failures.
func (c *ConnectorExecutor) Execute(ctx context.Context, call ToolCall, cctx CallContext) (interface{}, error) {
	if err:= c.limiter().Wait(ctx, cctx.AgentID); err != nil {
 return nil, fmt.Errorf("connector %s: rate limited: %w", c.Connector.Name(), err)
	}

	action, _:= call.Args["action"].(string)
	if action == "" {
 action = call.Name
	}
	statement, _:= call.Args["statement"].(string)

	res, err:= sdk.RetryWithBackoff(ctx, c.retryConfig(), func() (interface{}, error) {
 return c.Connector.Execute(ctx, &base.Command{
 Action: action,
 Statement: statement,
 Parameters: call.Args,
 Timeout: call.Timeout,
 })
	})
	if err != nil {
 return nil, fmt.Errorf("connector %s: %w", c.Connector.Name(), err)
	}
	return res, nil
}
