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

package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"axonflow/platform/provider"
)

// NewBedrockHealthCheck returns a HealthCheckFunc that probes instances of
// the "custom" provider kind whose AuthDescriptor.Scheme is "iam" by calling
// bedrockruntime's ListFoundationModels-adjacent GetAsyncInvoke on a
// well-known sentinel job id. The call is expected to fail with a
// not-found/validation error for any real region+credentials pair; only the
// transport-level outcome (reached the service at all) is used as the
// health signal. Inference is never performed here — routing decisions for
// custom/bedrock instances still go through the worker RPC path.
func NewBedrockHealthCheck() HealthCheckFunc {
	return func(ctx context.Context, inst *Instance) (time.Duration, error) {
		if inst.ProviderID != provider.Custom || inst.Auth.Scheme != "iam" {
			return 0, nil
		}

		start := time.Now()
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(inst.Region))
		if err != nil {
			return time.Since(start), fmt.Errorf("bedrock health check: loading AWS config: %w", err)
		}

		client := bedrockruntime.NewFromConfig(cfg)
		_, err = client.GetAsyncInvoke(ctx, &bedrockruntime.GetAsyncInvokeInput{
			InvocationArn: aws.String("axonflow-health-check-sentinel"),
		})
		elapsed := time.Since(start)

		// Any response (including a "not found"/validation error) means the
		// regional Bedrock endpoint is reachable with the configured
		// credentials. Only transport-level failures (net.Error) count as
		// unhealthy; auth errors returned by the service do not.
		if err != nil && isBedrockTransportError(err) {
			return elapsed, err
		}
		return elapsed, nil
	}
}

// isBedrockTransportError reports whether err indicates the regional
// endpoint itself was unreachable (DNS, connection refused/timeout) as
// opposed to a well-formed API error from a reachable endpoint (bad ARN,
// access denied by policy) — the latter still proves connectivity.
func isBedrockTransportError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
