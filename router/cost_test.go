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

package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"axonflow/platform/provider"
)

func TestEstimateCostSplitsByRatio(t *testing.T) {
	estimate := estimateCost(provider.Anthropic, 1000, 0.7)
	assert.Equal(t, 700, estimate.InputTokens)
	assert.Equal(t, 300, estimate.OutputTokens)
	assert.Greater(t, estimate.TotalCost, 0.0)
}

func TestEstimateCostUnknownProviderFallsBackToDefault(t *testing.T) {
	estimate := estimateCost(provider.ID("unknown-provider"), 1000, 0.7)
	expectedInput := 0.7 * 1000 / 1000 * defaultInputCostPer1K
	expectedOutput := 0.3 * 1000 / 1000 * defaultOutputCostPer1K
	assert.InDelta(t, expectedInput+expectedOutput, estimate.TotalCost, 0.0001)
}

func TestEstimateRequestCostUsesAverageRates(t *testing.T) {
	cost := estimateRequestCost(1000)
	assert.Greater(t, cost, 0.0)
	assert.Less(t, cost, 1.0)
}
