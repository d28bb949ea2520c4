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

package router

import "axonflow/platform/provider"

// defaultInputCostPer1K/defaultOutputCostPer1K back estimateCost when the
// provider id is unknown to the catalog.
const (
	defaultInputCostPer1K = 1.0
	defaultOutputCostPer1K = 2.0

	// averageInputCostPer1K/averageOutputCostPer1K back
	// estimateRequestCost, which has no candidate instance to price
	// against.
	averageInputCostPer1K = 0.005
	averageOutputCostPer1K = 0.015

	defaultInputRatio = 0.7
)

// estimateCost prices totalTokens against a specific instance's provider,
// splitting input/output by inputRatio.
// inputRatio <= 0 defaults to 0.7.
func estimateCost(providerID provider.ID, totalTokens int, inputRatio float64) CostEstimate {
	if inputRatio <= 0 {
 inputRatio = defaultInputRatio
	}

	inputTokens:= int(float64(totalTokens) * inputRatio)
	outputTokens:= totalTokens - inputTokens

	inPer1K, outPer1K:= defaultInputCostPer1K, defaultOutputCostPer1K
	if desc, ok:= provider.Get(providerID); ok {
 inPer1K = desc.Price.InputPer1K
 outPer1K = desc.Price.OutputPer1K
	}

	inputCost:= float64(inputTokens) / 1000 * inPer1K
	outputCost:= float64(outputTokens) / 1000 * outPer1K

	return CostEstimate{
 InputTokens: inputTokens,
 OutputTokens: outputTokens,
 InputCost: inputCost,
 OutputCost: outputCost,
 TotalCost: inputCost + outputCost,
	}
}

// estimateRequestCost prices a request before any instance has been
// selected, using the catalog-wide average per-token cost.
func estimateRequestCost(totalTokens int) float64 {
	inputTokens:= int(float64(totalTokens) * defaultInputRatio)
	outputTokens:= totalTokens - inputTokens
	return float64(inputTokens)/1000*averageInputCostPer1K + float64(outputTokens)/1000*averageOutputCostPer1K
}
