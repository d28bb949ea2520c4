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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/platform/provider"
	"axonflow/platform/registry"
)

func instanceWith(t *testing.T, id string, pid provider.ID) *registry.Instance {
	t.Helper()
	r := registry.New()
	_, err := r.Register(context.Background(), registry.InstanceConfig{ID: id, ProviderID: pid, MaxConcurrent: 10})
	require.NoError(t, err)
	require.NoError(t, r.SetHealth(id, registry.HealthHealthy, ""))
	inst, err := r.Get(id)
	require.NoError(t, err)
	return inst
}

func TestCostOptimizedStrategyPrefersCheaperProvider(t *testing.T) {
	cheap := instanceWith(t, "ollama-1", provider.Ollama)
	expensive := instanceWith(t, "custom-1", provider.Custom)

	scored := costOptimizedStrategy(Request{EstimatedTokens: 10000}, []*registry.Instance{cheap, expensive})
	require.Len(t, scored, 2)
	assert.Equal(t, "ollama-1", scored[0].Instance.ID)
}

func TestContextWindowScoreSteps(t *testing.T) {
	assert.Equal(t, 20.0, contextWindowScore(20000, 10000))
	assert.Equal(t, 15.0, contextWindowScore(15000, 10000))
	assert.Equal(t, 10.0, contextWindowScore(10000, 10000))
	assert.Equal(t, 5.0, contextWindowScore(7500, 10000))
	assert.Equal(t, 0.0, contextWindowScore(1000, 10000))
}

func TestCapabilityMatchedStrategyFiltersByMinQualityScore(t *testing.T) {
	inst := instanceWith(t, "ollama-1", provider.Ollama)
	scored := capabilityMatchedStrategy(Request{MinQualityScore: 1000}, []*registry.Instance{inst})
	assert.Empty(t, scored)
}

func TestFallbackChainRanksUnknownProvidersLast(t *testing.T) {
	known := instanceWith(t, "anthropic-1", provider.Anthropic)
	unknown := instanceWith(t, "custom-1", provider.Custom)

	scored := fallbackChainStrategy(Request{}, []*registry.Instance{unknown, known})
	require.Len(t, scored, 2)
	assert.Equal(t, "anthropic-1", scored[0].Instance.ID)
}
