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

package synchronizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeStateRoundTripsTime(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 123456000, time.UTC)
	state := map[string]interface{}{
		"started_at": now,
		"nested": map[string]interface{}{
			"updated_at": now,
			"count":      float64(3),
		},
		"items": []interface{}{now, "plain"},
	}

	data, err := EncodeState(state)
	require.NoError(t, err)

	decoded, err := DecodeState(data)
	require.NoError(t, err)

	gotTime, ok := decoded["started_at"].(time.Time)
	require.True(t, ok, "expected started_at to decode back to time.Time")
	require.True(t, now.Equal(gotTime))

	nested, ok := decoded["nested"].(map[string]interface{})
	require.True(t, ok)
	nestedTime, ok := nested["updated_at"].(time.Time)
	require.True(t, ok)
	require.True(t, now.Equal(nestedTime))

	items, ok := decoded["items"].([]interface{})
	require.True(t, ok)
	require.Len(t, items, 2)
	itemTime, ok := items[0].(time.Time)
	require.True(t, ok)
	require.True(t, now.Equal(itemTime))
	require.Equal(t, "plain", items[1])
}

func TestEncodeStatePlainStringNotMistakenForTime(t *testing.T) {
	state := map[string]interface{}{
		"note": "just a string, not a time marker",
	}
	data, err := EncodeState(state)
	require.NoError(t, err)

	decoded, err := DecodeState(data)
	require.NoError(t, err)
	require.Equal(t, "just a string, not a time marker", decoded["note"])
}

func TestOrderedMapPreservesInsertionOrder(t *testing.T) {
	var m OrderedMap
	m.Set("z", 1)
	m.Set("a", 2)
	m.Set("m", 3)

	data, err := m.MarshalJSON()
	require.NoError(t, err)

	var out OrderedMap
	require.NoError(t, out.UnmarshalJSON(data))
	require.Len(t, out.Pairs, 3)
	require.Equal(t, "z", out.Pairs[0].Key)
	require.Equal(t, "a", out.Pairs[1].Key)
	require.Equal(t, "m", out.Pairs[2].Key)
}

func TestOrderedMapSetUpdatesExistingKeyInPlace(t *testing.T) {
	var m OrderedMap
	m.Set("x", 1)
	m.Set("y", 2)
	m.Set("x", 99)

	require.Len(t, m.Pairs, 2)
	v, ok := m.Get("x")
	require.True(t, ok)
	require.Equal(t, 99, v)
	require.Equal(t, "x", m.Pairs[0].Key)
}
