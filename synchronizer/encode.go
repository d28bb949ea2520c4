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

package synchronizer

import (
	"encoding/json"
	"time"
)

// timeMarkerKey tags an encoded time.Time so a round trip through
// EncodeState/DecodeState recovers a real time.Time rather than a bare
// string. Session and tree state use it on both tiers, checkpoint state on
// the durable tier; the cache tier stores whole checkpoints with plain
// encoding/json, so time values in their State come back as strings.
const timeMarkerKey = "$time"

// OrderedPair is one entry of an OrderedMap.
type OrderedPair struct {
	Key string
	Value interface{}
}

// OrderedMap preserves insertion order through encode/decode, for state
// fields where key order is part of the data.
type OrderedMap struct {
	Pairs []OrderedPair
}

// Set appends or updates a key, preserving first-seen order.
func (m *OrderedMap) Set(key string, value interface{}) {
	for i, p:= range m.Pairs {
 if p.Key == key {
 m.Pairs[i].Value = value
 return
 }
	}
	m.Pairs = append(m.Pairs, OrderedPair{Key: key, Value: value})
}

// Get returns the value for key, if present.
func (m *OrderedMap) Get(key string) (interface{}, bool) {
	for _, p:= range m.Pairs {
 if p.Key == key {
 return p.Value, true
 }
	}
	return nil, false
}

// MarshalJSON renders the map as a marked, ordered array so decode can
// reconstruct pair order (a plain JSON object does not guarantee it).
func (m OrderedMap) MarshalJSON() ([]byte, error) {
	type wire struct {
 Type string `json:"$type"`
 Pairs []OrderedPair `json:"pairs"`
	}
	return json.Marshal(wire{Type: "ordered_map", Pairs: m.Pairs})
}

// UnmarshalJSON restores an OrderedMap encoded by MarshalJSON.
func (m *OrderedMap) UnmarshalJSON(data []byte) error {
	type wire struct {
 Type string `json:"$type"`
 Pairs []OrderedPair `json:"pairs"`
	}
	var w wire
	if err:= json.Unmarshal(data, &w); err != nil {
 return err
	}
	m.Pairs = w.Pairs
	return nil
}

// encodeValue recursively wraps time.Time values so they survive a JSON
// round trip as real time.Time rather than RFC3339 strings indistinguishable
// from caller-supplied strings.
func encodeValue(v interface{}) interface{} {
	switch val:= v.(type) {
	case time.Time:
 return map[string]interface{}{timeMarkerKey: val.UTC().Format(time.RFC3339Nano)}
	case map[string]interface{}:
 out:= make(map[string]interface{}, len(val))
 for k, vv:= range val {
 out[k] = encodeValue(vv)
 }
 return out
	case []interface{}:
 out:= make([]interface{}, len(val))
 for i, vv:= range val {
 out[i] = encodeValue(vv)
 }
 return out
	default:
 return v
	}
}

// decodeValue reverses encodeValue, turning time markers back into
// time.Time.
func decodeValue(v interface{}) interface{} {
	switch val:= v.(type) {
	case map[string]interface{}:
 if len(val) == 1 {
 if raw, ok:= val[timeMarkerKey]; ok {
 if s, ok:= raw.(string); ok {
 if t, err:= time.Parse(time.RFC3339Nano, s); err == nil {
 return t
 }
 }
 }
 }
 out:= make(map[string]interface{}, len(val))
 for k, vv:= range val {
 out[k] = decodeValue(vv)
 }
 return out
	case []interface{}:
 out:= make([]interface{}, len(val))
 for i, vv:= range val {
 out[i] = decodeValue(vv)
 }
 return out
	default:
 return v
	}
}

// EncodeState marshals a state map to bytes with lossless time markers.
func EncodeState(state map[string]interface{}) ([]byte, error) {
	encoded, ok:= encodeValue(state).(map[string]interface{})
	if !ok {
 encoded = map[string]interface{}{}
	}
	data, err:= json.Marshal(encoded)
	if err != nil {
 return nil, newError(ErrCodeEncodeFailed, "failed to encode state", err)
	}
	return data, nil
}

// DecodeState unmarshals bytes produced by EncodeState.
func DecodeState(data []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err:= json.Unmarshal(data, &raw); err != nil {
 return nil, newError(ErrCodeDecodeFailed, "failed to decode state", err)
	}
	decoded, ok:= decodeValue(raw).(map[string]interface{})
	if !ok {
 decoded = map[string]interface{}{}
	}
	return decoded, nil
}
