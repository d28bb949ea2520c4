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

// Package provider holds the process-wide, immutable catalog of LLM
// provider descriptors the Registry and Router consult for pricing,
// capability, and fallback-priority metadata.
package provider

// ID identifies one of the supported provider kinds.
type ID string

const (
	Anthropic ID = "anthropic"
	OpenAI ID = "openai"
	Google ID = "google"
	Groq ID = "groq"
	Cerebras ID = "cerebras"
	Ollama ID = "ollama"
	Kimi ID = "kimi"
	MiniMax ID = "minimax"
	Custom ID = "custom"
)

// Capability names a feature a provider/model combination may support.
type Capability string

const (
	CapabilityStreaming Capability = "streaming"
	CapabilityToolCalling Capability = "tool_calling"
	CapabilityVision Capability = "vision"
	CapabilityJSONMode Capability = "json_mode"
	CapabilityLongContext Capability = "long_context"
	CapabilityEmbedding Capability = "embedding"
	CapabilitySystemPrompt Capability = "system_prompt"
)

// PriceTable is a USD-per-1000-token rate for input and output tokens.
type PriceTable struct {
	InputPer1K float64
	OutputPer1K float64
}

// Descriptor is a single immutable catalog entry for a provider kind.
type Descriptor struct {
	ID ID
	DefaultModel string
	Models []string
	Capabilities []Capability
	DefaultLatencyMs int
	ContextWindowTokens int
	QualityScore int // 0..100
	FallbackPriority int // lower is preferred
	Price PriceTable
	AuthRequired bool
	AuthCredentialKeyName string
}

// HasCapability reports whether the descriptor advertises cap.
func (d Descriptor) HasCapability(cap Capability) bool {
	for _, c:= range d.Capabilities {
 if c == cap {
 return true
 }
	}
	return false
}

// HasAllCapabilities reports whether the descriptor advertises every
// capability in required.
func (d Descriptor) HasAllCapabilities(required []Capability) bool {
	for _, c:= range required {
 if !d.HasCapability(c) {
 return false
 }
	}
	return true
}

// catalog is the static, process-wide provider table. It is never mutated
// after package init; callers receive copies via Get/All.
var catalog = map[ID]Descriptor{
	Anthropic: {
 ID: Anthropic,
 DefaultModel: "claude-sonnet-4-5",
 Models: []string{"claude-sonnet-4-5", "claude-opus-4-1", "claude-haiku-4-5"},
 Capabilities: []Capability{CapabilityStreaming, CapabilityToolCalling, CapabilityVision, CapabilityLongContext, CapabilitySystemPrompt},
 DefaultLatencyMs: 900,
 ContextWindowTokens: 200_000,
 QualityScore: 95,
 FallbackPriority: 1,
 Price: PriceTable{InputPer1K: 0.003, OutputPer1K: 0.015},
 AuthRequired: true,
 AuthCredentialKeyName: "ANTHROPIC_API_KEY",
	},
	OpenAI: {
 ID: OpenAI,
 DefaultModel: "gpt-4o",
 Models: []string{"gpt-4o", "gpt-4o-mini", "o1"},
 Capabilities: []Capability{CapabilityStreaming, CapabilityToolCalling, CapabilityVision, CapabilityJSONMode, CapabilitySystemPrompt},
 DefaultLatencyMs: 1100,
 ContextWindowTokens: 128_000,
 QualityScore: 92,
 FallbackPriority: 2,
 Price: PriceTable{InputPer1K: 0.0025, OutputPer1K: 0.01},
 AuthRequired: true,
 AuthCredentialKeyName: "OPENAI_API_KEY",
	},
	Google: {
 ID: Google,
 DefaultModel: "gemini-2.0-pro",
 Models: []string{"gemini-2.0-pro", "gemini-2.0-flash"},
 Capabilities: []Capability{CapabilityStreaming, CapabilityToolCalling, CapabilityVision, CapabilityLongContext},
 DefaultLatencyMs: 1000,
 ContextWindowTokens: 1_000_000,
 QualityScore: 90,
 FallbackPriority: 3,
 Price: PriceTable{InputPer1K: 0.00125, OutputPer1K: 0.005},
 AuthRequired: true,
 AuthCredentialKeyName: "GOOGLE_API_KEY",
	},
	Kimi: {
 ID: Kimi,
 DefaultModel: "moonshot-v1-128k",
 Models: []string{"moonshot-v1-128k", "moonshot-v1-32k"},
 Capabilities: []Capability{CapabilityStreaming, CapabilityToolCalling, CapabilityLongContext},
 DefaultLatencyMs: 1300,
 ContextWindowTokens: 128_000,
 QualityScore: 82,
 FallbackPriority: 4,
 Price: PriceTable{InputPer1K: 0.0012, OutputPer1K: 0.0012},
 AuthRequired: true,
 AuthCredentialKeyName: "KIMI_API_KEY",
	},
	Groq: {
 ID: Groq,
 DefaultModel: "llama-3.3-70b-versatile",
 Models: []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant"},
 Capabilities: []Capability{CapabilityStreaming, CapabilityToolCalling},
 DefaultLatencyMs: 350,
 ContextWindowTokens: 128_000,
 QualityScore: 78,
 FallbackPriority: 5,
 Price: PriceTable{InputPer1K: 0.00059, OutputPer1K: 0.00079},
 AuthRequired: true,
 AuthCredentialKeyName: "GROQ_API_KEY",
	},
	Cerebras: {
 ID: Cerebras,
 DefaultModel: "llama-3.3-70b",
 Models: []string{"llama-3.3-70b", "llama-3.1-8b"},
 Capabilities: []Capability{CapabilityStreaming},
 DefaultLatencyMs: 250,
 ContextWindowTokens: 128_000,
 QualityScore: 75,
 FallbackPriority: 6,
 Price: PriceTable{InputPer1K: 0.0006, OutputPer1K: 0.0006},
 AuthRequired: true,
 AuthCredentialKeyName: "CEREBRAS_API_KEY",
	},
	MiniMax: {
 ID: MiniMax,
 DefaultModel: "abab6.5s-chat",
 Models: []string{"abab6.5s-chat"},
 Capabilities: []Capability{CapabilityStreaming, CapabilityToolCalling},
 DefaultLatencyMs: 1200,
 ContextWindowTokens: 245_000,
 QualityScore: 74,
 FallbackPriority: 7,
 Price: PriceTable{InputPer1K: 0.001, OutputPer1K: 0.001},
 AuthRequired: true,
 AuthCredentialKeyName: "MINIMAX_API_KEY",
	},
	Ollama: {
 ID: Ollama,
 DefaultModel: "llama3.3",
 Models: []string{"llama3.3", "qwen2.5"},
 Capabilities: []Capability{CapabilityStreaming},
 DefaultLatencyMs: 2000,
 ContextWindowTokens: 32_000,
 QualityScore: 65,
 FallbackPriority: 8,
 Price: PriceTable{InputPer1K: 0, OutputPer1K: 0},
 AuthRequired: false,
	},
	Custom: {
 ID: Custom,
 DefaultModel: "custom-default",
 Models: []string{"custom-default"},
 Capabilities: []Capability{CapabilityStreaming, CapabilityToolCalling},
 DefaultLatencyMs: 1500,
 ContextWindowTokens: 64_000,
 QualityScore: 60,
 FallbackPriority: 9,
 Price: PriceTable{InputPer1K: 1.0, OutputPer1K: 2.0},
 AuthRequired: false,
 AuthCredentialKeyName: "CUSTOM_PROVIDER_AUTH",
	},
}

// Get returns the descriptor for id and whether it exists in the catalog.
func Get(id ID) (Descriptor, bool) {
	d, ok:= catalog[id]
	return d, ok
}

// All returns every catalog entry, ordered by FallbackPriority ascending.
func All() []Descriptor {
	out:= make([]Descriptor, 0, len(catalog))
	for _, d:= range catalog {
 out = append(out, d)
	}
	for i:= 1; i < len(out); i++ {
 for j:= i; j > 0 && out[j].FallbackPriority < out[j-1].FallbackPriority; j-- {
 out[j], out[j-1] = out[j-1], out[j]
 }
	}
	return out
}

// DefaultFallbackChain returns the default provider priority order used by
// the fallback_chain routing strategy.
func DefaultFallbackChain() []ID {
	return []ID{Anthropic, OpenAI, Google, Kimi, Groq, Cerebras, MiniMax}
}
