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

// Package registry is the single source of truth for known worker
// Instances and their capacity: discovery, health monitoring with
// hysteresis, capacity accounting, and selection strategies.
package registry

import (
	"time"

	"axonflow/platform/provider"
)

// Health is an Instance's current health classification.
type Health string

const (
	HealthHealthy Health = "healthy"
	HealthDegraded Health = "degraded"
	HealthUnhealthy Health = "unhealthy"
	HealthUnknown Health = "unknown"
)

// DeploymentMode describes how an Instance's worker process is hosted.
type DeploymentMode string

const (
	DeploymentLocal DeploymentMode = "local"
	DeploymentDocker DeploymentMode = "docker"
	DeploymentKubernetes DeploymentMode = "kubernetes"
	DeploymentRemote DeploymentMode = "remote"
)

// Capacity holds an Instance's concurrency accounting. Available and
// UtilizationPercent are derived fields: callers must not set them
// directly — Recompute keeps them consistent with MaxConcurrent/ActiveTasks.
type Capacity struct {
	MaxConcurrent int
	ActiveTasks int
	Available int
	UtilizationPercent float64
}

// Recompute derives Available and UtilizationPercent from MaxConcurrent and
// ActiveTasks. Must be called after any mutation of the primitive fields.
func (c *Capacity) Recompute() {
	available:= c.MaxConcurrent - c.ActiveTasks
	if available < 0 {
 available = 0
	}
	c.Available = available

	if c.MaxConcurrent == 0 {
 c.UtilizationPercent = 0
 return
	}
	c.UtilizationPercent = float64(c.ActiveTasks) / float64(c.MaxConcurrent) * 100
}

// AuthDescriptor names the credential an Instance authenticates with,
// without carrying the credential value itself.
type AuthDescriptor struct {
	CredentialKeyName string
	Scheme string // e.g. "bearer", "iam", "none"
}

// Instance represents a running worker process.
type Instance struct {
	ID string
	Name string
	ProviderID provider.ID
	ModelID string
	DeploymentMode DeploymentMode
	Endpoint string
	Health Health
	Capabilities []provider.Capability
	Region string
	Capacity Capacity
	LastHeartbeat time.Time
	RegisteredAt time.Time
	Auth AuthDescriptor
	Metadata map[string]interface{}
	Tags []string
}

// HasCapability reports whether the instance advertises cap.
func (i *Instance) HasCapability(cap provider.Capability) bool {
	for _, c:= range i.Capabilities {
 if c == cap {
 return true
 }
	}
	return false
}

// HasAllCapabilities reports whether the instance advertises every
// capability in required.
func (i *Instance) HasAllCapabilities(required []provider.Capability) bool {
	for _, c:= range required {
 if !i.HasCapability(c) {
 return false
 }
	}
	return true
}

// HasAnyTag reports whether the instance carries at least one of tags.
func (i *Instance) HasAnyTag(tags []string) bool {
	if len(tags) == 0 {
 return true
	}
	for _, want:= range tags {
 for _, have:= range i.Tags {
 if want == have {
 return true
 }
 }
	}
	return false
}

// Clone returns a deep-enough copy for safe handoff to callers outside the
// registry's lock.
func (i *Instance) Clone() *Instance {
	clone:= *i
	clone.Capabilities = append([]provider.Capability(nil), i.Capabilities...)
	clone.Tags = append([]string(nil), i.Tags...)
	clone.Metadata = make(map[string]interface{}, len(i.Metadata))
	for k, v:= range i.Metadata {
 clone.Metadata[k] = v
	}
	return &clone
}

// SelectionStrategy names a SelectInstance scoring strategy.
type SelectionStrategy string

const (
	StrategyLeastLoaded SelectionStrategy = "least-loaded"
	StrategyRoundRobin SelectionStrategy = "round-robin"
	StrategyRandom SelectionStrategy = "random"
	StrategyCapabilityMatch SelectionStrategy = "capability-match"
)

// SelectionCriteria is the per-call input to SelectInstance.
type SelectionCriteria struct {
	PreferredProvider provider.ID
	RequiredCapabilities []provider.Capability
	MinAvailableCapacity int
	Region string
	Exclude map[string]struct{}
	Strategy SelectionStrategy
	Tags []string
}

// InstanceConfig is the input to Register: everything needed to construct
// and persist a new Instance.
type InstanceConfig struct {
	ID string
	Name string
	ProviderID provider.ID
	ModelID string
	DeploymentMode DeploymentMode
	Endpoint string
	Capabilities []provider.Capability
	Region string
	MaxConcurrent int
	Auth AuthDescriptor
	Metadata map[string]interface{}
	Tags []string
}

// CapacityReport is the result of GetAvailableCapacity.
type CapacityReport struct {
	TotalAvailable int
	TotalMax int
	ByProvider map[provider.ID]int
	ByRegion map[string]int
	HealthyInstances int
}

// Stats is the result of GetStats.
type Stats struct {
	TotalInstances int
	InstantiatedCount int
	HealthyCount int
	DegradedCount int
	UnhealthyCount int
	ByProvider map[provider.ID]int
}
