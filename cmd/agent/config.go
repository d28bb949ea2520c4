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

package main

import (
	"os"
	"strconv"
)

// Config is cmd/agent's process configuration, read entirely from the
// environment (grounded on the same env-var-driven shape cmd/orchestrator's
// YAML loader falls back to when no file is mounted).
type Config struct {
	Port            int
	OrchestratorURL string
	DatabaseURL     string
	AuditMode       string
}

func loadAgentConfig() Config {
	cfg := Config{
		Port:            8080,
		OrchestratorURL: "http://localhost:8081",
		AuditMode:       "compliance",
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("ORCHESTRATOR_URL"); v != "" {
		cfg.OrchestratorURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("AUDIT_MODE"); v != "" {
		cfg.AuditMode = v
	}
	return cfg
}
