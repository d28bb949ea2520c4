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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyErrorCategories(t *testing.T) {
	cases := map[string]ErrorCategory{
		"connection reset by peer":          ErrorTransient,
		"rate limit exceeded, retry later":  ErrorRateLimit,
		"401 unauthorized":                  ErrorAuth,
		"invalid request: bad schema":       ErrorInvalidRequest,
		"maximum context length exceeded":   ErrorContextLength,
		"fatal: unrecoverable state":        ErrorFatal,
		"something weird happened":          ErrorUnknown,
	}
	for msg, want := range cases {
		assert.Equal(t, want, classifyError(errors.New(msg)), "message: %s", msg)
	}
}

func TestGetRetryDelayTransientBackoff(t *testing.T) {
	err := errors.New("connection reset")
	assert.Equal(t, 1000*time.Millisecond, getRetryDelay(err, 1))
	assert.Equal(t, 2000*time.Millisecond, getRetryDelay(err, 2))
	assert.Equal(t, 4000*time.Millisecond, getRetryDelay(err, 3))
}

func TestGetRetryDelayTransientCapsAt30s(t *testing.T) {
	err := errors.New("timeout")
	assert.Equal(t, 30*time.Second, getRetryDelay(err, 20))
}

func TestGetRetryDelayRateLimitUsesRetryAfter(t *testing.T) {
	err := &CallError{Message: "rate limit", RetryAfter: 12 * time.Second}
	assert.Equal(t, 12*time.Second, getRetryDelay(err, 1))
}

func TestGetRetryDelayNonRetryableReturnsNegative(t *testing.T) {
	for _, msg := range []string{"401 unauthorized", "invalid request", "fatal error", "context length exceeded"} {
		assert.Equal(t, time.Duration(-1), getRetryDelay(errors.New(msg), 1))
	}
}

func TestGetRetryDelayUnknownOnlyRetriesOnce(t *testing.T) {
	err := errors.New("something weird")
	assert.Equal(t, 1000*time.Millisecond, getRetryDelay(err, 1))
	assert.Equal(t, time.Duration(-1), getRetryDelay(err, 2))
}
