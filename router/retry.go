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

import (
	"errors"
	"strings"
	"time"
)

// classifyError maps an error's message/code substrings to an ErrorCategory.
func classifyError(err error) ErrorCategory {
	if err == nil {
 return ErrorUnknown
	}

	var callErr *CallError
	code, message:= "", err.Error()
	if errors.As(err, &callErr) {
 code = strings.ToLower(callErr.Code)
 message = strings.ToLower(callErr.Message)
	} else {
 message = strings.ToLower(message)
	}

	haystack:= code + " " + message
	switch {
	case containsAny(haystack, "rate limit", "rate_limit", "too many requests", "429"):
 return ErrorRateLimit
	case containsAny(haystack, "unauthorized", "forbidden", "invalid api key", "auth", "401", "403"):
 return ErrorAuth
	case containsAny(haystack, "context length", "context_length", "too many tokens", "maximum context"):
 return ErrorContextLength
	case containsAny(haystack, "invalid request", "invalid_request", "bad request", "400", "validation"):
 return ErrorInvalidRequest
	case containsAny(haystack, "fatal", "panic", "unrecoverable"):
 return ErrorFatal
	case containsAny(haystack, "timeout", "connection reset", "connection refused", "temporarily unavailable", "503", "502", "eof"):
 return ErrorTransient
	default:
 return ErrorUnknown
	}
}

func containsAny(haystack string, needles...string) bool {
	for _, n:= range needles {
 if strings.Contains(haystack, n) {
 return true
 }
	}
	return false
}

// getRetryDelay computes the delay before the next attempt, or -1 to
// indicate the caller must not retry.
func getRetryDelay(err error, attempt int) time.Duration {
	category:= classifyError(err)
	if attempt < 1 {
 attempt = 1
	}

	switch category {
	case ErrorTransient:
 return capDuration(time.Duration(1000*pow2(attempt-1))*time.Millisecond, 30*time.Second)
	case ErrorRateLimit:
 var callErr *CallError
 if errors.As(err, &callErr) && callErr.RetryAfter > 0 {
 return callErr.RetryAfter
 }
 return capDuration(time.Duration(5000*pow2(attempt-1))*time.Millisecond, 60*time.Second)
	case ErrorAuth, ErrorInvalidRequest, ErrorFatal, ErrorContextLength:
 return -1
	default: // unknown
 if attempt == 1 {
 return 1000 * time.Millisecond
 }
 return -1
	}
}

func pow2(n int) int64 {
	if n <= 0 {
 return 1
	}
	result:= int64(1)
	for i:= 0; i < n; i++ {
 result *= 2
	}
	return result
}

func capDuration(d, max time.Duration) time.Duration {
	if d > max {
 return max
	}
	return d
}
