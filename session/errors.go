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

package session

// Error codes for Session Manager operations.
const (
	ErrCodeNoInstanceAvailable = "SESSION_NO_INSTANCE_AVAILABLE"
	ErrCodeInitFailed = "SESSION_INIT_FAILED"
	ErrCodeNotFound = "SESSION_NOT_FOUND"
	ErrCodeInvalidTransition = "SESSION_INVALID_TRANSITION"
	ErrCodeCheckpointNotFound = "SESSION_CHECKPOINT_NOT_FOUND"
	ErrCodeMigrationFailed = "SESSION_MIGRATION_FAILED"
	ErrCodeTerminal = "SESSION_TERMINAL"
)

// Error is the structured error type for Session Manager operations.
type Error struct {
	Code string
	Message string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
 return e.Code + ": " + e.Message + " (" + e.Cause.Error() + ")"
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// MigrationError wraps a migration failure with rollback outcome: the
// session's state ends up resuming or active depending on whether the
// rollback itself succeeded.
type MigrationError struct {
	SessionID string
	FromInstanceID string
	ToInstanceID string
	RolledBack bool
	RollbackErr error
	Cause error
}

func (e *MigrationError) Error() string {
	msg:= "SESSION_MIGRATION_FAILED: migration of " + e.SessionID + " from " + e.FromInstanceID + " to " + e.ToInstanceID + " failed"
	if e.Cause != nil {
 msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *MigrationError) Unwrap() error { return e.Cause }
