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

package toolintercept

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"axonflow/platform/tree"
)

// bashDenylist rejects a small set of unambiguously destructive or
// evasive command shapes before a subprocess is ever spawned, grounded on
// agent/pattern_validator.go's RE2-safe pattern compilation.
var bashDenylist = []*regexp.Regexp{
	regexp.MustCompile(`rm\s+-[a-zA-Z]*r[a-zA-Z]*f[a-zA-Z]*\s+/(\s|$)`), // rm -rf /
	regexp.MustCompile(`rm\s+-[a-zA-Z]*f[a-zA-Z]*r[a-zA-Z]*\s+/(\s|$)`), // rm -fr /
	regexp.MustCompile(`:\(\)\s*{\s*:\s*\|\s*:\s*&\s*}\s*;\s*:`), // fork bomb
	regexp.MustCompile(`curl[^|]*\|\s*(sh|bash)\b`), // piped remote execution
	regexp.MustCompile(`wget[^|]*\|\s*(sh|bash)\b`),
	regexp.MustCompile(`>\s*/dev/sd[a-z]`), // raw disk overwrite
	regexp.MustCompile(`mkfs\.`),
}

func checkBashDenylist(command string) error {
	for _, re:= range bashDenylist {
 if re.MatchString(command) {
 return newError(ErrCodeDeniedPattern, "command matches denied pattern: "+re.String(), nil)
 }
	}
	return nil
}

// readTool reads a worktree-relative file.
type readTool struct{}

func (readTool) Name() string { return "read" }

func (readTool) Execute(ctx context.Context, call ToolCall, cctx CallContext) (interface{}, error) {
	path, _:= call.Args["path"].(string)
	if path == "" {
 return nil, newError(ErrCodeInvalidArgs, "read requires a 'path' argument", nil)
	}
	resolved, err:= resolveInWorktree(path, cctx.WorktreeRoot)
	if err != nil {
 return nil, err
	}
	data, err:= os.ReadFile(resolved)
	if err != nil {
 return nil, err
	}
	return string(data), nil
}

// writeTool writes a worktree-relative file, creating parent directories.
type writeTool struct{}

func (writeTool) Name() string { return "write" }

func (writeTool) Execute(ctx context.Context, call ToolCall, cctx CallContext) (interface{}, error) {
	path, _:= call.Args["path"].(string)
	content, _:= call.Args["content"].(string)
	if path == "" {
 return nil, newError(ErrCodeInvalidArgs, "write requires a 'path' argument", nil)
	}
	resolved, err:= resolveInWorktree(path, cctx.WorktreeRoot)
	if err != nil {
 return nil, err
	}
	if err:= os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
 return nil, err
	}
	if err:= os.WriteFile(resolved, []byte(content), 0o644); err != nil {
 return nil, err
	}
	return map[string]interface{}{"bytes_written": len(content)}, nil
}

// editTool performs a literal find/replace within a worktree-relative file.
type editTool struct{}

func (editTool) Name() string { return "edit" }

func (editTool) Execute(ctx context.Context, call ToolCall, cctx CallContext) (interface{}, error) {
	path, _:= call.Args["path"].(string)
	oldStr, _:= call.Args["old_string"].(string)
	newStr, _:= call.Args["new_string"].(string)
	if path == "" || oldStr == "" {
 return nil, newError(ErrCodeInvalidArgs, "edit requires 'path' and 'old_string' arguments", nil)
	}
	resolved, err:= resolveInWorktree(path, cctx.WorktreeRoot)
	if err != nil {
 return nil, err
	}
	data, err:= os.ReadFile(resolved)
	if err != nil {
 return nil, err
	}
	original:= string(data)
	if !strings.Contains(original, oldStr) {
 return nil, newError(ErrCodeInvalidArgs, "old_string not found in "+path, nil)
	}
	updated:= strings.Replace(original, oldStr, newStr, 1)
	if err:= os.WriteFile(resolved, []byte(updated), 0o644); err != nil {
 return nil, err
	}
	return map[string]interface{}{"replaced": 1}, nil
}

// bashTool spawns a shell command under the call's timeout, hard-killing
// the process group on expiry after a short grace period.
type bashTool struct{}

func (bashTool) Name() string { return "bash" }

// bashKillGrace is how long a timed-out subprocess is given to exit after
// SIGTERM before bashTool escalates to SIGKILL.
const bashKillGrace = 2 * time.Second

// Execute spawns command in its own process group so a timeout can signal
// the whole group, not just the shell (grounded on
// telnet2-opencode's internal/tool/bash.go: CommandContext + Setpgid +
// CombinedOutput, generalized with Cmd.Cancel/WaitDelay for the
// SIGTERM-then-SIGKILL grace period that file's killProcess implements
// by hand).
func (bashTool) Execute(ctx context.Context, call ToolCall, cctx CallContext) (interface{}, error) {
	command, _:= call.Args["command"].(string)
	if command == "" {
 return nil, newError(ErrCodeInvalidArgs, "bash requires a 'command' argument", nil)
	}
	if err:= checkBashDenylist(command); err != nil {
 return nil, err
	}

	timeout:= call.Timeout
	if timeout <= 0 {
 timeout = defaultToolTimeout
	}
	cmdCtx, cancel:= context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd:= exec.CommandContext(cmdCtx, "sh", "-c", command)
	if cctx.WorktreeRoot != "" {
 cmd.Dir = cctx.WorktreeRoot
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
 return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = bashKillGrace

	output, err:= cmd.CombinedOutput()
	result:= map[string]interface{}{"output": string(output)}
	if cmdCtx.Err() == context.DeadlineExceeded {
 return result, newError(ErrCodeTimeout, "bash command timed out", cmdCtx.Err())
	}
	return result, err
}

// todoWriteTool records the session's current todo list (getSessionTodos
// reads it back through the Interceptor directly, not through this Tool).
type todoWriteTool struct {
	store *todoStore
}

func (t *todoWriteTool) Name() string { return "todo_write" }

func (t *todoWriteTool) Execute(ctx context.Context, call ToolCall, cctx CallContext) (interface{}, error) {
	raw, ok:= call.Args["todos"].([]interface{})
	if !ok {
 return nil, newError(ErrCodeInvalidArgs, "todo_write requires a 'todos' array argument", nil)
	}
	todos:= make([]Todo, 0, len(raw))
	for _, item:= range raw {
 m, ok:= item.(map[string]interface{})
 if !ok {
 continue
 }
 subject, _:= m["subject"].(string)
 status, _:= m["status"].(string)
 todos = append(todos, Todo{Subject: subject, Status: status})
	}
	t.store.set(call.SessionID, todos)
	return map[string]interface{}{"count": len(todos)}, nil
}

// treeNavigateTool moves a session's current-node pointer via the
// conversation tree manager.
type treeNavigateTool struct {
	trees *tree.Manager
}

func (t *treeNavigateTool) Name() string { return "tree_navigate" }

func (t *treeNavigateTool) Execute(ctx context.Context, call ToolCall, cctx CallContext) (interface{}, error) {
	if t.trees == nil {
 return nil, newError(ErrCodeToolNotFound, "tree_navigate: no tree manager configured", nil)
	}
	nodeID, _:= call.Args["node_id"].(string)
	if nodeID == "" {
 return nil, newError(ErrCodeInvalidArgs, "tree_navigate requires a 'node_id' argument", nil)
	}
	if err:= t.trees.NavigateToNode(ctx, call.SessionID, nodeID); err != nil {
 return nil, err
	}
	return map[string]interface{}{"current_node_id": nodeID}, nil
}

