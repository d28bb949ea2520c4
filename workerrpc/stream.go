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

package workerrpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// streamChunkBacklog bounds how many undelivered chunks a SendStream
// consumer will buffer before it starts dropping the connection rather
// than growing without limit.
const streamChunkBacklog = 256

// Stream delivers StreamChunk values from an in-flight session.send_stream
// call. Consume reads chunks in order until the worker sends a StreamDone
// chunk, the context is cancelled, or the backlog bound is exceeded.
type Stream struct {
	chunks chan StreamChunk
	errc chan error
}

// Chunks returns the channel of received chunks, closed once the stream
// ends (after a StreamDone chunk, an error, or context cancellation).
func (s *Stream) Chunks() <-chan StreamChunk { return s.chunks }

// Err returns the terminal error, if any, once Chunks() is closed. Err
// must only be read after Chunks() is drained.
func (s *Stream) Err() error {
	select {
	case err:= <-s.errc:
 return err
	default:
 return nil
	}
}

// SendStream opens a session.send_stream call and returns a Stream the
// caller drains. The worker is expected to reply with newline-delimited
// JSON StreamChunk objects (NDJSON), one per line, terminated by a
// StreamDone chunk.
func (c *Client) SendStream(ctx context.Context, instanceID, workerSessionID string, params SessionSendParams) (*Stream, error) {
	inst, err:= c.resolver.Get(instanceID)
	if err != nil {
 return nil, newError(ErrCodeInstanceNotFound, "instance "+instanceID+" not found", err)
	}
	if inst.Endpoint == "" {
 return nil, newError(ErrCodeNoEndpoint, "instance "+instanceID+" has no endpoint", nil)
	}

	envelope:= Envelope{ID: uuid.NewString(), Method: MethodSessionSendStream, Params: params}
	body, err:= json.Marshal(envelope)
	if err != nil {
 return nil, newError(ErrCodeRequestFailed, "failed to marshal request", err)
	}

	token, err:= c.bearerToken(inst)
	if err != nil {
 return nil, err
	}

	url:= inst.Endpoint + "/sessions/" + workerSessionID + "/rpc/stream"
	httpReq, err:= http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
 return nil, newError(ErrCodeRequestFailed, "failed to build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")
	if token != "" {
 httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err:= c.httpClient.Do(httpReq)
	if err != nil {
 return nil, newError(ErrCodeRequestFailed, "stream request failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
 _ = resp.Body.Close()
 return nil, newError(ErrCodeRequestFailed, "stream request returned non-2xx status", nil)
	}

	s:= &Stream{
 chunks: make(chan StreamChunk, streamChunkBacklog),
 errc: make(chan error, 1),
	}
	go c.pumpStream(ctx, resp, s)
	return s, nil
}

func (c *Client) pumpStream(ctx context.Context, resp *http.Response, s *Stream) {
	defer close(s.chunks)
	defer func() { _ = resp.Body.Close() }()

	scanner:= bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
 line:= scanner.Bytes()
 if len(line) == 0 {
 continue
 }
 var chunk StreamChunk
 if err:= json.Unmarshal(line, &chunk); err != nil {
 s.errc <- newError(ErrCodeBadResponse, "failed to decode stream chunk", err)
 return
 }

 select {
 case s.chunks <- chunk:
 case <-ctx.Done():
 s.errc <- ctx.Err()
 return
 default:
 // Backlog is full and the consumer isn't keeping up: apply
 // backpressure by blocking briefly, then give up rather than
 // buffer unboundedly.
 select {
 case s.chunks <- chunk:
 case <-time.After(5 * time.Second):
 s.errc <- newError(ErrCodeStreamOverflow, "stream consumer backlog exceeded", nil)
 return
 case <-ctx.Done():
 s.errc <- ctx.Err()
 return
 }
 }

 if chunk.Type == StreamDone {
 return
 }
 if chunk.Type == StreamError {
 s.errc <- newError(ErrCodeWorkerError, chunk.Error, nil)
 return
 }
	}
	if err:= scanner.Err(); err != nil {
 s.errc <- newError(ErrCodeBadResponse, "stream read failed", err)
	}
}
