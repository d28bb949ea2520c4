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

package workerrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"axonflow/platform/registry"
	"axonflow/platform/session"
)

// fakeResolver resolves a single instance id to a fixed endpoint, grounded
// on session/manager_test.go's fakeWorker double pattern.
type fakeResolver struct {
	instances map[string]*registry.Instance
}

func (r *fakeResolver) Get(id string) (*registry.Instance, error) {
	inst, ok := r.instances[id]
	if !ok {
		return nil, registryNotFoundErr{id}
	}
	return inst, nil
}

type registryNotFoundErr struct{ id string }

func (e registryNotFoundErr) Error() string { return "instance not found: " + e.id }

func newTestResolver(endpoint string, auth registry.AuthDescriptor) *fakeResolver {
	return &fakeResolver{instances: map[string]*registry.Instance{
		"inst-1": {ID: "inst-1", Endpoint: endpoint, Auth: auth},
	}}
}

func TestClientInitSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env Envelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
		require.Equal(t, MethodSessionInit, env.Method)

		reply := ResultEnvelope{ID: env.ID, Result: SessionInitResult{
			SessionID: "ws-1", Provider: "anthropic", Model: "claude", CreatedAt: time.Now().UTC(),
		}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(reply))
	}))
	defer srv.Close()

	resolver := newTestResolver(srv.URL, registry.AuthDescriptor{})
	client := NewClient(resolver)

	resp, err := client.Init(context.Background(), "inst-1", session.InitRequest{Provider: "anthropic", Model: "claude"})
	require.NoError(t, err)
	require.Equal(t, "ws-1", resp.WorkerSessionID)
	require.Equal(t, "anthropic", resp.Provider)
}

func TestClientCallAttachesBearerToken(t *testing.T) {
	t.Setenv("WORKER_TEST_SECRET", "shh-secret")

	var sawAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		reply := ResultEnvelope{ID: "x", Result: struct{}{}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(reply))
	}))
	defer srv.Close()

	resolver := newTestResolver(srv.URL, registry.AuthDescriptor{
		CredentialKeyName: "WORKER_TEST_SECRET",
		Scheme:            "bearer",
	})
	client := NewClient(resolver)

	err := client.Close(context.Background(), "inst-1", "ws-1")
	require.NoError(t, err)
	require.Contains(t, sawAuth, "Bearer ")
}

func TestClientSurfacesWorkerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply := ResultEnvelope{ID: "x", Error: &WorkerRPCError{Code: "NOT_FOUND", Message: "no such session"}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(reply))
	}))
	defer srv.Close()

	resolver := newTestResolver(srv.URL, registry.AuthDescriptor{})
	client := NewClient(resolver)

	_, err := client.Status(context.Background(), "inst-1", "ws-1")
	require.Error(t, err)

	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, ErrCodeWorkerError, rpcErr.Code)
}

func TestClientRetriesTransientFailures(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		reply := ResultEnvelope{ID: "x", Result: struct{}{}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(reply))
	}))
	defer srv.Close()

	resolver := newTestResolver(srv.URL, registry.AuthDescriptor{})
	client := NewClient(resolver, WithMaxRetries(2))

	err := client.Close(context.Background(), "inst-1", "ws-1")
	require.NoError(t, err)
	require.GreaterOrEqual(t, attempts, 2)
}

func TestSendStreamDeliversChunksUntilDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		enc := json.NewEncoder(w)
		require.NoError(t, enc.Encode(StreamChunk{Type: StreamContent, Content: "hel"}))
		w.(http.Flusher).Flush()
		require.NoError(t, enc.Encode(StreamChunk{Type: StreamContent, Content: "lo"}))
		w.(http.Flusher).Flush()
		require.NoError(t, enc.Encode(StreamChunk{Type: StreamDone}))
	}))
	defer srv.Close()

	resolver := newTestResolver(srv.URL, registry.AuthDescriptor{})
	client := NewClient(resolver)

	stream, err := client.SendStream(context.Background(), "inst-1", "ws-1", SessionSendParams{Content: "hi"})
	require.NoError(t, err)

	var got []StreamChunk
	for chunk := range stream.Chunks() {
		got = append(got, chunk)
	}
	require.NoError(t, stream.Err())
	require.Len(t, got, 3)
	require.Equal(t, StreamDone, got[2].Type)
}
