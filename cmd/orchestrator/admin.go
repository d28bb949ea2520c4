// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"axonflow/platform/common/usage"
	"axonflow/platform/registry"
	"axonflow/platform/router"
	"axonflow/platform/session"
	"axonflow/platform/shared/logger"
	"axonflow/platform/shared/types"
	"axonflow/platform/toolintercept"
	"axonflow/platform/tree"
)

// adminServer is a thin, read-mostly introspection surface: ambient
// operability over the Registry, Router, Session Manager and Tool
// Interceptor's existing accessors, not a new product surface. Handlers
// are kept deliberately dumb — they translate HTTP to accessor calls and
// back, with no business logic of their own.
type adminServer struct {
	registry *registry.Registry
	rt *router.Router
	sessions *session.Manager
	tree *tree.Manager
	interceptor *toolintercept.Interceptor
	jwtSecret string
	deployment types.DeploymentConfig
	usage *usage.UsageRecorder
	logger *logger.Logger
}

func newAdminServer(reg *registry.Registry, rt *router.Router, sessions *session.Manager, tr *tree.Manager, interceptor *toolintercept.Interceptor, jwtSecret string, usageRecorder *usage.UsageRecorder, log *logger.Logger) *adminServer {
	return &adminServer{
 registry: reg,
 rt: rt,
 sessions: sessions,
 tree: tr,
 interceptor: interceptor,
 jwtSecret: jwtSecret,
 deployment: deploymentConfigFromEnv(),
 usage: usageRecorder,
 logger: log,
	}
}

// deploymentConfigFromEnv reads DEPLOYMENT_MODE ("saas", the default, or
// "invpc") and returns the matching DeploymentConfig, which gates what
// handleDeployment and handleCapacity expose: SaaS deployments enforce
// tenant isolation and hide platform-wide/node metrics; In-VPC deployments
// are single-tenant and show them.
func deploymentConfigFromEnv() types.DeploymentConfig {
	if os.Getenv("DEPLOYMENT_MODE") == "invpc" {
 return types.DefaultInVPCConfig()
	}
	return types.DefaultSaaSConfig()
}

// Router builds the mux.Router exposing the admin route list, CORS
// enabled and every route but /healthz behind JWT auth.
func (a *adminServer) Router() http.Handler {
	r:= mux.NewRouter()
	r.HandleFunc("/healthz", a.handleHealthz).Methods(http.MethodGet)

	admin:= r.PathPrefix("/v1").Subrouter()
	admin.Use(a.authMiddleware)
	admin.Use(a.meteringMiddleware)
	admin.HandleFunc("/deployment", a.handleDeployment).Methods(http.MethodGet)
	admin.HandleFunc("/instances", a.handleListInstances).Methods(http.MethodGet)
	admin.HandleFunc("/instances/{id}", a.handleGetInstance).Methods(http.MethodGet)
	admin.HandleFunc("/instances/{id}/drain", a.handleDrainInstance).Methods(http.MethodPost)
	admin.HandleFunc("/capacity", a.handleCapacity).Methods(http.MethodGet)
	admin.HandleFunc("/router/status", a.handleRouterStatus).Methods(http.MethodGet)
	admin.HandleFunc("/router/budget", a.handleRouterBudget).Methods(http.MethodGet)
	admin.HandleFunc("/sessions/{id}", a.handleGetSession).Methods(http.MethodGet)
	admin.HandleFunc("/sessions/{id}/migrate", a.handleMigrateSession).Methods(http.MethodPost)
	admin.HandleFunc("/sessions/{id}/audit", a.handleSessionAudit).Methods(http.MethodGet)

	c:= cors.New(cors.Options{
 AllowedOrigins: []string{"*"},
 AllowedMethods: []string{http.MethodGet, http.MethodPost},
 AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(r)
}

// authContextKey is the context key under which authMiddleware stashes the
// bearer token's org/client claims for meteringMiddleware to read.
type authContextKey struct{}

// authClaims is the subset of a bearer token's claims the admin surface
// cares about. Either field may be empty when the token carries none.
type authClaims struct {
	OrgID    string
	ClientID string
}

func (a *adminServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
 header:= req.Header.Get("Authorization")
 if !strings.HasPrefix(header, "Bearer ") {
 writeError(w, http.StatusUnauthorized, "missing bearer token")
 return
 }
 raw:= strings.TrimPrefix(header, "Bearer ")
 claims:= jwt.MapClaims{}
 token, err:= jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
 if _, ok:= t.Method.(*jwt.SigningMethodHMAC); !ok {
 return nil, jwt.ErrSignatureInvalid
 }
 return []byte(a.jwtSecret), nil
 })
 if err != nil || !token.Valid {
 writeError(w, http.StatusUnauthorized, "invalid bearer token")
 return
 }
 ac:= authClaims{}
 if v, ok:= claims["org_id"].(string); ok {
 ac.OrgID = v
 }
 if v, ok:= claims["client_id"].(string); ok {
 ac.ClientID = v
 }
 req = req.WithContext(context.WithValue(req.Context(), authContextKey{}, ac))
 next.ServeHTTP(w, req)
	})
}

// statusCapturingWriter records the status code written through it so
// meteringMiddleware can report it after the handler returns.
type statusCapturingWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusCapturingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// meteringMiddleware records each admin API call as a usage.APICallEvent.
// It is a no-op when no usage recorder was configured (USAGE_DATABASE_URL
// unset), and recording itself runs off the request goroutine so a slow or
// unreachable usage database never adds latency to the response.
func (a *adminServer) meteringMiddleware(next http.Handler) http.Handler {
	if a.usage == nil {
 return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
 started:= time.Now()
 sw:= &statusCapturingWriter{ResponseWriter: w, status: http.StatusOK}
 next.ServeHTTP(sw, req)

 ac, _:= req.Context().Value(authContextKey{}).(authClaims)
 event:= usage.APICallEvent{
 OrgID: ac.OrgID,
 ClientID: ac.ClientID,
 InstanceID: "orchestrator",
 InstanceType: "orchestrator",
 HTTPMethod: req.Method,
 HTTPPath: req.URL.Path,
 HTTPStatusCode: sw.status,
 LatencyMs: time.Since(started).Milliseconds(),
 }
 go func() {
 if err:= a.usage.RecordAPICall(event); err != nil {
 a.logger.Warn("", "", "failed to record API call usage event", map[string]interface{}{"error": err.Error()})
 }
 }()
	})
}

func (a *adminServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *adminServer) handleDeployment(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.deployment)
}

func (a *adminServer) handleListInstances(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("healthy") == "true" {
 writeJSON(w, http.StatusOK, a.registry.ListHealthy())
 return
	}
	writeJSON(w, http.StatusOK, a.registry.List())
}

func (a *adminServer) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	id:= mux.Vars(r)["id"]
	inst, err:= a.registry.Get(id)
	if err != nil {
 writeError(w, http.StatusNotFound, err.Error())
 return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (a *adminServer) handleDrainInstance(w http.ResponseWriter, r *http.Request) {
	id:= mux.Vars(r)["id"]
	var body struct {
 Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Reason == "" {
 body.Reason = "admin_drain"
	}
	if err:= a.registry.Unregister(r.Context(), id); err != nil {
 writeError(w, http.StatusNotFound, err.Error())
 return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "draining", "reason": body.Reason})
}

func (a *adminServer) handleCapacity(w http.ResponseWriter, r *http.Request) {
	capacity:= a.registry.GetAvailableCapacity()
	if !a.deployment.ShowNodeUsage {
 // SaaS deployments report request-based usage elsewhere; per-provider/
 // per-region node breakdowns are an In-VPC licensing concern only.
 writeJSON(w, http.StatusOK, map[string]interface{}{
 "total_available": capacity.TotalAvailable,
 "total_max": capacity.TotalMax,
 })
 return
	}
	writeJSON(w, http.StatusOK, capacity)
}

func (a *adminServer) handleRouterStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.rt.GetProviderHealth())
}

func (a *adminServer) handleRouterBudget(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
 "budget": a.rt.GetBudgetStatus(),
 "cost": a.rt.GetCostSummary(),
	})
}

func (a *adminServer) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id:= mux.Vars(r)["id"]
	sess, err:= a.sessions.Get(id)
	if err != nil {
 writeError(w, http.StatusNotFound, err.Error())
 return
	}

	resp:= map[string]interface{}{"session": sess}
	if a.tree != nil {
 if t, err:= a.tree.GetTree(r.Context(), id); err == nil {
 resp["tree"] = map[string]interface{}{
 "rootNodeId": t.RootID,
 "currentNodeId": t.CurrentNodeID,
 "nodeCount": len(t.Nodes),
 "branchCount": len(t.Branches),
 }
 }
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *adminServer) handleMigrateSession(w http.ResponseWriter, r *http.Request) {
	id:= mux.Vars(r)["id"]
	var body struct {
 TargetInstanceID string `json:"targetInstanceId"`
	}
	if err:= json.NewDecoder(r.Body).Decode(&body); err != nil || body.TargetInstanceID == "" {
 writeError(w, http.StatusBadRequest, "targetInstanceId is required")
 return
	}
	if err:= a.sessions.Migrate(r.Context(), id, body.TargetInstanceID); err != nil {
 writeError(w, http.StatusInternalServerError, err.Error())
 return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "migrated"})
}

func (a *adminServer) handleSessionAudit(w http.ResponseWriter, r *http.Request) {
	id:= mux.Vars(r)["id"]
	filter:= toolintercept.AuditFilter{SessionID: id, Limit: 100}
	if tool:= r.URL.Query().Get("tool"); tool != "" {
 filter.ToolName = tool
	}
	if sinceParam:= r.URL.Query().Get("since"); sinceParam != "" {
 if t, err:= time.Parse(time.RFC3339, sinceParam); err == nil {
 filter.Since = t
 }
	}
	writeJSON(w, http.StatusOK, a.interceptor.QueryAudit(filter))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
