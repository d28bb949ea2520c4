// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
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
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-redis/redis/v8"
	"github.com/gocql/gocql"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"axonflow/platform/agent/circuitbreaker"
	"axonflow/platform/common/usage"
	"axonflow/platform/connectors/base"
	connectorhttp "axonflow/platform/connectors/http"
	connectorpostgres "axonflow/platform/connectors/postgres"
	connectorredis "axonflow/platform/connectors/redis"
	connectorregistry "axonflow/platform/connectors/registry"
	"axonflow/platform/registry"
	"axonflow/platform/router"
	"axonflow/platform/session"
	"axonflow/platform/shared/logger"
	"axonflow/platform/synchronizer"
	"axonflow/platform/toolintercept"
	"axonflow/platform/tree"
	"axonflow/platform/workerrpc"
)

func main() {
	configPath := flag.String("config", "", "path to orchestrator YAML config")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("orchestrator: failed to load config: %v", err)
	}

	log := logger.New("orchestrator")

	reg := buildRegistry(log)
	ctx, cancelHealth := context.WithCancel(context.Background())
	reg.StartHealthMonitoring(ctx, registry.DefaultHealthMonitorConfig(), registry.NewBedrockHealthCheck())

	worker := workerrpc.NewClient(reg, workerrpc.WithLogger(logger.New("workerrpc")))
	rt := buildRouter(reg, worker, log)
	synchro := buildSynchronizer(cfg, log)
	treeMgr := tree.New(tree.WithStore(synchro), tree.WithLogger(logger.New("tree")))
	sessions := session.New(
		session.WithRegistry(reg),
		session.WithSynchronizer(synchro),
		session.WithTreeManager(treeMgr),
		session.WithWorkerClient(worker),
		session.WithLogger(logger.New("session")),
	)
	interceptor, connReg := buildInterceptor(ctx, cfg, treeMgr, log)
	maybeStartAuditArchival(ctx, interceptor, log)

	admin := newAdminServer(reg, rt, sessions, treeMgr, interceptor, cfg.JWTSecret, buildUsageRecorder(log), log)

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      admin.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("", "", "orchestrator admin server listening", map[string]interface{}{"port": cfg.Port})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("", "", "admin server stopped", map[string]interface{}{"error": err.Error()})
		}
	}()

	waitForShutdown(srv, reg, connReg, cancelHealth, log)
}

func buildRegistry(log *logger.Logger) *registry.Registry {
	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig())
	return registry.New(
		registry.WithStorage(buildRegistryStorage(log)),
		registry.WithCircuitBreaker(breaker),
		registry.WithLogger(logger.New("registry")),
	)
}

// buildRegistryStorage picks the durable instance store by REGISTRY_STORAGE
// ("postgres", "mysql", "cassandra"), falling back to an in-memory store
// when unset or when the backing connection cannot be established.
func buildRegistryStorage(log *logger.Logger) registry.Storage {
	switch os.Getenv("REGISTRY_STORAGE") {
	case "postgres":
		db, err := sql.Open("postgres", os.Getenv("DATABASE_URL"))
		if err != nil {
			log.Warn("", "", "ignoring unopenable DATABASE_URL, falling back to in-memory registry storage", map[string]interface{}{"error": err.Error()})
			return registry.NewMemoryStorage()
		}
		store := registry.NewPostgresStorage(db)
		if err := store.EnsureSchema(context.Background()); err != nil {
			log.Warn("", "", "failed to ensure Postgres instances schema, falling back to in-memory registry storage", map[string]interface{}{"error": err.Error()})
			return registry.NewMemoryStorage()
		}
		return store
	case "mysql":
		dsn := os.Getenv("MYSQL_DSN")
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			log.Warn("", "", "ignoring unopenable MYSQL_DSN, falling back to in-memory registry storage", map[string]interface{}{"error": err.Error()})
			return registry.NewMemoryStorage()
		}
		store := registry.NewMySQLStorage(db)
		if err := store.EnsureSchema(context.Background()); err != nil {
			log.Warn("", "", "failed to ensure MySQL instances schema, falling back to in-memory registry storage", map[string]interface{}{"error": err.Error()})
			return registry.NewMemoryStorage()
		}
		return store
	case "cassandra":
		hosts := strings.Split(os.Getenv("CASSANDRA_HOSTS"), ",")
		keyspace := os.Getenv("CASSANDRA_KEYSPACE")
		cluster := gocql.NewCluster(hosts...)
		cluster.Keyspace = keyspace
		session, err := cluster.CreateSession()
		if err != nil {
			log.Warn("", "", "ignoring unreachable Cassandra cluster, falling back to in-memory registry storage", map[string]interface{}{"error": err.Error()})
			return registry.NewMemoryStorage()
		}
		store := registry.NewCassandraStorage(session, keyspace)
		if err := store.EnsureSchema(context.Background()); err != nil {
			log.Warn("", "", "failed to ensure Cassandra instances schema, falling back to in-memory registry storage", map[string]interface{}{"error": err.Error()})
			return registry.NewMemoryStorage()
		}
		return store
	default:
		return registry.NewMemoryStorage()
	}
}

// buildUsageRecorder opens USAGE_DATABASE_URL for API-call metering. Metering
// is skipped entirely (nil recorder) when the variable is unset or the
// connection cannot be opened; admin.go treats a nil recorder as a no-op.
func buildUsageRecorder(log *logger.Logger) *usage.UsageRecorder {
	dsn := os.Getenv("USAGE_DATABASE_URL")
	if dsn == "" {
		return nil
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Warn("", "", "ignoring unopenable USAGE_DATABASE_URL, API call metering disabled", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return usage.NewUsageRecorder(db)
}

func buildRouter(reg *registry.Registry, worker *workerrpc.Client, log *logger.Logger) *router.Router {
	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig())
	executor := func(ctx context.Context, inst *registry.Instance, req router.Request) (interface{}, error) {
		return worker.Status(ctx, inst.ID, "")
	}
	return router.New(
		router.WithRegistry(reg),
		router.WithCircuitBreaker(breaker),
		router.WithExecutor(executor),
		router.WithLogger(logger.New("router")),
	)
}

func buildSynchronizer(cfg Config, log *logger.Logger) *synchronizer.Synchronizer {
	var opts []synchronizer.Option
	opts = append(opts, synchronizer.WithLogger(logger.New("synchronizer")))

	if cfg.RedisURL != "" {
		redisOpt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Warn("", "", "ignoring unparseable REDIS_URL", map[string]interface{}{"error": err.Error()})
		} else {
			opts = append(opts, synchronizer.WithRedisClient(redis.NewClient(redisOpt)))
		}
	}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Warn("", "", "ignoring unopenable DATABASE_URL", map[string]interface{}{"error": err.Error()})
		} else {
			opts = append(opts, synchronizer.WithDB(db))
		}
	}

	return synchronizer.New(opts...)
}

func buildInterceptor(ctx context.Context, cfg Config, treeMgr *tree.Manager, log *logger.Logger) (*toolintercept.Interceptor, *connectorregistry.Registry) {
	opts := []toolintercept.Option{
		toolintercept.WithTreeManager(treeMgr),
		toolintercept.WithLogger(logger.New("toolintercept")),
	}

	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		dialCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(uri))
		if err != nil {
			log.Warn("", "", "ignoring unreachable MONGODB_URI, falling back to in-memory audit sink", map[string]interface{}{"error": err.Error()})
		} else {
			coll := client.Database("axonflow").Collection("tool_audit")
			opts = append(opts, toolintercept.WithAuditSink(toolintercept.NewMongoSink(coll)))
		}
	}

	interceptor := toolintercept.New(opts...)
	connReg := registerToolConnectors(ctx, interceptor, log)
	return interceptor, connReg
}

// connectorFactory builds a base.Connector instance for one of the tool
// connector types the control plane ships: a generic REST API, direct-SQL
// Postgres, and key-value Redis. Unknown types are a configuration error,
// not a silent no-op, since they only ever come from an operator-entered
// CONNECTOR_REGISTRY_DSN row or a TOOL_*-env-var registration below.
func connectorFactory(connectorType string) (base.Connector, error) {
	switch connectorType {
	case "http_api":
		return connectorhttp.NewHTTPConnector(), nil
	case "postgres":
		return connectorpostgres.NewPostgresConnector(), nil
	case "redis":
		return connectorredis.NewRedisConnector(), nil
	default:
		return nil, fmt.Errorf("unknown tool connector type %q", connectorType)
	}
}

// registerToolConnectors builds the shared connector registry (Postgres-
// backed when CONNECTOR_REGISTRY_DSN is set, so connectors registered by one
// orchestrator replica are picked up by the others on the next periodic
// reload; in-memory otherwise), registers whichever of the three built-in
// tool connectors have their env var set, and wires each live connector into
// the Tool Interceptor as a RemoteExecutor.
func registerToolConnectors(ctx context.Context, interceptor *toolintercept.Interceptor, log *logger.Logger) *connectorregistry.Registry {
	reg := buildConnectorRegistry(log)
	reg.SetFactory(connectorFactory)

	registerToolConnector(reg, "http-tool", "http_api", os.Getenv("TOOL_HTTP_BASE_URL"), &base.ConnectorConfig{
		Name:    "http-tool",
		Type:    "http_api",
		Timeout: 5 * time.Second,
		Options: map[string]interface{}{"base_url": os.Getenv("TOOL_HTTP_BASE_URL")},
	}, log)

	registerToolConnector(reg, "postgres-tool", "postgres", os.Getenv("TOOL_POSTGRES_DSN"), &base.ConnectorConfig{
		Name:          "postgres-tool",
		Type:          "postgres",
		ConnectionURL: os.Getenv("TOOL_POSTGRES_DSN"),
		Timeout:       5 * time.Second,
	}, log)

	registerToolConnector(reg, "redis-tool", "redis", os.Getenv("TOOL_REDIS_HOST"), &base.ConnectorConfig{
		Name:    "redis-tool",
		Type:    "redis",
		Timeout: 5 * time.Second,
		Options: map[string]interface{}{"host": os.Getenv("TOOL_REDIS_HOST")},
	}, log)

	for _, name := range reg.List() {
		conn, err := reg.Get(name)
		if err != nil {
			log.Warn("", "", "tool connector vanished from registry between List and Get", map[string]interface{}{"connector": name, "error": err.Error()})
			continue
		}
		interceptor.RegisterRemoteExecutor(&toolintercept.ConnectorExecutor{Connector: conn})
	}

	reg.StartPeriodicReload(ctx, time.Minute)
	return reg
}

// buildConnectorRegistry returns a Postgres-backed connector registry when
// CONNECTOR_REGISTRY_DSN is reachable, so connectors registered by any
// orchestrator replica are visible to the others, falling back to an
// in-memory registry (this process only) otherwise.
func buildConnectorRegistry(log *logger.Logger) *connectorregistry.Registry {
	dsn := os.Getenv("CONNECTOR_REGISTRY_DSN")
	if dsn == "" {
		return connectorregistry.NewRegistry()
	}

	reg, err := connectorregistry.NewRegistryWithStorage(dsn)
	if err != nil {
		log.Warn("", "", "ignoring unreachable CONNECTOR_REGISTRY_DSN, tool connectors will not survive a restart", map[string]interface{}{"error": err.Error()})
		return connectorregistry.NewRegistry()
	}
	return reg
}

// registerToolConnector registers one built-in tool connector if its
// triggering env var (condition) is non-empty, logging and skipping rather
// than failing startup when the target is unreachable.
func registerToolConnector(reg *connectorregistry.Registry, name, connType, condition string, config *base.ConnectorConfig, log *logger.Logger) {
	if condition == "" {
		return
	}
	conn, err := connectorFactory(connType)
	if err != nil {
		log.Warn("", "", "building tool connector failed", map[string]interface{}{"connector": name, "error": err.Error()})
		return
	}
	if err := reg.Register(name, conn, config); err != nil {
		log.Warn("", "", "ignoring unreachable tool connector target, not registered", map[string]interface{}{"connector": name, "error": err.Error()})
	}
}

// interceptorQuerier adapts *toolintercept.Interceptor's QueryAudit to the
// Query method toolintercept.S3Archiver's periodic exporter expects.
type interceptorQuerier struct {
	interceptor *toolintercept.Interceptor
}

func (q interceptorQuerier) Query(filter toolintercept.AuditFilter) []toolintercept.AuditEvent {
	return q.interceptor.QueryAudit(filter)
}

// maybeStartAuditArchival wires an S3 cold-storage export of the Tool
// Interceptor's audit trail when AUDIT_ARCHIVE_S3_BUCKET is set; a no-op
// otherwise.
func maybeStartAuditArchival(ctx context.Context, interceptor *toolintercept.Interceptor, log *logger.Logger) {
	bucket := os.Getenv("AUDIT_ARCHIVE_S3_BUCKET")
	if bucket == "" {
		return
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Warn("", "", "ignoring AUDIT_ARCHIVE_S3_BUCKET, failed to load AWS config", map[string]interface{}{"error": err.Error()})
		return
	}

	archiver := toolintercept.NewS3Archiver(s3.NewFromConfig(awsCfg), bucket, "tool-audit")
	go archiver.RunPeriodicExport(ctx, interceptorQuerier{interceptor: interceptor}, 5*time.Minute, func(err error) {
		log.Warn("", "", "audit archive export failed, will retry next interval", map[string]interface{}{"error": err.Error()})
	})
}

func waitForShutdown(srv *http.Server, reg *registry.Registry, connReg *connectorregistry.Registry, cancelHealth context.CancelFunc, log *logger.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("", "", "shutting down orchestrator", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("", "", "admin server shutdown error", map[string]interface{}{"error": err.Error()})
	}
	cancelHealth()
	reg.StopHealthMonitoring()
	if err := reg.Close(); err != nil {
		log.Error("", "", "registry close error", map[string]interface{}{"error": err.Error()})
	}
	connReg.DisconnectAll(ctx)
}
