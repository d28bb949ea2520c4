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
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSink is an optional durable AuditSink: an append-only collection
// alternative to the default bounded in-memory RingSink, for deployments
// that want a queryable, non-evicting audit trail. Writes are fire-and-forget from the caller's
// perspective — Record logs and drops failures rather than blocking or
// propagating them into the tool-call path.
type MongoSink struct {
	coll *mongo.Collection
	timeout time.Duration
}

// NewMongoSink wraps an existing collection (the caller owns the client
// lifecycle) as an AuditSink.
func NewMongoSink(coll *mongo.Collection) *MongoSink {
	return &MongoSink{coll: coll, timeout: 5 * time.Second}
}

func (s *MongoSink) Record(evt AuditEvent) {
	ctx, cancel:= context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err:= s.coll.InsertOne(ctx, evt); err != nil {
 log.Printf("toolintercept: mongo audit sink insert failed: %v", err)
	}
}

func (s *MongoSink) Query(filter AuditFilter) []AuditEvent {
	ctx, cancel:= context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	query:= bson.M{}
	if filter.SessionID != "" {
 query["sessionid"] = filter.SessionID
	}
	if filter.ToolName != "" {
 query["toolname"] = filter.ToolName
	}
	if filter.Type != "" {
 query["type"] = filter.Type
	}
	if !filter.Since.IsZero() {
 query["timestamp"] = bson.M{"$gte": filter.Since}
	}

	opts:= options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if filter.Limit > 0 {
 opts.SetLimit(int64(filter.Limit))
	}

	cur, err:= s.coll.Find(ctx, query, opts)
	if err != nil {
 log.Printf("toolintercept: mongo audit sink query failed: %v", err)
 return nil
	}
	defer cur.Close(ctx)

	var out []AuditEvent
	if err:= cur.All(ctx, &out); err != nil {
 log.Printf("toolintercept: mongo audit sink decode failed: %v", err)
 return nil
	}
	return out
}
