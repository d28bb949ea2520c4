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

package toolintercept

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Archiver exports closed batches of audit events to S3 for cold-storage
// retention. This is a durability concern layered on top of RingSink/
// MongoSink, not a replacement for either: the dual-tier checkpoint model
// (synchronizer) stays exactly two-tier, and archival export is purely an
// export path out of whichever AuditSink is active.
type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Archiver wraps an already-configured *s3.Client.
func NewS3Archiver(client *s3.Client, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

// ExportBatch marshals events as newline-delimited JSON and uploads them
// under a key partitioned by the batch's close time, returning the object
// key written.
func (a *S3Archiver) ExportBatch(ctx context.Context, events []AuditEvent) (string, error) {
	if len(events) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, evt := range events {
		if err := enc.Encode(evt); err != nil {
			return "", fmt.Errorf("s3 archive: encoding audit event: %w", err)
		}
	}

	closedAt := events[len(events)-1].Timestamp
	key := fmt.Sprintf("%s/%s/%s.jsonl", a.prefix, closedAt.Format("2006/01/02"), closedAt.Format("20060102T150405.000000000"))

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &a.bucket,
		Key:    &key,
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return "", fmt.Errorf("s3 archive: uploading batch: %w", err)
	}
	return key, nil
}

// auditQuerier is the read-only slice of AuditSink (and of *Interceptor,
// via QueryAudit) RunPeriodicExport needs.
type auditQuerier interface {
	Query(filter AuditFilter) []AuditEvent
}

// RunPeriodicExport polls sink for events recorded since the last export on
// the given interval and archives each batch, until ctx is cancelled. A
// failed export is logged by the caller-supplied onError and retried on the
// next tick rather than dropping the batch.
func (a *S3Archiver) RunPeriodicExport(ctx context.Context, sink auditQuerier, interval time.Duration, onError func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	since := time.Now().UTC()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			batch := sink.Query(AuditFilter{Since: since})
			if len(batch) == 0 {
				continue
			}
			if _, err := a.ExportBatch(ctx, batch); err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			since = batch[len(batch)-1].Timestamp.Add(time.Nanosecond)
		}
	}
}
