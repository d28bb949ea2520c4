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
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CredentialResolver maps an Instance's AuthDescriptor.CredentialKeyName to
// the secret value it names.
// The default resolver reads the named environment variable, matching the
// provider catalog's AuthCredentialKeyName convention (provider/catalog.go).
type CredentialResolver func(keyName string) (string, error)

// EnvCredentialResolver resolves keyName against the process environment.
func EnvCredentialResolver(keyName string) (string, error) {
	if v:= os.Getenv(keyName); v != "" {
 return v, nil
	}
	return "", newError(ErrCodeAuthFailed, "credential "+keyName+" not set", nil)
}

// bearerTokenTTL is how long a signed worker-call token remains valid.
const bearerTokenTTL = 5 * time.Minute

// signBearerToken issues a short-lived HS256 bearer token authorizing a
// call to instanceID, signed with secret (the value CredentialKeyName
// resolves to). Workers verify the same secret out of band.
func signBearerToken(instanceID, secret string) (string, error) {
	claims:= jwt.MapClaims{
 "sub": instanceID,
 "iat": time.Now().Unix(),
 "exp": time.Now().Add(bearerTokenTTL).Unix(),
	}
	token:= jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err:= token.SignedString([]byte(secret))
	if err != nil {
 return "", newError(ErrCodeAuthFailed, "failed to sign worker bearer token", err)
	}
	return signed, nil
}
