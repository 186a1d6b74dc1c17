// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//  http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

package couch

import (
	"crypto/rand"
	"encoding/base32"
	"strconv"
	"time"
)

// Alphabet is the base32 alphabet used for random IDs. It is ASCII-sorted,
// so encoded IDs sort in the same order as the underlying random data, and
// it contains no characters requiring URL or filename escaping.
const Alphabet = "3456789ABCDEFGHIJKLMNOPQRSTUVWXY"

var idEncoding = base32.NewEncoding(Alphabet).WithPadding(base32.NoPadding)

const (
	randomIDBytes  = 15 // 120 bits, 24 encoded characters
	randomID2Bytes = 10 // 80 bits, 16 encoded characters
)

// RandomID returns a 120-bit random ID encoded as 24 characters of
// Alphabet. IDs are URL and filesystem safe.
func RandomID() string {
	return encodeRandom(randomIDBytes)
}

// RandomID2 returns a random ID prefixed with the current Unix time, for
// example "1313567384-67DFPERIOU66CT56". The random portion carries 80
// bits.
func RandomID2() string {
	return strconv.FormatInt(time.Now().Unix(), 10) + "-" + encodeRandom(randomID2Bytes)
}

func encodeRandom(size int) string {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return idEncoding.EncodeToString(buf)
}
