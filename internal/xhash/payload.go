// Copyright 2023 The Cockroach Authors
//
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
//
// SPDX-License-Identifier: Apache-2.0

package xhash

import (
	"crypto/sha256"
	"encoding/hex"
)

// PayloadHash computes the lowercase-hex SHA-256 digest of a single
// payload's canonical JSON form, used by record_hash.payload_hash for
// the mapping engine's "hash" tracking strategy.
func PayloadHash(payload []byte) (string, error) {
	canon, err := Canonical(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}
