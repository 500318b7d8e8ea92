// Copyright 2026 The Atlas Linq Contributors.
// SPDX-License-Identifier: Apache-2.0
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

package session

import (
	"fmt"

	"github.com/atlas-linq/tapcard/pkg/ndef"
)

// writeOutcome is the normalized shape of a write-success callback.
type writeOutcome struct {
	TagID        string
	PayloadType  ndef.PayloadType
	BytesWritten int
	TagCapacity  int
}

// decodeWriteSuccess normalizes the ambiguous success callback payload into
// a typed outcome. The native side delivers either a detail map or a bare
// byte count; anything else is malformed. All shape branching lives here so
// the orchestrator only ever sees the typed form.
func decodeWriteSuccess(payload any) (writeOutcome, error) {
	switch v := payload.(type) {
	case map[string]any:
		out := writeOutcome{
			TagID: asString(v["tagId"]),
		}
		var ok bool
		if out.BytesWritten, ok = asInt(v["bytesWritten"]); !ok {
			return writeOutcome{}, fmt.Errorf("%w: bytesWritten %T", ErrMalformedCallback, v["bytesWritten"])
		}
		out.TagCapacity, _ = asInt(v["tagCapacity"])
		if pt := asString(v["payloadType"]); pt != "" {
			out.PayloadType = ndef.PayloadType(pt)
		}
		return out, nil
	default:
		n, ok := asInt(payload)
		if !ok {
			return writeOutcome{}, fmt.Errorf("%w: %T", ErrMalformedCallback, payload)
		}
		return writeOutcome{BytesWritten: n}, nil
	}
}

// asInt accepts the numeric types a JSON or platform codec may produce.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	default:
		return 0, false
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
