// Copyright 2026 Chainguard, Inc.
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

// Package limitio bounds how many bytes a reader may yield, so a small
// compressed archive cannot expand without limit in memory.
package limitio

import (
	"fmt"
	"io"
)

// Unlimited disables a limit.
const Unlimited int64 = -1

// ExceededError reports that a stream held more than Limit bytes.
type ExceededError struct {
	What  string
	Limit int64
}

func (e *ExceededError) Error() string {
	if e.What == "" {
		return fmt.Sprintf("read limit exceeded: limit is %d bytes", e.Limit)
	}
	return fmt.Sprintf("%s exceeds the limit of %d bytes", e.What, e.Limit)
}

type reader struct {
	r         io.Reader
	what      string
	limit     int64
	remaining int64
	exceeded  bool
}

// NewReader returns a reader yielding at most limit bytes of r. Reading
// past the limit fails with an *ExceededError instead of the silent EOF
// io.LimitReader gives. A limit of Unlimited returns r itself, and 0
// falls back to def.
func NewReader(r io.Reader, what string, limit, def int64) io.Reader {
	if limit == 0 {
		limit = def
	}
	if limit == Unlimited {
		return r
	}
	return &reader{r: r, what: what, limit: limit, remaining: limit}
}

func (l *reader) Read(p []byte) (int, error) {
	if l.exceeded {
		return 0, &ExceededError{What: l.what, Limit: l.limit}
	}
	if l.remaining <= 0 {
		// At the limit: only a clean EOF is acceptable.
		var one [1]byte
		n, err := l.r.Read(one[:])
		if n > 0 {
			l.exceeded = true
			return 0, &ExceededError{What: l.what, Limit: l.limit}
		}
		if err == nil {
			return 0, nil
		}
		return 0, err
	}

	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	return n, err
}
