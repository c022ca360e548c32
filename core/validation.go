// Copyright 2026 Poiesic Systems
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


package core

import (
	"fmt"
	"time"
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Contents must not be empty
//   - PublishedAt must not be in the future
//
// NOT validated (populated by the merger):
//   - Summary / Vector and their model fields
//   - ID (0 means "derive from content" at insert time)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.Contents == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyContent)
	}

	if !IsValidTimestamp(doc.PublishedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrInvalidTimestamp)
	}

	return nil
}

// ValidateBatchJob validates a BatchJob according to domain rules.
//
// Validation rules:
//   - Kind must be a known enrichment kind
//   - State must be a known state
//   - RequestCount must not be negative
func ValidateBatchJob(job *BatchJob) error {
	if job == nil {
		return fmt.Errorf("%w: job is nil", ErrInvalidJob)
	}

	if !job.Kind.Valid() {
		return fmt.Errorf("%w: %w", ErrInvalidJob, ErrInvalidKind)
	}

	if !job.State.Valid() {
		return fmt.Errorf("%w: %w %d", ErrInvalidJob, ErrInvalidJobState, int(job.State))
	}

	if job.RequestCount < 0 {
		return fmt.Errorf("%w: negative request count", ErrInvalidJob)
	}

	return nil
}

// IsValidTimestamp reports whether the timestamp is not in the future.
// A small clock-skew allowance of one minute is tolerated.
func IsValidTimestamp(t time.Time) bool {
	if t.IsZero() {
		return true
	}
	return !t.After(time.Now().Add(1 * time.Minute))
}
