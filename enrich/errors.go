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


package enrich

import "errors"

var (
	// ErrInvalidMaxAttempts indicates maxAttempts <= 0 was provided to RetryWithBackoff.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrInvalidConfig indicates the pipeline configuration failed validation.
	ErrInvalidConfig = errors.New("invalid pipeline configuration")

	// ErrBudgetExceeded indicates the projected batch cost exceeds the
	// configured budget. The build is aborted before any artifact is written.
	ErrBudgetExceeded = errors.New("projected cost exceeds budget")

	// ErrNotMergeable indicates a merge was requested for a job that is not
	// COMPLETED (or MERGED with the force override).
	ErrNotMergeable = errors.New("job is not in a mergeable state")

	// ErrDuplicateResult indicates the vendor returned more than one result
	// for the same custom ID within a job.
	ErrDuplicateResult = errors.New("duplicate custom ID in job results")

	// ErrUnknownCustomID indicates a result's custom ID does not correspond
	// to any request of the job being merged.
	ErrUnknownCustomID = errors.New("result custom ID not present in job requests")

	// ErrCountMismatch indicates the number of processed results does not
	// equal the job's request count. The job stays COMPLETED for inspection.
	ErrCountMismatch = errors.New("processed results do not match request count")

	// ErrUnknownVendorStatus indicates the vendor reported a batch status
	// outside the documented set. The job is left untouched.
	ErrUnknownVendorStatus = errors.New("unknown vendor batch status")
)
