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

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidJob indicates a BatchJob failed validation.
	ErrInvalidJob = errors.New("invalid batch job")

	// ErrEmptyContent indicates the Contents field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidKind indicates an unknown enrichment kind.
	ErrInvalidKind = errors.New("invalid enrichment kind")

	// ErrInvalidJobState indicates an unknown job state value.
	ErrInvalidJobState = errors.New("invalid job state")

	// ErrInvalidCustomID indicates a correlation key that does not follow
	// the doc:<id>:<kind> format.
	ErrInvalidCustomID = errors.New("invalid custom id")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")
)
