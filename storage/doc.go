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


// Package storage provides the storage abstraction layer for enrichit.
//
// This package defines repository interfaces that decouple storage
// implementation from pipeline logic. Two repositories exist:
//
//   - DocumentRepository: the enrichment target store. The builder reads
//     eligible documents from it; the merger upserts enrichment outcomes
//     into it.
//   - JobRepository: the job store, the single source of truth for every
//     batch job's lifecycle state. All state transitions go through its
//     named update operations so they stay auditable and validated
//     against the closed state graph.
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces to enforce abstraction and allow
// alternative backends:
//
//	docs, err := badger.NewDocumentRepository(backend)  // storage.DocumentRepository
//
// # Thread Safety
//
// All repository implementations must be thread-safe. Each named job
// update is an atomic read-validate-write: a concurrent update of the
// same job either serializes or fails, never interleaves. This is what
// makes parallel polling safe without component-level locking.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation.
package storage
