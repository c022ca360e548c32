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


package enrichit

import (
	"log/slog"

	"github.com/poiesic/enrichit/batchapi"
	"github.com/poiesic/enrichit/enrich"
	"github.com/poiesic/enrichit/storage"
	"github.com/poiesic/enrichit/storage/badger"
)

// Store bundles the document and job repositories over one badger
// backend. It is the embedder-facing entry point for hosting the
// pipeline in another process.
type Store struct {
	backend   *badger.Backend
	documents storage.DocumentRepository
	jobs      storage.JobRepository
	logger    *slog.Logger
}

// Open opens (or creates) the store at the given path.
func Open(filePath string) (*Store, error) {
	backend, err := badger.OpenBackend(filePath, false)
	if err != nil {
		return nil, err
	}

	documents, err := badger.NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	jobs, err := badger.NewJobRepository(backend)
	if err != nil {
		documents.Close()
		backend.Close()
		return nil, err
	}

	return &Store{
		backend:   backend,
		documents: documents,
		jobs:      jobs,
		logger:    slog.Default(),
	}, nil
}

// Close releases the repositories and the underlying backend.
func (s *Store) Close() error {
	if err := s.documents.Close(); err != nil {
		s.logger.Error("error closing document repository", "err", err)
		return err
	}
	if err := s.jobs.Close(); err != nil {
		s.logger.Error("error closing job repository", "err", err)
		return err
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// DocumentRepository returns the document store.
func (s *Store) DocumentRepository() storage.DocumentRepository {
	return s.documents
}

// JobRepository returns the job store.
func (s *Store) JobRepository() storage.JobRepository {
	return s.jobs
}

// NewPipeline wires a pipeline over this store and the given vendor client.
func (s *Store) NewPipeline(client batchapi.Client, config enrich.Config) *enrich.Pipeline {
	return enrich.NewPipeline(s.documents, s.jobs, client, config)
}
