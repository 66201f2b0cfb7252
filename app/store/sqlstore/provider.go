package sqlstore

import "github.com/ironvale-labs/dtcforge/pkg/sqlstore"

// Provider bundles every concrete store over one *sqlstore.SqlProvider
// connection. Built directly at startup — unlike the teacher's
// register-based deferred wiring (meant for cross-package store
// registration in a multi-plugin codebase), this module has a single
// store package, so direct construction is the simpler, equally idiomatic
// choice (see DESIGN.md).
type Provider struct {
	*sqlstore.SqlProvider
	Documents      *DocumentStore
	Chunks         *ChunkStore
	StagedEntities *StagedEntityStore
	Knowledge      *KnowledgeStore
	Vehicles       *VehicleStore
}

// New builds every store over the same underlying connection pool.
func New(db *sqlstore.SqlProvider) *Provider {
	return &Provider{
		SqlProvider:    db,
		Documents:      NewDocumentStore(db),
		Chunks:         NewChunkStore(db),
		StagedEntities: NewStagedEntityStore(db),
		Knowledge:      NewKnowledgeStore(db),
		Vehicles:       NewVehicleStore(db),
	}
}
