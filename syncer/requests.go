package syncer

import (
	"github.com/google/uuid"

	"github.com/edgemesh/edge-sync/domain"
)

// Enrichment requests are initiated by the remote edge for data not
// eagerly included in a change record. Unlike backfill they fail
// loudly: the requesting edge needs to know a specific request failed.

type AttributesRequest struct {
	Entity domain.EntityID
	Scope  string
}

type RelationRequest struct {
	Entity domain.EntityID
}

type RuleChainMetadataRequest struct {
	RuleChainID uuid.UUID
}

type DeviceCredentialsRequest struct {
	DeviceID uuid.UUID
}

type UserCredentialsRequest struct {
	UserID uuid.UUID
}
