package syncer

import (
	"context"

	"github.com/google/uuid"

	"github.com/edgemesh/edge-sync/domain"
	"github.com/edgemesh/edge-sync/fetch"
)

// Providers bundles the data-access queries the orchestrator needs.
// The queries themselves live in an external data-access layer; only
// the call shape and failure policy are defined here. A nil query
// degrades to "no entities of that kind".
type Providers struct {
	// edge-scoped listings
	DevicesByEdge    fetch.ListFunc
	AssetsByEdge     fetch.ListFunc
	DashboardsByEdge fetch.ListFunc
	RuleChainsByEdge fetch.ListFunc

	// tenant-wide listings
	DeviceProfiles        fetch.ListFunc
	AssetProfiles         fetch.ListFunc
	WidgetsBundles        fetch.ListFunc
	NotificationTargets   fetch.ListFunc
	NotificationTemplates fetch.ListFunc
	Queues                fetch.ListFunc
	Domains               fetch.ListFunc

	// users: tenant administrators, then the edge customer's users
	TenantAdmins  fetch.ListFunc
	CustomerUsers fetch.ListFunc

	WidgetTypesByBundle func(ctx context.Context, tenantID, bundleID uuid.UUID) ([]domain.EntityInfo, error)

	RootRuleChain fetch.RootChainLookup
	AdminSettings fetch.AdminSettingsLookup

	// enrichment lookups
	Attributes func(ctx context.Context, tenantID uuid.UUID, entity domain.EntityID, scope string) ([]domain.AttributeKv, error)
	Relations  func(ctx context.Context, tenantID uuid.UUID, entity domain.EntityID, direction domain.RelationDirection) ([]domain.Relation, error)
}
