package domain

import (
	"github.com/google/uuid"
)

// EntityType identifies the kind of domain object an id points at.
type EntityType string

const (
	EntityTypeDevice               EntityType = "DEVICE"
	EntityTypeAsset                EntityType = "ASSET"
	EntityTypeDeviceProfile        EntityType = "DEVICE_PROFILE"
	EntityTypeAssetProfile         EntityType = "ASSET_PROFILE"
	EntityTypeDashboard            EntityType = "DASHBOARD"
	EntityTypeRuleChain            EntityType = "RULE_CHAIN"
	EntityTypeUser                 EntityType = "USER"
	EntityTypeCustomer             EntityType = "CUSTOMER"
	EntityTypeEdge                 EntityType = "EDGE"
	EntityTypeWidgetsBundle        EntityType = "WIDGETS_BUNDLE"
	EntityTypeWidgetType           EntityType = "WIDGET_TYPE"
	EntityTypeNotificationTarget   EntityType = "NOTIFICATION_TARGET"
	EntityTypeNotificationTemplate EntityType = "NOTIFICATION_TEMPLATE"
	EntityTypeQueue                EntityType = "QUEUE"
	EntityTypeDomain               EntityType = "DOMAIN"
	EntityTypeTenant               EntityType = "TENANT"
)

// EntityID is a typed reference to a domain object.
type EntityID struct {
	Type EntityType `json:"entityType"`
	ID   uuid.UUID  `json:"id"`
}

// EntityInfo is the minimal projection the sync engine needs from a
// domain listing: the id to replicate and a name for logging.
type EntityInfo struct {
	ID   uuid.UUID
	Name string
}

// Edge is a remote gateway node that mirrors a subset of central tenant state.
type Edge struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	CustomerID      uuid.UUID // uuid.Nil when the edge has no assigned customer
	RootRuleChainID uuid.UUID
	Name            string
}
