package events

import (
	"github.com/google/uuid"

	"github.com/edgemesh/edge-sync/domain"
)

// EventType tags which domain entity or category an edge event affects.
// The enumeration is closed: the delivery channel maps each value onto
// its own wire message type.
type EventType string

const (
	TypeDevice               EventType = "DEVICE"
	TypeAsset                EventType = "ASSET"
	TypeDeviceProfile        EventType = "DEVICE_PROFILE"
	TypeAssetProfile         EventType = "ASSET_PROFILE"
	TypeDashboard            EventType = "DASHBOARD"
	TypeRuleChain            EventType = "RULE_CHAIN"
	TypeRuleChainMetadata    EventType = "RULE_CHAIN_METADATA"
	TypeUser                 EventType = "USER"
	TypeCustomer             EventType = "CUSTOMER"
	TypeWidgetsBundle        EventType = "WIDGETS_BUNDLE"
	TypeWidgetType           EventType = "WIDGET_TYPE"
	TypeAdminSettings        EventType = "ADMIN_SETTINGS"
	TypeRelation             EventType = "RELATION"
	TypeNotificationTarget   EventType = "NOTIFICATION_TARGET"
	TypeNotificationTemplate EventType = "NOTIFICATION_TEMPLATE"
	TypeQueue                EventType = "QUEUE"
	TypeDomain               EventType = "DOMAIN"
)

// ActionType tags what happened to the affected entity.
type ActionType string

const (
	ActionAdded               ActionType = "ADDED"
	ActionUpdated             ActionType = "UPDATED"
	ActionDeleted             ActionType = "DELETED"
	ActionAttributesUpdated   ActionType = "ATTRIBUTES_UPDATED"
	ActionCredentialsUpdated  ActionType = "CREDENTIALS_UPDATED"
	ActionRelationAddOrUpdate ActionType = "RELATION_ADD_OR_UPDATE"
	ActionRelationDeleted     ActionType = "RELATION_DELETED"
)

// EdgeEvent is the unit of replication: one change record scoped to a
// tenant and a destination edge. SeqID is assigned by the store at
// append time and is the sole ordering key for incremental tailing.
// An event is created once and never mutated.
type EdgeEvent struct {
	TenantID    uuid.UUID
	EdgeID      uuid.UUID
	SeqID       int64
	Type        EventType
	Action      ActionType
	EntityID    uuid.UUID // uuid.Nil for records that are not entity-scoped
	Body        []byte    // optional JSON payload
	CreatedTime int64     // epoch millis, set by the store when zero
}

// New builds an unsaved edge event. SeqID and CreatedTime are assigned
// by the store on append.
func New(tenantID, edgeID uuid.UUID, t EventType, action ActionType, entityID uuid.UUID, body []byte) *EdgeEvent {
	return &EdgeEvent{
		TenantID: tenantID,
		EdgeID:   edgeID,
		Type:     t,
		Action:   action,
		EntityID: entityID,
		Body:     body,
	}
}

var entityEventTypes = map[domain.EntityType]EventType{
	domain.EntityTypeDevice:               TypeDevice,
	domain.EntityTypeAsset:                TypeAsset,
	domain.EntityTypeDeviceProfile:        TypeDeviceProfile,
	domain.EntityTypeAssetProfile:         TypeAssetProfile,
	domain.EntityTypeDashboard:            TypeDashboard,
	domain.EntityTypeRuleChain:            TypeRuleChain,
	domain.EntityTypeUser:                 TypeUser,
	domain.EntityTypeCustomer:             TypeCustomer,
	domain.EntityTypeWidgetsBundle:        TypeWidgetsBundle,
	domain.EntityTypeWidgetType:           TypeWidgetType,
	domain.EntityTypeNotificationTarget:   TypeNotificationTarget,
	domain.EntityTypeNotificationTemplate: TypeNotificationTemplate,
	domain.EntityTypeQueue:                TypeQueue,
	domain.EntityTypeDomain:               TypeDomain,
}

// TypeForEntity maps a domain entity type to its event type. Entity
// types that are never replicated (e.g. the edge itself) report false.
func TypeForEntity(t domain.EntityType) (EventType, bool) {
	et, ok := entityEventTypes[t]
	return et, ok
}
