// Package dao provides an in-process entity registry backing the sync
// orchestrator's listing and lookup queries. It stands in for the
// platform's entity database: a deployment embeds the engine and
// mirrors its inventory into the registry, or supplies its own
// Providers wiring instead.
package dao

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/edgemesh/edge-sync/domain"
	"github.com/edgemesh/edge-sync/fetch"
	"github.com/edgemesh/edge-sync/store"
	"github.com/edgemesh/edge-sync/syncer"
)

type edgeKey struct {
	tenantID uuid.UUID
	edgeID   uuid.UUID
}

type customerKey struct {
	tenantID   uuid.UUID
	customerID uuid.UUID
}

type attrKey struct {
	entityID uuid.UUID
	scope    string
}

// InMemory is a thread-safe registry of replicated entities keyed the
// way the orchestrator queries them. Listings come back sorted by name
// so pagination is stable.
type InMemory struct {
	mu sync.RWMutex

	tenantEntities map[uuid.UUID]map[domain.EntityType][]domain.EntityInfo
	edgeEntities   map[edgeKey]map[domain.EntityType][]domain.EntityInfo
	tenantAdmins   map[uuid.UUID][]domain.EntityInfo
	customerUsers  map[customerKey][]domain.EntityInfo
	widgetTypes    map[uuid.UUID][]domain.EntityInfo
	rootRuleChains map[uuid.UUID]uuid.UUID
	adminSettings  map[string]domain.AdminSetting
	attributes     map[attrKey][]domain.AttributeKv
	relations      map[uuid.UUID][]domain.Relation
}

func NewInMemory() *InMemory {
	return &InMemory{
		tenantEntities: make(map[uuid.UUID]map[domain.EntityType][]domain.EntityInfo),
		edgeEntities:   make(map[edgeKey]map[domain.EntityType][]domain.EntityInfo),
		tenantAdmins:   make(map[uuid.UUID][]domain.EntityInfo),
		customerUsers:  make(map[customerKey][]domain.EntityInfo),
		widgetTypes:    make(map[uuid.UUID][]domain.EntityInfo),
		rootRuleChains: make(map[uuid.UUID]uuid.UUID),
		adminSettings:  make(map[string]domain.AdminSetting),
		attributes:     make(map[attrKey][]domain.AttributeKv),
		relations:      make(map[uuid.UUID][]domain.Relation),
	}
}

// AddTenantEntity registers a tenant-wide entity (profiles, queues,
// widgets bundles, notification targets/templates, domains).
func (m *InMemory) AddTenantEntity(tenantID uuid.UUID, t domain.EntityType, info domain.EntityInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byType, ok := m.tenantEntities[tenantID]
	if !ok {
		byType = make(map[domain.EntityType][]domain.EntityInfo)
		m.tenantEntities[tenantID] = byType
	}
	byType[t] = insertSorted(byType[t], info)
}

// AssignToEdge registers an entity as assigned to one edge (devices,
// assets, dashboards, rule chains).
func (m *InMemory) AssignToEdge(tenantID, edgeID uuid.UUID, t domain.EntityType, info domain.EntityInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := edgeKey{tenantID, edgeID}
	byType, ok := m.edgeEntities[key]
	if !ok {
		byType = make(map[domain.EntityType][]domain.EntityInfo)
		m.edgeEntities[key] = byType
	}
	byType[t] = insertSorted(byType[t], info)
}

func (m *InMemory) AddTenantAdmin(tenantID uuid.UUID, user domain.EntityInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenantAdmins[tenantID] = insertSorted(m.tenantAdmins[tenantID], user)
}

func (m *InMemory) AddCustomerUser(tenantID, customerID uuid.UUID, user domain.EntityInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := customerKey{tenantID, customerID}
	m.customerUsers[key] = insertSorted(m.customerUsers[key], user)
}

func (m *InMemory) AddWidgetType(bundleID uuid.UUID, widgetType domain.EntityInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.widgetTypes[bundleID] = insertSorted(m.widgetTypes[bundleID], widgetType)
}

// SetRootRuleChain records the tenant's root rule chain id.
func (m *InMemory) SetRootRuleChain(tenantID, chainID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rootRuleChains[tenantID] = chainID
}

func (m *InMemory) PutAdminSetting(setting domain.AdminSetting) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adminSettings[setting.Key] = setting
}

// PutAttributes replaces the attributes of one entity under one scope.
func (m *InMemory) PutAttributes(entityID uuid.UUID, scope string, attrs []domain.AttributeKv) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attributes[attrKey{entityID, scope}] = append([]domain.AttributeKv(nil), attrs...)
}

func (m *InMemory) AddRelation(tenantID uuid.UUID, relation domain.Relation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relations[tenantID] = append(m.relations[tenantID], relation)
}

// Providers wires the registry into the orchestrator's query surface.
func (m *InMemory) Providers() syncer.Providers {
	return syncer.Providers{
		DevicesByEdge:    m.edgeList(domain.EntityTypeDevice),
		AssetsByEdge:     m.edgeList(domain.EntityTypeAsset),
		DashboardsByEdge: m.edgeList(domain.EntityTypeDashboard),
		RuleChainsByEdge: m.edgeList(domain.EntityTypeRuleChain),

		DeviceProfiles:        m.tenantList(domain.EntityTypeDeviceProfile),
		AssetProfiles:         m.tenantList(domain.EntityTypeAssetProfile),
		WidgetsBundles:        m.tenantList(domain.EntityTypeWidgetsBundle),
		NotificationTargets:   m.tenantList(domain.EntityTypeNotificationTarget),
		NotificationTemplates: m.tenantList(domain.EntityTypeNotificationTemplate),
		Queues:                m.tenantList(domain.EntityTypeQueue),
		Domains:               m.tenantList(domain.EntityTypeDomain),

		TenantAdmins:  m.listTenantAdmins,
		CustomerUsers: m.listCustomerUsers,

		WidgetTypesByBundle: m.listWidgetTypes,

		RootRuleChain: m.lookupRootRuleChain,
		AdminSettings: m.lookupAdminSetting,

		Attributes: m.listAttributes,
		Relations:  m.listRelations,
	}
}

func (m *InMemory) edgeList(t domain.EntityType) fetch.ListFunc {
	return func(_ context.Context, tenantID uuid.UUID, edge *domain.Edge, link domain.PageLink) (domain.PageData[domain.EntityInfo], error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return paginate(m.edgeEntities[edgeKey{tenantID, edge.ID}][t], link), nil
	}
}

func (m *InMemory) tenantList(t domain.EntityType) fetch.ListFunc {
	return func(_ context.Context, tenantID uuid.UUID, _ *domain.Edge, link domain.PageLink) (domain.PageData[domain.EntityInfo], error) {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return paginate(m.tenantEntities[tenantID][t], link), nil
	}
}

func (m *InMemory) listTenantAdmins(_ context.Context, tenantID uuid.UUID, _ *domain.Edge, link domain.PageLink) (domain.PageData[domain.EntityInfo], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return paginate(m.tenantAdmins[tenantID], link), nil
}

func (m *InMemory) listCustomerUsers(_ context.Context, tenantID uuid.UUID, edge *domain.Edge, link domain.PageLink) (domain.PageData[domain.EntityInfo], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return paginate(m.customerUsers[customerKey{tenantID, edge.CustomerID}], link), nil
}

func (m *InMemory) listWidgetTypes(_ context.Context, _ uuid.UUID, bundleID uuid.UUID) ([]domain.EntityInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.EntityInfo(nil), m.widgetTypes[bundleID]...), nil
}

func (m *InMemory) lookupRootRuleChain(_ context.Context, tenantID uuid.UUID, _ *domain.Edge) (uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rootRuleChains[tenantID], nil
}

func (m *InMemory) lookupAdminSetting(_ context.Context, _ uuid.UUID, key string) (domain.AdminSetting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	setting, ok := m.adminSettings[key]
	if !ok {
		return domain.AdminSetting{}, fmt.Errorf("no admin setting with key %q", key)
	}
	return setting, nil
}

func (m *InMemory) listAttributes(_ context.Context, _ uuid.UUID, entity domain.EntityID, scope string) ([]domain.AttributeKv, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.AttributeKv(nil), m.attributes[attrKey{entity.ID, scope}]...), nil
}

func (m *InMemory) listRelations(_ context.Context, tenantID uuid.UUID, entity domain.EntityID, direction domain.RelationDirection) ([]domain.Relation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Relation
	for _, relation := range m.relations[tenantID] {
		switch direction {
		case domain.RelationDirectionFrom:
			if relation.From == entity {
				out = append(out, relation)
			}
		case domain.RelationDirectionTo:
			if relation.To == entity {
				out = append(out, relation)
			}
		}
	}
	return out, nil
}

func insertSorted(items []domain.EntityInfo, info domain.EntityInfo) []domain.EntityInfo {
	items = append(items, info)
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID.String() < items[j].ID.String()
	})
	return items
}

func paginate(items []domain.EntityInfo, link domain.PageLink) domain.PageData[domain.EntityInfo] {
	total := int64(len(items))
	if link.PageSize <= 0 {
		return store.PageOf(append([]domain.EntityInfo(nil), items...), link, total)
	}
	start := link.Page * link.PageSize
	if start > len(items) {
		start = len(items)
	}
	end := start + link.PageSize
	if end > len(items) {
		end = len(items)
	}
	return store.PageOf(append([]domain.EntityInfo(nil), items[start:end]...), link, total)
}
