package syncer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edgemesh/edge-sync/domain"
	"github.com/edgemesh/edge-sync/events"
	"github.com/edgemesh/edge-sync/fetch"
	"github.com/edgemesh/edge-sync/metrics"
	"github.com/edgemesh/edge-sync/store"
)

// DefaultPageSize bounds one backfill listing page.
const DefaultPageSize = 100

// Notifier tells the cluster/queue layer that new change records are
// ready for an edge, so a waiting delivery session wakes up.
type Notifier interface {
	OnEdgeEventUpdate(tenantID, edgeID uuid.UUID)
}

// Service drives full backfills into the change log and resolves
// edge-initiated enrichment requests asynchronously. Backfill is
// best-effort: a failure on one entity type never prevents the others
// and SyncEdge never fails. Enrichment is strict: failures surface
// through the returned completion handle.
type Service struct {
	store      store.EdgeEventStore
	providers  Providers
	notifier   Notifier
	exec       *callbackExecutor
	rootChains *fetch.RootChainResolver
	pageSize   int
	log        *zap.Logger
}

func NewService(st store.EdgeEventStore, providers Providers, notifier Notifier, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:      st,
		providers:  providers,
		notifier:   notifier,
		exec:       newCallbackExecutor(4, 256, log),
		rootChains: fetch.NewRootChainResolver(providers.RootRuleChain, log),
		pageSize:   DefaultPageSize,
		log:        log,
	}
}

// SetNotifier installs the append notifier after construction, which
// breaks the wiring cycle with the session layer.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// SetPageSize overrides the backfill listing page size.
func (s *Service) SetPageSize(pageSize int) {
	if pageSize > 0 {
		s.pageSize = pageSize
	}
}

// Stop drains the enrichment executor.
func (s *Service) Stop() {
	s.exec.stop()
}

// SyncEdge appends one ADDED record per current entity of every
// replicated kind, in a fixed order. It never returns an error: each
// per-type loop degrades independently and backfill is naturally
// retried on the next connection.
func (s *Service) SyncEdge(ctx context.Context, edge *domain.Edge) {
	s.log.Info("starting edge sync",
		zap.Stringer("tenant_id", edge.TenantID), zap.Stringer("edge_id", edge.ID))

	s.syncFetcher(ctx, edge, "queue",
		fetch.NewEntityFetcher("queue", events.TypeQueue, s.providers.Queues, s.log))
	s.syncFetcher(ctx, edge, "rule_chain",
		fetch.NewRuleChainFetcher(s.providers.RuleChainsByEdge, s.rootChains, s.log))
	s.syncFetcher(ctx, edge, "admin_settings",
		fetch.NewAdminSettingsFetcher(s.providers.AdminSettings, s.log))
	s.syncFetcher(ctx, edge, "device_profile",
		fetch.NewEntityFetcher("device_profile", events.TypeDeviceProfile, s.providers.DeviceProfiles, s.log))
	s.syncFetcher(ctx, edge, "asset_profile",
		fetch.NewEntityFetcher("asset_profile", events.TypeAssetProfile, s.providers.AssetProfiles, s.log))
	s.syncFetcher(ctx, edge, "device",
		fetch.NewEntityFetcher("device", events.TypeDevice, s.providers.DevicesByEdge, s.log))
	s.syncFetcher(ctx, edge, "asset",
		fetch.NewEntityFetcher("asset", events.TypeAsset, s.providers.AssetsByEdge, s.log))
	s.syncUsers(ctx, edge)
	s.syncFetcher(ctx, edge, "dashboard",
		fetch.NewEntityFetcher("dashboard", events.TypeDashboard, s.providers.DashboardsByEdge, s.log))
	s.syncWidgets(ctx, edge)
	s.syncFetcher(ctx, edge, "notification_target",
		fetch.NewEntityFetcher("notification_target", events.TypeNotificationTarget, s.providers.NotificationTargets, s.log))
	s.syncFetcher(ctx, edge, "notification_template",
		fetch.NewEntityFetcher("notification_template", events.TypeNotificationTemplate, s.providers.NotificationTemplates, s.log))
	s.syncFetcher(ctx, edge, "domain",
		fetch.NewEntityFetcher("domain", events.TypeDomain, s.providers.Domains, s.log))

	s.log.Info("edge sync completed",
		zap.Stringer("tenant_id", edge.TenantID), zap.Stringer("edge_id", edge.ID))
	s.notifyEdge(edge)
}

// syncFetcher exhausts one bulk fetcher, appending every synthesized
// record. A failed append aborts this type only.
func (s *Service) syncFetcher(ctx context.Context, edge *domain.Edge, entityType string, f fetch.Fetcher) {
	cur := f.InitialCursor(s.pageSize)
	for {
		page, next := f.FetchPage(ctx, edge.TenantID, edge, cur)
		for i := range page.Data {
			if err := s.saveEdgeEvent(ctx, &page.Data[i]); err != nil {
				metrics.BackfillFailures.WithLabelValues(entityType).Inc()
				s.log.Error("failed to append backfill record, aborting entity type",
					zap.String("entity_type", entityType),
					zap.Stringer("tenant_id", edge.TenantID),
					zap.Stringer("edge_id", edge.ID),
					zap.Error(err))
				return
			}
		}
		if !page.HasNext {
			return
		}
		cur = next
	}
}

// syncUsers is two-phase: all tenant administrators first, then — only
// when the edge has an assigned customer — one CUSTOMER record
// followed by that customer's users.
func (s *Service) syncUsers(ctx context.Context, edge *domain.Edge) {
	s.syncFetcher(ctx, edge, "tenant_admin_user",
		fetch.NewEntityFetcher("tenant_admin_user", events.TypeUser, s.providers.TenantAdmins, s.log))

	if edge.CustomerID == uuid.Nil {
		return
	}
	customer := events.New(edge.TenantID, edge.ID, events.TypeCustomer, events.ActionAdded, edge.CustomerID, nil)
	if err := s.saveEdgeEvent(ctx, customer); err != nil {
		metrics.BackfillFailures.WithLabelValues("customer").Inc()
		s.log.Error("failed to append customer record, skipping customer users",
			zap.Stringer("tenant_id", edge.TenantID),
			zap.Stringer("edge_id", edge.ID),
			zap.Error(err))
		return
	}
	s.syncFetcher(ctx, edge, "customer_user",
		fetch.NewEntityFetcher("customer_user", events.TypeUser, s.providers.CustomerUsers, s.log))
}

// syncWidgets pushes each widgets bundle followed by the widget types
// it contains. A failed type enumeration degrades to the bundle alone.
func (s *Service) syncWidgets(ctx context.Context, edge *domain.Edge) {
	f := fetch.NewEntityFetcher("widgets_bundle", events.TypeWidgetsBundle, s.providers.WidgetsBundles, s.log)
	cur := f.InitialCursor(s.pageSize)
	for {
		page, next := f.FetchPage(ctx, edge.TenantID, edge, cur)
		for i := range page.Data {
			bundle := &page.Data[i]
			if err := s.saveEdgeEvent(ctx, bundle); err != nil {
				metrics.BackfillFailures.WithLabelValues("widgets_bundle").Inc()
				s.log.Error("failed to append widgets bundle record, aborting widgets",
					zap.Stringer("tenant_id", edge.TenantID),
					zap.Stringer("edge_id", edge.ID),
					zap.Error(err))
				return
			}
			s.syncWidgetTypes(ctx, edge, bundle.EntityID)
		}
		if !page.HasNext {
			return
		}
		cur = next
	}
}

func (s *Service) syncWidgetTypes(ctx context.Context, edge *domain.Edge, bundleID uuid.UUID) {
	if s.providers.WidgetTypesByBundle == nil {
		return
	}
	types, err := s.providers.WidgetTypesByBundle(ctx, edge.TenantID, bundleID)
	if err != nil {
		metrics.BackfillFailures.WithLabelValues("widget_type").Inc()
		s.log.Error("failed to list widget types for bundle",
			zap.Stringer("bundle_id", bundleID),
			zap.Stringer("edge_id", edge.ID),
			zap.Error(err))
		return
	}
	for _, wt := range types {
		ev := events.New(edge.TenantID, edge.ID, events.TypeWidgetType, events.ActionAdded, wt.ID, nil)
		if err := s.saveEdgeEvent(ctx, ev); err != nil {
			metrics.BackfillFailures.WithLabelValues("widget_type").Inc()
			s.log.Error("failed to append widget type record",
				zap.Stringer("entity_id", wt.ID),
				zap.Stringer("edge_id", edge.ID),
				zap.Error(err))
			return
		}
	}
}

// ProcessAttributesRequest resolves an attributes enrichment request.
// When attributes exist, one ATTRIBUTES_UPDATED record with a typed
// {"kv": ..., "scope": ...} body is appended; an empty result resolves
// successfully with no record.
func (s *Service) ProcessAttributesRequest(ctx context.Context, edge *domain.Edge, req AttributesRequest) <-chan error {
	return s.submitEdgeTask(ctx, edge, func(ctx context.Context) error {
		return s.handleAttributes(ctx, edge, req)
	})
}

func (s *Service) handleAttributes(ctx context.Context, edge *domain.Edge, req AttributesRequest) error {
	eventType, ok := events.TypeForEntity(req.Entity.Type)
	if !ok {
		s.log.Warn("attributes request for unsupported entity type",
			zap.String("entity_type", string(req.Entity.Type)),
			zap.Stringer("edge_id", edge.ID))
		return nil
	}
	if s.providers.Attributes == nil {
		return fmt.Errorf("attributes lookup is not configured")
	}
	attrs, err := s.providers.Attributes(ctx, edge.TenantID, req.Entity, req.Scope)
	if err != nil {
		return fmt.Errorf("failed to read attributes: %w", err)
	}
	if len(attrs) == 0 {
		s.log.Debug("no attributes found for entity",
			zap.Stringer("entity_id", req.Entity.ID),
			zap.String("scope", req.Scope))
		return nil
	}
	kv := make(map[string]interface{}, len(attrs))
	for _, attr := range attrs {
		kv[attr.Key] = attr.Value()
	}
	body, err := json.Marshal(map[string]interface{}{"kv": kv, "scope": req.Scope})
	if err != nil {
		return fmt.Errorf("failed to encode attributes body: %w", err)
	}
	ev := events.New(edge.TenantID, edge.ID, eventType, events.ActionAttributesUpdated, req.Entity.ID, body)
	if err := s.saveEdgeEvent(ctx, ev); err != nil {
		return fmt.Errorf("failed to append attributes record: %w", err)
	}
	return nil
}

// ProcessRelationRequest appends one relation record per relation of
// the requested entity, in both directions, skipping relations that
// touch the edge entity itself. Any single failure aborts the whole
// request.
func (s *Service) ProcessRelationRequest(ctx context.Context, edge *domain.Edge, req RelationRequest) <-chan error {
	return s.submitEdgeTask(ctx, edge, func(ctx context.Context) error {
		return s.handleRelations(ctx, edge, req)
	})
}

func (s *Service) handleRelations(ctx context.Context, edge *domain.Edge, req RelationRequest) error {
	if s.providers.Relations == nil {
		return fmt.Errorf("relations lookup is not configured")
	}
	for _, direction := range []domain.RelationDirection{domain.RelationDirectionFrom, domain.RelationDirectionTo} {
		relations, err := s.providers.Relations(ctx, edge.TenantID, req.Entity, direction)
		if err != nil {
			return fmt.Errorf("failed to query %s relations: %w", direction, err)
		}
		for _, relation := range relations {
			if relation.From.Type == domain.EntityTypeEdge || relation.To.Type == domain.EntityTypeEdge {
				continue
			}
			body, err := json.Marshal(relation)
			if err != nil {
				return fmt.Errorf("failed to encode relation: %w", err)
			}
			ev := events.New(edge.TenantID, edge.ID, events.TypeRelation, events.ActionRelationAddOrUpdate, uuid.Nil, body)
			if err := s.saveEdgeEvent(ctx, ev); err != nil {
				return fmt.Errorf("failed to append relation record: %w", err)
			}
		}
	}
	return nil
}

// ProcessRuleChainMetadataRequest appends one RULE_CHAIN_METADATA
// record for a non-zero rule chain id; a zero id resolves as a no-op.
func (s *Service) ProcessRuleChainMetadataRequest(ctx context.Context, edge *domain.Edge, req RuleChainMetadataRequest) <-chan error {
	return s.submitEdgeTask(ctx, edge, func(ctx context.Context) error {
		if req.RuleChainID == uuid.Nil {
			s.log.Debug("ignoring rule chain metadata request with zero id",
				zap.Stringer("edge_id", edge.ID))
			return nil
		}
		ev := events.New(edge.TenantID, edge.ID, events.TypeRuleChainMetadata, events.ActionAdded, req.RuleChainID, nil)
		if err := s.saveEdgeEvent(ctx, ev); err != nil {
			return fmt.Errorf("failed to append rule chain metadata record: %w", err)
		}
		return nil
	})
}

// ProcessDeviceCredentialsRequest appends one CREDENTIALS_UPDATED
// record for the requested device.
func (s *Service) ProcessDeviceCredentialsRequest(ctx context.Context, edge *domain.Edge, req DeviceCredentialsRequest) <-chan error {
	return s.submitEdgeTask(ctx, edge, func(ctx context.Context) error {
		if req.DeviceID == uuid.Nil {
			return nil
		}
		ev := events.New(edge.TenantID, edge.ID, events.TypeDevice, events.ActionCredentialsUpdated, req.DeviceID, nil)
		if err := s.saveEdgeEvent(ctx, ev); err != nil {
			return fmt.Errorf("failed to append device credentials record: %w", err)
		}
		return nil
	})
}

// ProcessUserCredentialsRequest appends one CREDENTIALS_UPDATED record
// for the requested user.
func (s *Service) ProcessUserCredentialsRequest(ctx context.Context, edge *domain.Edge, req UserCredentialsRequest) <-chan error {
	return s.submitEdgeTask(ctx, edge, func(ctx context.Context) error {
		if req.UserID == uuid.Nil {
			return nil
		}
		ev := events.New(edge.TenantID, edge.ID, events.TypeUser, events.ActionCredentialsUpdated, req.UserID, nil)
		if err := s.saveEdgeEvent(ctx, ev); err != nil {
			return fmt.Errorf("failed to append user credentials record: %w", err)
		}
		return nil
	})
}

// submitEdgeTask schedules fn on the I/O-bound executor; a successful
// completion wakes the edge's delivery session.
func (s *Service) submitEdgeTask(ctx context.Context, edge *domain.Edge, fn func(ctx context.Context) error) <-chan error {
	return s.exec.submit(ctx, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return err
		}
		s.notifyEdge(edge)
		return nil
	})
}

func (s *Service) saveEdgeEvent(ctx context.Context, ev *events.EdgeEvent) error {
	if _, err := s.store.Save(ctx, ev); err != nil {
		return err
	}
	metrics.EventsAppended.WithLabelValues(string(ev.Type), string(ev.Action)).Inc()
	return nil
}

func (s *Service) notifyEdge(edge *domain.Edge) {
	if s.notifier != nil {
		s.notifier.OnEdgeEventUpdate(edge.TenantID, edge.ID)
	}
}
