package fetch

import (
	"context"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/edgemesh/edge-sync/domain"
	"github.com/edgemesh/edge-sync/events"
)

// RootChainLookup resolves the id of the rule chain configured as the
// root chain of the given edge.
type RootChainLookup func(ctx context.Context, tenantID uuid.UUID, edge *domain.Edge) (uuid.UUID, error)

// RootChainResolver answers "is this chain the edge's root chain",
// caching resolutions per edge. Lookup failures degrade to false so a
// broken lookup never aborts a rule chain record.
type RootChainResolver struct {
	lookup RootChainLookup
	cache  *cache.Cache
	log    *zap.Logger
}

func NewRootChainResolver(lookup RootChainLookup, log *zap.Logger) *RootChainResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &RootChainResolver{
		lookup: lookup,
		cache:  cache.New(time.Minute, 5*time.Minute),
		log:    log,
	}
}

func (r *RootChainResolver) IsRoot(ctx context.Context, tenantID uuid.UUID, edge *domain.Edge, chainID uuid.UUID) bool {
	if cached, ok := r.cache.Get(edge.ID.String()); ok {
		return cached.(uuid.UUID) == chainID
	}
	if r.lookup == nil {
		return edge.RootRuleChainID == chainID
	}
	rootID, err := r.lookup(ctx, tenantID, edge)
	if err != nil {
		r.log.Warn("failed to resolve edge root rule chain",
			zap.Stringer("tenant_id", tenantID),
			zap.Stringer("edge_id", edge.ID),
			zap.Error(err))
		return false
	}
	r.cache.Set(edge.ID.String(), rootID, cache.DefaultExpiration)
	return rootID == chainID
}

// NewRuleChainFetcher builds the rule chain bulk fetcher. Each ADDED
// event carries an {"isRoot": bool} body.
func NewRuleChainFetcher(list ListFunc, resolver *RootChainResolver, log *zap.Logger) Fetcher {
	body := func(ctx context.Context, tenantID uuid.UUID, edge *domain.Edge, entity domain.EntityInfo) map[string]interface{} {
		return map[string]interface{}{
			"isRoot": resolver.IsRoot(ctx, tenantID, edge, entity.ID),
		}
	}
	return NewEntityFetcherWithBody("rule_chain", events.TypeRuleChain, list, body, log)
}
