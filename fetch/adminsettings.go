package fetch

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edgemesh/edge-sync/domain"
	"github.com/edgemesh/edge-sync/events"
)

// AdminSettingsLookup reads one configuration snapshot by key.
type AdminSettingsLookup func(ctx context.Context, tenantID uuid.UUID, key string) (domain.AdminSetting, error)

// adminSettingsKeys is the fixed set of configuration snapshots pushed
// to every edge.
var adminSettingsKeys = []string{"general", "mail", "connectivity", "jwt"}

// adminSettingsFetcher has no natural pagination: it reports the fixed
// key set as a single terminal page. A failed key is skipped rather
// than failing the page.
type adminSettingsFetcher struct {
	lookup AdminSettingsLookup
	log    *zap.Logger
}

func NewAdminSettingsFetcher(lookup AdminSettingsLookup, log *zap.Logger) Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &adminSettingsFetcher{lookup: lookup, log: log}
}

func (f *adminSettingsFetcher) InitialCursor(pageSize int) Cursor {
	return Cursor{PageSize: pageSize}
}

func (f *adminSettingsFetcher) FetchPage(ctx context.Context, tenantID uuid.UUID, edge *domain.Edge, cur Cursor) (domain.PageData[events.EdgeEvent], Cursor) {
	if f.lookup == nil {
		f.log.Warn("no admin settings lookup configured, skipping fetch",
			zap.Stringer("tenant_id", tenantID))
		return domain.EmptyPage[events.EdgeEvent](), cur
	}
	data := make([]events.EdgeEvent, 0, len(adminSettingsKeys))
	for _, key := range adminSettingsKeys {
		setting, err := f.lookup(ctx, tenantID, key)
		if err != nil {
			f.log.Warn("failed to load admin settings key, skipping",
				zap.String("key", key),
				zap.Stringer("tenant_id", tenantID),
				zap.Error(err))
			continue
		}
		body, err := json.Marshal(setting)
		if err != nil {
			f.log.Error("failed to encode admin settings",
				zap.String("key", key), zap.Error(err))
			continue
		}
		data = append(data, *events.New(tenantID, edge.ID, events.TypeAdminSettings, events.ActionUpdated, uuid.Nil, body))
	}
	return domain.SinglePage(data), cur
}
