package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/edgemesh/edge-sync/events"
)

// DownlinkMsg is one change record shaped for the wire.
type DownlinkMsg struct {
	SeqID       int64
	Type        events.EventType
	Action      events.ActionType
	EntityID    uuid.UUID
	Body        *structpb.Struct
	CreatedTime int64
}

// Downlink carries change records to one connected edge, typically
// backed by a gRPC stream. Send blocks until the record is handed to
// the transport or ctx is done.
type Downlink interface {
	Send(ctx context.Context, msg *DownlinkMsg) error
}

func toDownlinkMsg(ev *events.EdgeEvent) (*DownlinkMsg, error) {
	var body *structpb.Struct
	if len(ev.Body) > 0 {
		var raw map[string]interface{}
		if err := json.Unmarshal(ev.Body, &raw); err != nil {
			return nil, fmt.Errorf("failed to decode record body: %w", err)
		}
		var err error
		body, err = structpb.NewStruct(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to convert record body: %w", err)
		}
	}
	return &DownlinkMsg{
		SeqID:       ev.SeqID,
		Type:        ev.Type,
		Action:      ev.Action,
		EntityID:    ev.EntityID,
		Body:        body,
		CreatedTime: ev.CreatedTime,
	}, nil
}
