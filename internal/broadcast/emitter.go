package broadcast

import (
	"context"
	"encoding/json"

	"github.com/park285/eternal-chess/internal/domain"
	"github.com/park285/eternal-chess/pkg/eternaldto"
)

// Emitter pushes one live event. Emit never fails towards the caller;
// delivery problems are logged by the implementation.
type Emitter interface {
	Emit(ctx context.Context, event string, snap domain.Snapshot)
}

// SnapshotProvider computes the current live snapshot.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (domain.Snapshot, error)
}

// Fanout emits to each emitter in order.
type Fanout []Emitter

func (f Fanout) Emit(ctx context.Context, event string, snap domain.Snapshot) {
	for _, e := range f {
		if e != nil {
			e.Emit(ctx, event, snap)
		}
	}
}

// Encode builds the wire envelope for an event.
func Encode(event string, snap domain.Snapshot) ([]byte, error) {
	return json.Marshal(eternaldto.Event{Event: event, Data: ToWire(snap)})
}

func ToWire(snap domain.Snapshot) eternaldto.State {
	return eternaldto.State(snap)
}
