package notify

import (
	"context"

	"citeline/internal/submission/models"
)

// Fanout delivers each event to every sink in order. It lets main compose the
// local broadcaster with optional mirrors (Redis bridge, Kafka) behind the
// single Publisher the services depend on.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event models.Event) {
	for _, p := range f {
		p.Publish(ctx, event)
	}
}
