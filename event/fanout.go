package event

import "context"

type Emitter interface {
	Emit(ctx context.Context, room, event string, payload any)
}

// Fanout delivers each event to every emitter in order.
type Fanout []Emitter

func (f Fanout) Emit(ctx context.Context, room, event string, payload any) {
	for _, e := range f {
		if e != nil {
			e.Emit(ctx, room, event, payload)
		}
	}
}
