package vault

import "context"

// DefaultActor is recorded when the caller does not name one.
const DefaultActor = "system"

type actorKey struct{}

// WithActor attributes every vault call made with ctx to actor.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFrom(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
		return a
	}
	return DefaultActor
}
