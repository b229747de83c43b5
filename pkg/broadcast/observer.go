package broadcast

import "context"

// Observer receives notifications about session activity, typically to feed metrics.
// Implementations must be cheap and must not block.
type Observer interface {
	MessageSent(ctx context.Context, msg Message)
	SendFailed(ctx context.Context, channels []string, err error)
	MessageReceived(ctx context.Context, msg Message)
	ReceiveEmpty(ctx context.Context)
	CursorDead(ctx context.Context)
}

type noopObserver struct{}

func (noopObserver) MessageSent(context.Context, Message)        {}
func (noopObserver) SendFailed(context.Context, []string, error) {}
func (noopObserver) MessageReceived(context.Context, Message)    {}
func (noopObserver) ReceiveEmpty(context.Context)                {}
func (noopObserver) CursorDead(context.Context)                  {}
