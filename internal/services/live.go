package services

import (
	"context"
	"fmt"

	"gawangliliw/sellerhub/internal/realtime"
	"gawangliliw/sellerhub/internal/utils"
)

// Subscriber is the part of realtime.Manager the services need.
type Subscriber interface {
	Subscribe(ctx context.Context, key string, q realtime.Query, h realtime.Handler) (*realtime.Subscription, error)
}

// liveKey scopes a listener to one seller, one browser client and one view,
// so a client changing filters replaces its own listener only.
func liveKey(sellerID utils.SixID, clientID, view string) string {
	if clientID == "" {
		clientID = "default"
	}
	return fmt.Sprintf("%s/%s/%s", sellerID, clientID, view)
}

// live subscribes and returns a channel fed by the subscription goroutine.
// The caller drains it on its own goroutine, which keeps emits ordered and
// lets the initial snapshot go out before any buffered change.
func live(ctx context.Context, sub Subscriber, key string, q realtime.Query) (<-chan realtime.Event, *realtime.Subscription, error) {
	events := make(chan realtime.Event, 64)
	s, err := sub.Subscribe(ctx, key, q, func(subCtx context.Context, ev realtime.Event) {
		select {
		case events <- ev:
		case <-subCtx.Done():
		}
	})
	if err != nil {
		return nil, nil, err
	}
	return events, s, nil
}
