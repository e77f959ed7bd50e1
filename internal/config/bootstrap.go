package config

import (
	"context"
	"fmt"

	rchan "github.com/rchanio/rchan/internal"
)

// Subscriber is the subset of *stream.Supervisor Bootstrap depends on.
type Subscriber interface {
	Subscribe(ctx context.Context, sub rchan.Subscription) error
}

// Bootstrap subscribes every board named in cfg.Boards, in order. It
// stops at the first failure, seeding live subscriptions the same way
// a startup seeder populates a database.
func Bootstrap(ctx context.Context, cfg *Config, sup Subscriber) error {
	for _, b := range cfg.Boards {
		sub := rchan.Subscription{Board: b.Name, RefreshRateMs: b.RefreshRateMs}
		if err := sup.Subscribe(ctx, sub); err != nil {
			return fmt.Errorf("subscribe %q: %w", b.Name, err)
		}
	}
	return nil
}
