package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNoParent is returned when no strategy can resolve a thread's parent
// channel. Webhooks belong to text channels, so a thread without a
// resolvable parent cannot be served.
var ErrNoParent = errors.New("webhook: no parent channel resolvable for thread")

// Strategy is one way of resolving a thread's parent channel. It reports
// false when it has no answer, letting the next strategy try.
type Strategy struct {
	Name    string
	Resolve func(ctx context.Context, ch ChannelInfo) (ChannelInfo, bool)
}

// ParentResolver resolves the channel that owns webhooks for a given
// channel: the channel itself, or a thread's parent.
type ParentResolver interface {
	ResolveParent(ctx context.Context, ch ChannelInfo) (ChannelInfo, error)
}

// ChainResolver tries an explicit ordered list of strategies. The order is
// part of the contract: cheap in-memory lookups come before API fetches.
type ChainResolver struct {
	strategies []Strategy
}

// NewChainResolver builds a resolver from ordered strategies.
func NewChainResolver(strategies ...Strategy) *ChainResolver {
	return &ChainResolver{strategies: strategies}
}

// ResolveParent returns ch unchanged for plain channels. For threads it
// walks the strategy list and returns the first resolved parent, or
// ErrNoParent when every strategy passes.
func (r *ChainResolver) ResolveParent(ctx context.Context, ch ChannelInfo) (ChannelInfo, error) {
	if !ch.IsThread {
		return ch, nil
	}

	for _, s := range r.strategies {
		if parent, ok := s.Resolve(ctx, ch); ok {
			slog.Debug("thread parent resolved",
				"thread_id", ch.ID,
				"parent_id", parent.ID,
				"strategy", s.Name,
			)
			return parent, nil
		}
	}

	return ChannelInfo{}, fmt.Errorf("%w: thread %s", ErrNoParent, ch.ID)
}
