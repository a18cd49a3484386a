// Package channels provides the platform adapter abstraction. An
// adapter normalizes platform events onto the message bus and delivers
// outbound messages, impersonating personalities where the platform
// supports it.
package channels

import (
	"context"

	"github.com/tzurot/tzurot/internal/bus"
)

// Channel is the interface every platform adapter satisfies.
type Channel interface {
	// Name returns the platform identifier (e.g. "discord").
	Name() string

	// Start opens the platform connection. Non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts the adapter down.
	Stop(ctx context.Context) error

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// IsRunning reports whether the adapter is processing events.
	IsRunning() bool
}

// BaseChannel carries the shared state adapters embed.
type BaseChannel struct {
	name    string
	bus     bus.MessageRouter
	running bool
}

func NewBaseChannel(name string, msgBus bus.MessageRouter) *BaseChannel {
	return &BaseChannel{name: name, bus: msgBus}
}

// Name returns the channel name.
func (c *BaseChannel) Name() string { return c.name }

// IsRunning returns whether the channel is running.
func (c *BaseChannel) IsRunning() bool { return c.running }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running = running }

// Bus returns the message bus reference.
func (c *BaseChannel) Bus() bus.MessageRouter { return c.bus }
