package tx

import (
	"go.uber.org/zap"

	"github.com/syssam/objgraph"
	"github.com/syssam/objgraph/privacy"
)

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger used for commit and rollback events.
// The default logger discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.log = l
		}
	}
}

// WithPolicy sets the privacy policy evaluated for every staged op at
// commit time. privacy.MutationPolicy and privacy.Policy both qualify.
func WithPolicy(p privacy.MutationRule) Option {
	return func(c *Context) {
		c.policy = p
	}
}

// WithHooks appends mutation hooks. Hooks run in the order given, after
// the privacy policy and before the op is applied to the store.
func WithHooks(hooks ...objgraph.Hook) Option {
	return func(c *Context) {
		c.hooks = append(c.hooks, hooks...)
	}
}
