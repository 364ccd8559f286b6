// Package hooks provides default nucleation round hooks.
package hooks

import (
	"context"

	"github.com/arloliu/nucleate/types"
)

// NopHooks implements the round callbacks as no-ops.
type NopHooks struct{}

var (
	_ func(context.Context, types.Clock, []types.Nucleus) error = (*NopHooks)(nil).OnNucleiAccepted
	_ func(context.Context, types.Clock, error) error            = (*NopHooks)(nil).OnRoundFailed
)

// NewNop creates hooks whose callbacks do nothing.
//
// Returns:
//   - types.Hooks: Hooks with every callback set
func NewNop() types.Hooks {
	h := &NopHooks{}

	return types.Hooks{
		OnNucleiAccepted: h.OnNucleiAccepted,
		OnRoundFailed:    h.OnRoundFailed,
	}
}

// WithDefaults returns a copy of h with every nil callback replaced by a no-op.
//
// Parameters:
//   - h: User hooks (may be nil)
//
// Returns:
//   - types.Hooks: Hooks safe to call without nil checks
func WithDefaults(h *types.Hooks) types.Hooks {
	out := NewNop()
	if h == nil {
		return out
	}
	if h.OnNucleiAccepted != nil {
		out.OnNucleiAccepted = h.OnNucleiAccepted
	}
	if h.OnRoundFailed != nil {
		out.OnRoundFailed = h.OnRoundFailed
	}

	return out
}

// OnNucleiAccepted is a no-op implementation.
func (h *NopHooks) OnNucleiAccepted(_ context.Context, _ types.Clock, _ []types.Nucleus) error {
	return nil
}

// OnRoundFailed is a no-op implementation.
func (h *NopHooks) OnRoundFailed(_ context.Context, _ types.Clock, _ error) error {
	return nil
}
