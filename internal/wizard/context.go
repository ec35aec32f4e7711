// Package wizard sequences a price-change session: context selection, SKU
// resolution, matrix editing, review, and GTM assignment, with per-step
// gates and the capture that turns edits into a change set.
package wizard

import (
	"fmt"

	"priceforge/pkg/catalog"
)

// Action is the operator's intent for the session.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// EditingContext captures the commercial context being edited. Partial
// contexts are legal; the orchestrator refuses to advance until channel,
// cycle, and action are all present. At most one of Existing/CloneFrom is
// set, and only when the action calls for it.
type EditingContext struct {
	Channel    catalog.SalesChannel
	Cycle      catalog.BillingCycle
	Action     Action
	Existing   *catalog.PriceGroup // update target
	CloneFrom  *catalog.PriceGroup // structure source for create
	Experiment *catalog.Experiment
}

// Complete reports whether the context can gate past the first step.
func (c EditingContext) Complete() bool {
	return c.Channel != "" && c.Cycle != "" && c.Action != ""
}

// Validate checks the reference invariant.
func (c EditingContext) Validate() error {
	if c.Existing != nil && c.CloneFrom != nil {
		return fmt.Errorf("context references both an existing and a clone-source price group")
	}
	if c.Existing != nil && c.Action != ActionUpdate {
		return fmt.Errorf("existing price group reference requires action=update")
	}
	if c.CloneFrom != nil && c.Action != ActionCreate {
		return fmt.Errorf("clone source requires action=create")
	}
	return nil
}

// ChannelOption is one entry of the channel picker, split into "already used
// by this product" and "new".
type ChannelOption struct {
	Channel catalog.SalesChannel `json:"channel"`
	InUse   bool                 `json:"in_use"`
}

// CycleOption mirrors ChannelOption for billing cycles.
type CycleOption struct {
	Cycle catalog.BillingCycle `json:"cycle"`
	InUse bool                 `json:"in_use"`
}

// ChannelOptions partitions the fixed channel enumeration against a product.
func ChannelOptions(p *catalog.Product) []ChannelOption {
	used := p.UsedChannels()
	out := make([]ChannelOption, 0, len(catalog.AllChannels))
	for _, ch := range catalog.AllChannels {
		out = append(out, ChannelOption{Channel: ch, InUse: used[ch]})
	}
	return out
}

// CycleOptions partitions the fixed cycle enumeration against a product.
func CycleOptions(p *catalog.Product) []CycleOption {
	used := p.UsedCycles()
	out := make([]CycleOption, 0, len(catalog.AllCycles))
	for _, cy := range catalog.AllCycles {
		out = append(out, CycleOption{Cycle: cy, InUse: used[cy]})
	}
	return out
}

// ContextForm mutates the editing context through the explicit step-0
// actions. onReset fires whenever a change invalidates downstream matrix
// state; partial resets are never allowed, so the hook always clears
// everything it owns.
type ContextForm struct {
	ctx     EditingContext
	onReset func()
	frozen  bool // direct-edit sessions arrive with an immutable context
}

// NewContextForm creates a form around an empty context.
func NewContextForm(onReset func()) *ContextForm {
	if onReset == nil {
		onReset = func() {}
	}
	return &ContextForm{onReset: onReset}
}

// Context returns the current value.
func (f *ContextForm) Context() EditingContext { return f.ctx }

// SetChannel picks the sales channel. Changing it invalidates matrix state.
func (f *ContextForm) SetChannel(ch catalog.SalesChannel) {
	if f.frozen {
		return
	}
	if f.ctx.Channel == ch {
		return
	}
	f.ctx.Channel = ch
	f.onReset()
}

// SetCycle picks the billing cycle. Changing it invalidates matrix state.
func (f *ContextForm) SetCycle(cy catalog.BillingCycle) {
	if f.frozen {
		return
	}
	if f.ctx.Cycle == cy {
		return
	}
	f.ctx.Cycle = cy
	f.onReset()
}

// SetAction picks create vs update and drops whichever group reference no
// longer fits.
func (f *ContextForm) SetAction(a Action) {
	if f.frozen {
		return
	}
	if f.ctx.Action == a {
		return
	}
	f.ctx.Action = a
	if a != ActionUpdate {
		f.ctx.Existing = nil
	}
	if a != ActionCreate {
		f.ctx.CloneFrom = nil
	}
	f.onReset()
}

// SetExperiment records the LIX pair. Blanking either half nils both; a
// context with only one half populated is never emitted.
func (f *ContextForm) SetExperiment(key, treatment string) {
	if f.frozen {
		return
	}
	f.ctx.Experiment = catalog.NewExperiment(key, treatment)
}

// SetExistingGroup targets a price group for update.
func (f *ContextForm) SetExistingGroup(g *catalog.PriceGroup) {
	if f.frozen {
		return
	}
	f.ctx.Action = ActionUpdate
	f.ctx.Existing = g
	f.ctx.CloneFrom = nil
	f.onReset()
}

// SelectCloneSource pre-fills channel, cycle, and experiment from the source
// SKU and forces action=create.
func (f *ContextForm) SelectCloneSource(src catalog.Sku, group *catalog.PriceGroup) {
	if f.frozen {
		return
	}
	f.ctx.Action = ActionCreate
	f.ctx.Channel = src.Channel
	f.ctx.Cycle = src.Cycle
	f.ctx.Experiment = src.Experiment
	f.ctx.CloneFrom = group
	f.ctx.Existing = nil
	f.onReset()
}

// ClearCloneSource resets every field the clone pre-filled: channel, cycle,
// experiment, and (through the hook) all price inputs. Nothing survives; a
// partial reset would leave orphaned matrix state.
func (f *ContextForm) ClearCloneSource() {
	if f.frozen {
		return
	}
	if f.ctx.CloneFrom == nil {
		return
	}
	f.ctx.CloneFrom = nil
	f.ctx.Channel = ""
	f.ctx.Cycle = ""
	f.ctx.Experiment = nil
	f.onReset()
}
