package consent

import "sync"

// PromptController is the explicit present/dismiss handle for the consent
// modal. The factory returns it to whoever owns the modal surface; nothing
// reads it as ambient shared state.
type PromptController struct {
	mu      sync.Mutex
	visible bool
}

func NewPromptController() *PromptController {
	return &PromptController{}
}

// Present shows the modal. Idempotent; reports whether visibility changed.
func (c *PromptController) Present() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.visible {
		return false
	}
	c.visible = true
	return true
}

// Dismiss hides the modal. Idempotent.
func (c *PromptController) Dismiss() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.visible {
		return false
	}
	c.visible = false
	return true
}

func (c *PromptController) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}
