package relevance

import (
	"fmt"
	"sync"
)

// Disclosure tracks expand/collapse state per excerpt, keyed by
// (messageID, excerptIndex). Toggles are independent: expanding one
// excerpt never touches its neighbors. Default is the segment view.
type Disclosure struct {
	mu       sync.RWMutex
	expanded map[string]bool
}

func NewDisclosure() *Disclosure {
	return &Disclosure{expanded: make(map[string]bool)}
}

func key(messageID string, index int) string {
	return fmt.Sprintf("%s#%d", messageID, index)
}

// Toggle flips one excerpt between segment view and full view and reports
// the new state (true = full view).
func (d *Disclosure) Toggle(messageID string, index int) bool {
	k := key(messageID, index)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.expanded[k] = !d.expanded[k]
	return d.expanded[k]
}

func (d *Disclosure) Expanded(messageID string, index int) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.expanded[key(messageID, index)]
}

// Apply stamps the current disclosure state onto a built view.
func (d *Disclosure) Apply(v *View) {
	if v.Primary != nil {
		v.Primary.Expanded = d.Expanded(v.MessageID, v.Primary.Index)
	}
	for i := range v.Others {
		v.Others[i].Expanded = d.Expanded(v.MessageID, v.Others[i].Index)
	}
}
