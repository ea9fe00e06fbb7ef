package browser

import (
	"sync"

	"github.com/playwright-community/playwright-go"
)

// ConsoleMessages collects console output of a page by message type, such as
// "log", "warning" or "error".
type ConsoleMessages struct {
	mu       sync.RWMutex
	messages map[string][]string
}

// SpyOnConsole records every console message page emits from now on.
func SpyOnConsole(page playwright.Page) *ConsoleMessages {
	spy := &ConsoleMessages{messages: make(map[string][]string)}

	page.OnConsole(func(msg playwright.ConsoleMessage) {
		spy.record(msg.Type(), msg.Text())
	})

	return spy
}

func (c *ConsoleMessages) record(kind, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages[kind] = append(c.messages[kind], text)
}

// Get returns the messages of one type in emission order.
func (c *ConsoleMessages) Get(kind string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.messages[kind]...)
}

// All returns a copy of every recorded message.
func (c *ConsoleMessages) All() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string][]string, len(c.messages))
	for kind, texts := range c.messages {
		out[kind] = append([]string(nil), texts...)
	}
	return out
}

// Len returns the number of recorded messages.
func (c *ConsoleMessages) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, texts := range c.messages {
		n += len(texts)
	}
	return n
}
