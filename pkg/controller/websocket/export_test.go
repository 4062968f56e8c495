package websocket

import "context"

// RegisterForTest attaches a connectionless client to tab and returns the tab
// it ended up on.
func (h *Hub) RegisterForTest(ctx context.Context, tab *Tab) *Tab {
	client := h.newClient(ctx, nil, tab)
	if err := h.register(client); err != nil {
		return nil
	}
	return client.tab
}
