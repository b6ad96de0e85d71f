package mpesa

import "sync"

type endpoint struct {
	url   string
	index int
}

// endpointHolder keeps the ordered failover list plus the index of the last
// endpoint that answered. The cache is explicit and per-client so tests can
// construct holders directly instead of relying on process globals.
type endpointHolder struct {
	mu      sync.Mutex
	urls    []string
	healthy int
}

func newEndpointHolder(urls []string) (*endpointHolder, error) {
	cleaned := make([]string, 0, len(urls))
	for _, u := range urls {
		if u != "" {
			cleaned = append(cleaned, u)
		}
	}
	if len(cleaned) == 0 {
		return nil, errBaseURLRequired
	}
	return &endpointHolder{urls: cleaned}, nil
}

// ordered returns the endpoints starting from the cached healthy one, then the
// rest of the configured list in order.
func (h *endpointHolder) ordered() []endpoint {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]endpoint, 0, len(h.urls))
	for i := 0; i < len(h.urls); i++ {
		idx := (h.healthy + i) % len(h.urls)
		out = append(out, endpoint{url: h.urls[idx], index: idx})
	}
	return out
}

func (h *endpointHolder) markHealthy(index int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if index >= 0 && index < len(h.urls) {
		h.healthy = index
	}
}
