package crawler

// frontier is the FIFO of URLs waiting to be fetched.
// The same URL may be queued more than once; Run re-checks at dequeue time.
type frontier struct {
	items []string
}

func newFrontier(seed string) *frontier {
	return &frontier{items: []string{seed}}
}

func (f *frontier) push(u string) {
	f.items = append(f.items, u)
}

func (f *frontier) pop() (string, bool) {
	if len(f.items) == 0 {
		return "", false
	}
	u := f.items[0]
	f.items[0] = ""
	f.items = f.items[1:]
	return u, true
}

// visitedSet holds URLs that were fetched successfully. It only grows.
type visitedSet map[string]struct{}

// Contains implements scope.Visited.
func (v visitedSet) Contains(u string) bool {
	_, ok := v[u]
	return ok
}

func (v visitedSet) add(u string) {
	v[u] = struct{}{}
}
