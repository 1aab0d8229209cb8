package vad

type windowEntry struct {
	frame    Frame
	isSpeech bool
}

// paddingWindow is a fixed capacity FIFO holding the most recently classified
// frames while the collector is untriggered. Pushing onto a full window evicts
// the oldest entry. A zero capacity window holds nothing.
type paddingWindow struct {
	entries []windowEntry
	head    int
	size    int
}

func newPaddingWindow(capacity int) *paddingWindow {
	return &paddingWindow{
		entries: make([]windowEntry, capacity),
	}
}

func (w *paddingWindow) capacity() int {
	return len(w.entries)
}

func (w *paddingWindow) count() int {
	return w.size
}

func (w *paddingWindow) push(e windowEntry) {
	if len(w.entries) == 0 {
		return
	}

	if w.size < len(w.entries) {
		w.entries[(w.head+w.size)%len(w.entries)] = e
		w.size++
		return
	}

	w.entries[w.head] = e
	w.head = (w.head + 1) % len(w.entries)
}

// each calls fn on every entry from oldest to newest.
func (w *paddingWindow) each(fn func(windowEntry)) {
	for i := 0; i < w.size; i++ {
		fn(w.entries[(w.head+i)%len(w.entries)])
	}
}

func (w *paddingWindow) reset() {
	clear(w.entries)
	w.head = 0
	w.size = 0
}
