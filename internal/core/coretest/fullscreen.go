package coretest

import (
	"context"
	"errors"
	"sync"
)

// Vendor names one fullscreen API family as exposed by a document.
type Vendor struct {
	Request string
	Exit    string
	Element string
	Event   string
}

var (
	StandardVendor = Vendor{"requestFullscreen", "exitFullscreen", "fullscreenElement", "fullscreenchange"}
	WebkitVendor   = Vendor{"webkitRequestFullscreen", "webkitExitFullscreen", "webkitFullscreenElement", "webkitfullscreenchange"}
)

// FullscreenHost simulates a document exposing a single vendor API.
// Change events are dispatched asynchronously like a real engine would.
type FullscreenHost struct {
	vendor *Vendor

	mu        sync.Mutex
	element   bool
	listeners map[string]map[int]func()
	nextID    int
	wg        sync.WaitGroup
	// SkipEvent suppresses change events so tests can hold a call pending.
	SkipEvent bool
}

func NewFullscreenHost(v *Vendor) *FullscreenHost {
	return &FullscreenHost{vendor: v, listeners: make(map[string]map[int]func())}
}

func (h *FullscreenHost) Has(method string) bool {
	return h.vendor != nil && (method == h.vendor.Request || method == h.vendor.Exit)
}

func (h *FullscreenHost) Invoke(_ context.Context, method string) error {
	if h.vendor == nil {
		return errors.New("no fullscreen api")
	}
	switch method {
	case h.vendor.Request:
		h.set(true)
	case h.vendor.Exit:
		h.set(false)
	default:
		return errors.New("unknown method " + method)
	}
	return nil
}

func (h *FullscreenHost) ElementPresent(property string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.vendor != nil && property == h.vendor.Element && h.element
}

func (h *FullscreenHost) AddEventListener(event string, fn func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listeners[event] == nil {
		h.listeners[event] = make(map[int]func())
	}
	id := h.nextID
	h.nextID++
	h.listeners[event][id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners[event], id)
	}
}

// ExitFromOS clears the fullscreen element as if the user pressed Esc.
func (h *FullscreenHost) ExitFromOS() {
	h.set(false)
}

// Listeners counts registered handlers across all events.
func (h *FullscreenHost) Listeners() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, m := range h.listeners {
		n += len(m)
	}
	return n
}

func (h *FullscreenHost) Wait() { h.wg.Wait() }

func (h *FullscreenHost) set(on bool) {
	h.mu.Lock()
	h.element = on
	if h.SkipEvent {
		h.mu.Unlock()
		return
	}
	var fns []func()
	for _, fn := range h.listeners[h.vendor.Event] {
		fns = append(fns, fn)
	}
	h.wg.Add(1)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		for _, fn := range fns {
			fn()
		}
	}()
}
