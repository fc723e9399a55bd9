package sdk

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// EventType names a consumer event.
type EventType string

const (
	// EventInitialized fires when a session was created by Init.
	EventInitialized EventType = "initialized"
	// EventError carries a failure the caller should know about in Event.Err.
	EventError EventType = "error"
	// EventNoAd fires when ShowAd found nothing buffered for the requested type.
	EventNoAd EventType = "no-ad"
	// EventAdShown fires after the renderer presented a creative.
	EventAdShown EventType = "ad-shown"
	// EventInterstitialClosed is re-emitted from the renderer.
	EventInterstitialClosed EventType = "interstitial-closed"
	// EventBannerHidden is re-emitted from the renderer.
	EventBannerHidden EventType = "banner-hidden"
)

// Event is delivered to every registered Listener, in emission order and at
// most once per listener.
type Event struct {
	Type EventType
	// Err is set for EventError.
	Err error
	// AdType is set for EventAdShown and EventNoAd.
	AdType AdType
	// Orientation is set for EventNoAd.
	Orientation Orientation
	// Height is the shown creative's height, set for EventAdShown.
	Height int
}

// Listener receives consumer events. Listeners run outside the client's
// lock and may call back into the client.
type Listener func(Event)

type listenerEntry struct {
	id uint64
	fn Listener
}

// emitter queues events and dispatches them one at a time. A goroutine that
// finds dispatch already running leaves its events to that goroutine, so
// nested emissions from inside a listener are delivered after the current
// event instead of interleaving with it.
type emitter struct {
	mu          sync.Mutex
	listeners   []listenerEntry
	nextID      uint64
	queue       []Event
	dispatching bool
	logger      logrus.FieldLogger
}

func newEmitter(logger logrus.FieldLogger) *emitter {
	return &emitter{logger: logger}
}

func (e *emitter) on(fn Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, listenerEntry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, l := range e.listeners {
				if l.id == id {
					e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (e *emitter) enqueue(ev Event) {
	e.mu.Lock()
	e.queue = append(e.queue, ev)
	e.mu.Unlock()
}

// flush delivers queued events until the queue is empty.
func (e *emitter) flush() {
	e.mu.Lock()
	if e.dispatching {
		e.mu.Unlock()
		return
	}
	e.dispatching = true
	for len(e.queue) > 0 {
		ev := e.queue[0]
		e.queue = e.queue[1:]
		listeners := e.listeners
		e.mu.Unlock()

		for _, l := range listeners {
			e.deliver(l.fn, ev)
		}

		e.mu.Lock()
	}
	e.queue = nil
	e.dispatching = false
	e.mu.Unlock()
}

func (e *emitter) deliver(fn Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithFields(logrus.Fields{
				"event": ev.Type,
				"panic": r,
			}).Error("Event listener panicked")
		}
	}()
	fn(ev)
}
