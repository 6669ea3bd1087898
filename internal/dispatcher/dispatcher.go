// Package dispatcher routes host and mirror events to the handlers that
// persist, export or apply them.
package dispatcher

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Event is a command routed to a registered handler. Payload carries typed
// data (a turn report, a raw frame) that does not fit in Args.
type Event struct {
	Command   string
	Args      []string
	Payload   any
	Timestamp time.Time
}

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher closed")

// queuedResult is what Dispatch returns for an event handed to a queue.
const queuedResult = "queued"

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger is the minimal logging surface the dispatcher needs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*route)

// Buffered runs the handler on its own goroutine behind a queue of size
// events. Dispatch returns as soon as the event is queued.
func Buffered(size int) Option {
	return func(r *route) { r.queueSize = size }
}

// Blocking makes Dispatch wait for room in a full queue instead of dropping.
func Blocking() Option {
	return func(r *route) { r.blocking = true }
}

// Logged logs every dispatch of the command at debug level and failures at
// error level.
func Logged() Option {
	return func(r *route) { r.logged = true }
}

type route struct {
	command   string
	handle    HandlerFunc
	queue     chan Event
	queueSize int
	blocking  bool
	logged    bool
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	logger Logger
	stats  *instruments

	mu      sync.RWMutex
	routes  map[string]*route
	closed  bool
	workers sync.WaitGroup
}

// New creates a Dispatcher. Metrics go to the global OTel meter, which is a
// no-op until a provider is installed.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		logger: logger,
		routes: make(map[string]*route),
	}
	stats, err := newInstruments(d.queueDepths)
	if err != nil {
		return nil, err
	}
	d.stats = stats
	return d, nil
}

// Register installs h for command, replacing any earlier handler.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	r := &route{command: command, handle: h}
	for _, opt := range opts {
		opt(r)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if r.queueSize > 0 {
		r.queue = make(chan Event, r.queueSize)
		d.workers.Add(1)
		go d.drain(r)
	}
	d.routes[command] = r
}

// HasHandler reports whether a handler is registered for command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.routes[command]
	return ok
}

// Dispatch routes e to its handler. Events for buffered commands are queued
// and "queued" is returned in place of the handler's result.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	r, ok := d.routes[e.Command]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}

	if !r.logged {
		return d.deliver(r, e)
	}
	start := time.Now()
	d.logger.Debug("handling event", "command", r.command, "args", len(e.Args))
	result, err := d.deliver(r, e)
	if err != nil {
		d.logger.Error("event failed", "command", r.command, "duration", time.Since(start), "error", err)
	} else {
		d.logger.Debug("event complete", "command", r.command, "duration", time.Since(start))
	}
	return result, err
}

func (d *Dispatcher) deliver(r *route, e Event) (any, error) {
	if r.queue == nil {
		return r.handle(e)
	}

	// Queues are closed under the write lock, so holding the read lock
	// keeps the send below from hitting a closed channel.
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrClosed
	}
	if r.blocking {
		r.queue <- e
		return queuedResult, nil
	}
	select {
	case r.queue <- e:
		return queuedResult, nil
	default:
		d.stats.drop(r.command)
		return nil, fmt.Errorf("queue full: %s", r.command)
	}
}

func (d *Dispatcher) drain(r *route) {
	defer d.workers.Done()
	for e := range r.queue {
		if _, err := r.handle(e); err != nil {
			d.logger.Error("buffered handler failed", "command", r.command, "error", err)
		}
		d.stats.process(r.command)
	}
}

// queueDepths reports the backlog of every buffered command.
func (d *Dispatcher) queueDepths(observe func(command string, depth int)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for cmd, r := range d.routes {
		if r.queue != nil {
			observe(cmd, len(r.queue))
		}
	}
}

// Close stops accepting buffered events and waits until every queued event
// has been handled. Synchronous handlers keep working.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, r := range d.routes {
		if r.queue != nil {
			close(r.queue)
		}
	}
	d.mu.Unlock()
	d.workers.Wait()
}
