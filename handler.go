// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package looper

// Callback is a Handler's optional message sink. It returns true if the
// message was fully handled, suppressing the Handler's HandleMessage.
// Mirrors the source's Handler.Callback interface, flattened to a func
// type since Go favors first-class functions over single-method
// interfaces.
type Callback func(e *Entry) bool

// Handler is a user-facing façade bound to exactly one Looper.
type Handler struct {
	looper   *Looper
	callback Callback
	onMsg    func(e *Entry)
	async    bool
}

// HandlerOption configures a Handler at construction.
type HandlerOption func(*Handler)

// WithCallback installs a Callback consulted before HandleMessage.
func WithCallback(cb Callback) HandlerOption {
	return func(h *Handler) { h.callback = cb }
}

// WithHandleMessage installs the default message handler, invoked when no
// Callback is set, or the Callback returns false.
func WithHandleMessage(fn func(e *Entry)) HandlerOption {
	return func(h *Handler) { h.onMsg = fn }
}

// WithHandlerAsync forces every Entry this Handler posts to be stamped
// async, bypassing barriers and routing through the parallel executor.
func WithHandlerAsync() HandlerOption {
	return func(h *Handler) { h.async = true }
}

// NewHandler binds a new Handler to lp. A Handler may not be rebound.
func NewHandler(lp *Looper, opts ...HandlerOption) *Handler {
	h := &Handler{looper: lp}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Looper returns the Handler's owning Looper.
func (h *Handler) Looper() *Looper { return h.looper }

func (h *Handler) enqueue(e *Entry, when int64) (*Entry, error) {
	e.Target = h
	e.Async = e.Async || h.async
	entry, err := h.looper.queue.Post(e, when)
	if err != nil {
		if err == ErrQueueQuitting && (h.looper.flags.has(FlagSystem) || h.looper.flags.has(FlagPlugin)) {
			panic(NewProgrammingFault("Handler.post", "post to quitting Queue on a SYSTEM/PLUGIN Looper"))
		}
		return nil, err
	}
	return entry, nil
}

// Post schedules callable to run as soon as possible.
func (h *Handler) Post(callable func()) (*Entry, error) {
	return h.PostAtTime(callable, h.looper.clock.UptimeMillis())
}

// PostDelayed schedules callable to run after delayMs. Negative delays are
// clamped to zero and logged at fine.
func (h *Handler) PostDelayed(callable func(), delayMs int64) (*Entry, error) {
	if delayMs < 0 {
		h.looper.logger.Fine("looper: negative delay clamped to 0")
		delayMs = 0
	}
	return h.PostAtTime(callable, h.looper.clock.UptimeMillis()+delayMs)
}

// PostAtTime schedules callable to run at the given absolute uptime,
// accepting times in the past as immediately due.
func (h *Handler) PostAtTime(callable func(), whenMs int64) (*Entry, error) {
	e := newEntry(KindTask)
	e.Callable = callable
	return h.enqueue(e, whenMs)
}

// PostAtFrontOfQueue schedules callable with when = 0, jumping ahead of
// every other due Entry. Hazardous: can starve other work if misused.
func (h *Handler) PostAtFrontOfQueue(callable func()) (*Entry, error) {
	e := newEntry(KindTask)
	e.Callable = callable
	return h.enqueue(e, 0)
}

// SendMessage posts a MESSAGE Entry carrying what and payload, due
// immediately.
func (h *Handler) SendMessage(what int, payload any) (*Entry, error) {
	return h.SendMessageAtTime(what, payload, h.looper.clock.UptimeMillis())
}

// SendMessageDelayed posts a MESSAGE Entry due after delayMs.
func (h *Handler) SendMessageDelayed(what int, payload any, delayMs int64) (*Entry, error) {
	if delayMs < 0 {
		h.looper.logger.Fine("looper: negative delay clamped to 0")
		delayMs = 0
	}
	return h.SendMessageAtTime(what, payload, h.looper.clock.UptimeMillis()+delayMs)
}

// SendMessageAtTime posts a MESSAGE Entry due at the given absolute
// uptime.
func (h *Handler) SendMessageAtTime(what int, payload any, whenMs int64) (*Entry, error) {
	e := newEntry(KindMessage)
	e.What = what
	e.Payload = payload
	return h.enqueue(e, whenMs)
}

// SendEmptyMessage posts a MESSAGE Entry tagged what, with a nil payload,
// due immediately.
func (h *Handler) SendEmptyMessage(what int) (*Entry, error) {
	return h.SendMessage(what, nil)
}

// PostBarrier installs a barrier on the Handler's Queue.
func (h *Handler) PostBarrier() uint64 { return h.looper.queue.PostBarrier() }

// RemoveBarrier removes a barrier previously installed by PostBarrier or
// by this Handler's Looper.
func (h *Handler) RemoveBarrier(token uint64) { h.looper.queue.RemoveBarrier(token) }

// Remove cancels every pending Entry matching match.
func (h *Handler) Remove(match func(e *Entry) bool) int { return h.looper.queue.Remove(match) }

// DispatchMessage runs e's own callable if present; otherwise consults the
// Callback, falling back to the default handler. Panics from user code are
// recovered and reported to the Looper's exception sink — dispatch of
// subsequent Entries is never affected.
func (h *Handler) DispatchMessage(e *Entry) {
	defer func() {
		if r := recover(); r != nil {
			h.looper.sink.Handle(&UserCallbackFault{Recovered: r})
		}
	}()
	if e.Callable != nil {
		e.Callable()
		return
	}
	if h.callback != nil && h.callback(e) {
		return
	}
	if h.onMsg != nil {
		h.onMsg(e)
	}
}
