// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspaced

import (
	"sync"
	"time"
)

// Event is one broadcast delivered through the host.
type Event struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Root    string    `json:"root,omitempty"`
	Payload any       `json:"payload"`
}

// EventLog keeps the most recent broadcast events in a ring buffer and
// fans new events out to live subscribers.
//
// Thread Safety:
//
//	Safe for concurrent use.
type EventLog struct {
	mu    sync.Mutex
	buf   []Event
	next  int
	count int

	subs    map[int]chan Event
	nextSub int
	dropped uint64
	closed  bool
}

// NewEventLog creates a log holding up to size events.
func NewEventLog(size int) *EventLog {
	if size < 1 {
		size = 1
	}
	return &EventLog{buf: make([]Event, size)}
}

// Add appends e, evicting the oldest event when full.
func (l *EventLog) Add(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf[l.next] = e
	l.next = (l.next + 1) % len(l.buf)
	if l.count < len(l.buf) {
		l.count++
	}

	for _, ch := range l.subs {
		select {
		case ch <- e:
		default:
			l.dropped++
		}
	}
}

// Subscribe returns a channel receiving every event added from now on.
//
// Description:
//
//	Delivery never blocks Add. When a subscriber's buffer is full the
//	event is dropped for that subscriber and counted in Dropped. The
//	returned cancel function unsubscribes and closes the channel, and is
//	safe to call more than once. Close ends every subscription.
//
// Inputs:
//
//	buffer - Channel capacity. Values below 1 use 1.
func (l *EventLog) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if l.subs == nil {
		l.subs = make(map[int]chan Event)
	}
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if _, ok := l.subs[id]; ok {
				delete(l.subs, id)
				close(ch)
			}
		})
	}
}

// Close ends every subscription. Events added afterwards are still kept
// in the buffer, and later subscriptions receive a closed channel.
func (l *EventLog) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	for id, ch := range l.subs {
		delete(l.subs, id)
		close(ch)
	}
}

// Subscribers returns the number of live subscribers.
func (l *EventLog) Subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber
// fell behind.
func (l *EventLog) Dropped() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Recent returns up to n events, oldest first. n <= 0 returns all.
func (l *EventLog) Recent(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || n > l.count {
		n = l.count
	}
	out := make([]Event, 0, n)
	start := (l.next - n + len(l.buf)) % len(l.buf)
	for i := 0; i < n; i++ {
		out = append(out, l.buf[(start+i)%len(l.buf)])
	}
	return out
}

// Len returns the number of stored events.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
