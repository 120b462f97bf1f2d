package main

import (
	"context"
	"sync"
	"time"
)

//StartControl is the start button; a run begins after a press and then a release
type StartControl interface {
	WaitPress(ctx context.Context) error
	WaitRelease(ctx context.Context) error
}

//DebouncedButton polls a digital input until it reads the same level Stable times in a row
type DebouncedButton struct {
	Read   func() bool //true while pressed
	Poll   time.Duration
	Stable int
}

func (b *DebouncedButton) wait(ctx context.Context, pressed bool) error {
	poll := b.Poll
	if poll <= 0 {
		poll = 5 * time.Millisecond
	}
	tick := time.NewTicker(poll)
	defer tick.Stop()
	run := 0
	for {
		if b.Read() == pressed {
			run++
			if run >= b.Stable {
				return nil
			}
		} else {
			run = 0
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
}

//WaitPress blocks until the button is held down
func (b *DebouncedButton) WaitPress(ctx context.Context) error { return b.wait(ctx, true) }

//WaitRelease blocks until the button is let go
func (b *DebouncedButton) WaitRelease(ctx context.Context) error { return b.wait(ctx, false) }

//RemoteButton is a start button driven by the operator console.
//Edges are counted so a quick press and release is never missed.
type RemoteButton struct {
	mu         sync.Mutex
	presses    uint64
	releases   uint64
	relAtPress uint64 //releases counted when the latest press arrived
	seenP      uint64
	seenR      uint64
	changed    chan struct{}
}

//NewRemoteButton makes a released RemoteButton
func NewRemoteButton() *RemoteButton {
	return &RemoteButton{changed: make(chan struct{})}
}

//Press records a press edge
func (b *RemoteButton) Press() {
	b.mu.Lock()
	b.presses++
	b.relAtPress = b.releases
	b.signal()
	b.mu.Unlock()
}

//Release records a release edge
func (b *RemoteButton) Release() {
	b.mu.Lock()
	b.releases++
	b.signal()
	b.mu.Unlock()
}

func (b *RemoteButton) signal() {
	close(b.changed)
	b.changed = make(chan struct{})
}

func (b *RemoteButton) wait(ctx context.Context, edge func() bool) error {
	for {
		b.mu.Lock()
		if edge() {
			b.mu.Unlock()
			return nil
		}
		ch := b.changed
		b.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

//WaitPress blocks until a press newer than the last one consumed arrives
func (b *RemoteButton) WaitPress(ctx context.Context) error {
	return b.wait(ctx, func() bool {
		if b.presses > b.seenP {
			b.seenP = b.presses
			//releases that came before this press do not count
			b.seenR = b.relAtPress
			return true
		}
		return false
	})
}

//WaitRelease blocks until a release after the consumed press arrives
func (b *RemoteButton) WaitRelease(ctx context.Context) error {
	return b.wait(ctx, func() bool {
		if b.releases > b.seenR {
			b.seenR = b.releases
			return true
		}
		return false
	})
}

//AutoStart is a start button that is pressed and released immediately
type AutoStart struct{}

func (AutoStart) WaitPress(context.Context) error   { return nil }
func (AutoStart) WaitRelease(context.Context) error { return nil }
