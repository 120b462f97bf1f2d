package main

import (
	"errors"
	"fmt"
	"sync"
)

//ErrInUse is returned when another operator already holds the control socket
var ErrInUse = errors.New("control socket in use")

//xMutex is a non-blocking mutex that remembers its holder: Lock fails instead of waiting
type xMutex struct {
	lck    sync.Mutex
	holder string
}

func (xm *xMutex) Lock(holder string) error {
	xm.lck.Lock()
	defer xm.lck.Unlock()
	if xm.holder != "" {
		return fmt.Errorf("%w by %s", ErrInUse, xm.holder)
	}
	if holder == "" {
		holder = "unknown"
	}
	xm.holder = holder
	return nil
}

func (xm *xMutex) Unlock() {
	xm.lck.Lock()
	defer xm.lck.Unlock()
	xm.holder = ""
}

//Holder is who holds the lock, or "" when free
func (xm *xMutex) Holder() string {
	xm.lck.Lock()
	defer xm.lck.Unlock()
	return xm.holder
}
