package port

import "github.com/Wyydra/looper/internal/core/domain"

// StateObserver is notified after every session state change. Calls happen on
// the controller's event loop and must not block.
type StateObserver interface {
	OnStateChanged(state domain.SessionState)
}

type StateObserverFunc func(state domain.SessionState)

func (f StateObserverFunc) OnStateChanged(state domain.SessionState) { f(state) }
