// Package middleware wraps session stores with cross-cutting persistence
// behavior. Sessions carry debtor data in their variables, so at-rest
// encryption lives here rather than in each adapter.
package middleware

import "github.com/aretw0/ramal/pkg/ports"

// Middleware wraps a SessionStore to add behavior.
type Middleware func(ports.SessionStore) ports.SessionStore

// Chain applies middlewares so that the first one is the outermost.
func Chain(store ports.SessionStore, mws ...Middleware) ports.SessionStore {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
