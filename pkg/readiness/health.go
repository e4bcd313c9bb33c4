// Package readiness implements a minimal readiness probe for long-running scans. A component flips to ready once and
// stays ready; it is not meant for monitoring the progress of a scan (use the Prometheus metrics for that).
//
// Uses a global singleton registry (similar to the Prometheus client's default behavior).
package readiness

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"sync"
)

var (
	mu       = sync.Mutex{}
	registry = map[string]bool{}
)

type Component string

// RegisterComponent registers the given component name such that it is required to be ready for the global check to succeed.
// Registering the same component twice is a programming error.
func RegisterComponent(component Component) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[string(component)]; ok {
		panic(fmt.Sprintf("component %s already registered", component))
	}
	registry[string(component)] = false
}

// SetReady sets the given global component state. Unregistered components are ignored.
func SetReady(component Component) {
	mu.Lock()
	defer mu.Unlock()
	if ready, ok := registry[string(component)]; ok && !ready {
		registry[string(component)] = true
	}
}

// IsReady reports whether every registered component is ready.
func IsReady() bool {
	mu.Lock()
	defer mu.Unlock()
	for _, v := range registry {
		if !v {
			return false
		}
	}
	return true
}

// Handler returns a net/http handler for the readiness check. It returns 200 OK if all components are ready,
// or 412 Precondition Failed otherwise. For operator convenience, a list of components and their states
// is returned as plain text (not meant for machine consumption!).
func Handler(w http.ResponseWriter, r *http.Request) {
	resp := new(bytes.Buffer)
	_, _ = resp.WriteString("[not suitable for monitoring - do not parse]\n\n")

	mu.Lock()
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)

	ready := true
	for _, k := range names {
		_, _ = fmt.Fprintf(resp, "%s\t%v\n", k, registry[k])
		if !registry[k] {
			ready = false
		}
	}
	mu.Unlock()

	if !ready {
		w.WriteHeader(http.StatusPreconditionFailed)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	_, _ = resp.WriteTo(w)
}

// reset clears the registry. Only used by tests.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = map[string]bool{}
}
