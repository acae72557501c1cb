// Copyright 2023 The NamespaceDB Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package routing

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"text/tabwriter"

	apierrors "github.com/masstor/namespacedb/errors"
)

// Table is the process wide registry of message routes. Each route kind
// keeps its own index under its own lock; the two singleton kinds are
// compare-and-set pointers. Lookups never copy the topic sets.
type Table struct {
	exactMu sync.Mutex
	exact   map[string][]Route

	wellknownMu sync.Mutex
	wellknown   map[string][]Route

	domainMu sync.Mutex
	domain   map[string][]Route

	topicMu sync.Mutex
	topic   map[string]*topicSet

	deflt    atomic.Pointer[Route]
	dumpster atomic.Pointer[Route]
}

func NewTable() *Table {
	return &Table{
		exact:     make(map[string][]Route),
		wellknown: make(map[string][]Route),
		domain:    make(map[string][]Route),
		topic:     make(map[string]*topicSet),
	}
}

// topicSet is a copy-on-write route set: mutation replaces the slice
// under the table's topic lock, readers load it without locking.
type topicSet struct {
	routes atomic.Value // []Route
}

func newTopicSet() *topicSet {
	s := &topicSet{}
	s.routes.Store([]Route(nil))
	return s
}

func (s *topicSet) load() []Route {
	return s.routes.Load().([]Route)
}

// Add registers the route, rejecting duplicates of any kind.
func (t *Table) Add(route Route) error {
	switch route.Type {
	case RouteExact, RouteAlias:
		return addKeyed(&t.exactMu, t.exact, route.Cell+"@"+route.Domain, route)
	case RouteWellknown:
		return addKeyed(&t.wellknownMu, t.wellknown, route.Cell, route)
	case RouteDomain:
		return addKeyed(&t.domainMu, t.domain, route.Domain, route)
	case RouteTopic:
		t.topicMu.Lock()
		defer t.topicMu.Unlock()
		set, ok := t.topic[route.Cell]
		if !ok {
			set = newTopicSet()
			t.topic[route.Cell] = set
		}
		routes := set.load()
		if containsRoute(routes, route) {
			return fmt.Errorf("%w: route entry for %s", apierrors.ErrDuplicateEntry, route.Cell)
		}
		next := make([]Route, len(routes)+1)
		copy(next, routes)
		next[len(routes)] = route
		set.routes.Store(next)
		return nil
	case RouteDefault:
		if !t.deflt.CompareAndSwap(nil, &route) {
			return fmt.Errorf("%w: route entry for default", apierrors.ErrDuplicateEntry)
		}
		return nil
	case RouteDumpster:
		if !t.dumpster.CompareAndSwap(nil, &route) {
			return fmt.Errorf("%w: route entry for dumpster", apierrors.ErrDuplicateEntry)
		}
		return nil
	default:
		return fmt.Errorf("unknown route type %d", route.Type)
	}
}

func addKeyed(mu *sync.Mutex, index map[string][]Route, key string, route Route) error {
	mu.Lock()
	defer mu.Unlock()
	if containsRoute(index[key], route) {
		return fmt.Errorf("%w: route entry for %s", apierrors.ErrDuplicateEntry, key)
	}
	index[key] = append(index[key], route)
	return nil
}

func deleteKeyed(mu *sync.Mutex, index map[string][]Route, key string, route Route) error {
	mu.Lock()
	defer mu.Unlock()
	routes := index[key]
	next := removeRoute(routes, route)
	if len(next) == len(routes) {
		return fmt.Errorf("%w: route entry for %s", apierrors.ErrNotFound, key)
	}
	if len(next) == 0 {
		delete(index, key)
	} else {
		index[key] = next
	}
	return nil
}

// Delete removes exactly the given route.
func (t *Table) Delete(route Route) error {
	switch route.Type {
	case RouteExact, RouteAlias:
		return deleteKeyed(&t.exactMu, t.exact, route.Cell+"@"+route.Domain, route)
	case RouteWellknown:
		return deleteKeyed(&t.wellknownMu, t.wellknown, route.Cell, route)
	case RouteDomain:
		return deleteKeyed(&t.domainMu, t.domain, route.Domain, route)
	case RouteTopic:
		t.topicMu.Lock()
		defer t.topicMu.Unlock()
		set, ok := t.topic[route.Cell]
		if !ok {
			return fmt.Errorf("%w: route entry for %s", apierrors.ErrNotFound, route.Cell)
		}
		routes := set.load()
		next := removeRoute(routes, route)
		if len(next) == len(routes) {
			return fmt.Errorf("%w: route entry for %s", apierrors.ErrNotFound, route.Cell)
		}
		if len(next) == 0 {
			delete(t.topic, route.Cell)
		} else {
			set.routes.Store(next)
		}
		return nil
	case RouteDefault:
		current := t.deflt.Load()
		if current == nil || *current != route || !t.deflt.CompareAndSwap(current, nil) {
			return fmt.Errorf("%w: route entry for default", apierrors.ErrNotFound)
		}
		return nil
	case RouteDumpster:
		current := t.dumpster.Load()
		if current == nil || *current != route || !t.dumpster.CompareAndSwap(current, nil) {
			return fmt.Errorf("%w: route entry for dumpster", apierrors.ErrNotFound)
		}
		return nil
	default:
		return fmt.Errorf("unknown route type %d", route.Type)
	}
}

// DeleteTarget removes every route, of any kind, whose gateway equals
// target and returns the removed set.
func (t *Table) DeleteTarget(target string) []Route {
	var deleted []Route

	deleted = deleteByTarget(&t.exactMu, t.exact, target, deleted)
	deleted = deleteByTarget(&t.wellknownMu, t.wellknown, target, deleted)
	deleted = deleteByTarget(&t.domainMu, t.domain, target, deleted)

	t.topicMu.Lock()
	for key, set := range t.topic {
		routes := set.load()
		var kept []Route
		for _, route := range routes {
			if route.Gateway == target {
				deleted = append(deleted, route)
			} else {
				kept = append(kept, route)
			}
		}
		if len(kept) == len(routes) {
			continue
		}
		if len(kept) == 0 {
			delete(t.topic, key)
		} else {
			set.routes.Store(kept)
		}
	}
	t.topicMu.Unlock()

	for _, p := range []*atomic.Pointer[Route]{&t.deflt, &t.dumpster} {
		current := p.Load()
		if current != nil && current.Gateway == target && p.CompareAndSwap(current, nil) {
			deleted = append(deleted, *current)
		}
	}

	return deleted
}

func deleteByTarget(mu *sync.Mutex, index map[string][]Route, target string, deleted []Route) []Route {
	mu.Lock()
	defer mu.Unlock()
	for key, routes := range index {
		var kept []Route
		for _, route := range routes {
			if route.Gateway == target {
				deleted = append(deleted, route)
			} else {
				kept = append(kept, route)
			}
		}
		if len(kept) == 0 {
			delete(index, key)
		} else {
			index[key] = kept
		}
	}
	return deleted
}

// Find selects the route for the address: an exact match first, then a
// wellknown match for local addresses or a domain match otherwise, then
// the default route.
func (t *Table) Find(addr Address) (Route, bool) {
	t.exactMu.Lock()
	routes := t.exact[addr.Cell+"@"+addr.Domain]
	t.exactMu.Unlock()
	if len(routes) > 0 {
		return routes[0], true
	}

	if addr.Domain == LocalDomain {
		// not really local but wellknown; true local delivery was tried
		// before the table is consulted
		t.wellknownMu.Lock()
		routes = t.wellknown[addr.Cell]
		t.wellknownMu.Unlock()
	} else {
		t.domainMu.Lock()
		routes = t.domain[addr.Domain]
		t.domainMu.Unlock()
	}
	if len(routes) > 0 {
		return routes[0], true
	}

	if route := t.deflt.Load(); route != nil {
		return *route, true
	}
	return Route{}, false
}

// FindTopicRoutes returns the topic subscribers of the cell name for
// local addresses, and nothing otherwise. The returned slice is the live
// copy-on-write set; callers must not modify it.
func (t *Table) FindTopicRoutes(addr Address) []Route {
	if addr.Domain != LocalDomain {
		return nil
	}
	t.topicMu.Lock()
	set, ok := t.topic[addr.Cell]
	t.topicMu.Unlock()
	if !ok {
		return nil
	}
	return set.load()
}

// Routes returns a snapshot of all registered routes. Each index is
// locked in turn; the snapshot is not globally consistent across kinds.
func (t *Table) Routes() []Route {
	var routes []Route

	t.topicMu.Lock()
	for _, set := range t.topic {
		routes = append(routes, set.load()...)
	}
	t.topicMu.Unlock()

	t.exactMu.Lock()
	for _, rs := range t.exact {
		routes = append(routes, rs...)
	}
	t.exactMu.Unlock()

	t.wellknownMu.Lock()
	for _, rs := range t.wellknown {
		routes = append(routes, rs...)
	}
	t.wellknownMu.Unlock()

	t.domainMu.Lock()
	for _, rs := range t.domain {
		routes = append(routes, rs...)
	}
	t.domainMu.Unlock()

	if route := t.deflt.Load(); route != nil {
		routes = append(routes, *route)
	}
	if route := t.dumpster.Load(); route != nil {
		routes = append(routes, *route)
	}
	return routes
}

func (t *Table) String() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CELL\tDOMAIN\tGATEWAY\tTYPE")
	for _, route := range t.Routes() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", route.Cell, route.Domain, route.Gateway, route.Type)
	}
	w.Flush()
	return sb.String()
}

func containsRoute(routes []Route, route Route) bool {
	for _, r := range routes {
		if r == route {
			return true
		}
	}
	return false
}

func removeRoute(routes []Route, route Route) []Route {
	for i, r := range routes {
		if r == route {
			next := make([]Route, 0, len(routes)-1)
			next = append(next, routes[:i]...)
			return append(next, routes[i+1:]...)
		}
	}
	return routes
}
