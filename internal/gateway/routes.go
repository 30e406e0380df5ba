// Package gateway is the HTTP surface over the fabric: per-service method
// invocation, multi-service workflows, and observability endpoints,
// grounded in the teacher's RouteRegistry/http.ServeMux wiring.
package gateway

import (
	"net/http"
	"sort"

	"github.com/pterm/pterm"

	"github.com/nexusfab/fabric/internal/logger"
)

type routeInfo struct {
	handler     http.HandlerFunc
	description string
	method      string
	order       int
}

// RouteRegistry collects routes and wires them onto a mux, logging a table
// of what was registered.
type RouteRegistry struct {
	routes   map[string]routeInfo
	log      *logger.StyledLogger
	orderSeq int
}

func NewRouteRegistry(log *logger.StyledLogger) *RouteRegistry {
	return &RouteRegistry{routes: make(map[string]routeInfo), log: log}
}

func (r *RouteRegistry) Register(route, method, description string, handler http.HandlerFunc) {
	r.routes[route] = routeInfo{handler: handler, description: description, method: method, order: r.orderSeq}
	r.orderSeq++
}

func (r *RouteRegistry) WireUp(mux *http.ServeMux) {
	for route, info := range r.routes {
		mux.HandleFunc(route, info.handler)
	}
	r.logTable()
}

func (r *RouteRegistry) logTable() {
	if len(r.routes) == 0 {
		return
	}

	type entry struct {
		path, method, desc string
		order              int
	}
	entries := make([]entry, 0, len(r.routes))
	for path, info := range r.routes {
		entries = append(entries, entry{path, info.method, info.description, info.order})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].order < entries[j].order })

	table := pterm.TableData{{"Method", "Route", "Description"}}
	for _, e := range entries {
		table = append(table, []string{e.method, e.path, e.desc})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(table).Render()
}
