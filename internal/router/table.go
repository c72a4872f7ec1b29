package router

import (
	"context"
	"fmt"
	"regexp"
)

// HandlerFunc performs one operation for a routed message.
type HandlerFunc func(ctx context.Context, subject, payload string) error

// Route binds a topic pattern to a handler.
type Route struct {
	// Name identifies the handler in logs, metrics and the journal.
	Name string

	// Pattern is anchored at the start of the topic and has exactly one
	// capture group, the subject.
	Pattern *regexp.Regexp

	// Sample is a topic this route must own. NewTable uses it to detect
	// shadowing.
	Sample string

	Handler HandlerFunc
}

// Table is an ordered, immutable route list. First match wins.
type Table struct {
	routes []Route
}

// NewTable validates routes and returns a table.
//
// It rejects patterns that are not anchored or do not have exactly one
// capture group, routes whose own sample does not match, and any route whose
// sample is matched by an earlier route.
func NewTable(routes []Route) (*Table, error) {
	for i, r := range routes {
		if r.Pattern == nil || r.Handler == nil {
			return nil, fmt.Errorf("route %q: pattern and handler are required", r.Name)
		}
		if r.Pattern.NumSubexp() != 1 {
			return nil, fmt.Errorf("route %q: pattern %q needs exactly one capture group", r.Name, r.Pattern)
		}
		if loc := r.Pattern.FindStringIndex(r.Sample); loc == nil || loc[0] != 0 {
			return nil, fmt.Errorf("route %q: pattern %q does not match its sample %q", r.Name, r.Pattern, r.Sample)
		}
		for _, earlier := range routes[:i] {
			if loc := earlier.Pattern.FindStringIndex(r.Sample); loc != nil && loc[0] == 0 {
				return nil, fmt.Errorf("%w: %q matches %q before %q",
					ErrAmbiguousRoute, earlier.Name, r.Sample, r.Name)
			}
		}
	}

	return &Table{routes: append([]Route(nil), routes...)}, nil
}

// Match returns the first route matching topic and the captured subject.
func (t *Table) Match(topic string) (Route, string, bool) {
	for _, r := range t.routes {
		m := r.Pattern.FindStringSubmatchIndex(topic)
		if m == nil || m[0] != 0 {
			continue
		}
		return r, topic[m[2]:m[3]], true
	}
	return Route{}, "", false
}

// Routes returns the routes in match order.
func (t *Table) Routes() []Route {
	return append([]Route(nil), t.routes...)
}
