// Package router implements the trie-based signal-type pattern matcher
// described in spec §4.2: pattern segments joined by '.', where a segment
// is a literal, a single-segment wildcard '*', or a tail multi-segment
// wildcard '**'.
package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/antigravity-dev/jido/internal/signal"
)

// Route pairs a pattern with an opaque target. Target is left as `any` so
// the caller (agent module composition, plugin route contribution, the
// AgentServer) can route to whatever shape of handler it needs — an
// action name, an instruction template, a plugin override, etc.
type Route struct {
	Pattern  string
	Target   any
	Priority int
}

type routeEntry struct {
	target   any
	priority int
	order    int
}

type node struct {
	literal  map[string]*node
	wildcard *node // '*'
	multi    *node // '**', always a terminal-only tail node
	terminal []routeEntry
}

func newNode() *node {
	return &node{literal: make(map[string]*node)}
}

// Router is an immutable trie built once from a route list (spec: "Router
// is private to each AgentServer and immutable after init").
type Router struct {
	root *node
}

// New builds a Router from routes, validating every pattern up front.
// Invalid patterns fail fast with a bad-pattern error (spec §4.2/§7).
func New(routes []Route) (*Router, error) {
	root := newNode()
	for i, r := range routes {
		segs, err := splitPattern(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("router: bad_pattern %q: %w", r.Pattern, err)
		}
		insert(root, segs, routeEntry{target: r.Target, priority: r.Priority, order: i})
	}
	return &Router{root: root}, nil
}

// splitPattern validates and splits a route pattern into segments.
// Rules (spec §4.2): '.'-joined segments; '*' matches exactly one
// non-empty segment; '**' matches zero or more segments and may only
// appear once per pattern, only as the full pattern or as the tail.
func splitPattern(pattern string) ([]string, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	segs := strings.Split(pattern, ".")
	seenMulti := false
	for i, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("empty segment")
		}
		if s == "**" {
			if seenMulti {
				return nil, fmt.Errorf("only one ** allowed per pattern")
			}
			seenMulti = true
			if i != len(segs)-1 {
				return nil, fmt.Errorf("** is only allowed as the tail of a pattern")
			}
			continue
		}
		if strings.Contains(s, "*") && s != "*" {
			return nil, fmt.Errorf("segment %q mixes '*' with literal text", s)
		}
	}
	return segs, nil
}

func insert(root *node, segs []string, entry routeEntry) {
	n := root
	for i, s := range segs {
		switch s {
		case "**":
			if n.multi == nil {
				n.multi = newNode()
			}
			n = n.multi
		case "*":
			if n.wildcard == nil {
				n.wildcard = newNode()
			}
			n = n.wildcard
		default:
			child, ok := n.literal[s]
			if !ok {
				child = newNode()
				n.literal[s] = child
			}
			n = child
		}
		_ = i
	}
	n.terminal = append(n.terminal, entry)
}

// Match returns the ordered list of targets whose pattern matches typ.
// Never fails: an unmatched type yields an empty slice (spec §4.2 "router
// totality").
func (r *Router) Match(typ string) []any {
	if r == nil || r.root == nil {
		return nil
	}
	segs, err := signal.Segments(typ)
	if err != nil {
		return nil
	}

	var hits []routeEntry
	collect(r.root, segs, &hits)

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].priority != hits[j].priority {
			return hits[i].priority > hits[j].priority
		}
		return hits[i].order < hits[j].order
	})

	out := make([]any, len(hits))
	for i, h := range hits {
		out[i] = h.target
	}
	return out
}

func collect(n *node, segs []string, hits *[]routeEntry) {
	if n.multi != nil {
		// '**' matches zero or more remaining segments (greedy tail wildcard).
		*hits = append(*hits, n.multi.terminal...)
	}

	if len(segs) == 0 {
		*hits = append(*hits, n.terminal...)
		return
	}

	head, rest := segs[0], segs[1:]

	if child, ok := n.literal[head]; ok {
		collect(child, rest, hits)
	}
	if n.wildcard != nil {
		collect(n.wildcard, rest, hits)
	}
}
