// Package topic indexes the topic filters a client has subscribed to so
// that an inbound PUBLISH topic name can be matched against every filter
// that applies (MQTT-4.7).
package topic

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

type node struct {
	mu       sync.RWMutex
	children map[string]*node

	// filter is non-empty on a node that terminates a registered filter;
	// refs counts how many Subscribe calls registered it (a client may
	// subscribe to the same filter more than once before unsubscribing).
	filter string
	refs   int
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// FilterIndex is a trie over '/'-separated topic filter segments, with '+'
// (single level) and '#' (trailing multi-level) wildcard segments
// (MQTT-4.7.1). It is safe for concurrent use.
type FilterIndex struct {
	root *node
}

func NewFilterIndex() *FilterIndex {
	return &FilterIndex{root: newNode()}
}

// Subscribe registers filter, validating wildcard placement (MQTT-4.7.1.2,
// MQTT-4.7.1.3): '+' and '#' must each occupy an entire level, and '#' may
// only appear as the last level.
func (idx *FilterIndex) Subscribe(filter string) error {
	segs, err := splitFilter(filter)
	if err != nil {
		return err
	}
	cur := idx.root
	for _, seg := range segs {
		cur.mu.Lock()
		next, ok := cur.children[seg]
		if !ok {
			next = newNode()
			cur.children[seg] = next
		}
		cur.mu.Unlock()
		cur = next
	}
	cur.mu.Lock()
	cur.filter = filter
	cur.refs++
	cur.mu.Unlock()
	return nil
}

// Unsubscribe removes one registration of filter, pruning any trie branch
// left with no registrations and no descendants.
func (idx *FilterIndex) Unsubscribe(filter string) {
	segs, err := splitFilter(filter)
	if err != nil {
		return
	}
	unsub(idx.root, segs)
}

func unsub(n *node, segs []string) bool {
	if len(segs) == 0 {
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.refs > 0 {
			n.refs--
		}
		if n.refs == 0 {
			n.filter = ""
		}
		return n.refs == 0 && len(n.children) == 0
	}
	n.mu.RLock()
	next, ok := n.children[segs[0]]
	n.mu.RUnlock()
	if !ok {
		return false
	}
	if unsub(next, segs[1:]) {
		n.mu.Lock()
		delete(n.children, segs[0])
		n.mu.Unlock()
	}
	n.mu.RLock()
	empty := n.refs == 0 && n.filter == "" && len(n.children) == 0
	n.mu.RUnlock()
	return empty
}

// Match returns every registered filter that matches topicName. Order is
// unspecified; a dispatcher delivers to all of them.
func (idx *FilterIndex) Match(topicName string) []string {
	var out []string
	idx.root.match(strings.Split(topicName, "/"), &out)
	return out
}

func (n *node) match(segs []string, out *[]string) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	// '#' matches this level and everything below it, including zero
	// further levels (MQTT-4.7.1.2: "sport/#" matches "sport").
	if child, ok := n.children["#"]; ok {
		child.mu.RLock()
		if child.filter != "" {
			*out = append(*out, child.filter)
		}
		child.mu.RUnlock()
	}

	if len(segs) == 0 {
		if n.filter != "" {
			*out = append(*out, n.filter)
		}
		return
	}
	if child, ok := n.children[segs[0]]; ok {
		child.match(segs[1:], out)
	}
	if child, ok := n.children["+"]; ok {
		child.match(segs[1:], out)
	}
}

func splitFilter(filter string) ([]string, error) {
	if filter == "" {
		return nil, fmt.Errorf("topic: empty filter")
	}
	segs := strings.Split(filter, "/")
	for i, seg := range segs {
		if strings.ContainsAny(seg, "+#") && seg != "+" && seg != "#" {
			return nil, fmt.Errorf("topic: wildcard must occupy an entire level in %q", filter)
		}
		if seg == "#" && i != len(segs)-1 {
			return nil, fmt.Errorf("topic: '#' must be the last level in %q", filter)
		}
	}
	return segs, nil
}

func (n *node) print(depth int, w io.Writer) {
	n.mu.RLock()
	keys := make([]string, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	filter, refs := n.filter, n.refs
	n.mu.RUnlock()

	if filter != "" {
		fmt.Fprintf(w, "%sfilter=%s refs=%d\n", strings.Repeat("  ", depth), filter, refs)
	}
	for _, k := range keys {
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), k)
		n.children[k].print(depth+1, w)
	}
}

// Print writes a human-readable dump of the index, for debugging.
func (idx *FilterIndex) Print(w io.Writer) {
	idx.root.print(0, w)
}
