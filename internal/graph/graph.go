// Package graph turns memos and their related lists into a node/edge graph
// and positions it in two dimensions.
package graph

import "time"

// Node is one memo in a graph view.
type Node struct {
	ID              string    `json:"id"`
	Label           string    `json:"label"`
	Tags            []string  `json:"tags"`
	ConnectionCount int       `json:"connection_count"`
	X               float64   `json:"x"`
	Y               float64   `json:"y"`
	CreatedAt       time.Time `json:"created_at"`
}

// Edge is an undirected association between two nodes.
type Edge struct {
	ID     string  `json:"id"`
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

// Graph is an ephemeral view; it is never persisted.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// EdgeKey returns the canonical key shared by both directions of a pair.
func EdgeKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "-" + b
}
