package graph

import "math"

// LayoutParams holds the force-directed layout constants.
type LayoutParams struct {
	Iterations int     `yaml:"iterations"`
	Repulsion  float64 `yaml:"repulsion"`
	Attraction float64 `yaml:"attraction"`
	Damping    float64 `yaml:"damping"`
	CenterX    float64 `yaml:"center_x"`
	CenterY    float64 `yaml:"center_y"`
	Radius     float64 `yaml:"radius"`
}

// DefaultLayoutParams returns the stock layout constants.
func DefaultLayoutParams() LayoutParams {
	return LayoutParams{
		Iterations: 50,
		Repulsion:  1000,
		Attraction: 0.01,
		Damping:    0.5,
		CenterX:    200,
		CenterY:    200,
		Radius:     150,
	}
}

// minDistance keeps repulsion finite for coincident nodes.
const minDistance = 1.0

// Layout returns a copy of g with node positions filled in.
//
// Nodes start evenly spaced on a circle in input order, then a fixed number
// of iterations apply pairwise repulsion k_r/d² and edge attraction k_a·d.
// Forces are accumulated per iteration and applied as pos += force·damping.
// There is no randomness and no early exit.
func Layout(g Graph, p LayoutParams) Graph {
	n := len(g.Nodes)
	if n == 0 {
		return g
	}
	out := Graph{
		Nodes: append([]Node(nil), g.Nodes...),
		Edges: g.Edges,
	}

	x := make([]float64, n)
	y := make([]float64, n)
	index := make(map[string]int, n)
	for i := range out.Nodes {
		angle := 2 * math.Pi * float64(i) / float64(n)
		x[i] = p.CenterX + p.Radius*math.Cos(angle)
		y[i] = p.CenterY + p.Radius*math.Sin(angle)
		index[out.Nodes[i].ID] = i
	}

	type pair struct{ s, t int }
	springs := make([]pair, 0, len(out.Edges))
	for _, e := range out.Edges {
		s, ok1 := index[e.Source]
		t, ok2 := index[e.Target]
		if !ok1 || !ok2 || s == t {
			continue
		}
		springs = append(springs, pair{s, t})
	}

	fx := make([]float64, n)
	fy := make([]float64, n)
	for iter := 0; iter < p.Iterations; iter++ {
		clear(fx)
		clear(fy)

		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				dx := x[i] - x[j]
				dy := y[i] - y[j]
				d := math.Max(math.Hypot(dx, dy), minDistance)
				f := p.Repulsion / (d * d)
				ux, uy := dx/d, dy/d
				fx[i] += f * ux
				fy[i] += f * uy
				fx[j] -= f * ux
				fy[j] -= f * uy
			}
		}

		for _, sp := range springs {
			dx := x[sp.t] - x[sp.s]
			dy := y[sp.t] - y[sp.s]
			d := math.Hypot(dx, dy)
			if d == 0 {
				// Direction is undefined for coincident endpoints.
				continue
			}
			f := p.Attraction * d
			ux, uy := dx/d, dy/d
			fx[sp.s] += f * ux
			fy[sp.s] += f * uy
			fx[sp.t] -= f * ux
			fy[sp.t] -= f * uy
		}

		for i := 0; i < n; i++ {
			x[i] += fx[i] * p.Damping
			y[i] += fy[i] * p.Damping
		}
	}

	for i := range out.Nodes {
		out.Nodes[i].X = x[i]
		out.Nodes[i].Y = y[i]
	}
	return out
}
