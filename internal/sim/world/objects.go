package world

import (
	"math"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func dist(ax, ay, bx, by float64) float64 { return math.Hypot(bx-ax, by-ay) }

// ResourceNode is a world island any player can harvest. Depletion is shared.
type ResourceNode struct {
	ID              int
	X, Y            float64
	Type            string
	Size            float64
	DepletedUntilMs int64
}

// CapturePoint is held by whoever owns the capture mission in MissionID.
type CapturePoint struct {
	ID             int
	X, Y           float64
	Reward         string
	RespawnUntilMs int64
	MissionID      string
}

// Caravan is an NPC convoy patrolling a closed route. MissionID is the
// intercept currently sailing toward it, if any.
type Caravan struct {
	ID              int
	Cargo           string
	Escort          float64
	Route           []Point
	Leg             int
	X, Y            float64
	CooldownUntilMs int64
	MissionID       string
}

var nodeTypes = [...]string{"wood", "wood", "gold", "rum"}

var caravanCargo = [...]string{"gold", "rum", "wood"}

func (w *World) generateObjects() {
	w.nodes = w.generateNodes()
	w.points = w.generatePoints()
	w.caravans = w.generateCaravans()
}

// generateNodes scatters nodes over a jittered grid, one per cell.
func (w *World) generateNodes() []*ResourceNode {
	rt := w.tun.Resources
	cols, rows := max(rt.GridCols, 1), max(rt.GridRows, 1)
	cellW := w.tun.Map.Width / float64(cols)
	cellH := w.tun.Map.Height / float64(rows)
	n := min(rt.Count, cols*rows)

	out := make([]*ResourceNode, 0, n)
	for i := 0; i < n; i++ {
		r, c := i/cols, i%cols
		out = append(out, &ResourceNode{
			ID:   i + 1,
			X:    math.Round(cellW*float64(c) + cellW*0.15 + w.rng.Float64()*cellW*0.7),
			Y:    math.Round(cellH*float64(r) + cellH*0.15 + w.rng.Float64()*cellH*0.7),
			Type: nodeTypes[w.rng.Intn(len(nodeTypes))],
			Size: 18 + math.Round(w.rng.Float64()*14),
		})
	}
	return out
}

// generatePoints spaces capture points evenly on an ellipse around the map
// centre. Rewards cycle through the configured loot tables.
func (w *World) generatePoints() []*CapturePoint {
	rewards := sortedKeys(w.tun.Capture.Loot)
	if len(rewards) == 0 {
		return nil
	}
	cx, cy := w.tun.Map.Width/2, w.tun.Map.Height/2
	rx, ry := w.tun.Map.Width*0.3, w.tun.Map.Height*0.3
	n := w.tun.Capture.Count
	out := make([]*CapturePoint, 0, n)
	for i := 0; i < n; i++ {
		a := 2*math.Pi*float64(i)/float64(n) + math.Pi/4
		out = append(out, &CapturePoint{
			ID:     i + 1,
			X:      math.Round(cx + rx*math.Cos(a)),
			Y:      math.Round(cy + ry*math.Sin(a)),
			Reward: rewards[i%len(rewards)],
		})
	}
	return out
}

func (w *World) generateCaravans() []*Caravan {
	ct := w.tun.Caravans
	m := w.tun.Map
	pad := m.SpawnMargin + ct.RouteRadius
	out := make([]*Caravan, 0, ct.Count)
	for i := 0; i < ct.Count; i++ {
		cx := clampF(pad+w.rng.Float64()*(m.Width-2*pad), 0, m.Width)
		cy := clampF(pad+w.rng.Float64()*(m.Height-2*pad), 0, m.Height)
		n := max(ct.RoutePoints, 2)
		route := make([]Point, 0, n)
		for k := 0; k < n; k++ {
			a := 2*math.Pi*float64(k)/float64(n) + (w.rng.Float64()-0.5)*0.4
			r := ct.RouteRadius * (0.7 + 0.3*w.rng.Float64())
			route = append(route, Point{
				X: math.Round(clampF(cx+r*math.Cos(a), 0, m.Width)),
				Y: math.Round(clampF(cy+r*math.Sin(a), 0, m.Height)),
			})
		}
		out = append(out, &Caravan{
			ID:     i + 1,
			Cargo:  caravanCargo[i%len(caravanCargo)],
			Escort: ct.Escort,
			Route:  route,
			X:      route[0].X,
			Y:      route[0].Y,
		})
	}
	return out
}

// advance moves the caravan step units along its route, carrying leftover
// distance across waypoints and wrapping at the end.
func (c *Caravan) advance(step float64) {
	if len(c.Route) < 2 || step <= 0 {
		return
	}
	for i := 0; i < len(c.Route) && step > 0; i++ {
		next := c.Route[(c.Leg+1)%len(c.Route)]
		d := dist(c.X, c.Y, next.X, next.Y)
		if d > step {
			c.X += (next.X - c.X) / d * step
			c.Y += (next.Y - c.Y) / d * step
			return
		}
		c.X, c.Y = next.X, next.Y
		c.Leg = (c.Leg + 1) % len(c.Route)
		step -= d
	}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (w *World) node(id int) *ResourceNode {
	for _, n := range w.nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func (w *World) point(id int) *CapturePoint {
	for _, p := range w.points {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (w *World) caravan(id int) *Caravan {
	for _, c := range w.caravans {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// ResourceNodes returns copies for inspection outside the mutation path.
func (w *World) ResourceNodes() []ResourceNode {
	out := make([]ResourceNode, len(w.nodes))
	for i, n := range w.nodes {
		out[i] = *n
	}
	return out
}

func (w *World) CapturePoints() []CapturePoint {
	out := make([]CapturePoint, len(w.points))
	for i, p := range w.points {
		out[i] = *p
	}
	return out
}

func (w *World) Caravans() []Caravan {
	out := make([]Caravan, len(w.caravans))
	for i, c := range w.caravans {
		out[i] = *c
		out[i].Route = append([]Point(nil), c.Route...)
	}
	return out
}
