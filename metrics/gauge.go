package metrics

// Gauge is an instantaneous value. Depending on its policy the reporter keeps the last
// value or the maximum seen.
type Gauge interface {
	Metrics
	Update(value Value)
	UpdateWithDim(value Value, dimensions Dimension)
}

type gauge struct {
	name   string
	group  string
	policy Policy
}

func (g *gauge) Name() string {
	return g.name
}

func (g *gauge) Group() string {
	return g.group
}

func (g *gauge) Policy() Policy {
	return g.policy
}

func (g *gauge) Update(v Value) {
	g.UpdateWithDim(v, nil)
}

func (g *gauge) UpdateWithDim(v Value, dimensions Dimension) {
	report(Record{
		metrics:    g,
		value:      v,
		cnt:        1,
		dimensions: dimensions,
	})
}
