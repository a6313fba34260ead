package metrics

// Counter is a monotonically increasing sum.
type Counter interface {
	Metrics
	IncrWithDim(delta Value, dimensions Dimension)
	Incr(delta Value)
}

type counter struct {
	name  string
	group string
}

func (c *counter) Name() string {
	return c.name
}

func (c *counter) Group() string {
	return c.group
}

func (c *counter) Policy() Policy {
	return Policy_Sum
}

func (c *counter) Incr(v Value) {
	c.IncrWithDim(v, nil)
}

func (c *counter) IncrWithDim(v Value, dimensions Dimension) {
	report(Record{
		metrics:    c,
		value:      v,
		cnt:        1,
		dimensions: dimensions,
	})
}
