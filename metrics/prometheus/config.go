package prometheus

import (
	"errors"
	"sort"
	"strings"
)

// ReporterConfig is the [plugin.metrics.prometheus] configuration section.
type ReporterConfig struct {
	Tag string `mapstructure:"tag"`

	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`

	// ListenAddr serves MetricPath over HTTP. Empty disables the HTTP endpoint.
	ListenAddr string `mapstructure:"listenAddr"`
	MetricPath string `mapstructure:"metricPath"`

	UsePush         bool   `mapstructure:"usePush"`
	PushAddr        string `mapstructure:"pushAddr"`
	PushJobName     string `mapstructure:"pushJobName"`
	PushIntervalSec int    `mapstructure:"pushIntervalSec"`

	// ExtLabels are added to every metric.
	ExtLabels map[string]string `mapstructure:"extLabels"`

	EnableHealthCheck bool   `mapstructure:"enableHealthCheck"`
	HealthCheckPath   string `mapstructure:"healthCheckPath"`

	// ChanSize bounds the number of samples waiting for aggregation.
	ChanSize int `mapstructure:"chanSize"`

	extLabelsStr string
}

// Validate fills defaults and checks the push settings.
func (c *ReporterConfig) Validate() error {
	if c.Namespace == "" {
		c.Namespace = "serialcomm"
	}
	if c.MetricPath == "" {
		c.MetricPath = "/metrics"
	}
	if c.HealthCheckPath == "" {
		c.HealthCheckPath = "/health"
	}
	if c.ChanSize <= 0 {
		c.ChanSize = 4096
	}
	if c.UsePush {
		if c.PushAddr == "" {
			return errors.New("prometheus: pushAddr is required when usePush is set")
		}
		if c.PushJobName == "" {
			c.PushJobName = "serialcomm"
		}
		if c.PushIntervalSec <= 0 {
			c.PushIntervalSec = 15
		}
	}

	keys := make([]string, 0, len(c.ExtLabels))
	for k := range c.ExtLabels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(c.ExtLabels[k])
		sb.WriteString(",")
	}
	c.extLabelsStr = sb.String()
	return nil
}
