package transport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type named string

func (n named) String() string { return string(n) }

// routed is not comparable, == on two of them panics.
type routed struct {
	hops []string
}

func (r routed) String() string { return strings.Join(r.hops, ">") }

func TestSameDescriptor(t *testing.T) {
	tests := []struct {
		name string
		a, b Descriptor
		want bool
	}{
		{name: "both nil", want: true},
		{name: "one nil", a: named("COM1"), want: false},
		{name: "equal comparable", a: named("COM1"), b: named("COM1"), want: true},
		{name: "different comparable", a: named("COM1"), b: named("COM2"), want: false},
		{name: "equal slices", a: routed{hops: []string{"hub", "dev"}}, b: routed{hops: []string{"hub", "dev"}}, want: true},
		{name: "different slices", a: routed{hops: []string{"hub", "dev"}}, b: routed{hops: []string{"dev"}}, want: false},
		{name: "different types", a: named("hub>dev"), b: routed{hops: []string{"hub", "dev"}}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, SameDescriptor(tt.a, tt.b))
				assert.Equal(t, tt.want, SameDescriptor(tt.b, tt.a))
			})
		})
	}
}
