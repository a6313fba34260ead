package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTopic(t *testing.T) {
	p := NewPublisher("connected")

	assert.Error(t, p.NewTopic("connected"), "topic declared by the constructor")
	require.NoError(t, p.NewTopic("disconnected"))
	assert.Error(t, p.NewTopic("disconnected"))
	assert.Equal(t, []string{"connected", "disconnected"}, p.Topics())
}

func TestRegisterSubscriber(t *testing.T) {
	p := NewPublisher("frame")

	assert.Error(t, p.RegisterSubscriber("missing", func(any) {}))
	assert.Error(t, p.RegisterSubscriber("frame", nil))
	require.NoError(t, p.RegisterSubscriber("frame", func(any) {}))
	assert.Equal(t, 1, p.SubscriberCount("frame"))
	assert.Equal(t, 0, p.SubscriberCount("missing"))
}

func TestPublishInOrder(t *testing.T) {
	p := NewPublisher("frame")
	assert.Error(t, p.Publish("missing", nil))

	var got []string
	require.NoError(t, p.RegisterSubscriber("frame", func(v any) { got = append(got, "a:"+v.(string)) }))
	require.NoError(t, p.RegisterSubscriber("frame", func(v any) { got = append(got, "b:"+v.(string)) }))

	require.NoError(t, p.Publish("frame", "1"))
	require.NoError(t, p.Publish("frame", "2"))
	assert.Equal(t, []string{"a:1", "b:1", "a:2", "b:2"}, got)
}

func TestPublishSurvivesPanic(t *testing.T) {
	p := NewPublisher("frame")
	called := false
	require.NoError(t, p.RegisterSubscriber("frame", func(any) { panic("listener bug") }))
	require.NoError(t, p.RegisterSubscriber("frame", func(any) { called = true }))

	assert.NotPanics(t, func() { _ = p.Publish("frame", nil) })
	assert.True(t, called)
}

func TestSubscribeFromCallback(t *testing.T) {
	p := NewPublisher("frame")
	late := 0
	require.NoError(t, p.RegisterSubscriber("frame", func(any) {
		_ = p.RegisterSubscriber("frame", func(any) { late++ })
	}))

	require.NoError(t, p.Publish("frame", nil))
	assert.Equal(t, 0, late)
	require.NoError(t, p.Publish("frame", nil))
	assert.Equal(t, 1, late)
}
