package events

import (
	"testing"

	"github.com/lumenlab/axon/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversEvents(t *testing.T) {
	bus := NewBus(4, logging.NewNop())

	bus.Emit(TopicTokens, TokensPayload{TokenUsage: 42})

	select {
	case e := <-bus.Events():
		assert.Equal(t, TopicTokens, e.Topic)
		assert.Equal(t, TokensPayload{TokenUsage: 42}, e.Payload)
	default:
		t.Fatal("expected an event on the bus")
	}
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := NewBus(2, logging.NewNop())

	for i := 0; i < 5; i++ {
		bus.Emit(TopicInference, InferencePayload{Type: "time"})
	}

	assert.Equal(t, uint64(3), bus.Dropped())
	assert.Len(t, bus.Events(), 2)
}

func TestCaptureByTopic(t *testing.T) {
	c := NewCapture()
	c.Emit(TopicTokens, TokensPayload{TokenUsage: 1})
	c.Emit(TopicInference, InferencePayload{Type: "warning"})
	c.Emit(TopicTokens, TokensPayload{TokenUsage: 2})

	require.Len(t, c.Events(), 3)
	assert.Len(t, c.ByTopic(TopicTokens), 2)
	assert.Len(t, c.ByTopic(TopicInference), 1)
	assert.Empty(t, c.ByTopic(TopicAgentState))
}
