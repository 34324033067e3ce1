package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []Envelope {
	t.Helper()
	var out []Envelope
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e Envelope
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		out = append(out, e)
	}
	return out
}

func TestDispatcher_RejectsDuplicateRegistration(t *testing.T) {
	d := NewDispatcher(strings.NewReader(""), &bytes.Buffer{}, nil)
	require.NoError(t, d.Register("ping", func(json.RawMessage) (interface{}, error) { return "pong", nil }))
	err := d.Register("ping", func(json.RawMessage) (interface{}, error) { return nil, nil })
	assert.Error(t, err)
}

func TestDispatcher_DispatchesRegisteredCommand(t *testing.T) {
	var out bytes.Buffer
	input := `{"id":"1","command":"ping"}` + "\n"
	d := NewDispatcher(strings.NewReader(input), &out, nil)
	require.NoError(t, d.Register("ping", func(json.RawMessage) (interface{}, error) { return "pong", nil }))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Run(ctx))

	envs := decodeLines(t, &out)
	require.Len(t, envs, 1)
	assert.True(t, envs[0].Success)
	assert.Equal(t, "ping", envs[0].Type)
	assert.Equal(t, "1", envs[0].ID)
}

func TestDispatcher_UnknownCommandReturnsError(t *testing.T) {
	var out bytes.Buffer
	input := `{"id":"2","command":"does_not_exist"}` + "\n"
	d := NewDispatcher(strings.NewReader(input), &out, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Run(ctx))

	envs := decodeLines(t, &out)
	require.Len(t, envs, 1)
	assert.False(t, envs[0].Success)
	assert.NotEmpty(t, envs[0].Error)
}

func TestDispatcher_RecoversPanickingHandler(t *testing.T) {
	var out bytes.Buffer
	input := `{"id":"3","command":"boom"}` + "\n" + `{"id":"4","command":"ping"}` + "\n"
	d := NewDispatcher(strings.NewReader(input), &out, nil)
	require.NoError(t, d.Register("boom", func(json.RawMessage) (interface{}, error) {
		var p *struct{ X int }
		return p.X, nil // nil-pointer deref
	}))
	require.NoError(t, d.Register("ping", func(json.RawMessage) (interface{}, error) { return "pong", nil }))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Run(ctx))

	envs := decodeLines(t, &out)
	require.Len(t, envs, 2, "the panic must not abort the dispatch loop")
	assert.False(t, envs[0].Success)
	assert.NotEmpty(t, envs[0].Error)
	assert.True(t, envs[1].Success)
}

func TestEventBus_PublishWritesIdlessEnvelopeToDispatcherStream(t *testing.T) {
	var out bytes.Buffer
	d := NewDispatcher(strings.NewReader(""), &out, nil)
	bus := NewEventBus(d, nil)

	bus.Publish("acquisition_started", nil)

	envs := decodeLines(t, &out)
	require.Len(t, envs, 1)
	assert.Equal(t, "acquisition_started", envs[0].Type)
	assert.Empty(t, envs[0].ID)
}

func TestEventBus_SubscribeReceivesPublishedTopics(t *testing.T) {
	d := NewDispatcher(strings.NewReader(""), &bytes.Buffer{}, nil)
	bus := NewEventBus(d, nil)

	received := make(chan string, 1)
	bus.Subscribe("health", func(topic string, _ interface{}) { received <- topic })

	bus.Publish("health", map[string]interface{}{"cpu_percent": 1.0})

	select {
	case topic := <-received:
		assert.Equal(t, "health", topic)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive published topic")
	}
}
