package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"

	"parley/internal/app/hub"
	"parley/internal/configs"
)

func testConfig() *configs.AppConfig {
	return &configs.AppConfig{
		Environment:     "development",
		HistoryLimit:    50,
		MaxMessageChars: 500,
		MessageRate:     5,
		MessageBurst:    10,
	}
}

func TestClient_Deliver_RefusesOnceQueueIsFull(t *testing.T) {
	req := require.New(t)

	h := hub.NewHub(testConfig(), nil)
	t.Cleanup(h.Close)

	// No write loop is draining, so the queue fills to capacity
	c := NewClient(h, nil, "conn-test", testConfig())

	frame := []byte(`{"type":"CHAT_MESSAGE"}`)
	for i := 0; i < sendQueueSize; i++ {
		req.True(c.Deliver(frame))
	}

	// The overflowing frame is refused and the connection marked dead
	req.False(c.Deliver(frame))

	select {
	case <-c.dead:
	default:
		t.Fatal("overflow did not schedule connection teardown")
	}

	// Further refusals are idempotent
	req.False(c.Deliver(frame))
}
