package websocket

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kowa/internal/domain/entity"
)

// testClient has no socket; frames pile up in its send buffer.
func testClient(userID string) *Client {
	return NewClient(nil, &entity.UserProfile{ID: userID, Name: "name-" + userID})
}

type decodedFrame struct {
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *EventError     `json:"error"`
}

func drain(t *testing.T, c *Client) []decodedFrame {
	t.Helper()
	var out []decodedFrame
	for {
		select {
		case raw := <-c.send:
			var f decodedFrame
			require.NoError(t, json.Unmarshal(raw, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

func frameTypes(frames []decodedFrame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Type)
	}
	return out
}

func TestRegistry_PresenceTransitionsAnnouncedOnce(t *testing.T) {
	r := NewRegistry()
	observer := testClient("bob")
	r.Register(observer)

	first := testClient("alice")
	second := testClient("alice")

	assert.True(t, r.Register(first))
	assert.False(t, r.Register(second))
	assert.True(t, r.IsOnline("alice"))
	assert.Equal(t, 3, r.ConnectionCount())
	assert.Equal(t, []string{entity.EventUserOnline}, frameTypes(drain(t, observer)))

	// Own connections are not told about themselves.
	assert.Empty(t, drain(t, first))

	assert.False(t, r.Unregister(first))
	assert.True(t, r.IsOnline("alice"))
	assert.Empty(t, drain(t, observer))

	assert.True(t, r.Unregister(second))
	assert.False(t, r.IsOnline("alice"))

	frames := drain(t, observer)
	require.Len(t, frames, 1)
	assert.Equal(t, entity.EventUserOffline, frames[0].Type)
	var data presenceData
	require.NoError(t, json.Unmarshal(frames[0].Data, &data))
	assert.Equal(t, "alice", data.UserID)

	// Unknown handles are ignored.
	assert.False(t, r.Unregister(second))
	assert.False(t, r.Unregister(testClient("carol")))
	assert.Empty(t, drain(t, observer))
}

func TestRegistry_RegisterTwiceIsNoop(t *testing.T) {
	r := NewRegistry()
	c := testClient("alice")

	assert.True(t, r.Register(c))
	assert.False(t, r.Register(c))
	assert.Equal(t, 1, r.ConnectionCount())
}

func TestRegistry_Lookups(t *testing.T) {
	r := NewRegistry()
	a1, a2, b := testClient("alice"), testClient("alice"), testClient("bob")
	r.Register(a1)
	r.Register(a2)
	r.Register(b)

	assert.ElementsMatch(t, []*Client{a1, a2}, r.HandlesFor("alice"))
	assert.Empty(t, r.HandlesFor("nobody"))
	assert.Equal(t, []string{"alice", "bob"}, r.OnlineUserIDs(""))
	assert.Equal(t, []string{"bob"}, r.OnlineUserIDs("alice"))
}

func TestClient_FullBufferClosesClient(t *testing.T) {
	c := testClient("alice")
	for i := 0; i < sendBufferSize; i++ {
		require.True(t, c.Enqueue([]byte("{}")))
	}

	assert.False(t, c.Enqueue([]byte("{}")))
	select {
	case <-c.Done():
	default:
		t.Fatal("client should be closed after overflowing its buffer")
	}
	assert.False(t, c.Enqueue([]byte("{}")))

	// Closing twice is fine.
	c.Close()
}
