package websocket

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/robotalks/npg.go/pkg/transport"
)

type echoHandler struct {
	events chan string
}

func (h *echoHandler) Connected(peer string)        { h.events <- "connected" }
func (h *echoHandler) Disconnected(string, error)   { h.events <- "disconnected" }
func (h *echoHandler) ControlWrite(d []byte) []byte { return []byte(strings.ToUpper(string(d))) }
func (h *echoHandler) ControlRead() []byte          { return []byte("STOPPED") }

func (h *echoHandler) expect(t *testing.T, ev string) {
	select {
	case actual := <-h.events:
		require.Equal(t, ev, actual)
	case <-time.After(time.Second):
		t.Fatalf("expect %s", ev)
	}
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	conn, err := websocket.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/", "", "http://localhost/")
	require.NoError(t, err)
	return conn
}

func receive(t *testing.T, conn *websocket.Conn) Message {
	var msg Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, Codec.Receive(conn, &msg))
	return msg
}

func TestLink(t *testing.T) {
	link := New(":0")
	h := &echoHandler{events: make(chan string, 4)}
	link.Attach(h)
	server := httptest.NewServer(link.Handler())
	defer server.Close()

	require.NoError(t, link.Notify(transport.Data, []byte{1}))

	conn := dial(t, server)
	h.expect(t, "connected")

	require.NoError(t, link.Notify(transport.Data, []byte{1, 2, 3}))
	msg := receive(t, conn)
	require.False(t, msg.Text)
	require.Equal(t, []byte{1, 2, 3}, msg.Data)

	require.NoError(t, Codec.Send(conn, &Message{Text: true, Data: []byte("start")}))
	msg = receive(t, conn)
	require.True(t, msg.Text)
	require.Equal(t, "START", string(msg.Data))

	require.NoError(t, Codec.Send(conn, &Message{Text: true, Data: []byte(ReadRequest)}))
	require.Equal(t, "STOPPED", string(receive(t, conn).Data))

	second := dial(t, server)
	require.Equal(t, ErrBusy.Error(), string(receive(t, second).Data))
	second.Close()

	conn.Close()
	h.expect(t, "disconnected")
	require.NoError(t, link.Notify(transport.Data, []byte{1}))
}
