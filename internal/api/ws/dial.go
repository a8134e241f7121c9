package ws

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/aptools/internal/protocol"
	"github.com/GriffinCanCode/aptools/internal/shared/types"
)

// ConnectPath is the host endpoint pages dial.
const ConnectPath = "/pages/connect"

const handshakeTimeout = 5 * time.Second

// Dial connects a page to the host at hostURL and waits for the host to
// confirm the page id.
func Dial(ctx context.Context, hostURL string, id types.PageID, logger *zap.Logger) (*Conn, types.PageID, error) {
	endpoint, err := connectURL(hostURL, id)
	if err != nil {
		return nil, "", err
	}

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	wsConn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to connect to host: %w", err)
	}
	conn := newConn(wsConn, logger)

	timer := time.NewTimer(handshakeTimeout)
	defer timer.Stop()

	select {
	case msg, ok := <-conn.Messages():
		hello, isHello := msg.(protocol.Hello)
		if !ok || !isHello {
			conn.Close()
			return nil, "", fmt.Errorf("host did not confirm the page")
		}
		return conn, hello.PageID, nil
	case <-timer.C:
		conn.Close()
		return nil, "", fmt.Errorf("timed out waiting for host")
	case <-ctx.Done():
		conn.Close()
		return nil, "", ctx.Err()
	}
}

func connectURL(hostURL string, id types.PageID) (string, error) {
	u, err := url.Parse(strings.TrimRight(hostURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid host url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid host url scheme %q", u.Scheme)
	}
	u.Path += ConnectPath
	if id != "" {
		q := u.Query()
		q.Set("page_id", string(id))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
