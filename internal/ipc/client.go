package ipc

import (
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const (
	dialTimeout = 2 * time.Second
	callTimeout = 30 * time.Second
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	call := c.client.Go("Deckhand."+method, req, resp, make(chan *rpc.Call, 1))
	select {
	case done := <-call.Done:
		return done.Error
	case <-time.After(callTimeout):
		return fmt.Errorf("%s: no reply from daemon after %s", method, callTimeout)
	}
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Clips lists the cached clips of slot, or of the active slot when zero.
func (c *Client) Clips(slot int) (*ClipsResponse, error) {
	var resp ClipsResponse
	if err := c.call("Clips", ClipsRequest{Slot: slot}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Variables returns the display variables.
func (c *Client) Variables() (*VariablesResponse, error) {
	var resp VariablesResponse
	if err := c.call("Variables", VariablesRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Action runs one session action.
func (c *Client) Action(req ActionRequest) (*ActionResponse, error) {
	var resp ActionResponse
	if err := c.call("Action", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetTimecodeMode switches timecode delivery.
func (c *Client) SetTimecodeMode(req ModeRequest) (*ModeResponse, error) {
	var resp ModeResponse
	if err := c.call("SetTimecodeMode", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Connect asks the daemon to open the device connection.
func (c *Client) Connect() (*ConnectResponse, error) {
	var resp ConnectResponse
	if err := c.call("Connect", ConnectRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Disconnect asks the daemon to drop the device connection.
func (c *Client) Disconnect() (*DisconnectResponse, error) {
	var resp DisconnectResponse
	if err := c.call("Disconnect", DisconnectRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop asks the daemon process to exit.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.call("Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.call("TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
