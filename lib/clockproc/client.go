package clockproc

import (
	"context"
	"fmt"

	"github.com/gonefs/gonefs/rpc/client"
	"github.com/gonefs/gonefs/rpc/common"
	"github.com/gonefs/gonefs/rpc/proto"
	"github.com/gonefs/gonefs/rpc/transport"
)

// Client wraps the raw RPC client with typed methods for each procedure.
type Client struct {
	rpc *client.Client
}

// NewClient creates a clock program client. The connection is established
// on the first call.
func NewClient(connector transport.IClientConnector, config common.ClientConfig) *Client {
	return &Client{
		rpc: client.New(Program, Version, Procs(), connector, config),
	}
}

// Close tears the connection down
func (c *Client) Close() error {
	return c.rpc.Close()
}

// checkReply converts a non-successful dispatch outcome into an error
func checkReply(name string, reply *client.Reply) error {
	if !reply.Success() {
		return fmt.Errorf("clockproc: %s was denied by the server", name)
	}
	if stat := reply.Msg.Reply.Accepted.Stat; stat != proto.Success {
		return fmt.Errorf("clockproc: %s failed with %s", name, stat)
	}
	return nil
}

// Null performs the do-nothing probe call
func (c *Client) Null(ctx context.Context) error {
	reply, err := c.rpc.Call(ctx, ProcNull)
	if err != nil {
		return err
	}
	return checkReply("NULL", reply)
}

// Now returns the server's current time as an RFC 3339 string
func (c *Client) Now(ctx context.Context) (string, error) {
	reply, err := c.rpc.Call(ctx, ProcNow)
	if err != nil {
		return "", err
	}
	if err := checkReply("NOW", reply); err != nil {
		return "", err
	}
	return reply.Body.(string), nil
}

// Echo returns s unchanged, round-tripped through the server
func (c *Client) Echo(ctx context.Context, s string) (string, error) {
	reply, err := c.rpc.Call(ctx, ProcEcho, s)
	if err != nil {
		return "", err
	}
	if err := checkReply("ECHO", reply); err != nil {
		return "", err
	}
	return reply.Body.(string), nil
}

// Add returns a+b, computed remotely
func (c *Client) Add(ctx context.Context, a, b int32) (int32, error) {
	reply, err := c.rpc.Call(ctx, ProcAdd, a, b)
	if err != nil {
		return 0, err
	}
	if err := checkReply("ADD", reply); err != nil {
		return 0, err
	}
	return reply.Body.(int32), nil
}
