package service

import (
	"context"
	"fmt"
	"net"
	"strings"

	apitypes "github.com/containerd/containerd/api/types"
	"github.com/containerd/errdefs"
	"github.com/containerd/errdefs/pkg/errgrpc"
	"github.com/containerd/ttrpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/MarcinKonowalczyk/breakfast/bf"
)

// Client is a handle on a running transpiler service. It is safe for
// concurrent use; callers own its lifetime and must Close it.
type Client struct {
	client *ttrpc.Client
}

// Dial connects to the service listening on a unix socket.
func Dial(ctx context.Context, address string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", address)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", address, err)
	}
	return NewClient(conn), nil
}

func NewClient(conn net.Conn) *Client {
	return &Client{client: ttrpc.NewClient(conn)}
}

// Transpile sends source to the service. Malformed source comes back as an
// errdefs.ErrInvalidArgument carrying the service's diagnostic.
func (c *Client) Transpile(ctx context.Context, source string) (string, error) {
	var resp wrapperspb.StringValue
	if err := c.client.Call(ctx, ServiceName, "Transpile", wrapperspb.String(source), &resp); err != nil {
		return "", nativeError(err)
	}
	return resp.GetValue(), nil
}

func (c *Client) Info(ctx context.Context) (*apitypes.RuntimeInfo, error) {
	var resp apitypes.RuntimeInfo
	if err := c.client.Call(ctx, ServiceName, "Info", &emptypb.Empty{}, &resp); err != nil {
		return nil, nativeError(err)
	}
	return &resp, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Bind adapts the client to bf.Transpiler, issuing every call under ctx.
func (c *Client) Bind(ctx context.Context) bf.Transpiler {
	return boundClient{ctx: ctx, c: c}
}

type boundClient struct {
	ctx context.Context
	c   *Client
}

func (b boundClient) Transpile(source string) (string, error) {
	return b.c.Transpile(b.ctx, source)
}

// bracketError restores the bracket error kind lost in transit.
type bracketError struct {
	err  error
	kind error
}

func (e *bracketError) Error() string {
	return e.err.Error()
}

func (e *bracketError) Unwrap() []error {
	return []error{e.err, e.kind}
}

// nativeError maps a ttrpc status back to errdefs and, best-effort, to the
// bracket sentinel named in the status message. Only the kind survives the
// round trip: the command index is not carried, so a recovered error is not
// a *bf.BracketError.
func nativeError(err error) error {
	err = errgrpc.ToNative(err)
	if !errdefs.IsInvalidArgument(err) {
		return err
	}
	for _, kind := range []error{bf.ErrUnmatchedLoopEnd, bf.ErrUnclosedLoopStart} {
		if strings.Contains(err.Error(), kind.Error()) {
			return &bracketError{err: err, kind: kind}
		}
	}
	return err
}
