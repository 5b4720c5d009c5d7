package ipc

import (
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"pmxfactory/internal/api"
	"pmxfactory/internal/topology"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
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

func (c *Client) call(method string, args, reply any) error {
	return c.client.Call(ServiceName+"."+method, args, reply)
}

// RemoteError is an assembly or validation failure reported by the daemon.
type RemoteError struct {
	api.ErrorResponse
}

func (e *RemoteError) Error() string {
	return e.ErrorResponse.Error
}

func remoteError(body *api.ErrorResponse) error {
	if body == nil {
		return nil
	}
	return &RemoteError{ErrorResponse: *body}
}

// Status retrieves the daemon status.
func (c *Client) Status(withChecks bool) (*api.DaemonStatus, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{WithChecks: withChecks}, &resp); err != nil {
		return nil, err
	}
	return &resp.DaemonStatus, nil
}

// Shutdown stops the daemon process.
func (c *Client) Shutdown() (*ShutdownResponse, error) {
	var resp ShutdownResponse
	if err := c.call("Shutdown", ShutdownRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateChannelStrip asks the daemon to assemble a channel strip. Failures
// reported by the daemon are returned as *RemoteError.
func (c *Client) CreateChannelStrip(req CreateChannelStripRequest) (topology.ChannelStrip, error) {
	var resp CreateChannelStripResponse
	if err := c.call("CreateChannelStrip", req, &resp); err != nil {
		return topology.ChannelStrip{}, err
	}
	if err := remoteError(resp.Error); err != nil {
		return topology.ChannelStrip{}, err
	}
	if resp.Strip == nil {
		return topology.ChannelStrip{}, fmt.Errorf("daemon returned no channel strip")
	}
	return *resp.Strip, nil
}

// CreateOutputStage asks the daemon to assemble an output stage.
func (c *Client) CreateOutputStage(req CreateOutputStageRequest) (topology.OutputStage, error) {
	var resp CreateOutputStageResponse
	if err := c.call("CreateOutputStage", req, &resp); err != nil {
		return topology.OutputStage{}, err
	}
	if err := remoteError(resp.Error); err != nil {
		return topology.OutputStage{}, err
	}
	if resp.Stage == nil {
		return topology.OutputStage{}, fmt.Errorf("daemon returned no output stage")
	}
	return *resp.Stage, nil
}

// ChannelStrips lists mirrored channel strips.
func (c *Client) ChannelStrips() ([]topology.ChannelStrip, error) {
	var resp api.ChannelStripListResponse
	if err := c.call("ChannelStrips", ChannelStripListRequest{}, &resp); err != nil {
		return nil, err
	}
	return resp.Strips, nil
}

// OutputStages lists mirrored output stages.
func (c *Client) OutputStages() ([]topology.OutputStage, error) {
	var resp api.OutputStageListResponse
	if err := c.call("OutputStages", OutputStageListRequest{}, &resp); err != nil {
		return nil, err
	}
	return resp.Stages, nil
}

// AssemblyList lists journal entries, optionally filtered by status.
func (c *Client) AssemblyList(statuses []string) ([]api.Assembly, error) {
	var resp api.AssemblyListResponse
	if err := c.call("AssemblyList", AssemblyListRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return resp.Assemblies, nil
}

// AssemblyDescribe fetches one journal entry.
func (c *Client) AssemblyDescribe(id int64) (*api.Assembly, error) {
	var resp api.AssemblyResponse
	if err := c.call("AssemblyDescribe", AssemblyDescribeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp.Assembly, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.call("LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
