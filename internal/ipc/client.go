package ipc

import (
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"bookforge/internal/queue"
	"bookforge/internal/workflow"
)

const dialTimeout = 2 * time.Second

// Client is a typed JSON-RPC client for the daemon socket.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the daemon. A connection failure usually means the daemon
// is not running.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon at %s: %w (is the daemon running?)", path, err)
	}
	return &Client{rpc: jsonrpc.NewClient(conn)}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.rpc.Close()
}

func (c *Client) call(method string, req, resp any) error {
	return c.rpc.Call("BookForge."+method, req, resp)
}

func (c *Client) StartQueue() (StartQueueResponse, error) {
	var resp StartQueueResponse
	err := c.call("StartQueue", StartQueueRequest{}, &resp)
	return resp, err
}

func (c *Client) StopQueue() (StopQueueResponse, error) {
	var resp StopQueueResponse
	err := c.call("StopQueue", StopQueueRequest{}, &resp)
	return resp, err
}

func (c *Client) Status() (StatusResponse, error) {
	var resp StatusResponse
	err := c.call("Status", StatusRequest{}, &resp)
	return resp, err
}

func (c *Client) QueueList(statuses []string) ([]queue.Job, error) {
	var resp QueueListResponse
	err := c.call("QueueList", QueueListRequest{Statuses: statuses}, &resp)
	return resp.Jobs, err
}

func (c *Client) WorkflowCreate(spec workflow.BookSpec) (queue.Job, error) {
	var resp WorkflowCreateResponse
	err := c.call("WorkflowCreate", WorkflowCreateRequest{Spec: spec}, &resp)
	return resp.Master, err
}

func (c *Client) JobAdd(job queue.Job, standalone bool) (queue.Job, error) {
	var resp JobAddResponse
	err := c.call("JobAdd", JobAddRequest{Job: job, Standalone: standalone}, &resp)
	return resp.Job, err
}

func (c *Client) JobStop(id string) error {
	var resp JobActionResponse
	return c.call("JobStop", JobIDRequest{ID: id}, &resp)
}

func (c *Client) JobCancel(id string) error {
	var resp JobActionResponse
	return c.call("JobCancel", JobIDRequest{ID: id}, &resp)
}

func (c *Client) JobResume(id string) error {
	var resp JobActionResponse
	return c.call("JobResume", JobIDRequest{ID: id}, &resp)
}

func (c *Client) JobRetry(id string) error {
	var resp JobActionResponse
	return c.call("JobRetry", JobIDRequest{ID: id}, &resp)
}

func (c *Client) JobRun(id string) error {
	var resp JobActionResponse
	return c.call("JobRun", JobIDRequest{ID: id}, &resp)
}

func (c *Client) QueueRemove(id string) (int, error) {
	var resp QueueRemoveResponse
	err := c.call("QueueRemove", JobIDRequest{ID: id}, &resp)
	return resp.Removed, err
}

func (c *Client) QueueClear(statuses []string) (int, error) {
	var resp QueueClearResponse
	err := c.call("QueueClear", QueueClearRequest{Statuses: statuses}, &resp)
	return resp.Removed, err
}

func (c *Client) QueueReorder(id, targetID string) error {
	var resp QueueReorderResponse
	return c.call("QueueReorder", QueueReorderRequest{ID: id, TargetID: targetID}, &resp)
}

func (c *Client) Runs(limit int) (RunsResponse, error) {
	var resp RunsResponse
	err := c.call("Runs", RunsRequest{Limit: limit}, &resp)
	return resp, err
}

func (c *Client) LogTail(offset int64, limit, waitMillis int) (LogTailResponse, error) {
	var resp LogTailResponse
	err := c.call("LogTail", LogTailRequest{Offset: offset, Limit: limit, WaitMillis: waitMillis}, &resp)
	return resp, err
}
