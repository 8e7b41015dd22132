// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package timelineserver

import (
	"net/rpc"
	"time"

	"github.com/pkg/errors"
)

// Client is a thin wrapper over an *rpc.Client talking to a Server,
// giving callers named methods instead of raw rpc.Client.Call strings.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to a Server listening at addr (as passed to Serve).
func Dial(addr string) (*Client, error) {
	c, err := rpc.Dial("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "timelineserver: dialing %s", addr)
	}
	return &Client{rpc: c}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.rpc.Close()
}

// Get reads symbol.path's value at frame.
func (c *Client) Get(frame int64, symbol, path string) (string, error) {
	req := GetRequest{Frame: frame, Symbol: symbol, Path: path}
	var resp GetResponse
	if err := c.rpc.Call("Server.Get", req, &resp); err != nil {
		return "", err
	}
	return resp.Value, nil
}

// SetInt records an edit writing a signed integer to symbol.path at frame.
func (c *Client) SetInt(frame int64, symbol, path string, v int64) error {
	req := SetRequest{Frame: frame, Symbol: symbol, Path: path, IntValue: &v}
	return c.rpc.Call("Server.Set", req, &SetResponse{})
}

// SetUint records an edit writing an unsigned integer to symbol.path at frame.
func (c *Client) SetUint(frame int64, symbol, path string, v uint64) error {
	req := SetRequest{Frame: frame, Symbol: symbol, Path: path, UintValue: &v}
	return c.rpc.Call("Server.Set", req, &SetResponse{})
}

// SetFloat records an edit writing a float to symbol.path at frame.
func (c *Client) SetFloat(frame int64, symbol, path string, v float64) error {
	req := SetRequest{Frame: frame, Symbol: symbol, Path: path, FloatValue: &v}
	return c.rpc.Call("Server.Set", req, &SetResponse{})
}

// Clear removes every edit recorded at frame, if any.
func (c *Client) Clear(frame int64) error {
	return c.rpc.Call("Server.Clear", ClearRequest{Frame: frame}, &ClearResponse{})
}

// Balance rebalances the server's slot cache around every registered
// hotspot, spending up to budget doing so (<=0 runs to completion).
func (c *Client) Balance(budget time.Duration) error {
	return c.rpc.Call("Server.Balance", BalanceRequest{BudgetMillis: budget.Milliseconds()}, &BalanceResponse{})
}

// SetHotspot records (or updates) a named hotspot frame on the server.
func (c *Client) SetHotspot(name string, frame int64) error {
	return c.rpc.Call("Server.SetHotspot", SetHotspotRequest{Name: name, Frame: frame}, &SetHotspotResponse{})
}

// DeleteHotspot removes a named hotspot on the server.
func (c *Client) DeleteHotspot(name string) error {
	return c.rpc.Call("Server.DeleteHotspot", DeleteHotspotRequest{Name: name}, &DeleteHotspotResponse{})
}
