// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package timelineserver

import (
	"net"
	"net/rpc"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/wafel-tas/timeline/datapath"
	"github.com/wafel-tas/timeline/editlog"
	"github.com/wafel-tas/timeline/internal/telemetry"
	"github.com/wafel-tas/timeline/memory"
	"github.com/wafel-tas/timeline/timeline"
)

// Server exposes a *timeline.Timeline to net/rpc callers, the remote end
// a detached editor frontend talks to (the same split ogleproxy makes
// between the debugged process and its RPC-driven client).
type Server struct {
	tl  *timeline.Timeline
	log *telemetry.Logger

	mu     sync.Mutex
	cached map[pathKey]*datapath.DataPath
}

type pathKey struct {
	symbol string
	path   string
}

// New returns a Server fronting tl.
func New(tl *timeline.Timeline) *Server {
	return &Server{tl: tl, log: telemetry.New("timelineserver"), cached: make(map[pathKey]*datapath.DataPath)}
}

// Serve registers a Server fronting tl and accepts RPC connections on
// listen (e.g. "localhost:6417") until the listener is closed or an
// error occurs.
func Serve(listen string, tl *timeline.Timeline) error {
	l, err := net.Listen("tcp", listen)
	if err != nil {
		return errors.Wrapf(err, "timelineserver: listening on %s", listen)
	}
	return ServeListener(l, tl)
}

// ServeListener is Serve, taking an already-open listener: tests use
// this with a "127.0.0.1:0" listener to bind an ephemeral free port.
func ServeListener(l net.Listener, tl *timeline.Timeline) error {
	s := New(tl)
	srv := rpc.NewServer()
	if err := srv.Register(s); err != nil {
		return errors.Wrap(err, "timelineserver: registering RPC server")
	}
	s.log.Infof("listening on %s", l.Addr())
	srv.Accept(l)
	return nil
}

// compile resolves symbol's declared type and compiles path against it,
// caching the result keyed by (symbol, path): the same field of the
// same global is typically re-read every frame by a scrubbing UI, and a
// global's type never changes between frames.
func (s *Server) compile(symbol, path string) (*datapath.DataPath, error) {
	key := pathKey{symbol: symbol, path: path}
	s.mu.Lock()
	dp, ok := s.cached[key]
	s.mu.Unlock()
	if ok {
		return dp, nil
	}

	g, err := s.tl.Spec().Global(symbol)
	if err != nil {
		return nil, err
	}
	dp, err = s.tl.Compiler().Compile(g.Type, path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cached[key] = dp
	s.mu.Unlock()
	return dp, nil
}

// Get reads a value at a frame.
func (s *Server) Get(req GetRequest, resp *GetResponse) error {
	h, err := s.tl.At(req.Frame)
	if err != nil {
		return err
	}
	defer h.Release()

	dp, err := s.compile(req.Symbol, req.Path)
	if err != nil {
		return err
	}
	base, _, err := h.Memory().Symbol(req.Symbol)
	if err != nil {
		return err
	}
	v, err := dp.Get(h.Memory(), base)
	if err != nil {
		return err
	}
	resp.Value = v.String()
	return nil
}

// Set applies a durable edit at a frame.
func (s *Server) Set(req SetRequest, resp *SetResponse) error {
	dp, err := s.compile(req.Symbol, req.Path)
	if err != nil {
		return err
	}
	symbol, path := req.Symbol, req.Path
	var v memory.Value
	switch {
	case req.IntValue != nil:
		v = memory.NewInt(dp.Result, *req.IntValue)
	case req.UintValue != nil:
		v = memory.NewUint(dp.Result, *req.UintValue)
	case req.FloatValue != nil:
		v = memory.NewFloat(dp.Result, *req.FloatValue)
	default:
		return errors.Errorf("timelineserver: Set %s%s: no value supplied", symbol, path)
	}

	key := editlog.Key{Symbol: symbol, Path: path}
	s.tl.Edit(req.Frame, key, func(m *memory.Memory) error {
		base, _, err := m.Symbol(symbol)
		if err != nil {
			return err
		}
		return dp.Set(m, base, v)
	})
	return nil
}

// Clear removes every edit recorded at a frame.
func (s *Server) Clear(req ClearRequest, resp *ClearResponse) error {
	s.tl.ClearFrame(req.Frame)
	return nil
}

// Balance rebalances the slot cache around every registered hotspot.
func (s *Server) Balance(req BalanceRequest, resp *BalanceResponse) error {
	s.tl.Balance(time.Duration(req.BudgetMillis) * time.Millisecond)
	return nil
}

// SetHotspot records (or updates) a named hotspot frame.
func (s *Server) SetHotspot(req SetHotspotRequest, resp *SetHotspotResponse) error {
	s.tl.SetHotspot(req.Name, req.Frame)
	return nil
}

// DeleteHotspot removes a named hotspot.
func (s *Server) DeleteHotspot(req DeleteHotspotRequest, resp *DeleteHotspotResponse) error {
	s.tl.DeleteHotspot(req.Name)
	return nil
}
