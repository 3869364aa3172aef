// server.go - TCP listener.
// Copyright (C) 2024  David Stainton.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package server implements the RESP server: the TCP listener, the per
// connection command executor and handlers, and both sides of the
// replication protocol.
package server

import (
	"container/list"
	"net"
	"sync"

	"golang.org/x/net/netutil"
	"gopkg.in/op/go-logging.v1"

	"github.com/copperkv/copperd/config"
	"github.com/copperkv/copperd/core/log"
	"github.com/copperkv/copperd/core/worker"
	"github.com/copperkv/copperd/internal/instrument"
	"github.com/copperkv/copperd/store"
)

// Server accepts client connections and spawns a pair of tasks per
// connection.
type Server struct {
	worker.Worker

	cfg        *config.Config
	store      *store.Store
	logBackend *log.Backend
	log        *logging.Logger

	listener net.Listener
	replica  *Replica

	connLock sync.Mutex
	conns    *list.List

	connID uint64
}

// New constructs a Server, binds the listener, and starts accepting
// connections.
func New(cfg *config.Config, st *store.Store, logBackend *log.Backend) (*Server, error) {
	s := &Server{
		cfg:        cfg,
		store:      st,
		logBackend: logBackend,
		log:        logBackend.GetLogger("listener"),
		conns:      list.New(),
	}

	l, err := net.Listen("tcp", cfg.ListenAddr())
	if err != nil {
		return nil, err
	}
	s.listener = netutil.LimitListener(l, cfg.Server.MaxConnections)
	s.log.Noticef("Listening on: %v", s.listener.Addr())

	primaryAddr, err := cfg.Replication.PrimaryAddr()
	if err != nil {
		return nil, err
	}
	if primaryAddr != "" {
		s.replica = newReplica(s, primaryAddr)
	}

	s.Go(s.acceptWorker)
	return s, nil
}

func (s *Server) acceptWorker() {
	defer func() {
		s.listener.Close()
		s.log.Debug("Accept worker terminating.")
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.HaltCh():
				return
			default:
			}
			if e, ok := err.(net.Error); ok && e.Temporary() {
				continue
			}
			s.log.Errorf("Accept failure: %v", err)
			return
		}
		instrument.Connections()

		s.connID++
		c := newIncomingConn(s, conn, s.connID)

		s.connLock.Lock()
		c.e = s.conns.PushFront(c)
		s.connLock.Unlock()

		c.start()
	}
}

func (s *Server) onClosedConn(c *incomingConn) {
	s.connLock.Lock()
	defer s.connLock.Unlock()

	if c.e != nil {
		s.conns.Remove(c.e)
		c.e = nil
	}
}

// Shutdown halts the listener, the replica worker if any, and every live
// connection.
func (s *Server) Shutdown() {
	s.listener.Close()
	if s.replica != nil {
		s.replica.Halt()
	}

	s.connLock.Lock()
	conns := make([]*incomingConn, 0, s.conns.Len())
	for e := s.conns.Front(); e != nil; e = e.Next() {
		conns = append(conns, e.Value.(*incomingConn))
	}
	s.connLock.Unlock()
	for _, c := range conns {
		c.Halt()
	}

	s.Halt()
}
