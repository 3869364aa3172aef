// replica.go - replica side of replication.
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

package server

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"gopkg.in/eapache/channels.v1"
	"gopkg.in/op/go-logging.v1"

	"github.com/copperkv/copperd/core/worker"
	"github.com/copperkv/copperd/frame"
)

const connectTimeout = 1 * time.Minute

// Replica maintains the connection to the primary: handshake, snapshot
// intake, and the command apply loop.
type Replica struct {
	worker.Worker

	s           *Server
	log         *logging.Logger
	primaryAddr string
}

func newReplica(s *Server, primaryAddr string) *Replica {
	r := &Replica{
		s:           s,
		log:         s.logBackend.GetLogger("replica"),
		primaryAddr: primaryAddr,
	}
	r.Go(r.connectWorker)
	return r
}

func (r *Replica) connectWorker() {
	defer r.log.Debug("Terminating connect worker.")

	conn, err := net.DialTimeout("tcp", r.primaryAddr, connectTimeout)
	if err != nil {
		r.log.Errorf("Failed to connect to primary %v: %v", r.primaryAddr, err)
		return
	}
	defer conn.Close()
	r.log.Noticef("Connected to primary: %v", r.primaryAddr)

	// Closing the connection on halt unblocks the reads below.
	r.Go(func() {
		<-r.HaltCh()
		conn.Close()
	})

	reader := frame.NewReader(conn)
	if err := r.handshake(conn, reader); err != nil {
		r.log.Errorf("Handshake failed: %v", err)
		return
	}
	r.log.Notice("Handshake completed.")

	r.applyLoop(conn, reader)
}

// handshake walks the PING / REPLCONF / PSYNC exchange and consumes the
// snapshot that follows FULLRESYNC.
func (r *Replica) handshake(conn net.Conn, reader *frame.Reader) error {
	st := r.s.store

	if err := r.roundTrip(conn, reader, frame.NewStringArray("PING"), "PONG"); err != nil {
		return err
	}

	st.Lock()
	port := strconv.Itoa(int(st.Info.ListeningPort))
	st.Unlock()
	if err := r.roundTrip(conn, reader, frame.NewStringArray("REPLCONF", "listening-port", port), "OK"); err != nil {
		return err
	}
	if err := r.roundTrip(conn, reader, frame.NewStringArray("REPLCONF", "capa", "psync2"), "OK"); err != nil {
		return err
	}

	psync := frame.NewStringArray("PSYNC", "?", "-1")
	if _, err := conn.Write(psync.Encode()); err != nil {
		return err
	}
	resp, _, err := reader.ReadFrame()
	if err != nil {
		return err
	}
	line, ok := resp.String()
	if !ok || !strings.HasPrefix(line, "FULLRESYNC ") {
		return fmt.Errorf("server: unexpected PSYNC response: %+v", resp)
	}
	fields := strings.Fields(line)
	if len(fields) >= 2 {
		st.Lock()
		st.Info.MasterID = fields[1]
		st.Unlock()
	}

	blob, _, err := reader.ReadRDB()
	if err != nil {
		return err
	}
	r.log.Debugf("Received snapshot: %d bytes", len(blob))
	return nil
}

func (r *Replica) roundTrip(conn net.Conn, reader *frame.Reader, req frame.Frame, want string) error {
	if _, err := conn.Write(req.Encode()); err != nil {
		return err
	}
	resp, _, err := reader.ReadFrame()
	if err != nil {
		return err
	}
	got, ok := resp.String()
	if !ok || !strings.EqualFold(got, want) {
		return fmt.Errorf("server: expected +%s, got %+v", want, resp)
	}
	return nil
}

// applyLoop executes the primary's command stream against the local
// store.  Responses are suppressed by the nonzero slaveID; only REPLCONF
// GETACK answers flow back.  The consumed wire length of every frame
// advances the receive offset.
func (r *Replica) applyLoop(conn net.Conn, reader *frame.Reader) {
	st := r.s.store

	st.Lock()
	slaveID := st.NextSlaveID()
	st.Unlock()

	c := &incomingConn{
		s:             r.s,
		conn:          conn,
		log:           r.s.logBackend.GetLogger("replica:conn"),
		st:            st,
		sendQ:         channels.NewInfiniteChannel(),
		slaveID:       slaveID,
		subscriptions: make(map[string]*subscription),
		user:          "default",
	}
	c.Go(c.writerWorker)
	defer c.Halt()

	for {
		select {
		case <-r.HaltCh():
			return
		default:
		}

		f, raw, err := reader.ReadFrame()
		if err != nil {
			r.log.Debugf("Replication stream ended: %v", err)
			return
		}
		c.onFrame(f, raw)
	}
}
