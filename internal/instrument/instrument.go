// instrument.go - prometheus instrumentation.
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

// Package instrument publishes counters for the hot paths.
package instrument

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "copperd"

var (
	connections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Number of accepted client connections",
		},
	)
	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Number of commands executed",
		},
		[]string{"command"},
	)
	framesParsed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_parsed_total",
			Help:      "Number of wire frames decoded",
		},
	)
	bytesBroadcast = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replication_bytes_total",
			Help:      "Number of bytes broadcast to replicas",
		},
	)
	keysExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_expired_total",
			Help:      "Number of keys removed by lazy expiration",
		},
	)
)

func init() {
	prometheus.MustRegister(connections)
	prometheus.MustRegister(commands)
	prometheus.MustRegister(framesParsed)
	prometheus.MustRegister(bytesBroadcast)
	prometheus.MustRegister(keysExpired)
}

// Connections increments the accepted connection count.
func Connections() {
	connections.Inc()
}

// Command increments the executed command count for cmd.
func Command(cmd string) {
	commands.With(prometheus.Labels{"command": cmd}).Inc()
}

// FramesParsed increments the decoded frame count.
func FramesParsed() {
	framesParsed.Inc()
}

// BytesBroadcast adds n to the replication byte count.
func BytesBroadcast(n int) {
	bytesBroadcast.Add(float64(n))
}

// KeysExpired increments the expired key count.
func KeysExpired() {
	keysExpired.Inc()
}
