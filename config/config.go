// config.go - server configuration.
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

// Package config provides the daemon configuration: an optional TOML
// file merged with command line flags, flags winning.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	defaultAddress  = "127.0.0.1"
	defaultPort     = 6379
	defaultLogLevel = "NOTICE"
	defaultMaxConns = 1024
)

// Server is the listener configuration.
type Server struct {
	// Address is the IP address to bind to.
	Address string

	// Port is the TCP port to listen on.
	Port uint16

	// MaxConnections bounds the number of concurrently served clients.
	MaxConnections int

	// Dir is the working directory reported by CONFIG GET.
	Dir string

	// DBFilename is the snapshot filename reported by CONFIG GET.
	DBFilename string
}

func (sCfg *Server) applyDefaults() {
	if sCfg.Address == "" {
		sCfg.Address = defaultAddress
	}
	if sCfg.Port == 0 {
		sCfg.Port = defaultPort
	}
	if sCfg.MaxConnections <= 0 {
		sCfg.MaxConnections = defaultMaxConns
	}
}

// Logging is the logging configuration.
type Logging struct {
	// Disable discards all log output.
	Disable bool

	// File is the log file path; empty means stdout.
	File string

	// Level is one of ERROR, WARNING, NOTICE, INFO, DEBUG.
	Level string
}

func (lCfg *Logging) validate() error {
	switch strings.ToUpper(lCfg.Level) {
	case "ERROR", "WARNING", "NOTICE", "INFO", "DEBUG":
		return nil
	case "":
		lCfg.Level = defaultLogLevel
		return nil
	default:
		return fmt.Errorf("config: Logging: Level '%v' is invalid", lCfg.Level)
	}
}

// Replication is the replication configuration.
type Replication struct {
	// ReplicaOf is the "<host> <port>" of the primary to follow; empty
	// means this node is the primary.
	ReplicaOf string
}

// PrimaryAddr returns the primary's dial address, or "" for a primary
// node.
func (rCfg *Replication) PrimaryAddr() (string, error) {
	if rCfg.ReplicaOf == "" {
		return "", nil
	}
	fields := strings.Fields(rCfg.ReplicaOf)
	if len(fields) != 2 {
		return "", fmt.Errorf("config: Replication: ReplicaOf '%v' is not \"<host> <port>\"", rCfg.ReplicaOf)
	}
	if _, err := strconv.ParseUint(fields[1], 10, 16); err != nil {
		return "", fmt.Errorf("config: Replication: ReplicaOf port '%v' is invalid", fields[1])
	}
	host := fields[0]
	if host == "localhost" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, fields[1]), nil
}

// Config is the top level configuration.
type Config struct {
	Server      Server
	Logging     Logging
	Replication Replication
}

// FixupAndValidate applies defaults and checks the configuration for
// errors.
func (cfg *Config) FixupAndValidate() error {
	cfg.Server.applyDefaults()
	if err := cfg.Logging.validate(); err != nil {
		return err
	}
	if _, err := cfg.Replication.PrimaryAddr(); err != nil {
		return err
	}
	return nil
}

// ListenAddr returns the bind address of the listener.
func (cfg *Config) ListenAddr() string {
	return net.JoinHostPort(cfg.Server.Address, strconv.Itoa(int(cfg.Server.Port)))
}

// Load parses and validates the provided buffer as a TOML config.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: undecoded keys in config file: %v", undecoded)
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses and validates the provided file.  An empty path
// yields a default configuration.
func LoadFile(f string) (*Config, error) {
	if f == "" {
		cfg := new(Config)
		if err := cfg.FixupAndValidate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}
