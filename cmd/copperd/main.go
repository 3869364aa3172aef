// main.go - copperd daemon.
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

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/carlmjohnson/versioninfo"

	"github.com/copperkv/copperd/config"
	"github.com/copperkv/copperd/core/log"
	"github.com/copperkv/copperd/server"
	"github.com/copperkv/copperd/store"
)

func main() {
	cfgFile := flag.String("f", "", "Path to the config file")
	port := flag.Uint("port", 0, "TCP port to listen on")
	replicaOf := flag.String("replicaof", "", "\"<host> <port>\" of the primary to follow")
	dir := flag.String("dir", "", "Working directory")
	dbFilename := flag.String("dbfilename", "", "Snapshot filename")
	logFile := flag.String("log_file", "", "Log file path, stdout if empty")
	logLevel := flag.String("log_level", "", "Logging level: ERROR, WARNING, NOTICE, INFO, DEBUG")
	version := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *version {
		fmt.Printf("copperd %s\n", versioninfo.Short())
		os.Exit(0)
	}

	cfg, err := config.LoadFile(*cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Flags override the config file.
	if *port != 0 {
		cfg.Server.Port = uint16(*port)
	}
	if *replicaOf != "" {
		cfg.Replication.ReplicaOf = *replicaOf
	}
	if *dir != "" {
		cfg.Server.Dir = *dir
	}
	if *dbFilename != "" {
		cfg.Server.DBFilename = *dbFilename
	}
	if *logFile != "" {
		cfg.Logging.File = *logFile
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if err := cfg.FixupAndValidate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logBackend, err := log.New(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Disable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	mainLog := logBackend.GetLogger("copperd")
	mainLog.Noticef("copperd %s", versioninfo.Short())

	st := store.New()
	st.Info.ListeningPort = cfg.Server.Port
	st.Info.Dir = cfg.Server.Dir
	st.Info.DBFilename = cfg.Server.DBFilename
	if cfg.Replication.ReplicaOf != "" {
		st.Info.Role = store.RoleSlave
		st.Info.MasterID = "?"
	} else {
		st.Info.Role = store.RoleMaster
		st.Info.MasterID = store.NewReplicationID()
	}

	svr, err := server.New(cfg, st, logBackend)
	if err != nil {
		mainLog.Errorf("Failed to start server: %v", err)
		os.Exit(1)
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
	mainLog.Notice("Shutting down.")
	svr.Shutdown()
}
