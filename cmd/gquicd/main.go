/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/gquic/handshake"
	"github.com/facebook/gquic/quicerr"
	"github.com/facebook/gquic/quicnet"
	"github.com/facebook/gquic/session"
	"github.com/facebook/gquic/wire"
)

func main() {
	cfg := quicnet.DefaultServerConfig()

	var configFile, logLevel string
	flag.StringVar(&configFile, "config", "", "Path to a YAML config file")
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Address to listen for gQUIC connections on")
	flag.IntVar(&cfg.MonitoringPort, "monitoringport", cfg.MonitoringPort, "Port to serve prometheus metrics on")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "Number of goroutines reading the UDP socket")
	flag.DurationVar(&cfg.IdleTimeout, "idletimeout", cfg.IdleTimeout, "Idle timeout before a session is closed")
	flag.DurationVar(&cfg.HandshakeTimeout, "handshaketimeout", cfg.HandshakeTimeout, "Handshake timeout stored in the config; sessions do not read it and use a fixed 10s handshake timeout")
	flag.StringVar(&logLevel, "loglevel", "warning", "Set a log level. Can be: debug, info, warning, error")
	flag.Parse()

	switch logLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Fatalf("Unrecognized log level: %v", logLevel)
	}

	if configFile != "" {
		loaded, err := quicnet.ReadConfig(configFile)
		if err != nil {
			log.Fatalf("reading config from %q: %v", configFile, err)
		}
		cfg = loaded
	}

	srv := quicnet.NewServer(cfg)
	srv.OnAccept = func(sess *session.Session) session.Handlers {
		hs := handshake.NewNullHandshake()
		return session.Handlers{
			OnOpen: func() {
				if _, err := hs.Begin(sess.ConnectionID, handshake.RoleServer, sess.Version()); err != nil {
					log.WithError(err).Warn("gquicd: handshake failed")
					return
				}
				log.WithField("connection_id", sess.ConnectionID.String()).Debug("gquicd: session open")
			},
			OnClose:  func() { log.Debug("gquicd: session closed") },
			OnError:  func(err error) { log.WithError(err).Debug("gquicd: session error") },
			OnGoAway: func() { log.Debug("gquicd: peer going away") },
			OnVersion: func(v wire.Version) {
				log.WithField("version", v).Debug("gquicd: negotiated version")
			},
		}
	}

	go srv.Stats.(*quicnet.PrometheusStats).Start(cfg.MonitoringPort)

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("gquicd: shutting down")
		srv.CloseAll(quicerr.PeerGoingAway, "server shutting down")
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	log.Infof("gquicd: listening on %s", cfg.Addr)
	if err := srv.Listen(ctx); err != nil {
		log.Fatal(err)
	}
}
