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

package quicnet

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Stats is what an endpoint reports about itself. Implementations must be
// safe for concurrent use: the endpoint's receive loop and its periodic
// reporting loop both call into it.
type Stats interface {
	IncPacketsReceived()
	IncPacketsSent()
	IncPacketsDropped()
	IncRetransmits()
	IncConnectionsOpened()
	IncConnectionsClosed()
	SetOpenConnections(n int)
	SetOpenStreams(n int)
	SetRTT(connectionID string, rtt float64)
}

// PrometheusStats is the Stats implementation used by cmd/gquicd. It
// registers a fixed set of collectors with its own registry and serves
// them over /metrics.
type PrometheusStats struct {
	registry *prometheus.Registry

	packetsReceived    prometheus.Counter
	packetsSent        prometheus.Counter
	packetsDropped     prometheus.Counter
	retransmits        prometheus.Counter
	connectionsOpened  prometheus.Counter
	connectionsClosed  prometheus.Counter
	openConnections    prometheus.Gauge
	openStreams        prometheus.Gauge
	rtt                *prometheus.GaugeVec
}

// NewPrometheusStats builds a PrometheusStats with all of its collectors
// registered against a fresh registry.
func NewPrometheusStats() *PrometheusStats {
	s := &PrometheusStats{
		registry: prometheus.NewRegistry(),
		packetsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gquic_packets_received_total",
			Help: "Total UDP datagrams received.",
		}),
		packetsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gquic_packets_sent_total",
			Help: "Total UDP datagrams sent.",
		}),
		packetsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gquic_packets_dropped_total",
			Help: "Total inbound datagrams dropped (undecodable, from an unexpected source address, inbox full, or rejected by the session).",
		}),
		retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gquic_retransmits_total",
			Help: "Total frames resent after a peer's ACK skipped over them.",
		}),
		connectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gquic_connections_opened_total",
			Help: "Total sessions created for a newly seen connection id.",
		}),
		connectionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gquic_connections_closed_total",
			Help: "Total sessions torn down, for any reason.",
		}),
		openConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gquic_open_connections",
			Help: "Sessions currently tracked by the endpoint.",
		}),
		openStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gquic_open_streams",
			Help: "Streams currently open across all sessions.",
		}),
		rtt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gquic_session_rtt_ms",
			Help: "Smoothed round-trip time of the most recent sample, per connection.",
		}, []string{"connection_id"}),
	}

	s.registry.MustRegister(
		s.packetsReceived, s.packetsSent, s.packetsDropped, s.retransmits,
		s.connectionsOpened, s.connectionsClosed, s.openConnections,
		s.openStreams, s.rtt,
	)
	return s
}

func (s *PrometheusStats) IncPacketsReceived()    { s.packetsReceived.Inc() }
func (s *PrometheusStats) IncPacketsSent()        { s.packetsSent.Inc() }
func (s *PrometheusStats) IncPacketsDropped()     { s.packetsDropped.Inc() }
func (s *PrometheusStats) IncRetransmits()        { s.retransmits.Inc() }
func (s *PrometheusStats) IncConnectionsOpened()  { s.connectionsOpened.Inc() }
func (s *PrometheusStats) IncConnectionsClosed()  { s.connectionsClosed.Inc() }
func (s *PrometheusStats) SetOpenConnections(n int) { s.openConnections.Set(float64(n)) }
func (s *PrometheusStats) SetOpenStreams(n int)     { s.openStreams.Set(float64(n)) }

func (s *PrometheusStats) SetRTT(connectionID string, rtt float64) {
	s.rtt.WithLabelValues(connectionID).Set(rtt)
}

// Start serves the registry's collectors over HTTP on monitoringPort,
// blocking until the listener fails.
func (s *PrometheusStats) Start(monitoringPort int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	addr := fmt.Sprintf(":%d", monitoringPort)
	log.Infof("Starting prometheus metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Failed to start metrics listener: %v", err)
	}
}
