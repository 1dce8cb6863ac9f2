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
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// ServerConfig specifies a Server's run options.
type ServerConfig struct {
	Addr             string        `yaml:"addr"`
	MonitoringPort   int           `yaml:"monitoring_port"`
	Workers          int           `yaml:"workers"`
	MTU              int           `yaml:"mtu"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	SupportedVersion []string      `yaml:"supported_versions"`
}

// DefaultServerConfig returns the configuration a Server runs with when
// no config file is given.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:             ":6121",
		MonitoringPort:   8888,
		Workers:          4,
		MTU:              1252,
		IdleTimeout:      30 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     15 * time.Second,
		SweepInterval:    time.Second,
	}
}

// ReadConfig reads a ServerConfig from a YAML file, starting from the
// defaults so an incomplete file only overrides what it sets.
func ReadConfig(path string) (*ServerConfig, error) {
	c := DefaultServerConfig()
	cData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(cData, c); err != nil {
		return nil, err
	}

	return c, nil
}
