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

package cmd

import (
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var statsMonitoringPort int

func init() {
	RootCmd.AddCommand(statsCmd)
	statsCmd.Flags().IntVarP(&statsMonitoringPort, "monitoringport", "p", 8888, "monitoring port gquicd serves /metrics on")
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print a gquicd server's prometheus metrics",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if rootTargetFlag == "" {
			log.Fatal("--target is required")
		}

		url := fmt.Sprintf("http://%s:%d/metrics", hostOnly(rootTargetFlag), statsMonitoringPort)
		resp, err := http.Get(url)
		if err != nil {
			log.Fatalf("fetching %s: %v", url, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			log.Fatalf("reading response: %v", err)
		}
		fmt.Print(string(body))
	},
}
