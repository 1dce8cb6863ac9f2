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
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/gquic/quicnet"
	"github.com/facebook/gquic/session"
	"github.com/facebook/gquic/wire"
)

var pingTimeout time.Duration

func init() {
	RootCmd.AddCommand(pingCmd)
	pingCmd.Flags().DurationVarP(&pingTimeout, "timeout", "w", 5*time.Second, "how long to wait for the round trip to complete")
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure round-trip time to a gQUIC server",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if rootTargetFlag == "" {
			log.Fatal("--target is required")
		}

		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()

		cl, err := quicnet.Dial(ctx, "")
		if err != nil {
			log.Fatalf("dialing: %v", err)
		}
		defer cl.Close()

		done := make(chan struct{})
		sess, err := cl.Connect(rootTargetFlag, session.Handlers{
			OnOpen: func() { close(done) },
		}, []wire.Frame{&wire.PingFrame{}})
		if err != nil {
			log.Fatalf("connecting: %v", err)
		}

		go func() { _ = cl.Run(ctx, 20*time.Millisecond) }()

		select {
		case <-done:
		case <-ctx.Done():
			log.Fatalf("timed out waiting for %s to respond", rootTargetFlag)
		}

		deadline := time.Now().Add(pingTimeout)
		for sess.SmoothedRTT() == 0 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		fmt.Printf("gquic ping %s: rtt=%s\n", rootTargetFlag, sess.SmoothedRTT())
	},
}
