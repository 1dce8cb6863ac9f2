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
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/gquic/quicnet"
	"github.com/facebook/gquic/quicstream"
	"github.com/facebook/gquic/session"
	"github.com/facebook/gquic/wire"
)

var requestTimeout time.Duration
var requestBody string

func init() {
	RootCmd.AddCommand(requestCmd)
	requestCmd.Flags().DurationVarP(&requestTimeout, "timeout", "w", 5*time.Second, "how long to wait for a response")
	requestCmd.Flags().StringVarP(&requestBody, "data", "d", "ping", "payload to send on the opened stream")
}

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Open a stream to a gQUIC server, write data, and print the echoed response",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if rootTargetFlag == "" {
			log.Fatal("--target is required")
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		cl, err := quicnet.Dial(ctx, "")
		if err != nil {
			log.Fatalf("dialing: %v", err)
		}
		defer cl.Close()

		opened := make(chan struct{})
		var stream *quicstream.Stream
		var sess *session.Session
		sess, err = cl.Connect(rootTargetFlag, session.Handlers{
			OnOpen: func() {
				stream = sess.OpenStream()
				close(opened)
			},
		}, []wire.Frame{})
		if err != nil {
			log.Fatalf("connecting: %v", err)
		}

		go func() { _ = cl.Run(ctx, 20*time.Millisecond) }()

		select {
		case <-opened:
		case <-ctx.Done():
			log.Fatalf("timed out waiting for %s to open", rootTargetFlag)
		}

		if _, err := stream.Write([]byte(requestBody)); err != nil {
			log.Fatalf("writing request: %v", err)
		}
		stream.End()
		if err := sess.FlushStream(stream); err != nil {
			log.Fatalf("sending request: %v", err)
		}

		buf := make([]byte, 4096)
		n, err := stream.Read(buf)
		if err != nil && err != io.EOF {
			log.Fatalf("reading response: %v", err)
		}
		fmt.Printf("%s\n", buf[:n])
	},
}
