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

package quicerr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeNameKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "QUIC_NO_ERROR", NoError.Name())
	assert.Equal(t, "QUIC_NETWORK_IDLE_TIMEOUT", NetworkIdleTimeout.Name())
	assert.Equal(t, "INVALID_ERROR_CODE(4294967295)", InvalidErrorCode.Name())

	unknown := Code(999999)
	assert.Contains(t, unknown.Name(), "INVALID_ERROR_CODE")
}

func TestStreamCodeNameKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "QUIC_STREAM_NO_ERROR", StreamNoError.Name())
	assert.Equal(t, "QUIC_STREAM_CANCELLED", StreamCancelled.Name())

	unknown := StreamCode(999)
	assert.Contains(t, unknown.Name(), "INVALID_ERROR_CODE")
}

func TestErrorMessage(t *testing.T) {
	e := New(HandshakeTimeout, "")
	assert.Equal(t, "QUIC_HANDSHAKE_TIMEOUT", e.Error())

	e2 := New(InvalidStreamData, "bad offset")
	assert.Equal(t, "QUIC_INVALID_STREAM_DATA: bad offset", e2.Error())
}

func TestStreamErrorMessage(t *testing.T) {
	e := NewStream(StreamCancelled, 4096)
	assert.Equal(t, "QUIC_STREAM_CANCELLED at offset 4096", e.Error())
}

func TestLastErrorBounds(t *testing.T) {
	assert.Equal(t, Code(98), LastError)
	assert.Equal(t, StreamCode(16), StreamLastError)
}
