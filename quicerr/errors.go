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

import "fmt"

// Code is a 32-bit gQUIC error code. On the wire it is always encoded
// little-endian, unlike the other Q039 fields (packet number, stream id,
// offset) which are big-endian - this asymmetry matches the reference
// implementation and must be preserved.
type Code uint32

// Connection-level error codes.
const (
	NoError                           Code = 0
	InternalError                     Code = 1
	StreamDataAfterTermination        Code = 2
	InvalidPacketHeader               Code = 3
	InvalidFrameData                  Code = 4
	InvalidStreamData                 Code = 5
	OverlappingStreamData             Code = 6
	InvalidRstStreamData              Code = 7
	InvalidConnectionCloseData        Code = 8
	InvalidGoAwayData                 Code = 9
	InvalidWindowUpdateData           Code = 10
	InvalidBlockedData                Code = 11
	InvalidStopWaitingData            Code = 12
	InvalidAckData                    Code = 13
	InvalidVersionNegotiationPacket   Code = 14
	InvalidPublicRstPacket            Code = 15
	DecryptionFailure                 Code = 16
	EncryptionFailure                 Code = 17
	PacketTooLarge                    Code = 18
	PeerGoingAway                     Code = 19
	InvalidStreamID                   Code = 20
	TooManyOpenStreams                Code = 21
	PublicReset                       Code = 22
	InvalidVersion                    Code = 23
	InvalidHeaderID                   Code = 24
	DecompressionFailure              Code = 25
	NetworkIdleTimeout                Code = 26
	HandshakeTimeout                  Code = 27
	ErrorMigratingAddress             Code = 28
	PacketWriteError                  Code = 29
	PacketReadError                   Code = 30
	EmptyStreamFrameNoFin             Code = 31
	FlowControlReceivedTooMuchData    Code = 32
	FlowControlSentTooMuchData        Code = 33
	FlowControlInvalidWindow          Code = 34
	ConnectionIPPooled                Code = 35
	TooManyOutstandingSentPackets     Code = 36
	TooManyOutstandingReceivedPackets Code = 37
	ConnectionCancelled               Code = 38
	BadMultipathFlag                  Code = 39
	TooManyAvailableStreams           Code = 40
	PublicResetPostHandshake          Code = 41
	TimeoutConnectionMigration        Code = 42
	VersionNegotiationMismatch        Code = 43
	NoOverlappingVersion              Code = 44

	// LastError is the upper bound of the connection-level code space
	// reserved by the wire format.
	LastError Code = 98
)

// InvalidErrorCode is the sentinel returned when decoding an unrecognized
// numeric code; Name() still returns a string that preserves the value.
const InvalidErrorCode Code = 1<<32 - 1

var codeNames = map[Code]string{
	NoError:                           "QUIC_NO_ERROR",
	InternalError:                     "QUIC_INTERNAL_ERROR",
	StreamDataAfterTermination:        "QUIC_STREAM_DATA_AFTER_TERMINATION",
	InvalidPacketHeader:               "QUIC_INVALID_PACKET_HEADER",
	InvalidFrameData:                  "QUIC_INVALID_FRAME_DATA",
	InvalidStreamData:                 "QUIC_INVALID_STREAM_DATA",
	OverlappingStreamData:             "QUIC_OVERLAPPING_STREAM_DATA",
	InvalidRstStreamData:              "QUIC_INVALID_RST_STREAM_DATA",
	InvalidConnectionCloseData:        "QUIC_INVALID_CONNECTION_CLOSE_DATA",
	InvalidGoAwayData:                 "QUIC_INVALID_GOAWAY_DATA",
	InvalidWindowUpdateData:           "QUIC_INVALID_WINDOW_UPDATE_DATA",
	InvalidBlockedData:                "QUIC_INVALID_BLOCKED_DATA",
	InvalidStopWaitingData:            "QUIC_INVALID_STOP_WAITING_DATA",
	InvalidAckData:                    "QUIC_INVALID_ACK_DATA",
	InvalidVersionNegotiationPacket:   "QUIC_INVALID_VERSION_NEGOTIATION_PACKET",
	InvalidPublicRstPacket:            "QUIC_INVALID_PUBLIC_RST_PACKET",
	DecryptionFailure:                 "QUIC_DECRYPTION_FAILURE",
	EncryptionFailure:                 "QUIC_ENCRYPTION_FAILURE",
	PacketTooLarge:                    "QUIC_PACKET_TOO_LARGE",
	PeerGoingAway:                     "QUIC_PEER_GOING_AWAY",
	InvalidStreamID:                   "QUIC_INVALID_STREAM_ID",
	TooManyOpenStreams:                "QUIC_TOO_MANY_OPEN_STREAMS",
	PublicReset:                       "QUIC_PUBLIC_RESET",
	InvalidVersion:                    "QUIC_INVALID_VERSION",
	InvalidHeaderID:                   "QUIC_INVALID_HEADER_ID",
	DecompressionFailure:              "QUIC_DECOMPRESSION_FAILURE",
	NetworkIdleTimeout:                "QUIC_NETWORK_IDLE_TIMEOUT",
	HandshakeTimeout:                  "QUIC_HANDSHAKE_TIMEOUT",
	ErrorMigratingAddress:             "QUIC_ERROR_MIGRATING_ADDRESS",
	PacketWriteError:                  "QUIC_PACKET_WRITE_ERROR",
	PacketReadError:                   "QUIC_PACKET_READ_ERROR",
	EmptyStreamFrameNoFin:             "QUIC_EMPTY_STREAM_FRAME_NO_FIN",
	FlowControlReceivedTooMuchData:    "QUIC_FLOW_CONTROL_RECEIVED_TOO_MUCH_DATA",
	FlowControlSentTooMuchData:        "QUIC_FLOW_CONTROL_SENT_TOO_MUCH_DATA",
	FlowControlInvalidWindow:          "QUIC_FLOW_CONTROL_INVALID_WINDOW",
	ConnectionIPPooled:                "QUIC_CONNECTION_IP_POOLED",
	TooManyOutstandingSentPackets:     "QUIC_TOO_MANY_OUTSTANDING_SENT_PACKETS",
	TooManyOutstandingReceivedPackets: "QUIC_TOO_MANY_OUTSTANDING_RECEIVED_PACKETS",
	ConnectionCancelled:               "QUIC_CONNECTION_CANCELLED",
	BadMultipathFlag:                  "QUIC_BAD_MULTIPATH_FLAG",
	TooManyAvailableStreams:           "QUIC_TOO_MANY_AVAILABLE_STREAMS",
	PublicResetPostHandshake:          "QUIC_PUBLIC_RESET_POST_HANDSHAKE",
	TimeoutConnectionMigration:        "QUIC_TIMEOUT_CONNECTION_MIGRATION",
	VersionNegotiationMismatch:        "QUIC_VERSION_NEGOTIATION_MISMATCH",
	NoOverlappingVersion:              "QUIC_NO_OVERLAPPING_VERSION",
	LastError:                         "QUIC_LAST_ERROR",
}

// Name returns the registered name of c, or a sentinel that still
// preserves the numeric value for an unrecognized code.
func (c Code) Name() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("INVALID_ERROR_CODE(%d)", uint32(c))
}

func (c Code) String() string {
	return c.Name()
}

// StreamCode is a stream-level error code, carried in RST_STREAM frames.
type StreamCode uint32

// Stream-level error codes.
const (
	StreamNoError                 StreamCode = 0
	StreamErrorProcessing         StreamCode = 1
	StreamNoFinError              StreamCode = 2
	StreamPeerGoingAway           StreamCode = 3
	StreamCancelled               StreamCode = 4
	StreamRstAcknowledgement      StreamCode = 5
	StreamConnectionError         StreamCode = 6
	StreamFlowControlAccounting   StreamCode = 7
	StreamUnauthorized            StreamCode = 8
	StreamCompressionFailure      StreamCode = 9
	StreamSpdyError               StreamCode = 10
	StreamConnectError            StreamCode = 11
	StreamDataAfterTerminationErr StreamCode = 12
	StreamResponseInterrupted     StreamCode = 13
	StreamServerPushCancelled     StreamCode = 14
	StreamLastErrorLess           StreamCode = 15
	// StreamLastError is the upper bound of the stream-level code space.
	StreamLastError StreamCode = 16
)

var streamCodeNames = map[StreamCode]string{
	StreamNoError:                 "QUIC_STREAM_NO_ERROR",
	StreamErrorProcessing:         "QUIC_STREAM_ERROR_PROCESSING",
	StreamNoFinError:              "QUIC_STREAM_NO_FIN_ERROR",
	StreamPeerGoingAway:           "QUIC_STREAM_PEER_GOING_AWAY",
	StreamCancelled:               "QUIC_STREAM_CANCELLED",
	StreamRstAcknowledgement:      "QUIC_RST_ACKNOWLEDGEMENT",
	StreamConnectionError:         "QUIC_STREAM_CONNECTION_ERROR",
	StreamFlowControlAccounting:   "QUIC_STREAM_FLOW_CONTROL_ACCOUNTING",
	StreamUnauthorized:            "QUIC_STREAM_UNAUTHORIZED",
	StreamCompressionFailure:      "QUIC_STREAM_COMPRESSION_FAILURE",
	StreamSpdyError:               "QUIC_STREAM_SPDY_ERROR",
	StreamConnectError:            "QUIC_STREAM_CONNECT_ERROR",
	StreamDataAfterTerminationErr: "QUIC_STREAM_DATA_AFTER_TERMINATION",
	StreamResponseInterrupted:     "QUIC_STREAM_RESPONSE_INTERRUPTED",
	StreamServerPushCancelled:     "QUIC_STREAM_SERVER_PUSH_CANCELLED",
	StreamLastError:               "QUIC_STREAM_LAST_ERROR",
}

// Name returns the registered name of c, or a sentinel that preserves the
// numeric value for an unrecognized code.
func (c StreamCode) Name() string {
	if name, ok := streamCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("INVALID_ERROR_CODE(%d)", uint32(c))
}

func (c StreamCode) String() string {
	return c.Name()
}

// Error is a connection- or stream-level failure carrying a code and a
// human-readable reason, as serialized in CONNECTION_CLOSE and GOAWAY
// frames.
type Error struct {
	Code   Code
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Code.Name()
	}
	return fmt.Sprintf("%s: %s", e.Code.Name(), e.Reason)
}

// New builds an Error.
func New(code Code, reason string) *Error {
	return &Error{Code: code, Reason: reason}
}

// StreamError is an RST_STREAM failure: a stream-level code plus the
// offset at which the stream was aborted.
type StreamError struct {
	Code   StreamCode
	Offset uint64
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s at offset %d", e.Code.Name(), e.Offset)
}

// NewStream builds a StreamError.
func NewStream(code StreamCode, offset uint64) *StreamError {
	return &StreamError{Code: code, Offset: offset}
}
