// Package protocol implements the PICORadar wire codec: a length-delimited
// binary framing of the four application message variants exchanged
// between a Session and its peer.
package protocol

import (
	"errors"
	"fmt"
)

// Kind identifies which of the four message variants a frame carries.
type Kind uint8

const (
	KindAuthRequest  Kind = 1
	KindAuthResponse Kind = 2
	KindPoseUpdate   Kind = 3
	KindRosterUpdate Kind = 4
)

func (k Kind) String() string {
	switch k {
	case KindAuthRequest:
		return "AuthRequest"
	case KindAuthResponse:
		return "AuthResponse"
	case KindPoseUpdate:
		return "PoseUpdate"
	case KindRosterUpdate:
		return "RosterUpdate"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// MaxMessageSize is the largest encoded message the codec will accept, per
// the wire contract. Oversized inbound frames are a protocol violation.
const MaxMessageSize = 64 * 1024

// MaxPlayerIDLen bounds the player_id field on the wire, matching the
// registry's own PlayerId length limit.
const MaxPlayerIDLen = 64

var (
	// ErrTooLarge is returned by ReadFrame when the declared frame length
	// exceeds MaxMessageSize.
	ErrTooLarge = errors.New("protocol: message exceeds maximum size")
	// ErrTruncated is returned by Decode when the buffer ends before a
	// required field has been fully read.
	ErrTruncated = errors.New("protocol: truncated message")
	// ErrInvalidUTF8 is returned by Decode when a string field is not
	// valid UTF-8.
	ErrInvalidUTF8 = errors.New("protocol: invalid utf-8 in string field")
	// ErrUnknownKind is returned by Decode when the leading kind byte does
	// not match any known variant.
	ErrUnknownKind = errors.New("protocol: unknown message kind")
)

// Pose is a player's position, rotation, scene id, and timestamp at one
// instant. Numeric fields are opaque to the server: NaN is accepted on
// decode and never inspected.
type Pose struct {
	PosX, PosY, PosZ           float32
	RotX, RotY, RotZ, RotW     float32
	SceneID                    string
	TimestampMs                int64
}

// RosterEntry pairs a player id with its latest known pose.
type RosterEntry struct {
	PlayerID string
	Pose     Pose
}

// AuthRequest is sent once by the peer immediately after connecting.
type AuthRequest struct {
	PlayerID string
	Token    string
}

// AuthResponse is sent once by the server in reply to AuthRequest.
type AuthResponse struct {
	OK     bool
	Reason string
}

// PoseUpdate carries one fresh pose sample from an authenticated peer.
type PoseUpdate struct {
	Pose Pose
}

// RosterUpdate carries the full current roster snapshot from the server.
type RosterUpdate struct {
	Players []RosterEntry
}

// Message is implemented by the four wire variants.
type Message interface {
	Kind() Kind
}

func (AuthRequest) Kind() Kind  { return KindAuthRequest }
func (AuthResponse) Kind() Kind { return KindAuthResponse }
func (PoseUpdate) Kind() Kind   { return KindPoseUpdate }
func (RosterUpdate) Kind() Kind { return KindRosterUpdate }
