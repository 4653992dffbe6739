package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// Encode serializes m into its on-the-wire representation, not including
// the outer length prefix (see WriteFrame for that).
func Encode(m Message) []byte {
	switch msg := m.(type) {
	case AuthRequest:
		buf := []byte{byte(KindAuthRequest)}
		buf = appendString(buf, msg.PlayerID)
		buf = appendString(buf, msg.Token)
		return buf
	case AuthResponse:
		buf := []byte{byte(KindAuthResponse)}
		if msg.OK {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = appendString(buf, msg.Reason)
		return buf
	case PoseUpdate:
		buf := []byte{byte(KindPoseUpdate)}
		buf = appendPose(buf, msg.Pose)
		return buf
	case RosterUpdate:
		buf := []byte{byte(KindRosterUpdate)}
		var countBuf [4]byte
		binary.BigEndian.PutUint32(countBuf[:], uint32(len(msg.Players)))
		buf = append(buf, countBuf[:]...)
		for _, entry := range msg.Players {
			buf = appendString(buf, entry.PlayerID)
			buf = appendPose(buf, entry.Pose)
		}
		return buf
	default:
		panic(fmt.Sprintf("protocol: Encode called on unregistered message type %T", m))
	}
}

// Decode parses a wire payload (without its length prefix) into a Message.
func Decode(data []byte) (Message, error) {
	if len(data) < 1 {
		return nil, ErrTruncated
	}
	kind := Kind(data[0])
	rest := data[1:]
	switch kind {
	case KindAuthRequest:
		playerID, rest, err := readString(rest, MaxPlayerIDLen)
		if err != nil {
			return nil, err
		}
		token, _, err := readString(rest, MaxMessageSize)
		if err != nil {
			return nil, err
		}
		return AuthRequest{PlayerID: playerID, Token: token}, nil
	case KindAuthResponse:
		if len(rest) < 1 {
			return nil, ErrTruncated
		}
		ok := rest[0] != 0
		reason, _, err := readString(rest[1:], MaxMessageSize)
		if err != nil {
			return nil, err
		}
		return AuthResponse{OK: ok, Reason: reason}, nil
	case KindPoseUpdate:
		pose, _, err := readPose(rest)
		if err != nil {
			return nil, err
		}
		return PoseUpdate{Pose: pose}, nil
	case KindRosterUpdate:
		if len(rest) < 4 {
			return nil, ErrTruncated
		}
		count := binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
		entries := make([]RosterEntry, 0, count)
		for i := uint32(0); i < count; i++ {
			var (
				playerID string
				pose     Pose
				err      error
			)
			playerID, rest, err = readString(rest, MaxPlayerIDLen)
			if err != nil {
				return nil, err
			}
			pose, rest, err = readPose(rest)
			if err != nil {
				return nil, err
			}
			entries = append(entries, RosterEntry{PlayerID: playerID, Pose: pose})
		}
		return RosterUpdate{Players: entries}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
}

func appendString(buf []byte, s string) []byte {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(s)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, s...)
}

func readString(data []byte, maxLen int) (string, []byte, error) {
	if len(data) < 2 {
		return "", nil, ErrTruncated
	}
	n := int(binary.BigEndian.Uint16(data[:2]))
	data = data[2:]
	if len(data) < n {
		return "", nil, ErrTruncated
	}
	if n > maxLen {
		return "", nil, fmt.Errorf("protocol: string field exceeds %d bytes", maxLen)
	}
	s := string(data[:n])
	if !utf8.ValidString(s) {
		return "", nil, ErrInvalidUTF8
	}
	return s, data[n:], nil
}

func appendPose(buf []byte, p Pose) []byte {
	var f [4]byte
	putF32 := func(v float32) {
		binary.BigEndian.PutUint32(f[:], math.Float32bits(v))
		buf = append(buf, f[:]...)
	}
	putF32(p.PosX)
	putF32(p.PosY)
	putF32(p.PosZ)
	putF32(p.RotX)
	putF32(p.RotY)
	putF32(p.RotZ)
	putF32(p.RotW)
	buf = appendString(buf, p.SceneID)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(p.TimestampMs))
	buf = append(buf, ts[:]...)
	return buf
}

func readPose(data []byte) (Pose, []byte, error) {
	const numFieldsLen = 7 * 4
	if len(data) < numFieldsLen {
		return Pose{}, nil, ErrTruncated
	}
	readF32 := func() float32 {
		v := math.Float32frombits(binary.BigEndian.Uint32(data[:4]))
		data = data[4:]
		return v
	}
	var p Pose
	p.PosX = readF32()
	p.PosY = readF32()
	p.PosZ = readF32()
	p.RotX = readF32()
	p.RotY = readF32()
	p.RotZ = readF32()
	p.RotW = readF32()

	sceneID, rest, err := readString(data, MaxMessageSize)
	if err != nil {
		return Pose{}, nil, err
	}
	p.SceneID = sceneID
	data = rest

	if len(data) < 8 {
		return Pose{}, nil, ErrTruncated
	}
	p.TimestampMs = int64(binary.BigEndian.Uint64(data[:8]))
	data = data[8:]

	return p, data, nil
}
