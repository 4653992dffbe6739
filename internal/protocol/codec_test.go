package protocol

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := []Message{
		AuthRequest{PlayerID: "alice", Token: "secret"},
		AuthResponse{OK: true, Reason: ""},
		AuthResponse{OK: false, Reason: "bad token"},
		PoseUpdate{Pose: Pose{PosX: 1, PosY: 2, PosZ: 3, RotW: 1, SceneID: "s1", TimestampMs: 100}},
		RosterUpdate{Players: []RosterEntry{
			{PlayerID: "alice", Pose: Pose{PosX: 1, SceneID: "s1"}},
			{PlayerID: "bob", Pose: Pose{PosY: 2, SceneID: "s1"}},
		}},
		RosterUpdate{Players: nil},
	}

	for _, want := range cases {
		encoded := Encode(want)
		got, err := Decode(encoded)
		if err != nil {
			t.Fatalf("Decode(Encode(%#v)): %v", want, err)
		}
		// RosterUpdate contains a slice, so it cannot be compared with ==;
		// compare it field by field instead.
		if wantRoster, wantOK := want.(RosterUpdate); wantOK {
			gotRoster, gotOK := got.(RosterUpdate)
			if !gotOK {
				t.Fatalf("round trip mismatch: got %#v want %#v", got, want)
			}
			if len(gotRoster.Players) != len(wantRoster.Players) {
				t.Fatalf("roster length mismatch: got %d want %d", len(gotRoster.Players), len(wantRoster.Players))
			}
			for i := range gotRoster.Players {
				if gotRoster.Players[i] != wantRoster.Players[i] {
					t.Fatalf("roster[%d]: got %#v want %#v", i, gotRoster.Players[i], wantRoster.Players[i])
				}
			}
			continue
		}
		if got != want {
			t.Fatalf("round trip mismatch: got %#v want %#v", got, want)
		}
	}
}

func TestDecodeTruncated(t *testing.T) {
	_, err := Decode(nil)
	if err != ErrTruncated {
		t.Fatalf("got %v, want ErrTruncated", err)
	}

	full := Encode(AuthRequest{PlayerID: "alice", Token: "t"})
	for n := 0; n < len(full); n++ {
		if _, err := Decode(full[:n]); err == nil {
			t.Fatalf("Decode(truncated at %d) succeeded, want error", n)
		}
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Decode([]byte{255})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestDecodeInvalidUTF8(t *testing.T) {
	buf := []byte{byte(KindAuthRequest), 0, 2, 0xff, 0xfe}
	_, err := Decode(buf)
	if err != ErrInvalidUTF8 {
		t.Fatalf("got %v, want ErrInvalidUTF8", err)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	payload := Encode(AuthRequest{PlayerID: "alice", Token: "t"})
	var buf bytes.Buffer
	if err := WriteFrame(&buf, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("frame payload mismatch")
	}
}

func TestFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	oversized := make([]byte, MaxMessageSize+1)
	if err := WriteFrame(&buf, oversized); err != ErrTooLarge {
		t.Fatalf("WriteFrame(oversized): got %v, want ErrTooLarge", err)
	}
}

func TestReadFrameRejectsOversizedHeader(t *testing.T) {
	var buf bytes.Buffer
	var header [4]byte
	header[0] = 0xff // absurdly large length, well above MaxMessageSize
	header[1] = 0xff
	header[2] = 0xff
	header[3] = 0xff
	buf.Write(header[:])
	if _, err := ReadFrame(&buf); err != ErrTooLarge {
		t.Fatalf("ReadFrame: got %v, want ErrTooLarge", err)
	}
}
