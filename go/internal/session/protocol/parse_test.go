package protocol

import (
	"errors"
	"testing"
)

func TestParseJSONEnvelope(t *testing.T) {
	env, format, err := Parse(`{"event":"error","payload":{"message":"room full","code":"ROOM_FULL"}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if format != FormatJSON {
		t.Fatalf("format=%q, want %q", format, FormatJSON)
	}
	payload, err := ParsePayload(env)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	p, ok := payload.(ErrorPayload)
	if !ok {
		t.Fatalf("payload type %T, want ErrorPayload", payload)
	}
	if p.Message != "room full" || p.Code != "ROOM_FULL" {
		t.Fatalf("unexpected payload %+v", p)
	}
}

func TestParseNullPayload(t *testing.T) {
	env, _, err := Parse(`{"event":"game_started"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(env.Payload) != "{}" {
		t.Fatalf("payload=%s, want {}", env.Payload)
	}
	if _, err := ParsePayload(env); err != nil {
		t.Fatalf("parse payload: %v", err)
	}
}

func TestParseLegacy(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		event EventType
		check func(t *testing.T, payload interface{})
	}{
		{
			name:  "room list",
			in:    "ROOMLIST|Count:2|Room:r1,Alpha,1,4,waiting|Room:r2,Beta,4,4,playing",
			event: EventRoomList,
			check: func(t *testing.T, payload interface{}) {
				p := payload.(RoomListPayload)
				if len(p.Rooms) != 2 {
					t.Fatalf("rooms=%d, want 2", len(p.Rooms))
				}
				if p.Rooms[1].ID != "r2" || p.Rooms[1].PlayerCount != 4 || p.Rooms[1].Status != "playing" {
					t.Fatalf("unexpected room %+v", p.Rooms[1])
				}
			},
		},
		{
			name:  "gesture",
			in:    "GESTURE|DeviceID:dev-9|RoomID:r1|Gesture:attack|Confidence:0.87",
			event: EventGesture,
			check: func(t *testing.T, payload interface{}) {
				p := payload.(GesturePayload)
				if p.DeviceID != "dev-9" || p.RoomID != "r1" || p.Gesture != CardAttack || p.Confidence != 0.87 {
					t.Fatalf("unexpected gesture %+v", p)
				}
			},
		},
		{
			name:  "room update with players",
			in:    "ROOMUPDATE|RoomID:r1|Name:Alpha|Status:waiting|Player:dev-1,ann,true|Player:dev-2,bob",
			event: EventRoomUpdated,
			check: func(t *testing.T, payload interface{}) {
				p := payload.(RoomUpdatedPayload)
				if p.Room.PlayerCount != 2 || !p.Room.HasMember("dev-2", "") || !p.Room.Players[0].IsReady {
					t.Fatalf("unexpected room %+v", p.Room)
				}
			},
		},
		{
			name:  "round start cards keyed by device",
			in:    "ROUNDSTART|Round:3|Time:45|DeviceID:dev-1|Card:c1,attack,Slash|Card:c2,build,Wall",
			event: EventRoundStart,
			check: func(t *testing.T, payload interface{}) {
				p := payload.(RoundStartPayload)
				if p.RoundNumber != 3 || p.RemainingTime != 45 {
					t.Fatalf("unexpected round %+v", p)
				}
				if cards := p.Cards["dev-1"]; len(cards) != 2 || cards[1].Type != CardBuild {
					t.Fatalf("unexpected cards %+v", p.Cards)
				}
			},
		},
		{
			name:  "join confirmation",
			in:    "JOINED|RoomID:r7|Success:false|Message:room full",
			event: EventJoinRoom,
			check: func(t *testing.T, payload interface{}) {
				p := payload.(MembershipPayload)
				if p.RoomID != "r7" || p.Succeeded() || p.Message != "room full" {
					t.Fatalf("unexpected membership %+v", p)
				}
			},
		},
		{
			name:  "device command nests extra keys",
			in:    "CMD|Command:start_timer|Target:dev-1|Seconds:12",
			event: EventDeviceCommand,
			check: func(t *testing.T, payload interface{}) {
				p := payload.(DeviceCommandPayload)
				if p.Command != "start_timer" || p.TargetPlayerID != "dev-1" {
					t.Fatalf("unexpected command %+v", p)
				}
				if string(p.Details) != `{"seconds":12}` {
					t.Fatalf("details=%s", p.Details)
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env, format, err := Parse(tc.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if format != FormatLegacy {
				t.Fatalf("format=%q, want %q", format, FormatLegacy)
			}
			if env.Event != tc.event {
				t.Fatalf("event=%q, want %q", env.Event, tc.event)
			}
			payload, err := ParsePayload(env)
			if err != nil {
				t.Fatalf("parse payload: %v", err)
			}
			tc.check(t, payload)
		})
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{name: "garbage", in: "hello there", want: ErrUnrecognized},
		{name: "truncated json", in: `{"event":"room_list","payload":`, want: ErrUnrecognized},
		{name: "json without event", in: `{"payload":{}}`, want: ErrUnrecognized},
		{name: "unknown prefix", in: "WHATEVER|a:b", want: ErrUnrecognized},
		{name: "field without colon", in: "ERROR|oops", want: ErrMalformedLegacy},
		{name: "bad number", in: "ROUNDSTART|Round:three", want: ErrMalformedLegacy},
		{name: "short room row", in: "ROOMLIST|Room:r1,Alpha", want: ErrMalformedLegacy},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Parse(tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Parse(%q) err=%v, want %v", tc.in, err, tc.want)
			}
		})
	}
}

func TestEnvelopeEncodeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(EventPlayerReady, PlayerReadyPayload{DeviceID: "dev-1", RoomID: "r1", IsReady: true})
	if err != nil {
		t.Fatalf("new envelope: %v", err)
	}
	text, err := env.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, format, err := Parse(text)
	if err != nil || format != FormatJSON {
		t.Fatalf("parse back: format=%q err=%v", format, err)
	}
	payload, err := ParsePayload(back)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if p := payload.(PlayerReadyPayload); !p.IsReady || p.RoomID != "r1" {
		t.Fatalf("unexpected payload %+v", p)
	}
}
