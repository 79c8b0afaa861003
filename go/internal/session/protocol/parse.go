package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

var (
	// ErrUnrecognized is returned when text is neither a JSON envelope nor a
	// known legacy frame.
	ErrUnrecognized = errors.New("unrecognized message format")
	// ErrMalformedLegacy is returned for a legacy frame with a known prefix but
	// an unparseable field.
	ErrMalformedLegacy = errors.New("malformed legacy message")
)

// Format identifies which parser produced an envelope.
type Format string

const (
	FormatJSON   Format = "json"
	FormatLegacy Format = "legacy"
)

var emptyPayload = json.RawMessage("{}")

// Parse decodes an inbound frame. Structured JSON envelopes are tried first;
// on failure the legacy PREFIX|key:value format is attempted.
func Parse(text string) (Envelope, Format, error) {
	env, jsonErr := parseJSON(text)
	if jsonErr == nil {
		return env, FormatJSON, nil
	}

	env, err := parseLegacy(text)
	if err != nil {
		return Envelope{}, "", fmt.Errorf("%w (json: %v)", err, jsonErr)
	}
	return env, FormatLegacy, nil
}

func parseJSON(text string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, errors.New("envelope has no event")
	}
	if len(env.Payload) == 0 || bytes.Equal(env.Payload, []byte("null")) {
		env.Payload = emptyPayload
	}
	return env, nil
}

// legacyPrefixes maps the frame prefixes used by older firmware onto events.
var legacyPrefixes = map[string]EventType{
	"ROOMLIST":    EventRoomList,
	"ROOMUPDATE":  EventRoomUpdated,
	"JOINED":      EventJoinRoom,
	"LEFT":        EventLeaveRoom,
	"READY":       EventPlayerReady,
	"ROUNDSTART":  EventRoundStart,
	"ROUNDEND":    EventRoundEnd,
	"GAMESTART":   EventGameStarting,
	"GAMESTARTED": EventGameStarted,
	"GAMEEND":     EventGameEnded,
	"GESTURE":     EventGesture,
	"ERROR":       EventError,
	"CMD":         EventDeviceCommand,
}

// legacyKeys renames legacy field keys to their JSON names.
var legacyKeys = map[string]string{
	"DEVICEID":   "deviceId",
	"ROOMID":     "roomId",
	"PLAYERNAME": "playerName",
	"NAME":       "name",
	"MESSAGE":    "message",
	"CODE":       "code",
	"ROUND":      "roundNumber",
	"TIME":       "remainingTime",
	"GESTURE":    "gesture",
	"CONFIDENCE": "confidence",
	"WINNER":     "winner",
	"SUMMARY":    "summary",
	"SUCCESS":    "success",
	"READY":      "isReady",
	"COMMAND":    "command",
	"TARGET":     "targetPlayerId",
	"COUNTDOWN":  "countdown",
	"CARDID":     "cardId",
}

var (
	legacyIntKeys   = map[string]bool{"roundNumber": true, "remainingTime": true, "countdown": true, "seconds": true}
	legacyFloatKeys = map[string]bool{"confidence": true}
	legacyBoolKeys  = map[string]bool{"success": true, "isReady": true}
)

type legacyField struct {
	key   string
	value string
}

func parseLegacy(text string) (Envelope, error) {
	parts := strings.Split(strings.TrimSpace(text), "|")
	event, ok := legacyPrefixes[strings.ToUpper(strings.TrimSpace(parts[0]))]
	if !ok {
		return Envelope{}, ErrUnrecognized
	}

	fields := make([]legacyField, 0, len(parts)-1)
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, ":")
		if !found {
			return Envelope{}, fmt.Errorf("%w: field %q has no value", ErrMalformedLegacy, part)
		}
		fields = append(fields, legacyField{key: strings.TrimSpace(key), value: strings.TrimSpace(value)})
	}

	var (
		payload map[string]interface{}
		err     error
	)
	switch event {
	case EventRoomList:
		payload, err = legacyRoomList(fields)
	case EventRoomUpdated:
		payload, err = legacyRoomUpdate(fields)
	case EventRoundStart:
		payload, err = legacyRoundStart(fields)
	case EventDeviceCommand:
		payload, err = legacyCommand(fields)
	default:
		payload, err = legacyFlat(fields)
	}
	if err != nil {
		return Envelope{}, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal legacy payload: %w", err)
	}
	return Envelope{Event: event, Payload: data}, nil
}

// legacyFlat converts key:value fields into a flat payload map.
func legacyFlat(fields []legacyField) (map[string]interface{}, error) {
	payload := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		name := legacyKeyName(f.key)
		value, err := legacyValue(name, f.value)
		if err != nil {
			return nil, err
		}
		payload[name] = value
	}
	return payload, nil
}

func legacyKeyName(key string) string {
	if name, ok := legacyKeys[strings.ToUpper(key)]; ok {
		return name
	}
	r := []rune(key)
	if len(r) > 0 {
		r[0] = unicode.ToLower(r[0])
	}
	return string(r)
}

func legacyValue(name, raw string) (interface{}, error) {
	switch {
	case legacyIntKeys[name]:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q is not an integer", ErrMalformedLegacy, name, raw)
		}
		return n, nil
	case legacyFloatKeys[name]:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q is not a number", ErrMalformedLegacy, name, raw)
		}
		return f, nil
	case legacyBoolKeys[name]:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q is not a boolean", ErrMalformedLegacy, name, raw)
		}
		return b, nil
	}
	return raw, nil
}

// legacyRoom parses "id,name,count,max,status".
func legacyRoom(raw string) (Room, error) {
	cols := strings.Split(raw, ",")
	if len(cols) != 5 {
		return Room{}, fmt.Errorf("%w: room %q needs 5 columns", ErrMalformedLegacy, raw)
	}
	count, err := strconv.Atoi(strings.TrimSpace(cols[2]))
	if err != nil {
		return Room{}, fmt.Errorf("%w: room player count %q", ErrMalformedLegacy, cols[2])
	}
	maxPlayers, err := strconv.Atoi(strings.TrimSpace(cols[3]))
	if err != nil {
		return Room{}, fmt.Errorf("%w: room max players %q", ErrMalformedLegacy, cols[3])
	}
	return Room{
		ID:          strings.TrimSpace(cols[0]),
		Name:        strings.TrimSpace(cols[1]),
		PlayerCount: count,
		MaxPlayers:  maxPlayers,
		Status:      strings.TrimSpace(cols[4]),
	}, nil
}

// legacyPlayer parses "id,name,ready".
func legacyPlayer(raw string) (Player, error) {
	cols := strings.Split(raw, ",")
	if len(cols) < 2 {
		return Player{}, fmt.Errorf("%w: player %q needs id and name", ErrMalformedLegacy, raw)
	}
	p := Player{ID: strings.TrimSpace(cols[0]), Name: strings.TrimSpace(cols[1]), Connected: true}
	if len(cols) > 2 {
		ready, err := strconv.ParseBool(strings.TrimSpace(cols[2]))
		if err != nil {
			return Player{}, fmt.Errorf("%w: player ready flag %q", ErrMalformedLegacy, cols[2])
		}
		p.IsReady = ready
	}
	return p, nil
}

// legacyCard parses "id,type,name".
func legacyCard(raw string) (Card, error) {
	cols := strings.Split(raw, ",")
	if len(cols) < 2 {
		return Card{}, fmt.Errorf("%w: card %q needs id and type", ErrMalformedLegacy, raw)
	}
	c := Card{ID: strings.TrimSpace(cols[0]), Type: CardType(strings.ToLower(strings.TrimSpace(cols[1])))}
	if len(cols) > 2 {
		c.Name = strings.TrimSpace(cols[2])
	}
	return c, nil
}

func legacyRoomList(fields []legacyField) (map[string]interface{}, error) {
	rooms := make([]Room, 0, len(fields))
	for _, f := range fields {
		if !strings.EqualFold(f.key, "Room") {
			continue
		}
		room, err := legacyRoom(f.value)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return map[string]interface{}{"rooms": rooms}, nil
}

func legacyRoomUpdate(fields []legacyField) (map[string]interface{}, error) {
	var room Room
	for _, f := range fields {
		var err error
		switch strings.ToUpper(f.key) {
		case "ROOMID":
			room.ID = f.value
		case "NAME":
			room.Name = f.value
		case "STATUS":
			room.Status = f.value
		case "COUNT":
			room.PlayerCount, err = strconv.Atoi(f.value)
		case "MAX":
			room.MaxPlayers, err = strconv.Atoi(f.value)
		case "PLAYER":
			var p Player
			p, err = legacyPlayer(f.value)
			room.Players = append(room.Players, p)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: room update field %s", ErrMalformedLegacy, f.key)
		}
	}
	if room.PlayerCount == 0 {
		room.PlayerCount = len(room.Players)
	}
	return map[string]interface{}{"room": room}, nil
}

func legacyRoundStart(fields []legacyField) (map[string]interface{}, error) {
	payload := map[string]interface{}{}
	var (
		deviceID string
		cards    []Card
	)
	for _, f := range fields {
		switch strings.ToUpper(f.key) {
		case "DEVICEID":
			deviceID = f.value
		case "CARD":
			card, err := legacyCard(f.value)
			if err != nil {
				return nil, err
			}
			cards = append(cards, card)
		default:
			name := legacyKeyName(f.key)
			value, err := legacyValue(name, f.value)
			if err != nil {
				return nil, err
			}
			payload[name] = value
		}
	}
	if deviceID != "" && len(cards) > 0 {
		payload["cards"] = map[string][]Card{deviceID: cards}
	}
	return payload, nil
}

// legacyCommand keeps command and target at the top level and nests every
// other key under details.
func legacyCommand(fields []legacyField) (map[string]interface{}, error) {
	payload := map[string]interface{}{}
	details := map[string]interface{}{}
	var cards []Card
	for _, f := range fields {
		if strings.EqualFold(f.key, "Card") {
			card, err := legacyCard(f.value)
			if err != nil {
				return nil, err
			}
			cards = append(cards, card)
			continue
		}
		name := legacyKeyName(f.key)
		value, err := legacyValue(name, f.value)
		if err != nil {
			return nil, err
		}
		switch name {
		case "command", "targetPlayerId":
			payload[name] = value
		default:
			details[name] = value
		}
	}
	if len(cards) > 0 {
		payload["cards"] = cards
	}
	if len(details) > 0 {
		payload["details"] = details
	}
	return payload, nil
}
