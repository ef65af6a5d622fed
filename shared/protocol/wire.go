package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/automoto/krazykarts-mp/shared/kart"
	"github.com/automoto/krazykarts-mp/shared/messages"
	"github.com/automoto/krazykarts-mp/shared/netconfig"
	"github.com/go-gl/mathgl/mgl64"
	"google.golang.org/protobuf/encoding/protowire"
)

// Kind identifies the message inside a packet.
type Kind uint64

const (
	KindJoinRequest  Kind = 1
	KindJoinAccepted Kind = 2
	KindJoinRejected Kind = 3
	KindSubmitMove   Kind = 4
	KindStateUpdate  Kind = 5
)

var (
	ErrUnknownKind   = errors.New("unknown message kind")
	ErrMalformed     = errors.New("malformed packet")
	ErrFrameTooLarge = errors.New("frame exceeds max packet size")
)

// Packet layout: field 1 = kind (varint), field 2 = body (bytes).
const (
	fieldKind protowire.Number = 1
	fieldBody protowire.Number = 2
)

// Encode serialises one of the messages package types into a packet.
func Encode(msg any) ([]byte, error) {
	var kind Kind
	var body []byte

	switch m := msg.(type) {
	case messages.JoinRequest:
		kind, body = KindJoinRequest, appendJoinRequest(nil, m)
	case messages.JoinAccepted:
		kind, body = KindJoinAccepted, appendJoinAccepted(nil, m)
	case messages.JoinRejected:
		kind, body = KindJoinRejected, appendString(nil, 1, m.Reason)
	case messages.SubmitMove:
		kind, body = KindSubmitMove, appendSubmitMove(nil, m)
	case messages.StateUpdate:
		kind, body = KindStateUpdate, appendStateUpdate(nil, m)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, msg)
	}

	b := protowire.AppendTag(nil, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(kind))
	b = appendMessage(b, fieldBody, body)
	return b, nil
}

// Decode parses a packet produced by Encode. The result is a value of one of
// the messages package types.
func Decode(b []byte) (any, error) {
	var kind Kind
	var body []byte
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == fieldKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			kind = Kind(v)
			return n
		case num == fieldBody && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			body = v
			return n
		}
		return 0
	})
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindJoinRequest:
		return decodeJoinRequest(body)
	case KindJoinAccepted:
		return decodeJoinAccepted(body)
	case KindJoinRejected:
		var m messages.JoinRejected
		err := consumeFields(body, func(num protowire.Number, typ protowire.Type, b []byte) int {
			if num == 1 && typ == protowire.BytesType {
				return consumeString(b, &m.Reason)
			}
			return 0
		})
		return m, err
	case KindSubmitMove:
		return decodeSubmitMove(body)
	case KindStateUpdate:
		return decodeStateUpdate(body)
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
}

// WriteFrame writes payload with a 4-byte big-endian length prefix.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > netconfig.MaxPacketSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)
	_, err := w.Write(frame)
	return err
}

// ReadFrame reads one frame written by WriteFrame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > netconfig.MaxPacketSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return payload, nil
}

// --- encoding ---

func appendMessage(b []byte, num protowire.Number, body []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendVec3(b []byte, num protowire.Number, v mgl64.Vec3) []byte {
	var body []byte
	for i := range 3 {
		body = appendDouble(body, protowire.Number(i+1), v[i])
	}
	return appendMessage(b, num, body)
}

func appendQuat(b []byte, num protowire.Number, q mgl64.Quat) []byte {
	body := appendDouble(nil, 1, q.W)
	body = appendVec3(body, 2, q.V)
	return appendMessage(b, num, body)
}

func appendTransform(b []byte, num protowire.Number, t kart.Transform) []byte {
	body := appendVec3(nil, 1, t.Position)
	body = appendQuat(body, 2, t.Orientation)
	return appendMessage(b, num, body)
}

func appendMove(b []byte, num protowire.Number, m kart.Move) []byte {
	body := appendFloat(nil, 1, m.Throttle)
	body = appendFloat(body, 2, m.Steering)
	body = appendFloat(body, 3, m.DeltaTime)
	body = appendFloat(body, 4, m.Timestamp)
	return appendMessage(b, num, body)
}

func appendVehicleState(b []byte, num protowire.Number, s messages.VehicleState) []byte {
	body := appendMove(nil, 1, s.LastMove)
	body = appendTransform(body, 2, s.Transform)
	body = appendVec3(body, 3, s.Velocity)
	return appendMessage(b, num, body)
}

func appendConstants(b []byte, num protowire.Number, c kart.Constants) []byte {
	body := appendDouble(nil, 1, c.Mass)
	body = appendDouble(body, 2, c.MaxDrivingForce)
	body = appendDouble(body, 3, c.DragCoefficient)
	body = appendDouble(body, 4, c.RollingResistanceCoefficient)
	body = appendDouble(body, 5, c.MinTurningRadius)
	return appendMessage(b, num, body)
}

func appendJoinRequest(b []byte, m messages.JoinRequest) []byte {
	b = appendString(b, 1, m.Version)
	b = appendString(b, 2, m.PlayerName)
	return appendString(b, 3, m.ReconnectToken)
}

func appendJoinAccepted(b []byte, m messages.JoinAccepted) []byte {
	b = appendVarint(b, 1, uint64(m.VehicleID))
	b = appendString(b, 2, m.ReconnectToken)
	b = appendString(b, 3, m.ServerName)
	b = appendVarint(b, 4, uint64(m.TickRate))
	b = appendDouble(b, 5, m.Gravity)
	b = appendConstants(b, 6, m.Constants)
	b = appendTransform(b, 7, m.Spawn)
	return appendString(b, 8, m.Track)
}

func appendSubmitMove(b []byte, m messages.SubmitMove) []byte {
	b = appendVarint(b, 1, uint64(m.VehicleID))
	return appendMove(b, 2, m.Move)
}

func appendStateUpdate(b []byte, m messages.StateUpdate) []byte {
	b = appendVarint(b, 1, uint64(m.VehicleID))
	return appendVehicleState(b, 2, m.State)
}

// --- decoding ---

// fieldFunc consumes the value of one field and returns its length, a
// negative protowire error code, or 0 to skip the field.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) int

func consumeFields(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		m := fn(num, typ, b)
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return fmt.Errorf("%w: field %d: %w", ErrMalformed, num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

func consumeString(b []byte, dst *string) int {
	v, n := protowire.ConsumeString(b)
	*dst = v
	return n
}

func consumeDouble(b []byte, dst *float64) int {
	v, n := protowire.ConsumeFixed64(b)
	*dst = math.Float64frombits(v)
	return n
}

func consumeFloat(b []byte, dst *float32) int {
	v, n := protowire.ConsumeFixed32(b)
	*dst = math.Float32frombits(v)
	return n
}

func consumeUint32(b []byte, dst *uint32) int {
	v, n := protowire.ConsumeVarint(b)
	*dst = uint32(v)
	return n
}

// consumeMessage hands the body of a nested message to decode.
func consumeMessage(b []byte, decode func([]byte) error, errp *error) int {
	body, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return n
	}
	if err := decode(body); err != nil && *errp == nil {
		*errp = err
	}
	return n
}

func decodeVec3(b []byte, v *mgl64.Vec3) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if typ != protowire.Fixed64Type || num < 1 || num > 3 {
			return 0
		}
		return consumeDouble(b, &v[num-1])
	})
}

func decodeQuat(b []byte, q *mgl64.Quat) error {
	var nested error
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == 1 && typ == protowire.Fixed64Type:
			return consumeDouble(b, &q.W)
		case num == 2 && typ == protowire.BytesType:
			return consumeMessage(b, func(body []byte) error { return decodeVec3(body, &q.V) }, &nested)
		}
		return 0
	})
	return errors.Join(err, nested)
}

func decodeTransform(b []byte, t *kart.Transform) error {
	var nested error
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if typ != protowire.BytesType {
			return 0
		}
		switch num {
		case 1:
			return consumeMessage(b, func(body []byte) error { return decodeVec3(body, &t.Position) }, &nested)
		case 2:
			return consumeMessage(b, func(body []byte) error { return decodeQuat(body, &t.Orientation) }, &nested)
		}
		return 0
	})
	return errors.Join(err, nested)
}

func decodeMove(b []byte, m *kart.Move) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if typ != protowire.Fixed32Type {
			return 0
		}
		switch num {
		case 1:
			return consumeFloat(b, &m.Throttle)
		case 2:
			return consumeFloat(b, &m.Steering)
		case 3:
			return consumeFloat(b, &m.DeltaTime)
		case 4:
			return consumeFloat(b, &m.Timestamp)
		}
		return 0
	})
}

func decodeVehicleState(b []byte, s *messages.VehicleState) error {
	var nested error
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if typ != protowire.BytesType {
			return 0
		}
		switch num {
		case 1:
			return consumeMessage(b, func(body []byte) error { return decodeMove(body, &s.LastMove) }, &nested)
		case 2:
			return consumeMessage(b, func(body []byte) error { return decodeTransform(body, &s.Transform) }, &nested)
		case 3:
			return consumeMessage(b, func(body []byte) error { return decodeVec3(body, &s.Velocity) }, &nested)
		}
		return 0
	})
	return errors.Join(err, nested)
}

func decodeConstants(b []byte, c *kart.Constants) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if typ != protowire.Fixed64Type {
			return 0
		}
		switch num {
		case 1:
			return consumeDouble(b, &c.Mass)
		case 2:
			return consumeDouble(b, &c.MaxDrivingForce)
		case 3:
			return consumeDouble(b, &c.DragCoefficient)
		case 4:
			return consumeDouble(b, &c.RollingResistanceCoefficient)
		case 5:
			return consumeDouble(b, &c.MinTurningRadius)
		}
		return 0
	})
}

func decodeJoinRequest(b []byte) (messages.JoinRequest, error) {
	var m messages.JoinRequest
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if typ != protowire.BytesType {
			return 0
		}
		switch num {
		case 1:
			return consumeString(b, &m.Version)
		case 2:
			return consumeString(b, &m.PlayerName)
		case 3:
			return consumeString(b, &m.ReconnectToken)
		}
		return 0
	})
	return m, err
}

func decodeJoinAccepted(b []byte) (messages.JoinAccepted, error) {
	var m messages.JoinAccepted
	var nested error
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == 1 && typ == protowire.VarintType:
			return consumeUint32(b, &m.VehicleID)
		case num == 2 && typ == protowire.BytesType:
			return consumeString(b, &m.ReconnectToken)
		case num == 3 && typ == protowire.BytesType:
			return consumeString(b, &m.ServerName)
		case num == 4 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.TickRate = int(v)
			return n
		case num == 5 && typ == protowire.Fixed64Type:
			return consumeDouble(b, &m.Gravity)
		case num == 6 && typ == protowire.BytesType:
			return consumeMessage(b, func(body []byte) error { return decodeConstants(body, &m.Constants) }, &nested)
		case num == 7 && typ == protowire.BytesType:
			return consumeMessage(b, func(body []byte) error { return decodeTransform(body, &m.Spawn) }, &nested)
		case num == 8 && typ == protowire.BytesType:
			return consumeString(b, &m.Track)
		}
		return 0
	})
	return m, errors.Join(err, nested)
}

func decodeSubmitMove(b []byte) (messages.SubmitMove, error) {
	var m messages.SubmitMove
	var nested error
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == 1 && typ == protowire.VarintType:
			return consumeUint32(b, &m.VehicleID)
		case num == 2 && typ == protowire.BytesType:
			return consumeMessage(b, func(body []byte) error { return decodeMove(body, &m.Move) }, &nested)
		}
		return 0
	})
	return m, errors.Join(err, nested)
}

func decodeStateUpdate(b []byte) (messages.StateUpdate, error) {
	var m messages.StateUpdate
	var nested error
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == 1 && typ == protowire.VarintType:
			return consumeUint32(b, &m.VehicleID)
		case num == 2 && typ == protowire.BytesType:
			return consumeMessage(b, func(body []byte) error { return decodeVehicleState(body, &m.State) }, &nested)
		}
		return 0
	})
	return m, errors.Join(err, nested)
}
