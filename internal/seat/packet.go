package seat

import (
	"errors"
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrProtocolMismatch means the peer encodes a different seat layout.
	ErrProtocolMismatch = errors.New("seat packet: protocol mismatch")
	// ErrTruncatedFrame means the packet ended in the middle of a field.
	ErrTruncatedFrame = errors.New("seat packet: truncated")
)

const spawnPoolItem protowire.Number = 1

// AppendPacket appends the binary seat record to b. Field numbers follow the
// layout positions, so a field that is not part of the packet form leaves a
// gap rather than renumbering the rest.
func (s *Seat) AppendPacket(b []byte) []byte {
	for i, f := range fields {
		if f.forms&formPacket == 0 {
			continue
		}
		b = appendValue(b, protowire.Number(i+1), f.ref(s))
	}
	return b
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s *Seat) MarshalBinary() ([]byte, error) {
	return s.AppendPacket(nil), nil
}

// UnmarshalBinary replaces the packet fields of s with the record in data.
// Nothing is changed unless the whole record decodes, and the record must
// carry the id s already has.
func (s *Seat) UnmarshalBinary(data []byte) error {
	var tmp Seat
	if err := tmp.decodePacket(data); err != nil {
		return err
	}
	if s.hasID && s.id != tmp.id {
		return fmt.Errorf("%w: record for seat %d applied to seat %d", ErrProtocolMismatch, tmp.id, s.id)
	}
	for _, f := range packetFields {
		copyValue(f.ref(s), f.ref(&tmp))
	}
	s.hasID = true
	return nil
}

// ReadPacket decodes a record into a new detached seat.
func ReadPacket(data []byte) (*Seat, error) {
	s := &Seat{}
	if err := s.decodePacket(data); err != nil {
		return nil, err
	}
	s.hasID = true
	return s, nil
}

func (s *Seat) decodePacket(b []byte) error {
	for i, f := range fields {
		if f.forms&formPacket == 0 {
			continue
		}
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return consumeErr(f.name, n)
		}
		want := protowire.Number(i + 1)
		dst := f.ref(s)
		if num != want || typ != wireType(dst) {
			return fmt.Errorf("%w: field %s: got %d/%d, want %d/%d", ErrProtocolMismatch, f.name, num, typ, want, wireType(dst))
		}
		b = b[n:]
		n = consumeValue(b, dst)
		if n < 0 {
			return consumeErr(f.name, n)
		}
		b = b[n:]
	}
	if len(b) > 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrProtocolMismatch, len(b))
	}
	return nil
}

func consumeErr(name string, n int) error {
	err := protowire.ParseError(n)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: field %s", ErrTruncatedFrame, name)
	}
	return fmt.Errorf("%w: field %s: %v", ErrProtocolMismatch, name, err)
}

func wireType(v any) protowire.Type {
	switch v.(type) {
	case *float64:
		return protowire.Fixed64Type
	case *string, *[]string:
		return protowire.BytesType
	default:
		return protowire.VarintType
	}
}

func appendValue(b []byte, num protowire.Number, v any) []byte {
	b = protowire.AppendTag(b, num, wireType(v))
	switch p := v.(type) {
	case *int:
		return protowire.AppendVarint(b, protowire.EncodeZigZag(int64(*p)))
	case *float64:
		return protowire.AppendFixed64(b, math.Float64bits(*p))
	case *string:
		return protowire.AppendString(b, *p)
	case *[]string:
		var list []byte
		for _, item := range *p {
			list = protowire.AppendTag(list, spawnPoolItem, protowire.BytesType)
			list = protowire.AppendString(list, item)
		}
		return protowire.AppendBytes(b, list)
	case *bool:
		return protowire.AppendVarint(b, protowire.EncodeBool(*p))
	default:
		panic(fmt.Sprintf("seat: no packet encoding for %T", v))
	}
}

// consumeValue decodes one value into dst and returns the bytes used, or a
// negative protowire error code.
func consumeValue(b []byte, dst any) int {
	switch p := dst.(type) {
	case *int:
		v, n := protowire.ConsumeVarint(b)
		if n >= 0 {
			*p = int(protowire.DecodeZigZag(v))
		}
		return n
	case *float64:
		v, n := protowire.ConsumeFixed64(b)
		if n >= 0 {
			*p = math.Float64frombits(v)
		}
		return n
	case *string:
		v, n := protowire.ConsumeString(b)
		if n >= 0 {
			*p = v
		}
		return n
	case *[]string:
		list, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return n
		}
		var items []string
		for len(list) > 0 {
			num, typ, m := protowire.ConsumeTag(list)
			if m < 0 {
				return m
			}
			if num != spawnPoolItem || typ != protowire.BytesType {
				return errCodeMismatch
			}
			list = list[m:]
			item, m := protowire.ConsumeString(list)
			if m < 0 {
				return m
			}
			items = append(items, item)
			list = list[m:]
		}
		*p = items
		return n
	case *bool:
		v, n := protowire.ConsumeVarint(b)
		if n >= 0 {
			*p = protowire.DecodeBool(v)
		}
		return n
	default:
		panic(fmt.Sprintf("seat: no packet decoding for %T", dst))
	}
}

// errCodeMismatch is a negative length that protowire.ParseError does not map
// to io.ErrUnexpectedEOF, reported as a protocol mismatch.
const errCodeMismatch = -100
