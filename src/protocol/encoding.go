package protocol

import (
	"encoding/binary"
	"fmt"
)

// EncodeSyncStep1 frames a state vector.
func EncodeSyncStep1(stateVector []byte) []byte {
	return encodeSync(SyncStep1, stateVector)
}

// EncodeSyncStep2 frames the update fragment answering a SyncStep1.
func EncodeSyncStep2(update []byte) []byte {
	return encodeSync(SyncStep2, update)
}

// EncodeSyncUpdate frames an incremental update fragment.
func EncodeSyncUpdate(update []byte) []byte {
	return encodeSync(SyncUpdate, update)
}

// EncodeAwareness frames an opaque awareness payload.
func EncodeAwareness(payload []byte) []byte {
	buf := binary.AppendUvarint(nil, MessageAwareness)
	buf = binary.AppendUvarint(buf, uint64(len(payload)))
	return append(buf, payload...)
}

func encodeSync(syncType int, payload []byte) []byte {
	buf := binary.AppendUvarint(nil, MessageSync)
	buf = binary.AppendUvarint(buf, uint64(syncType))
	buf = binary.AppendUvarint(buf, uint64(len(payload)))
	return append(buf, payload...)
}

// Decode parses a single frame.
func Decode(data []byte) (*Frame, error) {
	msgType, rest, err := readUvarint(data)
	if err != nil {
		return nil, fmt.Errorf("decode frame type: %w", err)
	}

	switch msgType {
	case MessageSync:
		syncType, rest2, err := readUvarint(rest)
		if err != nil {
			return nil, fmt.Errorf("decode sync type: %w", err)
		}
		if syncType > SyncUpdate {
			return nil, fmt.Errorf("unknown sync type %d", syncType)
		}
		payload, err := readPayload(rest2)
		if err != nil {
			return nil, fmt.Errorf("decode sync payload: %w", err)
		}
		return &Frame{Type: MessageSync, SyncType: int(syncType), Payload: payload}, nil

	case MessageAwareness:
		payload, err := readPayload(rest)
		if err != nil {
			return nil, fmt.Errorf("decode awareness payload: %w", err)
		}
		return &Frame{Type: MessageAwareness, Payload: payload}, nil

	default:
		return nil, fmt.Errorf("unknown message type %d", msgType)
	}
}

func readUvarint(data []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, nil, fmt.Errorf("truncated varint")
	}
	return v, data[n:], nil
}

func readPayload(data []byte) ([]byte, error) {
	size, rest, err := readUvarint(data)
	if err != nil {
		return nil, err
	}
	if uint64(len(rest)) < size {
		return nil, fmt.Errorf("truncated payload: want %d bytes, have %d", size, len(rest))
	}
	payload := make([]byte, size)
	copy(payload, rest[:size])
	return payload, nil
}
