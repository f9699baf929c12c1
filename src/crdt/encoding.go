package crdt

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// Entry is a single change in an update fragment: an opaque payload
// produced by actor Actor at sequence number Seq. Sequence numbers are
// per-actor and start at 1.
type Entry struct {
	Actor   string
	Seq     uint64
	Payload []byte
}

// StateVector maps each known actor to the highest contiguous sequence
// number held for it.
type StateVector map[string]uint64

// EncodeStateVector serializes a state vector with actors in sorted order.
func EncodeStateVector(sv StateVector) []byte {
	actors := make([]string, 0, len(sv))
	for a := range sv {
		actors = append(actors, a)
	}
	sort.Strings(actors)

	buf := binary.AppendUvarint(nil, uint64(len(actors)))
	for _, a := range actors {
		buf = appendString(buf, a)
		buf = binary.AppendUvarint(buf, sv[a])
	}
	return buf
}

// DecodeStateVector parses a serialized state vector. A nil or empty input
// decodes to an empty vector.
func DecodeStateVector(data []byte) (StateVector, error) {
	sv := make(StateVector)
	if len(data) == 0 {
		return sv, nil
	}
	n, data, err := readUvarint(data)
	if err != nil {
		return nil, fmt.Errorf("state vector: %w", err)
	}
	for i := uint64(0); i < n; i++ {
		var actor string
		actor, data, err = readString(data)
		if err != nil {
			return nil, fmt.Errorf("state vector actor: %w", err)
		}
		var seq uint64
		seq, data, err = readUvarint(data)
		if err != nil {
			return nil, fmt.Errorf("state vector seq: %w", err)
		}
		sv[actor] = seq
	}
	return sv, nil
}

// EncodeUpdate serializes entries as an update fragment. Entries are
// grouped by actor, actors sorted, sequence numbers ascending, making the
// encoding deterministic for a given entry set.
func EncodeUpdate(entries []Entry) []byte {
	byActor := make(map[string][]Entry)
	for _, e := range entries {
		byActor[e.Actor] = append(byActor[e.Actor], e)
	}
	actors := make([]string, 0, len(byActor))
	for a := range byActor {
		actors = append(actors, a)
	}
	sort.Strings(actors)

	buf := binary.AppendUvarint(nil, uint64(len(actors)))
	for _, a := range actors {
		es := byActor[a]
		sort.Slice(es, func(i, j int) bool { return es[i].Seq < es[j].Seq })

		buf = appendString(buf, a)
		buf = binary.AppendUvarint(buf, uint64(len(es)))
		for _, e := range es {
			buf = binary.AppendUvarint(buf, e.Seq)
			buf = binary.AppendUvarint(buf, uint64(len(e.Payload)))
			buf = append(buf, e.Payload...)
		}
	}
	return buf
}

// DecodeUpdate parses an update fragment into its entries.
func DecodeUpdate(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}
	numActors, data, err := readUvarint(data)
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}
	var entries []Entry
	for i := uint64(0); i < numActors; i++ {
		var actor string
		actor, data, err = readString(data)
		if err != nil {
			return nil, fmt.Errorf("update actor: %w", err)
		}
		var count uint64
		count, data, err = readUvarint(data)
		if err != nil {
			return nil, fmt.Errorf("update entry count: %w", err)
		}
		for j := uint64(0); j < count; j++ {
			var seq, size uint64
			seq, data, err = readUvarint(data)
			if err != nil {
				return nil, fmt.Errorf("update seq: %w", err)
			}
			size, data, err = readUvarint(data)
			if err != nil {
				return nil, fmt.Errorf("update payload size: %w", err)
			}
			if uint64(len(data)) < size {
				return nil, fmt.Errorf("update payload: truncated input")
			}
			payload := make([]byte, size)
			copy(payload, data[:size])
			data = data[size:]
			entries = append(entries, Entry{Actor: actor, Seq: seq, Payload: payload})
		}
	}
	return entries, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

func readUvarint(data []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(data)
	if n <= 0 {
		return 0, nil, fmt.Errorf("truncated varint")
	}
	return v, data[n:], nil
}

func readString(data []byte) (string, []byte, error) {
	size, rest, err := readUvarint(data)
	if err != nil {
		return "", nil, err
	}
	if uint64(len(rest)) < size {
		return "", nil, fmt.Errorf("truncated string")
	}
	return string(rest[:size]), rest[size:], nil
}
