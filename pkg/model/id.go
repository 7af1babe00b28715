package model

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// NewID generates an opaque, lexicographically time-sortable package ID: an
// 8-hex-char big-endian Unix-seconds timestamp followed by 8 hex chars of
// randomness. IDEmbeddedTime recovers the timestamp half for dateAdded
// rendering (spec §4.F), so the store never needs a separate "created at"
// column.
func NewID(now time.Time) (string, error) {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(now.Unix()))

	var rnd [4]byte
	if _, err := rand.Read(rnd[:]); err != nil {
		return "", fmt.Errorf("generate package id: %w", err)
	}

	return hex.EncodeToString(buf[:]) + hex.EncodeToString(rnd[:]), nil
}

// IDEmbeddedTime recovers the timestamp encoded by NewID. It returns the
// zero time if id is too short or malformed to decode.
func IDEmbeddedTime(id string) time.Time {
	if len(id) < 8 {
		return time.Time{}
	}
	raw, err := hex.DecodeString(id[:8])
	if err != nil || len(raw) != 4 {
		return time.Time{}
	}
	secs := binary.BigEndian.Uint32(raw)
	return time.Unix(int64(secs), 0).UTC()
}
