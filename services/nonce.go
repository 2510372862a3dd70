package services

import (
	"math/rand"
	"strconv"
	"time"
)

const (
	// Millisecond epoch the platform's snowflake ids count from.
	nonceEpochMs int64 = 1420070400000

	nonceTypeTag int64 = 1
)

// GenerateNonce builds an interaction nonce in the platform's snowflake
// shape: millisecond timestamp shifted 22 bits, a fixed type tag shifted 17,
// and 12 random bits. The timestamp component dominates, so nonces are
// non-decreasing within a process.
func GenerateNonce() string {
	ms := time.Now().UnixMilli() - nonceEpochMs
	n := ms<<22 | nonceTypeTag<<17 | int64(rand.Intn(1<<12))
	return strconv.FormatInt(n, 10)
}
