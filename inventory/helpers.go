package main

import (
	"crypto/rand"
	"encoding/hex"
)

func newReservationID() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return "rsv_" + hex.EncodeToString(buf)
}
