// Package sessionid generates the numeric keys that identify chat sessions.
package sessionid

import (
	"math/rand/v2"
	"strconv"
	"time"
)

// maxSuffix bounds the random suffix appended after the timestamp.
const maxSuffix = 10000

// New returns the decimal concatenation of the current unix time in
// milliseconds and a random number in [0, 9999], read back as an integer.
func New() int64 {
	return FromTime(time.Now(), rand.IntN(maxSuffix))
}

// FromTime builds a key from t and suffix. suffix is taken modulo 10000.
func FromTime(t time.Time, suffix int) int64 {
	if suffix < 0 {
		suffix = -suffix
	}
	s := strconv.FormatInt(t.UnixMilli(), 10) + strconv.Itoa(suffix%maxSuffix)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Only reachable for timestamps far beyond the int64 digit budget.
		return t.UnixMilli()
	}
	return n
}
