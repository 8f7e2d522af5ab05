package common

import (
	"fmt"

	"golang.org/x/sys/unix"
)

type (
	// Time is a wall-clock or CPU time expressed in seconds.
	Time float64

	// Timing is one wall/user/sys reading of the process.
	Timing struct {
		Wall, User, Sys Time
	}
)

func (t Time) Seconds() float64 {
	return float64(t)
}

func (t Time) Micros() int64 {
	return int64(float64(t) * 1e6)
}

func Timeval(t unix.Timeval) Time {
	return Time(float64(t.Sec) + float64(t.Usec)*1e-6)
}

func (t Timing) Sub(s Timing) Timing {
	t.Wall -= s.Wall
	t.User -= s.User
	t.Sys -= s.Sys
	return t
}

func (t Time) String() string {
	return fmt.Sprintf("%.3fs", float64(t))
}

func (ts Timing) String() string {
	return fmt.Sprintf("W: %v U: %v S: %v", ts.Wall, ts.User, ts.Sys)
}
