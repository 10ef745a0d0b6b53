package graph

import "time"

// clockNow is the time source behind timeNow. It is a package variable so
// it can be replaced; the package's tests, including the event-deferral test
// (spec §8 scenario 6), run against the real clock.
var clockNow = time.Now

func timeNow() time.Time {
	return clockNow()
}
