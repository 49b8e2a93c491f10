package session

import "time"

// SetNow replaces the clock until the returned func is called.
func SetNow(now func() time.Time) (restore func()) {
	orig := nowFunc
	nowFunc = now
	return func() { nowFunc = orig }
}
