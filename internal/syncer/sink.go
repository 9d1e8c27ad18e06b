package syncer

import "os"

// EnvironmentSink applies a key/value pair onto a process-wide environment
// table, last-write-wins on conflicting keys. Modeling the sink explicitly —
// rather than mutating a hidden global — lets tests capture writes instead
// of touching real process state.
type EnvironmentSink interface {
	Set(key, value string) error
}

// OSSink is the production sink backed by the current process environment.
type OSSink struct{}

// Set stores the variable in the current process environment, overwriting
// any existing variable of the same name.
func (OSSink) Set(key, value string) error {
	return os.Setenv(key, value)
}
