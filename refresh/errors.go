package refresh

import "errors"

// ErrSuperseded is returned by Install when another write (typically a
// logout) happened after the caller captured its epoch.
var ErrSuperseded = errors.New("refresh: superseded by a newer session write")
