package fn

import "errors"

var errNilErr = errors.New("fn: Err called with nil error")
