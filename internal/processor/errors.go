package processor

import "errors"

// ErrUnknownNetwork is returned by every id-dispatched call when no network
// has been loaded under that id.
var ErrUnknownNetwork = errors.New("unknown network id")
