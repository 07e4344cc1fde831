package engine

import "errors"

var (
	errShortPayload   = errors.New("block payload runs past end of file")
	errOrphanHeader   = errors.New("parent header not found on disk")
	errUpstreamTXMiss = errors.New("failed to locate upstream transaction")
)
