package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrNotFound     = errors.New("not found")
	ErrInvalid      = errors.New("invalid request")
	ErrTooLarge     = errors.New("directory too large to download")
	ErrBusy         = errors.New("server busy, try again")
	ErrNotSupported = errors.New("not supported by server")
)
