package types

import "errors"

// All of these are fatal to a run, callers match them with errors.Is
var (
	ErrOutOfDeviceMemory  = errors.New("out of device memory")
	ErrTransferFailure    = errors.New("halo transfer failure")
	ErrNumericInstability = errors.New("numeric instability")
	ErrConfiguration      = errors.New("configuration error")
	ErrAlreadyReleased    = errors.New("already released")
)
