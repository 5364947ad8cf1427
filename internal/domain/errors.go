package domain

import "errors"

var (
	ErrIndexOutOfRange = errors.New("leaf index out of range")
	ErrCorruptStorage  = errors.New("corrupt leaf storage")
)
