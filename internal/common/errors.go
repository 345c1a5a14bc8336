package common

import "errors"

var (
	ErrMessageNotSupported = errors.New("message not supported")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidOrder        = errors.New("invalid order")
	ErrDuplicateOrder      = errors.New("duplicate order")
)
