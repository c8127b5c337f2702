package service

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrInvalidRoomID  = errors.New("invalid room ID (must be at least 6 characters)")
	ErrRoomIDTaken    = errors.New("room ID already exists")
	ErrInternalServer = errors.New("internal server error")
)
