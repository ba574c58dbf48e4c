package service

import "errors"

var (
	ErrAuthentication       = errors.New("authentication failed")
	ErrAccessDenied         = errors.New("access denied")
	ErrNotFound             = errors.New("not found")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrTransientStore       = errors.New("transient store error")
	ErrNotificationDispatch = errors.New("notification dispatch failed")
	ErrRateLimited          = errors.New("rate limited")
)
