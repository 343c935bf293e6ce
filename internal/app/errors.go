package app

import "errors"

var (
	// ErrPhoneAlreadyExists indicates a registration attempt with a taken phone.
	ErrPhoneAlreadyExists = errors.New("phone already registered")
	// ErrInvalidCredentials covers both unknown phone and wrong password so the
	// response does not reveal which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotFound indicates a missing boat or user.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the caller may not act on this resource.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidStatusTransition indicates a moderation action on a boat that
	// is not awaiting moderation.
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	// ErrInvalidInput indicates a request payload failing basic validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidSettingKey indicates an AI setting key outside the known set.
	ErrInvalidSettingKey = errors.New("unknown setting key")
	// ErrDescriptionRejected indicates the AI validation step found the raw
	// description unusable; details travel in ValidationResult.
	ErrDescriptionRejected = errors.New("description rejected")
)
