/*
Package errs provides custom error types and application-level error code constants.

This file maps each error code to its CustomError template, standardizing the
message and HTTP status used for that code everywhere it is reported.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Session, Room, and Message Business Logic Errors
	ErrInvalidJoin:        {Code: ErrInvalidJoin, Message: "A display name and a valid room name are required to join."},
	ErrNotJoined:          {Code: ErrNotJoined, Message: "Join a room before sending."},
	ErrRoomNameReserved:   {Code: ErrRoomNameReserved, Message: "This room name is reserved."},
	ErrMessageEmpty:       {Code: ErrMessageEmpty, Message: "Message is empty."},
	ErrMessageTooLong:     {Code: ErrMessageTooLong, Message: "Message exceeds %d characters."},
	ErrRecipientNotFound:  {Code: ErrRecipientNotFound, Message: "That user is not connected."},
	ErrSelfPrivateMessage: {Code: ErrSelfPrivateMessage, Message: "Cannot send a private message to yourself."},

	// 5xxx: Internal System Errors
	ErrUnknown:          {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStoreUnavailable: {Code: ErrStoreUnavailable, Message: "Message delivery succeeded but could not be saved.", Status: http.StatusServiceUnavailable},
}
