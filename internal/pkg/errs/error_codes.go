/*
Package errs provides custom error types and application-level error code constants.

These codes identify specific business or system errors both inside the server
and on the wire (the ERROR event payload and the REST response envelope).
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that a request or event body was not valid JSON.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained trailing content after valid JSON.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the sender exceeded its message or connection budget.
	ErrRateLimitExceeded = 1005
)

// 2xxx: Session, Room, and Message Business Logic Errors
const (
	// ErrInvalidJoin indicates a join with an empty display name or an empty
	// or malformed room name after trimming.
	ErrInvalidJoin = 2101

	// ErrNotJoined indicates a message/typing/private action before any successful join.
	ErrNotJoined = 2102

	// ErrRoomNameReserved indicates a join into the reserved private-thread namespace.
	ErrRoomNameReserved = 2103

	// ErrMessageEmpty indicates a message whose body is empty after trimming.
	ErrMessageEmpty = 2201

	// ErrMessageTooLong indicates a message body over the configured length cap.
	ErrMessageTooLong = 2202

	// ErrRecipientNotFound indicates a private message whose target user has no live session.
	ErrRecipientNotFound = 2301

	// ErrSelfPrivateMessage indicates a private message addressed to the sender's own user ID.
	ErrSelfPrivateMessage = 2302
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified internal server error.
	ErrUnknown = 5000

	// ErrStoreUnavailable indicates the message store rejected a write or read.
	// For writes it is a warning: the live broadcast still goes out.
	ErrStoreUnavailable = 5001
)
