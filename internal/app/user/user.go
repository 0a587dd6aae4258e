/*
Package user contains the core data structure for participant identity.

It defines the basic representation of a participant within the messaging
hub (the User struct), used both internally and in events sent to clients.
*/
package user

// User represents the identity of a connected participant.
// Fields use JSON tags for serialization in WebSocket events.
type User struct {

	// ID is the server-minted unique identifier for the participant. It is
	// stable for the lifetime of the connection, across room switches.
	ID string `json:"id"`

	// Name is the display name the participant joined with.
	Name string `json:"name"`
}
