package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// ConsentsEndpoint is the endpoint for submitting a consent transition,
	// either a zk proof or an attested claim
	ConsentsEndpoint = "/consents"
	// RootEndpoint is the endpoint to get the current accumulator root
	RootEndpoint = "/root"
	// ResetEndpoint clears the accumulator and the nullifier set. It is
	// only registered when test endpoints are enabled; never in production.
	ResetEndpoint = "/consents/reset"
)
