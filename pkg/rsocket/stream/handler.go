package stream

import "github.com/dymk/rsocket-go/pkg/rsocket/frame"

// RequestHandler is the application capability set a responder dispatches
// into when a peer opens a stream. Grounded on the RSocket ecosystem's own
// Responder shape (flier-rsocket-go's proto.Responder): one method per
// interaction model, keyed by the requester's stream id.
type RequestHandler interface {
	HandleRequestResponse(id frame.StreamID, request frame.Payload) (frame.Payload, error)
	HandleRequestStream(id frame.StreamID, request frame.Payload) (Publisher, error)
	HandleRequestChannel(id frame.StreamID, request frame.Payload, in Publisher) (Publisher, error)
	HandleFireAndForget(id frame.StreamID, request frame.Payload) error
	HandleMetadataPush(metadata []byte) error
}
