package stream

import "github.com/dymk/rsocket-go/pkg/rsocket/frame"

// Subscription is handed to a local Subscriber on OnSubscribe. It is the
// consumer-facing half of the reactive-streams capability set described in
// spec.md §9: request(n) and cancel, with no assumption about the
// underlying concurrency primitive.
type Subscription interface {
	Request(n int64)
	Cancel()
}

// Subscriber is the local consumer capability set: on_next/on_complete/
// on_error plus the subscription handshake.
type Subscriber interface {
	OnSubscribe(s Subscription)
	OnNext(p frame.Payload)
	OnComplete()
	OnError(err error)
}

// Publisher is the local producer capability set for stream-like
// interactions: something a responder's stream/channel handler returns, or
// a requester's channel supplies as its outbound half.
type Publisher interface {
	Subscribe(s Subscriber)
}
