package conn

import (
	"github.com/dymk/rsocket-go/pkg/rsocket/frame"
	"github.com/dymk/rsocket-go/pkg/rsocket/stream"
)

// RequestResponse issues a REQUEST_RESPONSE and delivers the single result
// (or error) to sub.
func (c *Connection) RequestResponse(request frame.Payload, sub stream.Subscriber) {
	c.exec.postLocal(func() {
		id := c.allocator.Next()
		c.streams[id] = stream.NewRequesterResponse(id, c, request, sub)
	})
}

// RequestStream issues a REQUEST_STREAM with an initial credit of
// initialN, delivering results to sub as they arrive.
func (c *Connection) RequestStream(request frame.Payload, initialN uint32, sub stream.Subscriber) {
	c.exec.postLocal(func() {
		id := c.allocator.Next()
		c.streams[id] = stream.NewRequesterStream(id, c, false, initialN, request, sub, nil)
	})
}

// RequestChannel issues a REQUEST_CHANNEL: sub consumes the peer's
// responses, localOut supplies this side's own emissions.
func (c *Connection) RequestChannel(request frame.Payload, initialN uint32, sub stream.Subscriber, localOut stream.Publisher) {
	c.exec.postLocal(func() {
		id := c.allocator.Next()
		c.streams[id] = stream.NewRequesterStream(id, c, true, initialN, request, sub, localOut)
	})
}

// FireAndForget sends a REQUEST_FNF. Per spec.md §4.2 it keeps no state:
// there is no automaton and no acknowledgement.
func (c *Connection) FireAndForget(request frame.Payload) {
	c.exec.postLocal(func() {
		id := c.allocator.Next()
		c.SendFrame(&frame.Frame{Kind: frame.KindRequestFNF, StreamID: id, Payload: request})
	})
}

// MetadataPush sends a connection-level METADATA_PUSH.
func (c *Connection) MetadataPush(metadata []byte) {
	c.exec.postLocal(func() {
		c.SendFrame(&frame.Frame{
			Kind:     frame.KindMetadataPush,
			StreamID: frame.ConnectionStreamID,
			Flags:    frame.FlagMetadata,
			Payload:  frame.Payload{Metadata: metadata},
		})
	})
}

// channelBridge is the responder side's REQUEST_CHANNEL adapter: it is the
// stream.Subscriber the connection's automaton feeds inbound PAYLOAD
// frames into (HandleRequestChannel's request.Payload as a Publisher of
// exactly one downstream), and simultaneously the stream.Publisher handed
// to RequestHandler.HandleRequestChannel so application code can Subscribe
// its own consumer to the peer's emissions.
type channelBridge struct {
	out stream.Outbound
	id  frame.StreamID

	downstream stream.Subscriber
}

func newChannelBridge(out stream.Outbound, id frame.StreamID) *channelBridge {
	return &channelBridge{out: out, id: id}
}

func (b *channelBridge) OnSubscribe(stream.Subscription) {}

func (b *channelBridge) OnNext(p frame.Payload) {
	if b.downstream != nil {
		b.downstream.OnNext(p)
	}
}

func (b *channelBridge) OnComplete() {
	if b.downstream != nil {
		b.downstream.OnComplete()
	}
}

func (b *channelBridge) OnError(err error) {
	if b.downstream != nil {
		b.downstream.OnError(err)
	}
}

// Subscribe implements stream.Publisher: the handler's own consumer of the
// peer's channel emissions. Request(n) on the returned subscription grants
// the peer more send credit by emitting REQUEST_N on this stream.
func (b *channelBridge) Subscribe(s stream.Subscriber) {
	b.downstream = s
	s.OnSubscribe(channelBridgeSubscription{b})
}

type channelBridgeSubscription struct{ b *channelBridge }

func (s channelBridgeSubscription) Request(n int64) {
	if n <= 0 {
		return
	}
	s.b.out.SendFrame(&frame.Frame{Kind: frame.KindRequestN, StreamID: s.b.id, RequestN: uint32(n)})
}

func (s channelBridgeSubscription) Cancel() {
	s.b.out.SendFrame(&frame.Frame{Kind: frame.KindCancel, StreamID: s.b.id})
}
