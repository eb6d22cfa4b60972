// Command rsocket-echo wires the in-memory pipe transport to a
// request-response echo responder, proving the public API is usable end to
// end without pulling real networking into the core.
package main

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dymk/rsocket-go/pkg/rsocket/config"
	"github.com/dymk/rsocket-go/pkg/rsocket/conn"
	"github.com/dymk/rsocket-go/pkg/rsocket/frame"
	"github.com/dymk/rsocket-go/pkg/rsocket/stream"
	"github.com/dymk/rsocket-go/pkg/rsocket/transport"
)

// echoHandler answers every REQUEST_RESPONSE with its own request payload,
// and every REQUEST_STREAM with three copies of the request payload.
type echoHandler struct{}

func (echoHandler) HandleRequestResponse(id frame.StreamID, request frame.Payload) (frame.Payload, error) {
	return request, nil
}

func (echoHandler) HandleRequestStream(id frame.StreamID, request frame.Payload) (stream.Publisher, error) {
	return &countingPublisher{payload: request, remaining: 3}, nil
}

func (echoHandler) HandleRequestChannel(id frame.StreamID, request frame.Payload, in stream.Publisher) (stream.Publisher, error) {
	in.Subscribe(loggingSubscriber{})
	return &countingPublisher{payload: request, remaining: 3}, nil
}

func (echoHandler) HandleFireAndForget(id frame.StreamID, request frame.Payload) error {
	fmt.Printf("fire-and-forget on stream %d: %q\n", id, request.Data)
	return nil
}

func (echoHandler) HandleMetadataPush(metadata []byte) error {
	fmt.Printf("metadata push: %q\n", metadata)
	return nil
}

// countingPublisher emits its payload remaining times then completes.
type countingPublisher struct {
	payload   frame.Payload
	remaining int
}

func (p *countingPublisher) Subscribe(s stream.Subscriber) {
	s.OnSubscribe(countingSubscription{p, s})
}

type countingSubscription struct {
	p *countingPublisher
	s stream.Subscriber
}

func (c countingSubscription) Request(n int64) {
	for ; n > 0 && c.p.remaining > 0; n-- {
		c.p.remaining--
		c.s.OnNext(c.p.payload)
	}
	if c.p.remaining == 0 {
		c.s.OnComplete()
	}
}

func (c countingSubscription) Cancel() { c.p.remaining = 0 }

type loggingSubscriber struct{}

func (loggingSubscriber) OnSubscribe(s stream.Subscription) { s.Request(1<<31 - 1) }
func (loggingSubscriber) OnNext(p frame.Payload)             { fmt.Printf("channel inbound: %q\n", p.Data) }
func (loggingSubscriber) OnComplete()                        { fmt.Println("channel inbound complete") }
func (loggingSubscriber) OnError(err error)                  { fmt.Println("channel inbound error:", err) }

// printingSubscriber is the client-side consumer used by this demo.
type printingSubscriber struct {
	label string
	wg    *sync.WaitGroup
}

func (s printingSubscriber) OnSubscribe(sub stream.Subscription) { sub.Request(1 << 31 - 1) }
func (s printingSubscriber) OnNext(p frame.Payload) {
	fmt.Printf("%s: OnNext %q\n", s.label, p.Data)
}
func (s printingSubscriber) OnComplete() {
	fmt.Printf("%s: OnComplete\n", s.label)
	s.wg.Done()
}
func (s printingSubscriber) OnError(err error) {
	fmt.Printf("%s: OnError %v\n", s.label, err)
	s.wg.Done()
}

func main() {
	fmt.Println("rsocket-echo demo")
	fmt.Println("=================")

	serverCfg := config.New(config.ModeServer)
	clientCfg := config.New(config.ModeClient)

	// The server side goes through the acceptance layer (conn.Server), the
	// same path a real listener would use: it waits for the client's
	// SETUP frame before a Connection exists at all.
	server := conn.NewServer(echoHandler{})
	client := conn.New(clientCfg, nil)

	clientTr, serverTr := transport.NewPipe()
	server.Accept(serverTr, serverCfg)
	client.Bind(clientTr, frame.V1Serializer{})

	var wg sync.WaitGroup

	wg.Add(1)
	client.RequestResponse(frame.Payload{Data: []byte("hello")}, printingSubscriber{"request-response", &wg})
	wg.Wait()

	wg.Add(1)
	client.RequestStream(frame.Payload{Data: []byte("stream-item")}, 10, printingSubscriber{"request-stream", &wg})
	wg.Wait()

	client.FireAndForget(frame.Payload{Data: []byte("fire and forget")})
	time.Sleep(50 * time.Millisecond)

	client.Close(nil)

	if err := clientTr.Close(); err != nil {
		log.Println("client transport close:", err)
	}
}
