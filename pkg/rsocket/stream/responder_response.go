package stream

import (
	"github.com/dymk/rsocket-go/pkg/rsocket/frame"
	"github.com/dymk/rsocket-go/pkg/rsocket/rerrors"
)

// ResponderResponse is the responder-side automaton for REQUEST_RESPONSE.
// It has no inbound frame handling of its own beyond CANCEL: the response
// is produced once, out of band, by the RequestHandler and delivered
// through Respond.
type ResponderResponse struct {
	id     frame.StreamID
	out    Outbound
	closed bool
}

func NewResponderResponse(id frame.StreamID, out Outbound) *ResponderResponse {
	return &ResponderResponse{id: id, out: out}
}

// Respond delivers the RequestHandler's result: a payload and COMPLETE on
// success, an ERROR frame on failure. Either terminates the automaton.
func (r *ResponderResponse) Respond(p frame.Payload, err error) {
	if r.closed {
		return
	}
	r.closed = true
	if err != nil {
		r.out.SendFrame(&frame.Frame{
			Kind:         frame.KindError,
			StreamID:     r.id,
			ErrorCode:    frame.ErrorCodeApplicationError,
			ErrorMessage: err.Error(),
		})
		r.out.Terminate(r.id, SignalApplicationError, err.Error())
		return
	}
	r.out.SendFrame(&frame.Frame{
		Kind:     frame.KindPayload,
		StreamID: r.id,
		Flags:    frame.FlagNext | frame.FlagComplete,
		Payload:  p,
	})
	r.out.Terminate(r.id, SignalComplete, "")
}

func (r *ResponderResponse) StreamID() frame.StreamID { return r.id }

func (r *ResponderResponse) HandleRequestN(uint32) error {
	return rerrors.New(rerrors.KindInvalidFrame, "REQUEST_N is not valid on a REQUEST_RESPONSE responder")
}

func (r *ResponderResponse) HandleCancel() {
	if r.closed {
		return
	}
	r.closed = true
	r.out.Terminate(r.id, SignalCancel, "")
}

func (r *ResponderResponse) HandlePayload(frame.Payload, bool, bool) error {
	return rerrors.New(rerrors.KindInvalidFrame, "unexpected PAYLOAD on a REQUEST_RESPONSE responder")
}

func (r *ResponderResponse) HandleError(string) {}

func (r *ResponderResponse) EndStream(Signal) {
	r.closed = true
}
