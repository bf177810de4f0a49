package resource

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/plgd-dev/go-coap/v2/message"
	"github.com/plgd-dev/go-coap/v2/message/codes"
	"github.com/plgd-dev/go-coap/v2/mux"
)

// DefaultElaheName is the name field reported by the elahe resource.
const DefaultElaheName = "elahe"

// Reading is the body of the elahe resource.
type Reading struct {
	Name      string `json:"name" cbor:"name"`
	Timestamp int64  `json:"timestamp" cbor:"timestamp"`
}

// Elahe serves a named, timestamped reading.
type Elahe struct {
	name string
	now  func() time.Time
	last atomic.Int64
}

// NewElahe returns the elahe resource reporting name.
func NewElahe(name string) *Elahe {
	return &Elahe{name: name, now: time.Now}
}

// Next returns a reading whose timestamp is the current time in
// milliseconds, or one past the previous timestamp if the clock has not
// advanced.
func (e *Elahe) Next() Reading {
	now := e.now().UnixMilli()
	for {
		last := e.last.Load()
		ts := now
		if ts <= last {
			ts = last + 1
		}
		if e.last.CompareAndSwap(last, ts) {
			return Reading{Name: e.name, Timestamp: ts}
		}
	}
}

// ServeCOAP implements mux.Handler.
func (e *Elahe) ServeCOAP(w mux.ResponseWriter, r *mux.Message) {
	if !onlyGET(w, r) {
		return
	}

	format := message.AppJSON
	if accept, err := r.Options.GetUint32(message.Accept); err == nil {
		switch message.MediaType(accept) {
		case message.AppJSON:
		case message.AppCBOR:
			format = message.AppCBOR
		default:
			_ = w.SetResponse(codes.NotAcceptable, message.TextPlain, nil)
			return
		}
	}

	body, err := e.encode(e.Next(), format)
	if err != nil {
		_ = w.SetResponse(codes.InternalServerError, message.TextPlain, nil)
		return
	}
	_ = respond(w, format, body)
}

func (e *Elahe) encode(rd Reading, format message.MediaType) ([]byte, error) {
	if format == message.AppCBOR {
		return cbor.Marshal(rd)
	}
	return json.Marshal(rd)
}
