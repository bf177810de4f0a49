package transport

import (
	"io"
	"time"

	"github.com/plgd-dev/go-coap/v2/message"
	"github.com/plgd-dev/go-coap/v2/message/codes"
	"github.com/plgd-dev/go-coap/v2/mux"

	"github.com/goldoon/goldoon-go/pkg/log"
)

// exchangeWriter records the response a handler sets.
type exchangeWriter struct {
	w mux.ResponseWriter

	code          codes.Code
	contentFormat int
	size          int
}

func (e *exchangeWriter) SetResponse(code codes.Code, contentFormat message.MediaType, d io.ReadSeeker, opts ...message.Option) error {
	e.code = code
	if d != nil {
		e.contentFormat = int(contentFormat)
		if n, err := d.Seek(0, io.SeekEnd); err == nil {
			e.size = int(n)
		}
		if _, err := d.Seek(0, io.SeekStart); err != nil {
			return err
		}
	}
	return e.w.SetResponse(code, contentFormat, d, opts...)
}

func (e *exchangeWriter) Client() mux.Client {
	return e.w.Client()
}

// logExchange is router middleware recording each request and its response.
func (s *Server) logExchange(next mux.Handler) mux.Handler {
	return mux.HandlerFunc(func(w mux.ResponseWriter, r *mux.Message) {
		start := time.Now()
		ew := &exchangeWriter{w: w, contentFormat: -1}
		next.ServeCOAP(ew, r)
		elapsed := time.Since(start)

		s.requests.Add(1)
		path, _ := r.Options.Path()
		remote := ""
		if c := w.Client(); c != nil {
			remote = c.RemoteAddr().String()
		}

		s.protocolLogger.Log(log.Event{
			Timestamp:  start,
			Layer:      log.LayerCoAP,
			Category:   log.CategoryExchange,
			RemoteAddr: remote,
			Exchange: &log.ExchangeEvent{
				Method:         r.Code.String(),
				Path:           path,
				Token:          []byte(r.Token),
				Confirmable:    r.IsConfirmable,
				Code:           ew.code.String(),
				ContentFormat:  ew.contentFormat,
				Size:           ew.size,
				ProcessingTime: &elapsed,
			},
		})
		if s.logger != nil {
			s.logger.Debug("coap exchange",
				"remote", remote,
				"method", r.Code.String(),
				"path", path,
				"code", ew.code.String(),
				"size", ew.size,
				"elapsed", elapsed)
		}
	})
}
