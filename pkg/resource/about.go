package resource

import (
	"github.com/plgd-dev/go-coap/v2/message"
	"github.com/plgd-dev/go-coap/v2/mux"
)

// AboutText is the body of the About resource.
const AboutText = "18.20 is leaving us"

// About serves a fixed plain-text body.
type About struct {
	body []byte
}

// NewAbout returns the About resource.
func NewAbout() *About {
	return &About{body: []byte(AboutText)}
}

// ServeCOAP implements mux.Handler.
func (a *About) ServeCOAP(w mux.ResponseWriter, r *mux.Message) {
	if !onlyGET(w, r) {
		return
	}
	_ = respond(w, message.TextPlain, a.body)
}
