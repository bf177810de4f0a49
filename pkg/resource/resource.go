package resource

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/plgd-dev/go-coap/v2/message"
	"github.com/plgd-dev/go-coap/v2/message/codes"
	"github.com/plgd-dev/go-coap/v2/mux"
)

// Resource paths.
const (
	AboutPath = "/About"
	ElahePath = "/elahe"
)

// ErrUnknownSet is returned by ParseSet for an unrecognized name.
var ErrUnknownSet = errors.New("unknown resource set")

// Set selects which resources a station serves.
type Set uint8

const (
	SetAbout Set = 1 << iota
	SetElahe

	SetBoth = SetAbout | SetElahe
)

// ParseSet parses "about", "elahe" or "both" (case-insensitive).
func ParseSet(s string) (Set, error) {
	switch strings.ToLower(s) {
	case "about":
		return SetAbout, nil
	case "elahe":
		return SetElahe, nil
	case "both", "all":
		return SetBoth, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownSet, s)
	}
}

// String returns the set name accepted by ParseSet.
func (s Set) String() string {
	switch s {
	case SetAbout:
		return "about"
	case SetElahe:
		return "elahe"
	case SetBoth:
		return "both"
	default:
		return fmt.Sprintf("Set(%d)", uint8(s))
	}
}

// Has reports whether s includes other.
func (s Set) Has(other Set) bool {
	return s&other == other
}

// Paths returns the resource paths of s in registration order.
func (s Set) Paths() []string {
	var paths []string
	if s.Has(SetAbout) {
		paths = append(paths, AboutPath)
	}
	if s.Has(SetElahe) {
		paths = append(paths, ElahePath)
	}
	return paths
}

// Register installs the resources of set on r.
func Register(r *mux.Router, set Set, elahe *Elahe) error {
	if set.Has(SetAbout) {
		if err := r.Handle(AboutPath, NewAbout()); err != nil {
			return fmt.Errorf("register %s: %w", AboutPath, err)
		}
	}
	if set.Has(SetElahe) {
		if elahe == nil {
			elahe = NewElahe(DefaultElaheName)
		}
		if err := r.Handle(ElahePath, elahe); err != nil {
			return fmt.Errorf("register %s: %w", ElahePath, err)
		}
	}
	return nil
}

// onlyGET answers non-GET requests with 4.05 and reports whether the
// handler should continue.
func onlyGET(w mux.ResponseWriter, r *mux.Message) bool {
	if r.Code == codes.GET {
		return true
	}
	_ = w.SetResponse(codes.MethodNotAllowed, message.TextPlain, nil)
	return false
}

func respond(w mux.ResponseWriter, format message.MediaType, body []byte) error {
	return w.SetResponse(codes.Content, format, bytes.NewReader(body))
}
