package resource

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/plgd-dev/go-coap/v2/message"
	"github.com/plgd-dev/go-coap/v2/message/codes"
	"github.com/plgd-dev/go-coap/v2/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures the response a handler sets.
type recorder struct {
	code   codes.Code
	format message.MediaType
	body   []byte
}

func (r *recorder) SetResponse(code codes.Code, format message.MediaType, d io.ReadSeeker, _ ...message.Option) error {
	r.code = code
	r.format = format
	if d != nil {
		b, err := io.ReadAll(d)
		if err != nil {
			return err
		}
		r.body = b
	}
	return nil
}

func (r *recorder) Client() mux.Client { return nil }

func request(code codes.Code, opts ...message.Option) *mux.Message {
	return &mux.Message{
		Message: &message.Message{
			Context: context.Background(),
			Code:    code,
			Options: message.Options(opts),
		},
	}
}

func acceptOption(mt message.MediaType) message.Option {
	return message.Option{ID: message.Accept, Value: []byte{byte(mt)}}
}

func TestAbout(t *testing.T) {
	t.Run("GET", func(t *testing.T) {
		w := &recorder{}
		NewAbout().ServeCOAP(w, request(codes.GET))

		assert.Equal(t, codes.Content, w.code)
		assert.Equal(t, message.TextPlain, w.format)
		assert.Equal(t, "18.20 is leaving us", string(w.body))
	})

	for _, code := range []codes.Code{codes.POST, codes.PUT, codes.DELETE} {
		t.Run(code.String(), func(t *testing.T) {
			w := &recorder{}
			NewAbout().ServeCOAP(w, request(code))
			assert.Equal(t, codes.MethodNotAllowed, w.code)
			assert.Empty(t, w.body)
		})
	}
}

func TestElahe(t *testing.T) {
	t.Run("JSON by default", func(t *testing.T) {
		w := &recorder{}
		NewElahe("elahe").ServeCOAP(w, request(codes.GET))

		require.Equal(t, codes.Content, w.code)
		assert.Equal(t, message.AppJSON, w.format)

		var rd map[string]any
		require.NoError(t, json.Unmarshal(w.body, &rd))
		assert.Equal(t, "elahe", rd["name"])
		assert.Contains(t, rd, "timestamp")
	})

	t.Run("CBOR on Accept", func(t *testing.T) {
		w := &recorder{}
		NewElahe("elahe").ServeCOAP(w, request(codes.GET, acceptOption(message.AppCBOR)))

		require.Equal(t, codes.Content, w.code)
		assert.Equal(t, message.AppCBOR, w.format)

		var rd Reading
		require.NoError(t, cbor.Unmarshal(w.body, &rd))
		assert.Equal(t, "elahe", rd.Name)
		assert.Positive(t, rd.Timestamp)
	})

	t.Run("unsupported Accept", func(t *testing.T) {
		w := &recorder{}
		NewElahe("elahe").ServeCOAP(w, request(codes.GET, acceptOption(message.AppXML)))
		assert.Equal(t, codes.NotAcceptable, w.code)
	})

	t.Run("POST", func(t *testing.T) {
		w := &recorder{}
		NewElahe("elahe").ServeCOAP(w, request(codes.POST))
		assert.Equal(t, codes.MethodNotAllowed, w.code)
	})
}

func TestElaheTimestampsIncrease(t *testing.T) {
	e := NewElahe("elahe")
	frozen := time.UnixMilli(1_700_000_000_000)
	e.now = func() time.Time { return frozen }

	first := e.Next()
	assert.Equal(t, frozen.UnixMilli(), first.Timestamp)
	assert.Equal(t, first.Timestamp+1, e.Next().Timestamp)

	// The clock stepping backwards does not reorder readings.
	e.now = func() time.Time { return frozen.Add(-time.Hour) }
	assert.Equal(t, first.Timestamp+2, e.Next().Timestamp)

	t.Run("concurrent", func(t *testing.T) {
		e := NewElahe("elahe")
		const workers, per = 8, 200

		var mu sync.Mutex
		seen := make(map[int64]bool, workers*per)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				prev := int64(0)
				for j := 0; j < per; j++ {
					ts := e.Next().Timestamp
					assert.Greater(t, ts, prev)
					prev = ts
					mu.Lock()
					seen[ts] = true
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Len(t, seen, workers*per, "timestamps must be unique")
	})
}

func TestParseSet(t *testing.T) {
	tests := []struct {
		in   string
		want Set
	}{
		{"about", SetAbout},
		{"About", SetAbout},
		{"elahe", SetElahe},
		{"both", SetBoth},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSet(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseSet("nope")
	assert.ErrorIs(t, err, ErrUnknownSet)

	assert.True(t, SetBoth.Has(SetAbout))
	assert.False(t, SetElahe.Has(SetAbout))
	assert.Equal(t, "both", SetBoth.String())
	assert.Equal(t, []string{AboutPath, ElahePath}, SetBoth.Paths())
	assert.Equal(t, []string{ElahePath}, SetElahe.Paths())
}

func TestRegister(t *testing.T) {
	r := mux.NewRouter()
	require.NoError(t, Register(r, SetBoth, nil))
	require.NoError(t, Register(mux.NewRouter(), SetElahe, NewElahe("kitchen")))
}
