package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"livebid/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoReq struct {
	Text string `json:"text"`
}

func TestRouter_Dispatch(t *testing.T) {
	r := NewRouter()
	Register(r, "echo", Anyone, func(_ context.Context, c *ConnContext, req echoReq) (string, error) {
		return c.UserID + ":" + req.Text, nil
	})
	Register(r, "bid", SignedIn, func(_ context.Context, _ *ConnContext, req BidRequest) (int64, error) {
		return req.Amount, nil
	})
	Register(r, "fail", Anyone, func(context.Context, *ConnContext, struct{}) (any, error) {
		return nil, errors.New("nope")
	})
	member := &ConnContext{AuctionID: "a1", UserID: "u1"}
	viewer := &ConnContext{AuctionID: "a1"}

	tests := []struct {
		name      string
		cc        *ConnContext
		env       Envelope
		want      any
		wantErr   error
		wantInput string
		wantMsg   string
	}{
		{name: "Typed body", cc: member, env: Envelope{Event: "echo", Body: json.RawMessage(`{"text":"hi"}`)}, want: "u1:hi"},
		{name: "Empty body", cc: member, env: Envelope{Event: "echo"}, want: "u1:"},
		{name: "Anonymous open event", cc: viewer, env: Envelope{Event: "echo", Body: json.RawMessage(`{"text":"hi"}`)}, want: ":hi"},
		{name: "Unknown event", cc: member, env: Envelope{Event: "nope"}, wantErr: errUnknownEvent},
		{name: "Malformed body", cc: member, env: Envelope{Event: "echo", Body: json.RawMessage(`{"text":1}`)}, wantInput: "body"},
		{name: "Signed in event", cc: member, env: Envelope{Event: "bid", Body: json.RawMessage(`{"amount":110}`)}, want: int64(110)},
		{name: "Anonymous signed in event", cc: viewer, env: Envelope{Event: "bid", Body: json.RawMessage(`{"amount":110}`)}, wantErr: apperr.ErrUnauthorized},
		{name: "Body fails validation", cc: member, env: Envelope{Event: "bid", Body: json.RawMessage(`{"amount":0}`)}, wantInput: "amount"},
		{name: "Handler error", cc: member, env: Envelope{Event: "fail"}, wantMsg: "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.dispatch(context.Background(), tt.cc, tt.env)
			if tt.wantInput != "" {
				var ie *apperr.InputError
				require.ErrorAs(t, err, &ie)
				assert.Equal(t, tt.wantInput, ie.Field)
				return
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			if tt.wantMsg != "" {
				assert.EqualError(t, err, tt.wantMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegister_EmptyEventPanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(NewRouter(), "", Anyone, func(context.Context, *ConnContext, struct{}) (any, error) { return nil, nil })
	})
}

func TestWrapRedisEvent(t *testing.T) {
	evt, out, err := wrapRedisEvent(`{"event":"bid","auction_id":"a1","current_bid":110}`)
	require.NoError(t, err)
	assert.Equal(t, "bid", evt)
	assert.JSONEq(t, `{"event":"auctions/bid","body":{"auction_id":"a1","current_bid":110}}`, string(out))

	evt, out, err = wrapRedisEvent(`{"auction_id":"a1"}`)
	require.NoError(t, err)
	assert.Equal(t, "unknown", evt)
	assert.JSONEq(t, `{"event":"auctions/unknown","body":{"auction_id":"a1"}}`, string(out))

	_, _, err = wrapRedisEvent(`not json`)
	assert.Error(t, err)
}
