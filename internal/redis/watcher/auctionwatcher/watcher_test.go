package auctionwatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuctionID(t *testing.T) {
	tests := []struct {
		key    string
		wantID string
		wantOK bool
	}{
		{key: "auc_t:a1", wantID: "a1", wantOK: true},
		{key: "auc_t:", wantOK: false},
		{key: "auc:a1", wantOK: false},
		{key: "rl:bid:u1", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			id, ok := auctionID(tt.key)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantID, id)
			}
		})
	}
}
