package notify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	msg := PushMessage{
		ID:        "m-1",
		DeviceUID: "dev-1",
		Token:     "tok-1",
		Title:     MessageTitle,
		Body:      "body",
		CreatedAt: time.Date(2024, 5, 1, 22, 0, 0, 0, time.UTC),
	}
	km, err := serializeToMessage(msg)
	require.NoError(t, err)

	assert.Equal(t, "dev-1", string(km.Key))
	headers := map[string]string{}
	for _, h := range km.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "m-1", headers["message_id"])
	assert.Equal(t, "2024-05-01T22:00:00Z", headers["created_at"])

	var decoded PushMessage
	require.NoError(t, json.Unmarshal(km.Value, &decoded))
	assert.Equal(t, msg, decoded)
}

func TestPartialErrorCountsFailures(t *testing.T) {
	err := &PartialError{Errs: []error{nil, assert.AnError, nil, assert.AnError}}
	assert.Equal(t, 2, err.Failed())
	assert.Equal(t, "2 of 4 messages failed", err.Error())
}
