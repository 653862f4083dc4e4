package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONOutsideDev(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "prod")

	l.Info("order confirmed", "order_id", "o-1")
	l.Debug("hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "order confirmed", rec["msg"])
	assert.Equal(t, "o-1", rec["order_id"])
}

func TestNewLogger_TextInDev(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "dev")

	l.Debug("sweep", "expired", 2)

	assert.Contains(t, buf.String(), "msg=sweep")
	assert.Contains(t, buf.String(), "expired=2")
}
