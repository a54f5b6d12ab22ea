package security

import (
	"bufio"
	"bytes"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMaskCredential(t *testing.T) {
	require.Equal(t, "", MaskCredential(""))
	require.Equal(t, "***", MaskCredential("abc"))
	require.Equal(t, "ab****", MaskCredential("abcdef"))
	require.Equal(t, "abcd****mnop", MaskCredential("abcdefghmnop"))
}

func TestMaskString(t *testing.T) {
	got := MaskString("Authorization: token kitekey123:accesstoken987654")
	require.NotContains(t, got, "kitekey123")
	require.NotContains(t, got, "accesstoken987654")

	got = MaskString("POST /session/token api_key=myapikey123&request_token=reqtok0987654")
	require.NotContains(t, got, "myapikey123")
	require.NotContains(t, got, "reqtok0987654")
	require.Contains(t, got, "/session/token")
}

func TestMaskValues(t *testing.T) {
	v := url.Values{}
	v.Set("i", "NSE:INFY")
	v.Set("access_token", "abcdefghijklmnop")

	got := MaskValues(v)
	require.Contains(t, got, "i=NSE%3AINFY")
	require.NotContains(t, got, "abcdefghijklmnop")
	require.Equal(t, "", MaskValues(nil))
}

func TestAccessController(t *testing.T) {
	ac := NewAccessController(true, zerolog.Nop())

	require.NoError(t, ac.CheckPermission(OpRead))

	err := ac.CheckPermission(OpPlaceOrder)
	var roErr *ReadOnlyError
	require.ErrorAs(t, err, &roErr)
	require.Equal(t, OpPlaceOrder, roErr.Operation)

	require.True(t, ac.IsReadOnly())
	require.NoError(t, NewAccessController(false, zerolog.Nop()).CheckPermission(OpPlaceOrder))
}

func TestAuditTrail_RecordsMaskedJSONLines(t *testing.T) {
	var buf bytes.Buffer
	trail := NewAuditTrail(&buf)
	trail.now = func() time.Time { return time.Date(2024, 6, 5, 4, 0, 0, 0, time.UTC) }

	require.NoError(t, trail.Record(AuditEvent{
		Operation:  OpPlaceOrder,
		Provider:   "zerodha",
		Instrument: "NSE:INFY",
		Reference:  "240605000000001",
		Success:    true,
	}))
	require.NoError(t, trail.Record(AuditEvent{
		Operation: OpCancelOrder,
		Provider:  "zerodha",
		ErrorMsg:  "Authorization: token kitekey123:accesstoken987654 rejected",
	}))

	var events []AuditEvent
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var ev AuditEvent
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, 2)
	require.Equal(t, OpPlaceOrder, events[0].Operation)
	require.True(t, events[0].Success)
	require.Equal(t, trail.SessionID(), events[0].SessionID)
	require.Equal(t, trail.SessionID(), events[1].SessionID)
	require.True(t, events[0].Timestamp.Equal(time.Date(2024, 6, 5, 4, 0, 0, 0, time.UTC)))
	require.NotContains(t, events[1].ErrorMsg, "accesstoken987654")
}

func TestOpenAuditLog(t *testing.T) {
	cfg := DefaultAuditConfig()
	cfg.Dir = filepath.Join(t.TempDir(), "audit")

	trail, err := OpenAuditLog(cfg)
	require.NoError(t, err)
	require.NoError(t, trail.Record(AuditEvent{Operation: OpDeleteGTT, Provider: "zerodha", Reference: "123"}))
	require.NoError(t, trail.Close())

	data, err := os.ReadFile(filepath.Join(cfg.Dir, "audit.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"operation":"DELETE_GTT"`)
}
