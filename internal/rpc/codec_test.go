package rpc

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall_RoundTrip(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	var buf bytes.Buffer
	require.NoError(t, EncodeCall(&buf, "TestRun.update",
		42,
		"a < b & c",
		true,
		2.5,
		at,
		[]byte("log"),
		[]string{"r1", "r2"},
		map[string]any{"notes": "n", "status": 1, "nested": []any{false, nil}},
		nil,
	))

	method, params, err := DecodeCall(&buf)
	require.NoError(t, err)
	assert.Equal(t, "TestRun.update", method)
	assert.Equal(t, []any{
		42,
		"a < b & c",
		true,
		2.5,
		at,
		[]byte("log"),
		[]any{"r1", "r2"},
		map[string]any{"notes": "n", "status": 1, "nested": []any{false, nil}},
		nil,
	}, params)
}

func TestDecodeCall_ValueForms(t *testing.T) {
	doc := `<?xml version="1.0"?>
<methodCall>
  <methodName>TestCase.filter</methodName>
  <params>
    <param><value>bare text</value></param>
    <param><value><i4>7</i4></value></param>
    <param><value><boolean>0</boolean></value></param>
    <param><value><dateTime.iso8601>20240102T03:04:05</dateTime.iso8601></value></param>
    <param><value><struct>
      <member><name>summary</name><value><string></string></value></member>
    </struct></value></param>
    <param><value><array><data></data></array></value></param>
  </params>
</methodCall>`

	method, params, err := DecodeCall(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "TestCase.filter", method)
	require.Len(t, params, 6)
	assert.Equal(t, "bare text", params[0])
	assert.Equal(t, 7, params[1])
	assert.Equal(t, false, params[2])
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), params[3])
	assert.Equal(t, map[string]any{"summary": ""}, params[4])
	assert.Equal(t, []any{}, params[5])
}

func TestDecodeCall_Malformed(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not xml", "hello"},
		{"no method", "<methodCall><params/></methodCall>"},
		{"bad int", "<methodCall><methodName>m</methodName><params><param><value><int>x</int></value></param></params></methodCall>"},
		{"bad boolean", "<methodCall><methodName>m</methodName><params><param><value><boolean>yes</boolean></value></param></params></methodCall>"},
		{"bad date", "<methodCall><methodName>m</methodName><params><param><value><dateTime.iso8601>soon</dateTime.iso8601></value></param></params></methodCall>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeCall(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, ErrBadRequest)
		})
	}
}

func TestResponse_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeResponse(&buf, []map[string]any{{"plan_id": "p1", "is_active": true}}))

	got, err := DecodeResponse(&buf)
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"plan_id": "p1", "is_active": true}}, got)
}

func TestResponse_Nil(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeResponse(&buf, nil))

	got, err := DecodeResponse(&buf)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFault_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeFault(&buf, Faultf(FaultPermission, "permission %s required", "x.y")))

	_, err := DecodeResponse(&buf)
	var f *Fault
	require.ErrorAs(t, err, &f)
	assert.Equal(t, FaultPermission, f.Code)
	assert.Equal(t, "permission x.y required", f.String)
}

func TestEncode_Unsupported(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, EncodeResponse(&buf, make(chan int)))
	assert.Error(t, EncodeResponse(&buf, map[int]string{1: "x"}))
}
