package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
	"testing"
)

// TestFramingRoundTrip is scenario 1 from the testable-properties list:
// encode {"jsonrpc":"2.0","id":1,"method":"x"} and check the exact wire
// prefix, then decode it back to the same value.
func TestFramingRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	c := NewConn(&buf, &buf)

	req := NewRequest(NewRequestID(1), "x", nil)
	if err := c.WriteMessage(req); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	wire := buf.String()
	wantBody := `{"jsonrpc":"2.0","id":1,"method":"x"}`
	wantPrefix := "Content-Length: " + strconv.Itoa(len(wantBody)) + "\r\n\r\n"
	if !strings.HasPrefix(wire, wantPrefix) {
		t.Fatalf("wire = %q, want prefix %q", wire, wantPrefix)
	}

	raw, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}

	var got, want map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal got: %v", err)
	}
	wantJSON := `{"jsonrpc":"2.0","id":1,"method":"x"}`
	if err := json.Unmarshal([]byte(wantJSON), &want); err != nil {
		t.Fatalf("unmarshal want: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("field %q = %v, want %v", k, got[k], v)
		}
	}
}

func TestReadMessageHeadersCaseInsensitiveAndIgnoreUnknown(t *testing.T) {
	body := `{"jsonrpc":"2.0","method":"ping"}`
	raw := "content-LENGTH: " + strconv.Itoa(len(body)) + "\r\nX-Unknown: whatever\r\n\r\n" + body
	c := NewConn(strings.NewReader(raw), io.Discard)

	got, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(got) != body {
		t.Errorf("got %q, want %q", got, body)
	}
}

func TestReadMessageCleanEOFBetweenMessages(t *testing.T) {
	c := NewConn(strings.NewReader(""), io.Discard)
	_, err := c.ReadMessage()
	if !errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}

func TestReadMessageMissingContentLengthIsFatal(t *testing.T) {
	c := NewConn(strings.NewReader("X-Foo: bar\r\n\r\n"), io.Discard)
	if _, err := c.ReadMessage(); err == nil {
		t.Fatal("ReadMessage: got nil error, want error for missing Content-Length")
	}
}

func TestReadMessageEOFMidBodyIsError(t *testing.T) {
	c := NewConn(strings.NewReader("Content-Length: 20\r\n\r\n{\"short\":true}"), io.Discard)
	_, err := c.ReadMessage()
	if err == nil {
		t.Fatal("ReadMessage: got nil error, want error for truncated body")
	}
	if errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want a non-io.EOF wrapped error for mid-message truncation", err)
	}
}
