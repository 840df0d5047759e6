package pagination

import (
	"testing"

	"github.com/valyala/fasthttp"
)

func TestCursorRoundTrip(t *testing.T) {
	in := CursorPayload{LastMessageKey: "c:conv:m:00000000000000000123:000007"}
	cur := EncodeCursor(in)
	if cur == "" {
		t.Fatal("empty cursor")
	}
	out, err := DecodeCursor(cur)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.LastMessageKey != in.LastMessageKey {
		t.Fatalf("round trip mismatch: %q != %q", out.LastMessageKey, in.LastMessageKey)
	}
}

func TestDecodeCursorEmpty(t *testing.T) {
	cp, err := DecodeCursor("")
	if err != nil {
		t.Fatalf("empty cursor should decode to zero payload: %v", err)
	}
	if cp.LastMessageKey != "" || cp.LastConversationKey != "" {
		t.Fatalf("expected zero payload, got %+v", cp)
	}
}

func reqWithURI(uri string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI(uri)
	return ctx
}

func TestParsePaginationRequest(t *testing.T) {
	cases := []struct {
		uri    string
		limit  int
		cursor string
	}{
		{"/v1/conversations", DefaultLimit, ""},
		{"/v1/conversations?limit=10", 10, ""},
		{"/v1/conversations?limit=0", DefaultLimit, ""},
		{"/v1/conversations?limit=-5", DefaultLimit, ""},
		{"/v1/conversations?limit=9999999", DefaultLimit, ""},
		{"/v1/conversations?limit=nope", DefaultLimit, ""},
		{"/v1/conversations?cursor=%20abc%20", DefaultLimit, "abc"},
	}
	for _, c := range cases {
		got := ParsePaginationRequest(reqWithURI(c.uri))
		if got.Limit != c.limit || got.Cursor != c.cursor {
			t.Fatalf("%s: got limit=%d cursor=%q, want limit=%d cursor=%q", c.uri, got.Limit, got.Cursor, c.limit, c.cursor)
		}
	}
}

func TestNewPaginationResponse(t *testing.T) {
	r := NewPaginationResponse(25, true, "cur", 25)
	if r.Limit != 25 || !r.HasMore || r.NextCursor != "cur" || r.Count != 25 {
		t.Fatalf("unexpected response %+v", r)
	}
}

func TestConversationCursorRoundTrip(t *testing.T) {
	in := CursorPayload{LastConversationKey: "dm_alice_bob"}
	out, err := DecodeCursor(EncodeCursor(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.LastConversationKey != in.LastConversationKey {
		t.Fatalf("round trip mismatch: %q != %q", out.LastConversationKey, in.LastConversationKey)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, c := range []string{"not-base64!!", "YWJjZA=="} {
		if _, err := DecodeCursor(c); err == nil {
			t.Fatalf("expected error for %q", c)
		}
	}
}
