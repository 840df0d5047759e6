package keys

import (
	"testing"
)

func TestMessageKeyRoundTrip(t *testing.T) {
	k, err := GenMessageKey("alice_bob", 1700000000123456789, 42)
	if err != nil {
		t.Fatalf("gen message key: %v", err)
	}
	if err := ValidateMessageKey(k); err != nil {
		t.Fatalf("generated key failed validation: %v", err)
	}
	parts, err := ParseMessageKey(k)
	if err != nil {
		t.Fatalf("parse message key: %v", err)
	}
	if parts.ConvID != "alice_bob" || parts.TS != 1700000000123456789 || parts.Seq != 42 {
		t.Fatalf("round trip mismatch: %+v", parts)
	}
}

func TestMessageKeyOrdering(t *testing.T) {
	// padded encoding must sort lexicographically in chronological order
	cases := []struct {
		ts  int64
		seq uint64
	}{
		{1, 0},
		{1, 1},
		{9, 999999},
		{10, 0},
		{1700000000000000000, 5},
		{1700000000000000001, 0},
	}
	var prev string
	for i, c := range cases {
		k, err := GenMessageKey("conv", c.ts, c.seq)
		if err != nil {
			t.Fatalf("gen key %d: %v", i, err)
		}
		if prev != "" && !(prev < k) {
			t.Fatalf("ordering violated: %q >= %q", prev, k)
		}
		prev = k
	}
}

func TestParseKeys(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T)
	}{
		{"conversation meta", func(t *testing.T) {
			k, _ := GenConversationMetaKey("crew1_2026-08-31")
			id, err := ParseConversationMetaKey(k)
			if err != nil || id != "crew1_2026-08-31" {
				t.Fatalf("got %q, %v", id, err)
			}
		}},
		{"typing", func(t *testing.T) {
			k, _ := GenTypingKey("conv", "alice")
			p, err := ParseTypingKey(k)
			if err != nil || p.ConvID != "conv" || p.UserID != "alice" {
				t.Fatalf("got %+v, %v", p, err)
			}
		}},
		{"read", func(t *testing.T) {
			k, _ := GenReadKey("conv", "bob")
			p, err := ParseReadKey(k)
			if err != nil || p.ConvID != "conv" || p.UserID != "bob" {
				t.Fatalf("got %+v, %v", p, err)
			}
		}},
		{"profile", func(t *testing.T) {
			k, _ := GenProfileKey("alice")
			id, err := ParseProfileKey(k)
			if err != nil || id != "alice" {
				t.Fatalf("got %q, %v", id, err)
			}
		}},
		{"user in conversation", func(t *testing.T) {
			k, _ := GenUserInConversationKey("alice", "conv")
			u, c, err := ParseUserInConversationKey(k)
			if err != nil || u != "alice" || c != "conv" {
				t.Fatalf("got %q %q, %v", u, c, err)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.run)
	}
}

func TestParseMessageKeyRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"c:conv:meta",
		"c:conv:m:123",
		"x:conv:m:00000000000000000001:000001",
		"c:conv:typ:alice",
	}
	for _, k := range bad {
		if _, err := ParseMessageKey(k); err == nil {
			t.Fatalf("expected error for %q", k)
		}
	}
}

func TestValidateID(t *testing.T) {
	good := []string{"alice", "alice_bob", "crew-1_2026-08-31", "a.b.c"}
	for _, id := range good {
		if err := ValidateID(id); err != nil {
			t.Fatalf("expected %q valid: %v", id, err)
		}
	}
	bad := []string{"", "has space", "semi;colon", "col:on", "slash/x"}
	for _, id := range bad {
		if err := ValidateID(id); err == nil {
			t.Fatalf("expected %q invalid", id)
		}
	}
}
