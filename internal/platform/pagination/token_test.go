package pagination

import (
	"errors"
	"testing"
)

func TestEncodeTokenEmptyCursor(t *testing.T) {
	token, err := EncodeToken(Cursor{})
	if err != nil {
		t.Fatalf("EncodeToken returned error: %v", err)
	}
	if token != "" {
		t.Fatalf("expected empty token, got %q", token)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := EncodeToken(Cursor{StartAfter: []any{"2026-03-14T12:30:00Z", "ord_01HTEST"}})
	if err != nil {
		t.Fatalf("EncodeToken returned error: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	cursor, err := DecodeToken(token)
	if err != nil {
		t.Fatalf("DecodeToken returned error: %v", err)
	}
	if len(cursor.StartAfter) != 2 {
		t.Fatalf("unexpected cursor: %+v", cursor)
	}
	if cursor.StartAfter[1] != "ord_01HTEST" {
		t.Fatalf("unexpected document id: %v", cursor.StartAfter[1])
	}
}

func TestDecodeTokenInvalid(t *testing.T) {
	if _, err := DecodeToken("not-base64!!"); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}

	if cursor, err := DecodeToken("   "); err != nil || len(cursor.StartAfter) != 0 {
		t.Fatalf("expected blank token to decode to empty cursor, got %+v / %v", cursor, err)
	}
}
