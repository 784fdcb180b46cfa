package domain

import (
	"errors"
	"testing"
)

func TestParseSessionID(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		sender    string
		recipient string
	}{
		{"simple", "alice:bob", "alice", "bob"},
		{"extra separators go to recipient", "a:b:c", "a", "b:c"},
		{"empty sender", ":bob", "", "bob"},
		{"recipient trimmed", "s:  bob  ", "s", "bob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sid, err := ParseSessionID(tt.raw)
			if err != nil {
				t.Fatalf("ParseSessionID(%q): %v", tt.raw, err)
			}
			if sid.Sender != tt.sender {
				t.Errorf("Sender = %q, want %q", sid.Sender, tt.sender)
			}
			if sid.Recipient != tt.recipient {
				t.Errorf("Recipient = %q, want %q", sid.Recipient, tt.recipient)
			}
			if sid.Raw != tt.raw {
				t.Errorf("Raw = %q, want %q", sid.Raw, tt.raw)
			}
		})
	}
}

func TestParseSessionIDNoSeparator(t *testing.T) {
	for _, raw := range []string{"", "bob", "just a message"} {
		_, err := ParseSessionID(raw)
		if !errors.Is(err, ErrMalformedSessionID) {
			t.Errorf("ParseSessionID(%q) = %v, want ErrMalformedSessionID", raw, err)
		}
	}
}

func TestParseSessionIDEmptyRecipient(t *testing.T) {
	for _, raw := range []string{"alice:", "alice:   ", ":"} {
		_, err := ParseSessionID(raw)
		if !errors.Is(err, ErrInvalidRecipient) {
			t.Errorf("ParseSessionID(%q) = %v, want ErrInvalidRecipient", raw, err)
		}
	}
}
