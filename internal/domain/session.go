package domain

import (
	"strings"
)

// SessionIDSeparator splits the sender token from the recipient name in a
// session id.
const SessionIDSeparator = ":"

// SessionID is a parsed "<sender>:<recipient>" composite identifier.
type SessionID struct {
	Raw       string
	Sender    string
	Recipient string
}

// ParseSessionID splits raw on the FIRST separator only, so recipient names
// may themselves contain the separator: "a:b:c" yields sender "a" and
// recipient "b:c". It returns ErrMalformedSessionID when no separator is
// present and ErrInvalidRecipient when the recipient is empty after
// trimming. Validation happens before any lookup or storage.
func ParseSessionID(raw string) (*SessionID, error) {
	sender, recipient, found := strings.Cut(raw, SessionIDSeparator)
	if !found {
		return nil, NewDomainError("ParseSessionID", ErrMalformedSessionID, raw)
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return nil, NewDomainError("ParseSessionID", ErrInvalidRecipient, raw)
	}
	return &SessionID{
		Raw:       raw,
		Sender:    sender,
		Recipient: recipient,
	}, nil
}
