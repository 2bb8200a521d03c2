package catalogs

import (
	"fmt"

	"github.com/agentstation/catalogsync/pkg/errors"
)

// Kind identifies the kind of catalog entity.
type Kind string

// Entity kinds.
const (
	KindDomain  Kind = "domain"
	KindService Kind = "service"
	KindMessage Kind = "message"
	KindChannel Kind = "channel"
)

// Kinds lists every entity kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindDomain, KindService, KindMessage, KindChannel}
}

// String returns the string form of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindDomain, KindService, KindMessage, KindChannel:
		return true
	}
	return false
}

// MessageType is the sub-kind of a message entity.
type MessageType string

// Message types.
const (
	MessageEvent   MessageType = "event"
	MessageCommand MessageType = "command"
	MessageQuery   MessageType = "query"
)

// MessageTypes lists every message type in a stable order.
func MessageTypes() []MessageType {
	return []MessageType{MessageEvent, MessageCommand, MessageQuery}
}

// IsValid reports whether t is a known message type.
func (t MessageType) IsValid() bool {
	switch t {
	case MessageEvent, MessageCommand, MessageQuery:
		return true
	}
	return false
}

// ParseKind parses a kind name. Message type names ("event", "command",
// "query") and plural directory names are accepted as well; the second
// return value carries the message type when one was named.
func ParseKind(s string) (Kind, MessageType, error) {
	switch s {
	case "domain", "domains":
		return KindDomain, "", nil
	case "service", "services":
		return KindService, "", nil
	case "channel", "channels":
		return KindChannel, "", nil
	case "message", "messages":
		return KindMessage, "", nil
	case "event", "events":
		return KindMessage, MessageEvent, nil
	case "command", "commands":
		return KindMessage, MessageCommand, nil
	case "query", "queries":
		return KindMessage, MessageQuery, nil
	}
	return "", "", errors.NewValidationError("kind", s, fmt.Sprintf("unknown entity kind %q", s))
}

// PluralPath returns the catalog directory that holds entities of the given kind.
func PluralPath(kind Kind, messageType MessageType) (string, error) {
	switch kind {
	case KindDomain:
		return "domains", nil
	case KindService:
		return "services", nil
	case KindChannel:
		return "channels", nil
	case KindMessage:
		switch messageType {
		case MessageEvent:
			return "events", nil
		case MessageCommand:
			return "commands", nil
		case MessageQuery:
			return "queries", nil
		}
		return "", errors.NewValidationError("messageType", messageType, "message entities require event, command or query")
	}
	return "", errors.NewValidationError("kind", kind, "unknown entity kind")
}
