package rate

import (
	"fmt"
	"strings"
)

// Dimension is the axis attempts are grouped along.
type Dimension uint8

const (
	DimensionIP Dimension = iota
	DimensionAccount
	DimensionSession

	// NumDimensions is the size of the dimension enumeration.
	NumDimensions = int(DimensionSession) + 1
)

var dimensionNames = [NumDimensions]string{"ip", "account", "session"}

func (d Dimension) String() string {
	if int(d) >= NumDimensions {
		return fmt.Sprintf("dimension(%d)", d)
	}
	return dimensionNames[d]
}

// Valid reports whether d is a known dimension.
func (d Dimension) Valid() bool {
	return int(d) < NumDimensions
}

// ParseDimension maps a configuration or wire name to a Dimension.
func ParseDimension(s string) (Dimension, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range dimensionNames {
		if name == s {
			return Dimension(i), nil
		}
	}
	return 0, fmt.Errorf("unknown dimension %q", s)
}

// Action is the logical operation being throttled.
type Action uint8

const (
	ActionLogin Action = iota
	ActionGenerateCode
	ActionVerifyCode
	ActionResend
	ActionGenericAPI

	// NumActions is the size of the action enumeration.
	NumActions = int(ActionGenericAPI) + 1
)

var actionNames = [NumActions]string{"login", "generate-code", "verify-code", "resend", "generic-api"}

func (a Action) String() string {
	if int(a) >= NumActions {
		return fmt.Sprintf("action(%d)", a)
	}
	return actionNames[a]
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return int(a) < NumActions
}

// SecurityCritical reports whether a missing policy for a must be treated as
// an operational error rather than a permissive default.
func (a Action) SecurityCritical() bool {
	return a != ActionGenericAPI
}

// ParseAction maps a configuration or wire name to an Action.
func ParseAction(s string) (Action, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "-")
	for i, name := range actionNames {
		if name == s {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// Key identifies one attempt counter. Equal fields mean equal keys.
type Key struct {
	Dimension  Dimension
	Action     Action
	Identifier string
}

// String renders the key as dimension:action:identifier. The identifier is
// last so it may itself contain colons (IPv6).
func (k Key) String() string {
	return k.Dimension.String() + ":" + k.Action.String() + ":" + k.Identifier
}

// ParseKey is the inverse of [Key.String].
func ParseKey(s string) (Key, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[2] == "" {
		return Key{}, fmt.Errorf("malformed key %q", s)
	}
	dim, err := ParseDimension(parts[0])
	if err != nil {
		return Key{}, err
	}
	action, err := ParseAction(parts[1])
	if err != nil {
		return Key{}, err
	}
	return Key{Dimension: dim, Action: action, Identifier: parts[2]}, nil
}
