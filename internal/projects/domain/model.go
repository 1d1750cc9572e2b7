package domain

import (
	"encoding/json"
	"fmt"

	"github.com/wizdm/studio-backend/internal/users"
)

// Project is a record of the /projects collection.
type Project struct {
	ID            string         `store:"id" json:"id"`
	Name          string         `store:"name" json:"name"`
	LowerCaseName string         `store:"lowerCaseName" json:"lowerCaseName"`
	Owner         Owner          `store:"owner" json:"owner"`
	Fields        map[string]any `store:",remain" json:"fields,omitempty"`
}

type OwnerKind int

const (
	// OwnerRaw carries the owner's user id as stored.
	OwnerRaw OwnerKind = iota
	// OwnerEmbedded carries the joined user profile.
	OwnerEmbedded
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerRaw:
		return "raw"
	case OwnerEmbedded:
		return "embedded"
	default:
		return fmt.Sprintf("OwnerKind(%d)", int(k))
	}
}

// Owner is either a raw user id or an embedded user profile.
type Owner struct {
	kind OwnerKind
	id   string
	user *users.User
}

func RawOwner(id string) Owner {
	return Owner{kind: OwnerRaw, id: id}
}

func EmbeddedOwner(u *users.User) Owner {
	return Owner{kind: OwnerEmbedded, id: u.ID, user: u}
}

func (o Owner) Kind() OwnerKind { return o.kind }

// ID returns the owner's user id for either kind.
func (o Owner) ID() string {
	switch o.kind {
	case OwnerEmbedded:
		return o.user.ID
	default:
		return o.id
	}
}

// User returns the embedded profile, nil for raw owners.
func (o Owner) User() *users.User { return o.user }

// DecodeField reads the stored representation, which is always the raw id.
func (o *Owner) DecodeField(raw any) error {
	id, ok := raw.(string)
	if !ok {
		return fmt.Errorf("owner: expected user id string, got %T", raw)
	}
	*o = RawOwner(id)
	return nil
}

func (o Owner) MarshalJSON() ([]byte, error) {
	if o.kind == OwnerEmbedded {
		return json.Marshal(o.user)
	}
	return json.Marshal(o.id)
}
