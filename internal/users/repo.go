package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wizdm/studio-backend/internal/database"
	"github.com/wizdm/studio-backend/internal/stream"
)

var ErrUserNotFound = errors.New("user not found")

// CollectionPath is where user profiles live, keyed by Firebase uid.
const CollectionPath = "/users"

// User is a profile document. Project owners are joined against it.
type User struct {
	ID          string         `store:"id" json:"id"`
	Lang        string         `store:"lang" json:"lang,omitempty"`
	DisplayName string         `store:"displayName" json:"displayName,omitempty"`
	Email       string         `store:"email" json:"email,omitempty"`
	PhotoURL    string         `store:"photoURL" json:"photoURL,omitempty"`
	Fields      map[string]any `store:",remain" json:"fields,omitempty"`
}

type Repo struct {
	store *database.Store
}

func NewRepo(store *database.Store) *Repo {
	return &Repo{store: store}
}

func Path(uid string) string {
	return database.Join(strings.TrimPrefix(CollectionPath, "/"), uid)
}

// Watch streams the profile of uid, emitting nil while it does not exist.
func (r *Repo) Watch(ctx context.Context, uid string) *stream.Stream[*User] {
	return database.DocumentWithID[User](ctx, r.store, Path(uid))
}

// Get returns the current profile of uid or nil.
func (r *Repo) Get(ctx context.Context, uid string) (*User, error) {
	return stream.First(ctx, r.Watch(ctx, uid))
}

type UpsertUser struct {
	FirebaseUID string
	Email       string
	DisplayName string
	PhotoURL    string
}

// EnsureUser creates the profile if missing. Empty fields never overwrite
// stored values.
func (r *Repo) EnsureUser(ctx context.Context, u UpsertUser) error {
	uid := strings.TrimSpace(u.FirebaseUID)
	if uid == "" {
		return fmt.Errorf("firebase_uid required")
	}

	data := database.Fields{}
	if u.Email != "" {
		data["email"] = u.Email
	}
	if u.DisplayName != "" {
		data["displayName"] = u.DisplayName
	}
	if u.PhotoURL != "" {
		data["photoURL"] = u.PhotoURL
	}

	return r.store.Merge(ctx, Path(uid), data)
}

// ProfileUpdate holds the editable profile fields; nil fields are left as
// they are.
type ProfileUpdate struct {
	Lang        *string
	DisplayName *string
	PhotoURL    *string
}

// UpdateProfile merges the given fields into an existing profile.
func (r *Repo) UpdateProfile(ctx context.Context, uid string, upd ProfileUpdate) (*User, error) {
	current, err := r.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrUserNotFound
	}

	data := database.Fields{}
	if upd.Lang != nil {
		data["lang"] = *upd.Lang
	}
	if upd.DisplayName != nil {
		data["displayName"] = *upd.DisplayName
	}
	if upd.PhotoURL != nil {
		data["photoURL"] = *upd.PhotoURL
	}
	if len(data) > 0 {
		if err := r.store.Merge(ctx, Path(uid), data); err != nil {
			return nil, err
		}
	}
	return r.Get(ctx, uid)
}
