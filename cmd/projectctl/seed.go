package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wizdm/studio-backend/internal/auth"
	"github.com/wizdm/studio-backend/internal/database"
	"github.com/wizdm/studio-backend/internal/projects/service"
	"github.com/wizdm/studio-backend/internal/users"
)

// Seed is a fixture file of user profiles and the projects they own.
type Seed struct {
	Users    []SeedUser    `yaml:"users"`
	Projects []SeedProject `yaml:"projects"`
}

type SeedUser struct {
	ID          string `yaml:"id"`
	Email       string `yaml:"email"`
	DisplayName string `yaml:"displayName"`
	PhotoURL    string `yaml:"photoURL"`
}

type SeedProject struct {
	Owner  string         `yaml:"owner"`
	Name   string         `yaml:"name"`
	Fields map[string]any `yaml:"fields"`
}

func parseSeed(r io.Reader) (*Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	for i, u := range seed.Users {
		if strings.TrimSpace(u.ID) == "" {
			return nil, fmt.Errorf("users[%d]: id required", i)
		}
	}
	for i, p := range seed.Projects {
		if strings.TrimSpace(p.Owner) == "" {
			return nil, fmt.Errorf("projects[%d]: owner required", i)
		}
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("projects[%d]: name required", i)
		}
	}
	return &seed, nil
}

// fields builds the document handed to ProjectService.Add. Extra fields never
// override the name.
func (p SeedProject) fields() database.Fields {
	data := database.Fields{}
	for k, v := range p.Fields {
		data[k] = v
	}
	data["name"] = p.Name
	return data
}

// apply writes the fixtures. Projects are created through a service bound to
// their owner so names are normalized the same way the API does it.
func (s *Seed) apply(ctx context.Context, store *database.Store) ([]string, error) {
	repo := users.NewRepo(store)
	for _, u := range s.Users {
		err := repo.EnsureUser(ctx, users.UpsertUser{
			FirebaseUID: u.ID,
			Email:       u.Email,
			DisplayName: u.DisplayName,
			PhotoURL:    u.PhotoURL,
		})
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}

	ids := make([]string, 0, len(s.Projects))
	for _, p := range s.Projects {
		svc := service.NewProjectService(store, auth.Static(p.Owner))
		id, err := svc.Add(ctx, p.fields())
		if err != nil {
			return ids, fmt.Errorf("seed project %q: %w", p.Name, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
