package auth

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/wizdm/studio-backend/config"
)

// FirebaseClients are the Admin SDK clients built from one app.
type FirebaseClients struct {
	Auth      *auth.Client
	Firestore *firestore.Client
}

// Close releases the Firestore connection.
func (c *FirebaseClients) Close() error {
	if c.Firestore == nil {
		return nil
	}
	return c.Firestore.Close()
}

// InitializeFirebase initializes the Firebase Admin SDK and returns its
// Auth and Firestore clients.
func InitializeFirebase(ctx context.Context, cfg *config.FirebaseConfig) (*FirebaseClients, error) {
	if cfg.CredentialsPath == "" {
		return nil, fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required")
	}

	var appCfg *firebase.Config
	if cfg.ProjectID != "" {
		appCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	opt := option.WithCredentialsFile(cfg.CredentialsPath)
	app, err := firebase.NewApp(ctx, appCfg, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Auth client: %w", err)
	}

	fsClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Firestore client: %w", err)
	}

	return &FirebaseClients{Auth: authClient, Firestore: fsClient}, nil
}
