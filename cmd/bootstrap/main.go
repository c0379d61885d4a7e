package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/filtroclientes/api/internal/clients"
	"github.com/filtroclientes/api/internal/config"
	"github.com/filtroclientes/api/internal/database"
	"github.com/filtroclientes/api/internal/models"
	"github.com/filtroclientes/api/pkg/logger"
)

// bootstrap seeds the initial admin client so the credential management
// surface can be reached at all. Run once against a fresh database.
func main() {
	clientID := flag.String("client-id", "admin", "clientId for the seeded admin client")
	secret := flag.String("secret", "", "client secret (generated when empty)")
	flag.Parse()

	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()
	client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		logger.Fatalf("failed to connect to MongoDB: %v", err)
	}
	defer func() { _ = client.Disconnect(ctx) }()

	repo := clients.NewMongoRepository(client.Database(cfg.MongoDB.Database).Collection("clients"))
	svc := clients.NewService(repo)

	created, rawSecret, err := svc.Create(ctx, clients.CreateParams{
		ClientID:     *clientID,
		ClientSecret: *secret,
		Scopes:       []string{"admin", "read", "write"},
		Permissions: []models.Permission{
			{Method: "GET", Path: "^/api/.*$"},
			{Method: "POST", Path: "^/api/.*$"},
		},
		IsAdmin: true,
	})
	if err != nil {
		if err == clients.ErrExists {
			logger.Fatalf("client %q already exists; nothing to do", *clientID)
		}
		logger.Fatalf("failed to create admin client: %v", err)
	}

	// the raw secret is shown exactly once; only the hash is stored
	fmt.Printf("created admin client %q\n", created.ClientID)
	fmt.Printf("client_secret: %s\n", rawSecret)
}
