package app

import (
	"context"
	"log/slog"

	"github.com/linkapp/backend/internal/auth"
	"github.com/linkapp/backend/internal/chat"
	"github.com/linkapp/backend/internal/config"
	"github.com/linkapp/backend/internal/db"
	"github.com/linkapp/backend/internal/email"
	"github.com/linkapp/backend/internal/handlers"
	"github.com/linkapp/backend/internal/relationship"
	"github.com/linkapp/backend/internal/repositories"
	"github.com/linkapp/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned hub still needs to be started with Run.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, error) {
	users := repositories.NewPostgresUserRepository(pool)
	chats := repositories.NewPostgresChatRepository(pool)
	tokens := auth.NewService(cfg.Tokens, repositories.NewPostgresTokenStore(pool))

	images, err := storage.NewS3ImageStore(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, err
	}

	return handlers.Dependencies{
		Users:         users,
		Posts:         repositories.NewPostgresPostRepository(pool),
		Chats:         chats,
		Relationships: relationship.NewEngine(users),
		Tokens:        tokens,
		Hasher:        auth.NewHasher(cfg.BcryptCost),
		Email:         email.NewSMTPSender(cfg.SMTP),
		Images:        images,
		Hub:           chat.NewHub(chats, slog.Default()),
		ClientURL:     cfg.ClientURL,
	}, nil
}
