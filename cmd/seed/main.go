package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"duo-chat/auth"
	"duo-chat/domain"
	"duo-chat/repositories"
	"duo-chat/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
)

// Seeds a badger directory with demo accounts and conversations for local runs.
func main() {
	dbPath := flag.String("db", os.Getenv("BADGER_FILEPATH"), "Path to badger DB")
	users := flag.Int("users", 4, "Number of demo accounts")
	messages := flag.Int("messages", 10, "Messages per conversation")
	password := flag.String("password", "DemoPassword123!", "Password of every demo account")
	flag.Parse()

	if err := seed(*dbPath, *users, *messages, *password); err != nil {
		fmt.Fprintf(os.Stderr, "Seeding failed: %v\n", err)
		os.Exit(1)
	}
}

func seed(path string, numUsers, perConversation int, password string) error {
	if path == "" {
		return fmt.Errorf("missing -db (or BADGER_FILEPATH)")
	}
	logger := logs.GetLoggerFromString("INFO")
	ctx := context.Background()

	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer db.Close()

	userRepository := repositories.NewUserRepository(db, logger)
	conversations := repositories.NewConversationRepository(db, logger)
	// Seeded tokens are thrown away, any secret will do
	accounts := services.NewAuthService(userRepository, auth.NewTokenIssuer("seed-only-secret-not-used-for-serving", time.Minute), logger)

	created := make([]domain.User, 0, numUsers)
	for i := range numUsers {
		email := fmt.Sprintf("demo%d@duo.chat", i)
		if _, err := accounts.Register(ctx, auth.RegisterRequest{
			Name:     fmt.Sprintf("Demo %d", i),
			Email:    email,
			Password: password,
		}); err != nil {
			return fmt.Errorf("registering %s: %w", email, err)
		}
		account, err := userRepository.GetUserByEmail(ctx, email)
		if err != nil {
			return err
		}
		created = append(created, account.User)
	}

	pairs := 0
	for i, a := range created {
		for _, b := range created[i+1:] {
			conversation, err := conversations.FindOrCreate(ctx, a.ID, b.ID)
			if err != nil {
				return err
			}
			for k := range perConversation {
				author := lo.Ternary(k%2 == 0, a, b)
				if _, err := conversations.AppendMessage(ctx, conversation.ID, domain.Message{
					Text:        fmt.Sprintf("Message %d from %s", k+1, author.Name),
					MsgByUserID: author.ID,
				}); err != nil {
					return err
				}
			}
			pairs++
		}
	}

	logger.Info("Seed done", slog.Int("users", len(created)), slog.Int("conversations", pairs), slog.String("password", password))
	return nil
}
