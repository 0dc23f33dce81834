package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go-material-store/internal/repository"
	"go-material-store/internal/service"
	"go-material-store/pkg/cache"
	"go-material-store/pkg/config"
	"go-material-store/pkg/database"
	"go-material-store/pkg/jwt"
	"go-material-store/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "reset-password"})

	// 1. Load Env
	_ = godotenv.Load()

	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "new password (min 8 characters)")
	flag.Parse()
	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: reset-password -email <email> -password <new password>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "load config", err)
		os.Exit(1)
	}
	ctx := logg.WithField(context.Background(), "email", *email)

	// 2. Setup Database
	db, err := database.ConnectDB(cfg.DB, true)
	if err != nil {
		logg.Error(ctx, "connect database", err)
		os.Exit(1)
	}
	defer database.Close(db)

	// 3. Cached sessions live in redis when the API runs with it
	var store cache.Store = cache.NewMemory()
	if cfg.Redis.Enabled() {
		redisStore, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logg.Error(ctx, "connect redis", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		store = redisStore
	}

	// 4. Reset and sign out every session
	auth := service.NewAuthService(repository.NewUserRepo(db), repository.NewRoleRepo(db),
		jwt.NewIssuer(cfg.JWT), store, cfg.Redis.SessionTTL, logg)
	if err := auth.ResetPassword(ctx, *email, *password); err != nil {
		logg.Error(ctx, "reset password", err)
		os.Exit(1)
	}

	fmt.Printf("password for %s has been reset\n", *email)
}
