package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-demo/matchroom/internal/config"
	"github.com/go-demo/matchroom/internal/model"
	"github.com/go-demo/matchroom/internal/pkg/cache"
	"github.com/go-demo/matchroom/internal/pkg/database"
	"github.com/go-demo/matchroom/internal/pkg/metrics"
	"github.com/go-demo/matchroom/internal/pkg/notify"
	"github.com/go-demo/matchroom/internal/pkg/utils"
	"github.com/go-demo/matchroom/internal/repository"
	"github.com/go-demo/matchroom/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	schemaPath := flag.String("schema", "scripts/schema.sql", "DDL applied before seeding; empty to skip")
	flag.Parse()

	log.Println("Starting database seed...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := zap.NewNop()
	db, err := database.NewPostgres(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(&cfg.Redis, logger)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	ctx := context.Background()

	if *schemaPath != "" {
		ddl, err := os.ReadFile(*schemaPath)
		if err != nil {
			log.Fatalf("Failed to read schema: %v", err)
		}
		if err := database.ApplySchema(ctx, db, string(ddl)); err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}
		log.Printf("Applied schema from %s", *schemaPath)
	}

	userRepo := repository.NewUserRepository(db)
	roomService := service.NewRoomService(
		repository.NewRoomRepository(db),
		userRepo,
		notify.NewRedisPublisher(redisClient, logger),
		metrics.NewMetrics(prometheus.NewRegistry()),
		service.RoomOptions{
			CodeLength:   cfg.Matchmaking.RoomCodeLength,
			CodeAttempts: cfg.Matchmaking.RoomCodeAttempts,
		},
		logger,
	)
	jwtManager := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TokenTTL, cfg.JWT.Issuer)

	log.Println("Creating users...")
	users := []struct {
		username string
		level    model.ExperienceLevel
		isAdmin  bool
	}{
		{"alice", model.ExperienceAdvanced, false},
		{"bob", model.ExperienceIntermediate, false},
		{"charlie", model.ExperienceBeginner, false},
		{"diana", model.ExperienceIntermediate, false},
		{"evan", model.ExperienceBeginner, false},
		{"ops", model.ExperienceAdvanced, true},
	}

	var created []*model.User
	for _, u := range users {
		user := &model.User{
			Username:        u.username,
			ExperienceLevel: u.level,
			IsAdmin:         u.isAdmin,
		}

		if err := userRepo.Create(ctx, user); err != nil {
			log.Printf("User %s might already exist: %v", u.username, err)
			existing, getErr := userRepo.GetByUsername(ctx, u.username)
			if getErr != nil {
				continue
			}
			user = existing
		} else {
			log.Printf("Created user: %s", u.username)
		}
		created = append(created, user)
	}

	if len(created) < 2 {
		log.Println("Not enough users, skipping room creation")
		return
	}

	log.Println("Creating demo room...")
	room, err := roomService.CreateRoom(ctx, []string{created[0].ID, created[1].ID}, model.RoomSettings{
		GameSettings: model.GameSettings{
			GameMode:        model.GameModeRandom,
			Language:        "python",
			DifficultyLevel: model.DifficultyEasy,
			MaxPlayers:      4,
			TeamSize:        2,
		},
		RoundTime:      60,
		RoundsPerMatch: 3,
		Mode:           model.RoundModeClassic,
	})
	if err != nil {
		log.Printf("Failed to create demo room: %v", err)
	} else {
		log.Printf("Created room %s with %s and %s", room.Code, created[0].Username, created[1].Username)
	}

	log.Println("Seed completed successfully!")
	fmt.Println("\n--- Test Tokens ---")
	for _, u := range created {
		token, expiresAt, err := jwtManager.GenerateAccessToken(u.ID, u.Username, u.IsAdmin)
		if err != nil {
			log.Printf("Failed to mint token for %s: %v", u.Username, err)
			continue
		}
		fmt.Printf("%-8s admin=%-5t expires=%s\n  %s\n", u.Username, u.IsAdmin, expiresAt.Format("2006-01-02 15:04"), token)
	}
	if room != nil {
		fmt.Printf("\nDemo room: %s (channel %s)\n", room.Code, notify.RoomChannel(room.Code))
	}
}
