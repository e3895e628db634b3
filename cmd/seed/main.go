package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"time"

	"matchbot/pkg/cache"
	"matchbot/pkg/config"
	"matchbot/pkg/database"
	"matchbot/pkg/logger"
	"matchbot/pkg/models"
	"matchbot/pkg/photostore"
	"matchbot/pkg/s3"

	"gorm.io/gorm"
)

type demoProfile struct {
	platformID int64
	username   string
	firstname  string
	lastname   string
	age        int
	gender     string
	bio        string
}

var demoProfiles = []demoProfile{
	{100001, "anna_k", "Anna", "Kuznetsova", 24, "female", "Coffee, climbing and old films"},
	{100002, "ivan_p", "Ivan", "Petrov", 27, "male", "Backend developer, runs on weekends"},
	{100003, "maria_s", "Maria", "Smirnova", 22, "female", "Student, loves board games"},
	{100004, "oleg_v", "Oleg", "Volkov", 31, "male", "Photographer"},
	{100005, "elena_m", "Elena", "Morozova", 29, "female", "Looking for someone to travel with"},
	{100006, "dmitry_n", "Dmitry", "Novikov", 25, "male", "Guitar and mountains"},
}

func main() {
	photoURL := flag.String("photo-url", "https://picsum.photos/480/640", "source of demo profile photos")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New()
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Error("Failed to connect to database: %v", err)
		panic(err)
	}

	s3Client, err := s3.NewClient(cfg)
	if err != nil {
		log.Error("Failed to create S3 client: %v", err)
		panic(err)
	}

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Error("Failed to connect to redis: %v", err)
		panic(err)
	}
	photos := photostore.New(s3Client, cache.NewPhotoCache(redisClient, cfg.PhotoCacheTTL), log)

	if err := seedDatabase(context.Background(), db, photos, *photoURL, log); err != nil {
		log.Error("Failed to seed database: %v", err)
		panic(err)
	}

	log.Info("Database seeded successfully!")
}

func seedDatabase(ctx context.Context, db *gorm.DB, photos *photostore.Store, photoURL string, log *logger.Logger) error {
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	userIDs := make([]uint, 0, len(demoProfiles))
	for i, p := range demoProfiles {
		var existing models.User
		err := db.Where("tg_id = ?", p.platformID).First(&existing).Error
		if err == nil {
			log.Info("User %s already exists, skipping", p.username)
			userIDs = append(userIDs, existing.ID)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up user %s: %w", p.username, err)
		}

		image, err := fetchPhoto(httpClient, photoURL)
		if err != nil {
			log.Error("Failed to fetch photo for %s: %v", p.username, err)
			continue
		}
		url, err := photos.Store(ctx, image, fmt.Sprintf("seed_%d.jpg", i))
		if err != nil {
			log.Error("Failed to store photo for %s: %v", p.username, err)
			continue
		}

		user := &models.User{
			PlatformID: p.platformID,
			Username:   p.username,
			Firstname:  p.firstname,
			Lastname:   p.lastname,
			Age:        p.age,
			Gender:     p.gender,
			Bio:        p.bio,
			Rating:     models.DefaultRating,
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(user).Error; err != nil {
				return err
			}
			if err := tx.Create(&models.Photo{UserID: user.ID, URL: url}).Error; err != nil {
				return err
			}
			return tx.Create(models.DefaultPreference(user.ID)).Error
		})
		if err != nil {
			log.Error("Failed to create user %s: %v", p.username, err)
			continue
		}

		log.Info("Created user: %s @%s (%d)", user.FullName(), p.username, p.platformID)
		userIDs = append(userIDs, user.ID)
	}

	// Everyone likes the first profile so a fresh user can get a match right away.
	if len(userIDs) == 0 {
		return nil
	}
	target := userIDs[0]
	for _, from := range userIDs[1:] {
		like := &models.Like{FromUserID: from, ToUserID: target, IsLike: true, LikedAt: time.Now()}
		if err := db.Where(models.Like{FromUserID: from, ToUserID: target}).FirstOrCreate(like).Error; err != nil {
			log.Error("Failed to create like %d -> %d: %v", from, target, err)
		}
	}

	log.Info("Created test likes")
	return nil
}

func fetchPhoto(httpClient *http.Client, url string) ([]byte, error) {
	resp, err := httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("photo source returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("received empty photo")
	}
	return data, nil
}
