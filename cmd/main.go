package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"ClinicCash/internal/appmanager"
	"ClinicCash/internal/storage"
)

// InitDB loads DB config from env vars
func InitDB() (*sql.DB, error) {
	user := os.Getenv("DB_USER")
	pass := os.Getenv("DB_PASSWORD")
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	name := os.Getenv("DB_NAME")
	connStr := fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		user, pass, host, port, name,
	)
	return sql.Open("postgres", connStr)
}

func pgxConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_HOST"), os.Getenv("DB_PORT"), os.Getenv("DB_NAME"),
	)
}

func main() {
	// Load .env for local dev
	_ = godotenv.Load(".env")

	if os.Getenv("STORAGE") != "memory" {
		db, err := InitDB()
		if err != nil {
			log.Fatal("failed to connect to DB:", err)
		}
		appmanager.SetDB(db)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := storage.EnsureSchema(ctx, db); err != nil {
			cancel()
			log.Fatal("failed to ensure schema:", err)
		}
		cancel()

		pool, err := pgxpool.New(context.Background(), pgxConnString())
		if err != nil {
			log.Fatal("failed to create pgx pool:", err)
		}
		appmanager.SetPgxPool(pool)
	}

	manager := appmanager.NewAppManager()

	servicesCfg, err := appmanager.LoadServiceSequence("services.yaml")
	if err != nil {
		servicesCfg, err = appmanager.LoadServiceSequence("../services.yaml")
	}
	if err != nil {
		log.Fatal("failed to load service sequence:", err)
	}

	manager.AutoRegisterServices(servicesCfg)

	if err := manager.StartAll(); err != nil {
		log.Fatal("failed to start:", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	if err := manager.StopAll(); err != nil {
		log.Fatal("failed to stop:", err)
	}
}
