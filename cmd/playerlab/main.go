package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"playerlab/platform/auth"
	"playerlab/platform/email"
	"playerlab/platform/schema"
	"playerlab/platform/services"
	"playerlab/platform/storage"
	"strings"
	"time"

	caarlos0 "github.com/caarlos0/env/v10"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type platformEnv struct {
	PublicHostname string
	ShareDir       string
	JwtSecret      string
	DatabaseUri    string

	Email email.Config
}

func loadEnvFile(envFile string) {
	slog.Info(fmt.Sprintf("loading env from file %v", envFile))
	err := godotenv.Load(envFile)
	if err != nil {
		log.Fatalf("error loading .env file '%v': %v", envFile, err)
	}
}

func loadEnv() platformEnv {
	missingEnvs := []string{}

	requiredEnv := func(key string) string {
		env := os.Getenv(key)
		if env == "" {
			missingEnvs = append(missingEnvs, key)
			slog.Error("missing required env variable", "key", key)
		}
		return env
	}

	env := platformEnv{
		PublicHostname: requiredEnv("PUBLIC_HOSTNAME"),
		ShareDir:       requiredEnv("SHARE_DIR"),
		JwtSecret:      requiredEnv("JWT_SECRET"),
		DatabaseUri:    requiredEnv("DATABASE_URI"),
	}

	if err := caarlos0.Parse(&env.Email); err != nil {
		log.Fatalf("error parsing smtp env variables: %v", err)
	}

	if len(missingEnvs) > 0 {
		log.Fatalf("The following required env vars are missing: %s", strings.Join(missingEnvs, ", "))
	}

	return env
}

func (env *platformEnv) postgresDsn() string {
	parts, err := url.Parse(env.DatabaseUri)
	if err != nil {
		log.Fatalf("error parsing db uri: %v", err)
	}
	pwd, _ := parts.User.Password()
	dbname := strings.TrimPrefix(parts.Path, "/")
	return fmt.Sprintf("host=%v user=%v password=%v dbname=%v port=%v", parts.Hostname(), parts.User.Username(), pwd, dbname, parts.Port())
}

func initLogging(logFile *os.File) {
	log.SetFlags(log.Lshortfile | log.Ltime | log.Ldate)
	log.SetOutput(io.MultiWriter(logFile, os.Stderr))
	slog.Info("logging initialized", "log_file", logFile.Name())
}

func initDb(dsn string) *gorm.DB {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("error opening database connection: %v", err)
	}

	err = db.AutoMigrate(schema.AllModels()...)
	if err != nil {
		log.Fatalf("error migrating db schema: %v", err)
	}

	return db
}

func main() {
	envFile := flag.String("env", "", "File to load env variables from. If not specified will just load them from the environment variables already defined.")
	port := flag.Int("port", 8000, "Port to run server on")

	flag.Parse()

	if *envFile != "" {
		loadEnvFile(*envFile)
	}
	env := loadEnv()

	err := os.MkdirAll(filepath.Join(env.ShareDir, "logs/"), 0777)
	if err != nil {
		log.Fatalf("error creating log dir: %v", err)
	}

	logFile, err := os.OpenFile(filepath.Join(env.ShareDir, "logs/playerlab.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer logFile.Close()

	auditLog, err := os.OpenFile(filepath.Join(env.ShareDir, "logs/audit.log"), os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		log.Fatalf("error opening audit log file: %v", err)
	}
	defer auditLog.Close()

	initLogging(logFile)

	db := initDb(env.postgresDsn())

	sessions := auth.NewSessionProvider(db, auth.NewAuditLogger(auditLog), []byte(env.JwtSecret))

	var emailSender email.Sender
	if env.Email.Configured() {
		emailSender = email.NewSmtpSender(env.Email)
	} else {
		slog.Info("smtp env variables not set, emails will be logged instead of sent")
		emailSender = email.LogSender{}
	}

	uploadDir := filepath.Join(env.ShareDir, "uploads")
	if err := os.MkdirAll(uploadDir, 0777); err != nil {
		log.Fatalf("error creating upload dir: %v", err)
	}
	fileStorage := storage.NewSharedDisk(uploadDir, fmt.Sprintf("https://%v/uploads", env.PublicHostname))

	platform := services.NewPlatform(db, sessions, emailSender, fileStorage)

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{fmt.Sprintf("https://%v", env.PublicHostname)},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Mount("/api/v1", platform.Routes())
	r.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	slog.Info("starting server", "port", *port)
	err = server.ListenAndServe()
	if err != nil {
		log.Fatalf("listen and serve returned error: %v", err.Error())
	}
}
