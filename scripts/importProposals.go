package main

import (
	"bufio"
	"bytes"
	"context"
	"log"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"presale/config"
	"presale/database"
	"presale/middleware"
	"presale/models"
	"presale/repository"
)

// Imports legacy proposal records, one JSON document per line, and seeds a
// supervisor account when SEED_SUPERVISOR_EMAIL is set.
func main() {
	// Load config and connect to database
	cfg := config.LoadConfig()
	db := database.ConnectDb(cfg)

	seedSupervisor()

	path := "proposals.jsonl"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	file, err := os.Open(path)
	if err != nil {
		log.Fatalf("Failed to open import file: %v", err)
	}
	defer file.Close()

	repo := repository.NewProposals(db)
	ctx := context.Background()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)

	imported := 0
	skipped := 0
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		p, err := repo.Import(ctx, append([]byte(nil), raw...))
		if err != nil {
			log.Printf("Skipping line %d: %v", line, err)
			skipped++
			continue
		}
		imported++
		if imported%500 == 0 {
			log.Printf("Imported %d proposals, last %s", imported, p.ID)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("Failed to read import file: %v", err)
	}

	log.Printf("Import complete: %d imported, %d skipped", imported, skipped)
}

func seedSupervisor() {
	email := strings.ToLower(strings.TrimSpace(os.Getenv("SEED_SUPERVISOR_EMAIL")))
	password := os.Getenv("SEED_SUPERVISOR_PASSWORD")
	if email == "" {
		return
	}
	if len(password) < 8 {
		log.Fatal("SEED_SUPERVISOR_PASSWORD must be at least 8 characters")
	}

	db := database.Database.Db
	if err := db.Where("email = ?", email).First(&models.Agent{}).Error; err == nil {
		log.Printf("Supervisor %s already exists", email)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	agent := models.Agent{Name: "Supervisor", Email: email, Role: middleware.RoleSupervisor, Password: string(hash)}
	if err := db.Create(&agent).Error; err != nil {
		log.Fatalf("Failed to create supervisor: %v", err)
	}
	log.Printf("Supervisor %s created", email)
}
