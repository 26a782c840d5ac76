/*
 *    Copyright 2025 blockarchitech
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Command migrate applies the SQL schema without starting the server.
package main

import (
	"context"
	"log"
	"time"

	"blockarchitech.com/smartlife/internal/config"
	"blockarchitech.com/smartlife/internal/repository"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var dialect repository.Dialect
	switch cfg.StorageType {
	case "sqlite":
		dialect = repository.DialectSQLite
	case "postgres":
		dialect = repository.DialectPostgres
	default:
		log.Fatalf("STORAGE_TYPE %q has no SQL schema to migrate", cfg.StorageType)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := repository.OpenDB(ctx, dialect, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer db.Close()

	if err := repository.Migrate(ctx, db, dialect); err != nil {
		log.Fatalf("Error executing migration: %v", err)
	}
	log.Println("Migration completed successfully")
}
