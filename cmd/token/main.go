// Command token issues an access token for an actor, for operators and
// scripts that call the API outside the web front end.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/crm-electoral-api/internal/auth"
	"github.com/crm-electoral-api/internal/models"
	"github.com/crm-electoral-api/internal/validation"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	_ = godotenv.Load()

	name := flag.String("name", "", "display name written to the historial")
	role := flag.String("role", "viewer", "admin, operador or viewer")
	seccional := flag.String("seccional", "", "chapter, required for operators")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if len(secret) < 32 {
		log.Fatal().Msg("JWT_SECRET must be at least 32 bytes")
	}

	actor := models.Actor{Name: *name, Role: models.ParseActorRole(*role)}
	if *seccional != "" {
		sec, ok := validation.CanonicalSeccional(*seccional)
		if !ok {
			log.Fatal().Str("seccional", *seccional).Msg("Unknown seccional")
		}
		actor.Seccional = sec
	}
	if actor.IsOperator() && actor.Seccional == "" {
		log.Fatal().Msg("Operators need -seccional")
	}

	token, err := auth.NewJWTManager(secret, *ttl).GenerateToken(uuid.NewString(), actor)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}

	log.Info().
		Str("name", actor.DisplayName()).
		Str("role", string(actor.Role)).
		Str("seccional", actor.Seccional).
		Dur("ttl", *ttl).
		Msg("Token issued")
	fmt.Println(token)
}
