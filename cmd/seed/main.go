package main

import (
	"context"
	"flag"
	"os"

	"github.com/bakehouse/api/internal/config"
	"github.com/bakehouse/api/internal/database"
	"github.com/bakehouse/api/internal/enum"
	"github.com/bakehouse/api/internal/logging"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

type sampleProduct struct {
	name  string
	sku   string
	price string
}

// sampleProducts gives a fresh install something to order.
var sampleProducts = []sampleProduct{
	{"White Bread Loaf", "BRD-WHITE", "2.50"},
	{"Whole Wheat Loaf", "BRD-WHEAT", "3.00"},
	{"Butter Croissant", "PST-CROIS", "1.25"},
	{"Chocolate Croissant", "PST-CHOCO", "1.50"},
	{"Cinnamon Roll", "PST-CINNA", "1.75"},
}

func main() {
	// CLI flags
	email := flag.String("email", "", "Admin email address")
	password := flag.String("password", "", "Admin password")
	name := flag.String("name", "", "Admin full name")
	withProducts := flag.Bool("products", true, "Also seed sample products")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat, "bakehouse-seed")

	// Fall back to environment variables, then defaults
	if *email == "" {
		*email = os.Getenv("SEED_EMAIL")
	}
	if *password == "" {
		*password = os.Getenv("SEED_PASSWORD")
	}
	if *name == "" {
		*name = os.Getenv("SEED_NAME")
	}
	if *email == "" {
		*email = "admin@bakehouse.local"
	}
	if *password == "" {
		*password = "password123"
		log.Warn().Msg("using default password 'password123'; change it immediately in production")
	}
	if *name == "" {
		*name = "Bakehouse Admin"
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("ping database")
	}

	// Seed in a transaction: all rows or none
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	userID, err := seedAdmin(ctx, tx, *email, *password, *name)
	if err != nil {
		log.Fatal().Err(err).Msg("seed admin")
	}

	if *withProducts {
		if err := seedProducts(ctx, tx); err != nil {
			log.Fatal().Err(err).Msg("seed products")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatal().Err(err).Msg("commit")
	}

	log.Info().Str("admin_id", userID.String()).Msg("seed completed")
}

// seedAdmin creates the admin user if it doesn't exist.
func seedAdmin(ctx context.Context, tx pgx.Tx, email, password, fullName string) (uuid.UUID, error) {
	q := database.New(tx)

	existing, err := q.GetUserByEmail(ctx, email)
	if err == nil {
		log.Info().Str("email", email).Str("id", existing.ID.String()).Msg("admin already exists, skipping")
		return existing.ID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, errors.Wrap(err, "check user")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "hash password")
	}

	user, err := q.CreateUser(ctx, database.CreateUserParams{
		Email:          email,
		HashedPassword: string(hashed),
		FullName:       fullName,
		Role:           enum.UserRoleAdmin,
	})
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "insert user")
	}

	log.Info().Str("email", email).Str("id", user.ID.String()).Msg("created admin user")
	return user.ID, nil
}

// seedProducts inserts the sample catalogue, leaving existing SKUs alone.
func seedProducts(ctx context.Context, tx pgx.Tx) error {
	const insertSQL = `
		INSERT INTO products (name, sku, unit_price)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT products_sku_key DO NOTHING
	`
	for _, p := range sampleProducts {
		tag, err := tx.Exec(ctx, insertSQL, p.name, p.sku, database.DecimalToNumeric(decimal.RequireFromString(p.price)))
		if err != nil {
			return errors.Wrapf(err, "insert product %s", p.sku)
		}
		if tag.RowsAffected() == 0 {
			log.Info().Str("sku", p.sku).Msg("product already exists, skipping")
			continue
		}
		log.Info().Str("sku", p.sku).Msg("created product")
	}
	return nil
}
