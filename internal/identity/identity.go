package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/IsmaHaa12/smp-announcement/internal/crypto"
	"github.com/IsmaHaa12/smp-announcement/internal/model"
)

var ErrInvalidCredentials = errors.New("invalid_credentials")

// Provider is the identity service: it proves who the caller is and returns
// the authoritative email. Authorization is layered on top by the caller.
type Provider interface {
	Authenticate(ctx context.Context, email, password string) (model.Identity, error)
	SignOut(ctx context.Context, identity model.Identity) error
}

type user struct {
	ID           string
	Email        string
	PasswordHash string
}

// Directory authenticates against the users table of the hosted database.
type Directory struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
}

func NewDirectory(pool *pgxpool.Pool, log logrus.FieldLogger) *Directory {
	return &Directory{pool: pool, log: log.WithField("component", "identity")}
}

func (d *Directory) Authenticate(ctx context.Context, email, password string) (model.Identity, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return model.Identity{}, ErrInvalidCredentials
	}
	u, err := d.getUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Identity{}, ErrInvalidCredentials
		}
		return model.Identity{}, pkgerrors.Wrap(err, "identity lookup")
	}
	if err := crypto.CheckPassword(u.PasswordHash, password); err != nil {
		return model.Identity{}, ErrInvalidCredentials
	}
	return model.Identity{UserID: u.ID, Email: strings.ToLower(u.Email)}, nil
}

// SignOut has nothing to revoke server-side; access tokens are short lived
// and bound to the session, which the caller clears.
func (d *Directory) SignOut(_ context.Context, identity model.Identity) error {
	d.log.WithField("user_id", identity.UserID).Debug("identity signed out")
	return nil
}

func (d *Directory) CreateUser(ctx context.Context, id, email, password string) error {
	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = d.pool.Exec(ctx, `
    INSERT INTO users (id, email, password_hash)
    VALUES ($1, $2, $3)
    ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash
  `, id, model.NormalizeEmail(email), hash)
	return pkgerrors.Wrap(err, "create user")
}

func (d *Directory) getUserByEmail(ctx context.Context, email string) (user, error) {
	var u user
	row := d.pool.QueryRow(ctx, `
    SELECT id::text, email, password_hash
    FROM users
    WHERE email = $1
  `, email)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash)
	return u, err
}
