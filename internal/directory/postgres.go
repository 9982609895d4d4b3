package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"callrelay/pkg/utils"
)

// PostgresDirectory reads user profiles from the accounts schema.
//
// Expected table:
//
//	users(user_id TEXT PRIMARY KEY, display_name TEXT NOT NULL,
//	      email TEXT NOT NULL, push_token TEXT NOT NULL DEFAULT '')
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Resolve(ctx context.Context, userID string) (User, error) {
	if userID == "" {
		return User{}, ErrInvalidArgument
	}

	const q = `
		SELECT user_id, display_name, email, push_token
		FROM users
		WHERE user_id = $1`

	var u User
	err := d.db.QueryRowContext(ctx, q, userID).Scan(&u.ID, &u.DisplayName, &u.Email, &u.PushToken)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("directory: resolve %s: %w", userID, err)
	}
	return u, nil
}

func (d *PostgresDirectory) SetPushToken(ctx context.Context, userID, token string) error {
	if userID == "" {
		return ErrInvalidArgument
	}

	return utils.WithTx(ctx, d.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const q = `UPDATE users SET push_token = $2 WHERE user_id = $1`
		res, err := tx.ExecContext(ctx, q, userID, token)
		if err != nil {
			return fmt.Errorf("directory: set push token: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}
