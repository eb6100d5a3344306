package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/example/campus-portal/internal/persistence"
)

// AccountRepository implements persistence.AccountRepository using SQLite.
type AccountRepository struct {
	pool *ConnectionPool
}

var _ persistence.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository creates a SQLite account repository.
func NewAccountRepository(pool *ConnectionPool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// ReplaceAccounts swaps the stored snapshot for accounts in one transaction.
func (r *AccountRepository) ReplaceAccounts(ctx context.Context, accounts []persistence.AccountRecord) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
			return errors.Wrap(err, "sqlite: clear accounts")
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO accounts (id, display_name, email, credential_secret, email_verified, role, locale, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return errors.Wrap(err, "sqlite: prepare account insert")
		}
		defer stmt.Close()

		for i, account := range accounts {
			if account.ID == "" {
				return persistence.ErrConstraintViolation
			}
			_, err := stmt.ExecContext(ctx,
				account.ID,
				account.DisplayName,
				account.Email,
				account.CredentialSecret,
				account.EmailVerified,
				account.Role,
				account.Locale,
				i,
			)
			if err != nil {
				return mapError(err)
			}
		}
		return nil
	})
}

// ListAccounts returns the stored snapshot in position order.
func (r *AccountRepository) ListAccounts(ctx context.Context) ([]persistence.AccountRecord, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, display_name, email, credential_secret, email_verified, role, locale, position
		FROM accounts
		ORDER BY position ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite: list accounts")
	}
	defer rows.Close()

	accounts := make([]persistence.AccountRecord, 0)
	for rows.Next() {
		var account persistence.AccountRecord
		if err := rows.Scan(
			&account.ID,
			&account.DisplayName,
			&account.Email,
			&account.CredentialSecret,
			&account.EmailVerified,
			&account.Role,
			&account.Locale,
			&account.Position,
		); err != nil {
			return nil, errors.Wrap(err, "sqlite: scan account")
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite: iterate accounts")
	}
	return accounts, nil
}
