package db

import (
	"context"
	"database/sql"
)

const accountColumns = `id, platform, platform_account_id, name, access_token, page_id, ig_user_id, org_urn, is_active, connected_at`

func scanAccount(row rowScanner) (*Account, error) {
	var a Account
	if err := row.Scan(
		&a.ID,
		&a.Platform,
		&a.PlatformAccountID,
		&a.Name,
		&a.AccessToken,
		&a.PageID,
		&a.IgUserID,
		&a.OrgUrn,
		&a.IsActive,
		&a.ConnectedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAccountParams holds a newly connected account.
type CreateAccountParams struct {
	Platform          string
	PlatformAccountID string
	Name              string
	AccessToken       string
	PageID            string
	IgUserID          string
	OrgUrn            string
}

// CreateAccount inserts an active account.
func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (*Account, error) {
	row := q.queryRow(ctx, `
		INSERT INTO accounts (platform, platform_account_id, name, access_token, page_id, ig_user_id, org_urn, is_active, connected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+accountColumns,
		arg.Platform,
		arg.PlatformAccountID,
		arg.Name,
		arg.AccessToken,
		nullString(arg.PageID),
		nullString(arg.IgUserID),
		nullString(arg.OrgUrn),
		true,
		now(),
	)
	return scanAccount(row)
}

// GetAccount returns sql.ErrNoRows when the account does not exist.
func (q *Queries) GetAccount(ctx context.Context, id int64) (*Account, error) {
	return scanAccount(q.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
}

// ListAccounts returns accounts ordered by id.
func (q *Queries) ListAccounts(ctx context.Context, activeOnly bool) ([]*Account, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if activeOnly {
		rows, err = q.query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE is_active = ? ORDER BY id`, true)
	} else {
		rows, err = q.query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// SetAccountActive flips the active flag. It reports false for unknown ids.
func (q *Queries) SetAccountActive(ctx context.Context, id int64, active bool) (bool, error) {
	res, err := q.exec(ctx, `UPDATE accounts SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}
