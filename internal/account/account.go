// Package account resolves connected social accounts for the publisher.
package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/abdulachik/crosspost/internal/db"
	"github.com/abdulachik/crosspost/internal/platform"
)

// Account is a connected social media account.
type Account struct {
	ID                int64
	Platform          platform.Platform
	PlatformAccountID string
	Name              string
	AccessToken       string
	PageID            string
	IGUserID          string
	OrgURN            string
	Active            bool
	ConnectedAt       time.Time
}

// Destination returns the id the platform publishes to for this account.
func (a *Account) Destination() string {
	switch a.Platform {
	case platform.Facebook:
		if a.PageID != "" {
			return a.PageID
		}
	case platform.Instagram:
		if a.IGUserID != "" {
			return a.IGUserID
		}
	case platform.LinkedIn:
		if a.OrgURN != "" {
			return a.OrgURN
		}
		return "urn:li:person:" + a.PlatformAccountID
	}
	return a.PlatformAccountID
}

// Target builds the adapter target for this account.
func (a *Account) Target() platform.Target {
	return platform.Target{
		Destination: a.Destination(),
		AccessToken: a.AccessToken,
	}
}

// Registry looks accounts up by id. Get returns nil, nil when the account
// does not exist.
type Registry interface {
	Get(ctx context.Context, id int64) (*Account, error)
}

// StoreRegistry is a Registry backed by the database.
type StoreRegistry struct {
	store *db.Store
}

// NewStoreRegistry creates a registry over store.
func NewStoreRegistry(store *db.Store) *StoreRegistry {
	return &StoreRegistry{store: store}
}

// Get returns the account with the given id, or nil if there is none.
func (r *StoreRegistry) Get(ctx context.Context, id int64) (*Account, error) {
	row, err := r.store.GetAccount(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account %d: %w", id, err)
	}
	return fromRow(row), nil
}

// List returns all accounts, or only active ones.
func (r *StoreRegistry) List(ctx context.Context, activeOnly bool) ([]*Account, error) {
	rows, err := r.store.ListAccounts(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	accounts := make([]*Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, fromRow(row))
	}
	return accounts, nil
}

// CreateParams describes an account connected outside this service.
type CreateParams struct {
	Platform          platform.Platform
	PlatformAccountID string
	Name              string
	AccessToken       string
	PageID            string
	IGUserID          string
	OrgURN            string
}

// Create stores a new active account.
func (r *StoreRegistry) Create(ctx context.Context, p CreateParams) (*Account, error) {
	if !p.Platform.Valid() {
		return nil, fmt.Errorf("unknown platform %q", p.Platform)
	}
	if p.AccessToken == "" {
		return nil, errors.New("access token is required")
	}

	row, err := r.store.CreateAccount(ctx, db.CreateAccountParams{
		Platform:          string(p.Platform),
		PlatformAccountID: p.PlatformAccountID,
		Name:              p.Name,
		AccessToken:       p.AccessToken,
		PageID:            p.PageID,
		IgUserID:          p.IGUserID,
		OrgUrn:            p.OrgURN,
	})
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return fromRow(row), nil
}

// ErrNotFound is returned by Deactivate for unknown ids.
var ErrNotFound = errors.New("account not found")

// Deactivate stops the account from receiving future publishes.
func (r *StoreRegistry) Deactivate(ctx context.Context, id int64) error {
	ok, err := r.store.SetAccountActive(ctx, id, false)
	if err != nil {
		return fmt.Errorf("deactivate account %d: %w", id, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func fromRow(row *db.Account) *Account {
	return &Account{
		ID:                row.ID,
		Platform:          platform.Platform(row.Platform),
		PlatformAccountID: row.PlatformAccountID,
		Name:              row.Name,
		AccessToken:       row.AccessToken,
		PageID:            row.PageID.String,
		IGUserID:          row.IgUserID.String,
		OrgURN:            row.OrgUrn.String,
		Active:            row.IsActive,
		ConnectedAt:       row.ConnectedAt,
	}
}
