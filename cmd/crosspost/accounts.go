package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/abdulachik/crosspost/internal/account"
	"github.com/abdulachik/crosspost/internal/app"
	"github.com/abdulachik/crosspost/internal/config"
	"github.com/abdulachik/crosspost/internal/platform"
)

var (
	accountsActiveOnly bool
	accountAdd         account.CreateParams
	accountAddPlatform string
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage connected social accounts",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connected accounts",
	RunE:  runAccountsList,
}

var accountsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register an account connected outside crosspost",
	Long: `Register an account whose access token was obtained elsewhere.

Examples:
  crosspost accounts add --platform facebook --id 1234 --page-id 1234 --token EAAB...
  crosspost accounts add --platform instagram --id 9876 --ig-user-id 1784... --token EAAB...
  crosspost accounts add --platform linkedin --id abc123 --org-urn urn:li:organization:42 --token AQV...`,
	RunE: runAccountsAdd,
}

var accountsDeactivateCmd = &cobra.Command{
	Use:   "deactivate <account-id>",
	Short: "Stop publishing to an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsDeactivate,
}

func init() {
	accountsListCmd.Flags().BoolVar(&accountsActiveOnly, "active", false, "Only show active accounts")

	f := accountsAddCmd.Flags()
	f.StringVar(&accountAddPlatform, "platform", "", "facebook, instagram or linkedin")
	f.StringVar(&accountAdd.PlatformAccountID, "id", "", "Account id on the platform")
	f.StringVar(&accountAdd.Name, "name", "", "Display name")
	f.StringVar(&accountAdd.AccessToken, "token", "", "Access token")
	f.StringVar(&accountAdd.PageID, "page-id", "", "Facebook page id")
	f.StringVar(&accountAdd.IGUserID, "ig-user-id", "", "Instagram business user id")
	f.StringVar(&accountAdd.OrgURN, "org-urn", "", "LinkedIn organization URN")
	_ = accountsAddCmd.MarkFlagRequired("platform")
	_ = accountsAddCmd.MarkFlagRequired("token")

	accountsCmd.AddCommand(accountsListCmd, accountsAddCmd, accountsDeactivateCmd)
	rootCmd.AddCommand(accountsCmd)
}

// openRegistry opens the store and returns a registry over it with its closer.
func openRegistry(ctx context.Context) (*account.StoreRegistry, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return account.NewStoreRegistry(store), store.Close, nil
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	registry, closeFn, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	accounts, err := registry.List(ctx, accountsActiveOnly)
	if err != nil {
		return err
	}

	if len(accounts) == 0 {
		fmt.Println("No accounts connected.")
		return nil
	}

	for _, a := range accounts {
		state := "active"
		if !a.Active {
			state = "inactive"
		}
		fmt.Printf("%4d  %-9s  %-8s  %s (%s)\n", a.ID, a.Platform, state, a.Name, a.Destination())
	}
	return nil
}

func runAccountsAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	registry, closeFn, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	accountAdd.Platform = platform.Platform(accountAddPlatform)
	a, err := registry.Create(ctx, accountAdd)
	if err != nil {
		return err
	}

	fmt.Printf("Added %s account %d (%s)\n", a.Platform, a.ID, a.Destination())
	return nil
}

func runAccountsDeactivate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid account id %q", args[0])
	}

	registry, closeFn, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := registry.Deactivate(ctx, id); err != nil {
		return err
	}

	fmt.Printf("Account %d deactivated\n", id)
	return nil
}
