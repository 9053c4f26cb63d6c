package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pressline/go-content-server/internal/config"
	"github.com/pressline/go-content-server/storage/sqlite"
	"github.com/pressline/go-content-server/token"
)

var rootCmd = &cobra.Command{
	Use:           "tokenctl",
	Short:         "Manage API tokens",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(generateCmd(), listCmd(), revokeCmd(), rotateCmd(), infoCmd(), cleanupCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// withManager opens the store, builds the manager and guarantees the store is
// closed when the action returns.
func withManager(action func(*token.Manager) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	manager := token.NewManager(store.Tokens(), store.Users(), token.WithLogger(zerolog.Nop()))
	return action(manager)
}

func generateCmd() *cobra.Command {
	var (
		user      string
		name      string
		abilities []string
		expires   int
		meta      []string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Issue a new token and print the secret once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *token.Manager) error {
				metadata, err := parseMeta(meta)
				if err != nil {
					return err
				}

				plaintext, tok, err := m.CreateToken(token.CreateTokenRequest{
					Owner:         user,
					Name:          name,
					Abilities:     abilities,
					ExpiresInDays: expires,
					Metadata:      metadata,
				}, token.Provenance{ActorID: "tokenctl"})
				if err != nil {
					return err
				}

				fmt.Printf("Token %q created for owner %s\n\n", tok.Name, tok.OwnerID)
				fmt.Printf("  %s\n\n", plaintext)
				fmt.Println("Store this secret now. It cannot be shown again.")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "owner email or id (required)")
	cmd.Flags().StringVar(&name, "name", "", "token name (required)")
	cmd.Flags().StringSliceVar(&abilities, "abilities", nil, "comma separated abilities, defaults to *")
	cmd.Flags().IntVar(&expires, "expires", 0, "days until expiry, 0 means never")
	cmd.Flags().StringSliceVar(&meta, "meta", nil, "metadata entries as key=value")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func listCmd() *cobra.Command {
	var (
		user           string
		includeExpired bool
		status         string
		days           int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an owner's tokens, or classify tokens by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *token.Manager) error {
				var tokens []*token.Token
				var err error
				switch status {
				case "":
					if user == "" {
						return fmt.Errorf("--user or --status is required")
					}
					tokens, err = m.ListTokens(user, includeExpired)
				case "expiring":
					tokens, err = m.GetExpiringTokens(days)
				case "expired":
					tokens, err = m.GetExpiredTokens()
				case "unused":
					tokens, err = m.GetUnusedTokens(days)
				default:
					return fmt.Errorf("unknown status %q, want expiring, expired or unused", status)
				}
				if err != nil {
					return err
				}

				printTokens(tokens)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "owner email or id")
	cmd.Flags().BoolVar(&includeExpired, "include-expired", false, "include expired tokens")
	cmd.Flags().StringVar(&status, "status", "", "filter across all owners: expiring, expired or unused")
	cmd.Flags().IntVar(&days, "days", 0, "window for expiring/unused filters")
	return cmd
}

func revokeCmd() *cobra.Command {
	var (
		user string
		id   string
		name string
	)

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a token by id or name",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *token.Manager) error {
				revoked, err := m.RevokeToken(user, id, name)
				if err != nil {
					return err
				}
				if revoked {
					fmt.Println("Token revoked.")
				} else {
					fmt.Println("No matching token found.")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "owner email or id (required)")
	cmd.Flags().StringVar(&id, "id", "", "token id")
	cmd.Flags().StringVar(&name, "name", "", "token name")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func rotateCmd() *cobra.Command {
	var (
		user    string
		name    string
		newName string
		expires int
	)

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Replace a token with a fresh secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *token.Manager) error {
				plaintext, tok, err := m.RotateToken(token.RotateTokenRequest{
					Owner:         user,
					OldName:       name,
					NewName:       newName,
					ExpiresInDays: expires,
				}, token.Provenance{ActorID: "tokenctl"})
				if err != nil {
					return err
				}

				fmt.Printf("Token %q rotated to %q\n\n", name, tok.Name)
				fmt.Printf("  %s\n\n", plaintext)
				fmt.Println("Store this secret now. It cannot be shown again.")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "owner email or id (required)")
	cmd.Flags().StringVar(&name, "name", "", "name of the token to rotate (required)")
	cmd.Flags().StringVar(&newName, "new-name", "", "name for the replacement, defaults to the old name with a date suffix")
	cmd.Flags().IntVar(&expires, "expires", 0, "days until expiry, 0 inherits the remaining validity")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func infoCmd() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show one token record by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *token.Manager) error {
				tok, err := m.GetTokenInfo(id)
				if err != nil {
					return err
				}

				fmt.Printf("ID:         %s\n", tok.ID)
				fmt.Printf("Name:       %s\n", tok.Name)
				fmt.Printf("Owner:      %s\n", tok.OwnerID)
				fmt.Printf("Abilities:  %s\n", strings.Join(tok.Abilities, ", "))
				fmt.Printf("Status:     %s\n", tokenStatus(tok, time.Now()))
				fmt.Printf("Created:    %s by %s\n", tok.CreatedAt.Format(time.RFC3339), tok.CreatedBy)
				if tok.LastUsedAt != nil {
					fmt.Printf("Last used:  %s\n", tok.LastUsedAt.Format(time.RFC3339))
				} else {
					fmt.Printf("Last used:  never\n")
				}
				for k, v := range tok.Metadata {
					fmt.Printf("Meta:       %s=%v\n", k, v)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "token id (required)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete every expired token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(func(m *token.Manager) error {
				removed, err := m.RevokeExpiredTokens()
				if err != nil {
					return err
				}
				fmt.Printf("Removed %d expired token(s).\n", removed)
				return nil
			})
		},
	}
}

func printTokens(tokens []*token.Token) {
	if len(tokens) == 0 {
		fmt.Println("No tokens found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tABILITIES\tSTATUS\tEXPIRES\tLAST USED")
	now := time.Now()
	for _, tok := range tokens {
		expires := "never"
		if tok.ExpiresAt != nil {
			expires = tok.ExpiresAt.Format("2006-01-02")
		}
		lastUsed := "never"
		if tok.LastUsedAt != nil {
			lastUsed = tok.LastUsedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			tok.ID, tok.Name, strings.Join(tok.Abilities, ","), tokenStatus(tok, now), expires, lastUsed)
	}
	w.Flush()
}

func tokenStatus(tok *token.Token, now time.Time) string {
	switch {
	case tok.IsExpired(now):
		return "Expired"
	case tok.ExpiresWithin(now, 7*24*time.Hour):
		return "Expiring"
	default:
		return "Active"
	}
}

// parseMeta turns key=value pairs into token metadata.
func parseMeta(entries []string) (token.Metadata, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	metadata := make(token.Metadata, len(entries))
	for _, entry := range entries {
		key, value, found := strings.Cut(entry, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid metadata entry %q, want key=value", entry)
		}
		metadata[key] = value
	}
	return metadata, nil
}
