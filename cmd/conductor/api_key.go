package cmd

import (
	"context"
	"fmt"

	"github.com/secondbreakfast/conductor/internal/config"
	"github.com/secondbreakfast/conductor/internal/db"
	"github.com/secondbreakfast/conductor/internal/db/models"
	"github.com/secondbreakfast/conductor/internal/db/repository"
	"github.com/secondbreakfast/conductor/internal/utils/hashutil"
	"github.com/secondbreakfast/conductor/internal/utils/randutil"

	"github.com/spf13/cobra"
)

var apiKeyCmd = &cobra.Command{
	Use:   "api-key",
	Short: "Manage conductor API keys",
}

func init() {
	setupAPIKeyCmd(apiKeyCmd)
}

func openAPIKeyRepo(ctx context.Context) (repository.IAPIKeyRepository, error) {
	driver, err := db.NewConnection(ctx, config.GetConfig())
	if err != nil {
		return nil, err
	}

	return repository.NewAPIKeyRepository(driver.GetDB()), nil
}

func setupAPIKeyCmd(cmd *cobra.Command) {
	newAPIKeyCmd := &cobra.Command{
		Use:   "new",
		Short: "Creates a new API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openAPIKeyRepo(cmd.Context())
			if err != nil {
				return err
			}

			key, err := randutil.RandomString(32)
			if err != nil {
				return err
			}

			mask := randutil.MaskString(key, 4, 4)
			apiKey := models.NewAPIKey(hashutil.Sha3256Hash([]byte(key)), mask)

			if _, err := repo.Create(cmd.Context(), apiKey); err != nil {
				return err
			}

			fmt.Printf("API key created: %s\n", key)
			return nil
		},
	}

	revokeAPIKeyCmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openAPIKeyRepo(cmd.Context())
			if err != nil {
				return err
			}

			key := args[0]
			if err := repo.RevokeAPIKeyWithHash(cmd.Context(), hashutil.Sha3256Hash([]byte(key))); err != nil {
				return err
			}

			fmt.Printf("API key revoked: %s\n", key)
			return nil
		},
	}

	listAPIKeysCmd := &cobra.Command{
		Use:   "list",
		Short: "List all API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openAPIKeyRepo(cmd.Context())
			if err != nil {
				return err
			}

			apiKeys, err := repo.ListAPIKeys(cmd.Context())
			if err != nil {
				return err
			}

			if len(apiKeys) == 0 {
				fmt.Println("No API keys found")
				return nil
			}

			fmt.Println("API keys:")
			for _, apiKey := range apiKeys {
				fmt.Printf("%s (Revoked: %t)\n", apiKey.KeyMask, apiKey.IsRevoked)
			}

			return nil
		},
	}

	apiKeyCmd.AddCommand(newAPIKeyCmd, revokeAPIKeyCmd, listAPIKeysCmd)
}
