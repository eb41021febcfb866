package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/querybridge/querybridge/internal/domain/auth"
)

var hashKeyArgon2 bool

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [api-key]",
	Short: "Generate a hash for an API key",
	Long: `Generate a hash of an API key for use in config.

The default output format is "sha256:<hex>". With --argon2 the output is
an argon2id hash. Either form can be used directly in the auth.api_key
config field.

Example:
  querybridge hash-key "my-secret-api-key"
  # Output: sha256:7d5e8c...

Security note: The key will appear in shell history.
Consider clearing history after use or using an environment variable:
  querybridge hash-key "$MY_API_KEY"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if hashKeyArgon2 {
			hash, err := auth.HashKeyArgon2id(key)
			if err != nil {
				return fmt.Errorf("failed to hash key: %w", err)
			}
			fmt.Println(hash)
			return nil
		}
		fmt.Println(auth.HashKeySHA256(key))
		return nil
	},
}

func init() {
	hashKeyCmd.Flags().BoolVar(&hashKeyArgon2, "argon2", false, "Produce an argon2id hash instead of SHA256")
	rootCmd.AddCommand(hashKeyCmd)
}
