package cli

import (
	"fmt"
	"os"

	"github.com/mailhaven/core/internal/api/middleware"
	"github.com/mailhaven/core/internal/config"
	"github.com/mailhaven/core/internal/services"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	db            *gorm.DB
	cfg           *config.Config
	apiKeyManager *middleware.APIKeyManager
	userService   *services.UserService
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mailhaven",
	Short: "MailHaven email organization backend",
	Long: `MailHaven is a backend service that syncs, classifies and organizes
email across multiple accounts.

This command line tool provides:
  - Key management: show and reset the API key
  - User management: create users, list users, reset passwords

Examples:
  mailhaven key show          # show the current API key
  mailhaven key reset         # reset the API key
  mailhaven user create       # create a new user
  mailhaven user list         # list all users
  mailhaven user reset-pwd    # reset a user's password`,
}

// Execute runs the CLI with the provided database and config
func Execute(database *gorm.DB, config *config.Config) {
	db = database
	cfg = config

	var err error
	apiKeyManager, err = middleware.NewAPIKeyManager(cfg.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize API key manager: %v\n", err)
		os.Exit(1)
	}

	userService = services.NewUserService(db)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(userCmd)
}
