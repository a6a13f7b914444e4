// Package cli implements the assistant commands.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/assistant/internal/app"
	"github.com/xiaot623/gogo/assistant/internal/config"
	"github.com/xiaot623/gogo/assistant/internal/domain"
	"github.com/xiaot623/gogo/assistant/internal/logging"
)

var (
	dbPath       string
	logLevel     string
	routingMode  string
	filterEngine string

	userID   string
	userRole string
	projects string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "assistant",
	Short:         "Business-intelligence assistant",
	Long:          "Routes business questions to domain handlers and filters every answer for the asking role.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database DSN (default: $DATABASE_URL)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (default: $LOG_LEVEL or info)")
	RootCmd.PersistentFlags().StringVar(&routingMode, "routing-mode", "", "Routing mode: single, multi or auto (default: $ROUTING_MODE)")
	RootCmd.PersistentFlags().StringVar(&filterEngine, "filter-engine", "", "Filter engine: static or rego (default: $FILTER_ENGINE)")
}

// addIdentityFlags registers the flags naming the acting user.
func addIdentityFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User id (required)")
	cmd.Flags().StringVarP(&userRole, "role", "r", "", "Role: leadership, director, salesperson or creative_director (required)")
	cmd.Flags().StringVarP(&projects, "projects", "p", "", "Comma-separated assigned projects")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("role")
}

func currentUser() (domain.User, error) {
	role, err := domain.ParseRole(userRole)
	if err != nil {
		return domain.User{}, err
	}
	var assigned []string
	for _, p := range strings.Split(projects, ",") {
		if p = strings.TrimSpace(p); p != "" {
			assigned = append(assigned, p)
		}
	}
	return domain.User{ID: userID, Role: role, AssignedProjects: assigned}, nil
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig() *config.Config {
	cfg := config.Load()
	if dbPath != "" {
		cfg.DatabaseURL = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if routingMode != "" {
		cfg.RoutingMode = domain.RoutingMode(routingMode)
	}
	if filterEngine != "" {
		cfg.FilterEngine = filterEngine
	}
	return cfg
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, _, err := logging.New(cfg.LogLevel)
	return logger, err
}

// openApp builds the assistant for one command. The returned cleanup closes
// it and flushes the logger.
func openApp(cmd *cobra.Command) (*app.App, func(), error) {
	cfg := loadConfig()
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, fmt.Errorf("failed to start assistant: %w", err)
	}
	return a, func() {
		if err := a.Close(); err != nil {
			logger.Warn("failed to close assistant", zap.Error(err))
		}
		_ = logger.Sync()
	}, nil
}
