package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/LsSens/backend-ecommerce/common/database"
	"github.com/LsSens/backend-ecommerce/internal/auth"
	"github.com/LsSens/backend-ecommerce/internal/repository"
	"github.com/LsSens/backend-ecommerce/internal/service"
	"github.com/LsSens/backend-ecommerce/internal/store"
	"github.com/LsSens/backend-ecommerce/internal/tenancy"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()

			db, err := database.NewPostgresDB(cmd.Context(), &cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close(db)

			applied, err := repository.Migrate(cmd.Context(), db, log)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				log.Info("Database schema is up to date")
				return nil
			}
			log.Info("Migrations applied", zap.Strings("versions", applied))
			return nil
		},
	}
}

// newBootstrapCmd 创建第一个公司和它的 Admin（数据库为空时使用）
func newBootstrapCmd() *cobra.Command {
	var req service.BootstrapRequest
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the first company and its Admin user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			defer log.Sync()
			if !cfg.DBEnabled {
				return errors.New("bootstrap requires DB_ENABLED=true")
			}
			if req.AdminPassword == "" {
				req.AdminPassword = os.Getenv("BOOTSTRAP_ADMIN_PASSWORD")
			}

			db, err := openDB(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer database.Close(db)

			repos := postgresRepositories(db)
			// 目录只用于域名唯一性校验，不需要缓存
			dir := tenancy.NewDirectory(repos.companies, store.NewMemoryKV(), 0, log)
			result, err := service.NewBootstrapper(repos.companies, repos.users, dir, auth.NewBcryptHasher(0), log).
				Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("failed to print result: %w", err)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.CompanyName, "company-name", "", "company name")
	f.StringVar(&req.CNPJ, "cnpj", "", "company CNPJ")
	f.StringVar(&req.Address, "address", "", "company address")
	f.StringSliceVar(&req.Domains, "domain", nil, "storefront domain (repeatable)")
	f.StringVar(&req.AdminName, "admin-name", "", "admin user name")
	f.StringVar(&req.AdminEmail, "admin-email", "", "admin user email")
	f.StringVar(&req.AdminPassword, "admin-password", "", "admin password (or BOOTSTRAP_ADMIN_PASSWORD)")
	for _, name := range []string{"company-name", "cnpj", "address", "domain", "admin-name", "admin-email"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
