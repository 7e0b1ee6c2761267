package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"janus-rag/internal/app"
	"janus-rag/internal/bootstrap"
	"janus-rag/internal/model"
	"janus-rag/internal/repository"
)

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create an account, or change the role of an existing one",
	RunE:  runCreateUser,
}

func init() {
	createUserCmd.Flags().String("email", "", "account email")
	createUserCmd.Flags().String("password", "", "account password, at least 8 characters")
	createUserCmd.Flags().String("role", "user", "user, admin or boe")
	_ = createUserCmd.MarkFlagRequired("email")
}

func runCreateUser(cmd *cobra.Command, _ []string) error {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	roleName, _ := cmd.Flags().GetString("role")

	role, err := model.ParseRole(roleName)
	if err != nil {
		return err
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	db, err := bootstrap.OpenDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	auth := app.NewAuthService(repository.NewUserRepository(db), cfg.Auth.JWTSecret, time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute)
	user, err := auth.CreateUser(ctx, email, password, role)
	// an existing account only gets its role changed; the password is left alone
	if errors.Is(err, app.ErrEmailExists) || (password == "" && errors.Is(err, app.ErrInvalidInput)) {
		user, err = auth.SetRole(ctx, email, role)
		if err != nil {
			return fmt.Errorf("update role: %w", err)
		}
		log.Info(ctx, "role updated", "user_id", user.ID, "role", user.Role.String())
		return nil
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	log.Info(ctx, "user created", "user_id", user.ID, "email", user.Email, "role", user.Role.String())
	return nil
}
