package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jobledger/internal/app"
	"jobledger/internal/config"
	"jobledger/internal/domain"
	"jobledger/internal/events"
	"jobledger/internal/server"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	var legacyHeaders bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("JL_JWT_SECRET (or --jwt-secret) is required for bearer auth; jl config init generates one")
			}
			opts := openOptions()
			opts.Logger = slog.Default()
			env, err := app.Open(opts)
			if err != nil {
				return err
			}
			defer env.Close()
			handler, err := server.New(server.Config{
				Engine:   env.Engine,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: secret, AllowLegacyActorHeader: legacyHeaders},
				Logger:   slog.Default(),
			})
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go events.NewDispatcher(env.Engine.Repo, env.Config.Webhooks, slog.Default()).Run(ctx)
			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			slog.Info("serving job ledger API", "addr", addr, "base_path", basePath, "docs", "/docs")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().String("jwt-secret", "", "HS256 secret for bearer tokens")
	cmd.Flags().BoolVar(&legacyHeaders, "allow-legacy-headers", false, "trust X-Actor-Id/X-Actor-Role without a token (development only)")
	_ = viper.BindPFlag("jwt-secret", cmd.Flags().Lookup("jwt-secret"))
	return cmd
}

func tokenCmd() *cobra.Command {
	var role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the acting client or contractor",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := actorID()
			if err != nil {
				return err
			}
			tok, err := server.SignToken(viper.GetString("jwt-secret"), actor, domain.Role(role), ttl)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"token": tok, "actor_id": actor, "role": role})
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "client or contractor")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 for no expiry)")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Marketplace rules (payment ceiling, methods, rating precision)",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write marketplace.yml and a JWT secret for the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			if os.Getenv("JL_JWT_SECRET") != "" {
				return nil
			}
			secret, err := randomSecret()
			if err != nil {
				return err
			}
			envPath := app.EnvPath(workspace)
			if err := app.SetEnvValue(envPath, "JL_JWT_SECRET", secret); err != nil {
				return err
			}
			fmt.Println("stored JL_JWT_SECRET in", envPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing marketplace.yml")
	cfg.AddCommand(initCmd)

	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.LoadOrDefault(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(c)
		},
	})

	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate marketplace.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.Load(viper.GetString("workspace"))
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	})
	return cfg
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
