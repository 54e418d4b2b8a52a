package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/nao1215/tracker/internal/config"
	"github.com/nao1215/tracker/internal/domain"
	"github.com/nao1215/tracker/internal/server"
	"github.com/nao1215/tracker/internal/store"
)

// app はサブコマンドが共有する設定とロガー。
type app struct {
	cfg    config.Config
	logger *slog.Logger
}

// newRootCmd はtrackerコマンドを生成する。設定は環境変数から読み込む。
func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "tracker",
		Short:         "作業項目とメンション通知のトラッカー",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.LogLevel}))
			slog.SetDefault(a.logger)
			return nil
		},
	}

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newDevTokenCmd(a),
	)
	return root
}

// openDB はデータベースを開き、未適用のマイグレーションを適用する。
func (a *app) openDB(ctx context.Context) (*sqlx.DB, error) {
	db, err := store.Open(ctx, a.cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	if _, err := store.Migrate(ctx, db, a.logger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "HTTPサーバーを起動する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			srv, err := server.New(a.cfg, db, a.logger)
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}

func newMigrateCmd(a *app) *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "未適用のマイグレーションを適用する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := store.Open(cmd.Context(), a.cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()

			out := cmd.OutOrStdout()
			if status {
				entries, err := store.MigrationStatus(cmd.Context(), db)
				if err != nil {
					return err
				}
				for _, e := range entries {
					mark := "pending"
					if e.Applied {
						mark = "applied"
					}
					fmt.Fprintf(out, "%06d_%s\t%s\n", e.Version, e.Name, mark)
				}
				return nil
			}

			n, err := store.Migrate(cmd.Context(), db, a.logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d件のマイグレーションを適用しました\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "適用せずに適用状況を表示する")
	return cmd
}

func newDevTokenCmd(a *app) *cobra.Command {
	var email, name, role string
	cmd := &cobra.Command{
		Use:   "dev-token",
		Short: "開発用ユーザーを登録してアクセストークンを表示する",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch domain.Role(role) {
			case domain.RoleMember, domain.RoleAdmin:
			default:
				return fmt.Errorf("--role はmemberかadminを指定してください: %q", role)
			}

			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			user, err := server.RegisterUser(cmd.Context(), store.New(db), email, name, domain.Role(role))
			if err != nil {
				return err
			}
			token, err := server.IssueToken(a.cfg.JWTSecret, user)
			if err != nil {
				return fmt.Errorf("トークン生成に失敗: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "メールアドレス")
	cmd.Flags().StringVar(&name, "name", "", "表示名")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleMember), "権限（member または admin）")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
