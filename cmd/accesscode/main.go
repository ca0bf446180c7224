// Command accesscode 在命令行中管理访问码。
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mailcode/backend/internal/auth"
	"mailcode/backend/internal/bootstrap"
	"mailcode/backend/internal/config"
	"mailcode/backend/internal/logger"
	"mailcode/backend/internal/service"
	"mailcode/backend/internal/storage"
)

// storeOpener 打开访问码存储
type storeOpener func(ctx context.Context) (storage.AccessCodeStore, bootstrap.Closer, error)

func main() {
	log := logger.NewDevelopmentLogger()
	defer func() { _ = log.Sync() }()

	root := newRootCmd(func(ctx context.Context) (storage.AccessCodeStore, bootstrap.Closer, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
		return bootstrap.OpenStore(ctx, cfg.Database, log)
	}, log)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(open storeOpener, log *zap.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "accesscode",
		Short:         "Manage access codes",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	withService := func(run func(cmd *cobra.Command, args []string, svc *service.AccessCodeService) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			store, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			return run(cmd, args, service.NewAccessCodeService(store, nil, service.AccessCodeConfig{}, log))
		}
	}

	var days int
	var code string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an access code",
		Args:  cobra.NoArgs,
		RunE: withService(func(cmd *cobra.Command, _ []string, svc *service.AccessCodeService) error {
			ac, err := svc.Create(cmd.Context(), service.CreateAccessCodeInput{Code: code, ExpiryDays: days})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\texpires %s\n", ac.ID, ac.Code, ac.ExpiresAt.Format(time.RFC3339))
			return nil
		}),
	}
	createCmd.Flags().IntVarP(&days, "days", "d", 7, "validity in days")
	createCmd.Flags().StringVarP(&code, "code", "c", "", "custom code (generated when empty)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List unexpired access codes",
		Args:  cobra.NoArgs,
		RunE: withService(func(cmd *cobra.Command, _ []string, svc *service.AccessCodeService) error {
			codes, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCODE\tEXPIRES\tUSED")
			for _, ac := range codes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", ac.ID, ac.Code, ac.ExpiresAt.Format(time.RFC3339), ac.IsUsed)
			}
			return w.Flush()
		}),
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an access code",
		Args:  cobra.ExactArgs(1),
		RunE: withService(func(cmd *cobra.Command, args []string, svc *service.AccessCodeService) error {
			if err := svc.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted", args[0])
			return nil
		}),
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired access codes",
		Args:  cobra.NoArgs,
		RunE: withService(func(cmd *cobra.Command, _ []string, svc *service.AccessCodeService) error {
			n, err := svc.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired codes\n", n)
			return nil
		}),
	}

	hashCmd := &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for MAILCODE_ADMIN_PASSWORD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	root.AddCommand(createCmd, listCmd, deleteCmd, sweepCmd, hashCmd)
	return root
}
