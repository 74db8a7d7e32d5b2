// Command bookingctl runs back-office maintenance against the booking
// database: ledger reconciliation, order re-sync, migrations and admin seeding.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	intconfig "travelapp/internal/config"
	intdb "travelapp/internal/db"
	"travelapp/internal/domain/models"
	"travelapp/internal/gateway"
	"travelapp/internal/notifications"
	"travelapp/internal/repositories"
	"travelapp/internal/services"
	"travelapp/internal/utils"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	env intconfig.Env
	db  *sql.DB
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "bookingctl",
		Short:        "Booking payment maintenance tool",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.env = intconfig.LoadEnv()
			utils.ConfigureLogger(a.env.LogLevel, false)
			db, err := intconfig.ConnectDB(a.env.DatabaseDSN)
			if err != nil {
				return err
			}
			a.db = db
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			intconfig.CloseDB()
		},
	}
	root.AddCommand(a.reconcileCmd(), a.syncCmd(), a.migrateCmd(), a.createAdminCmd())
	return root
}

func (a *app) paymentService() services.PaymentService {
	return services.PaymentService{
		BookingRepo: repositories.BookingRepository{DB: a.db},
		PaymentRepo: repositories.PaymentRepository{DB: a.db},
		Gateway:     gateway.NewRevolutClient(a.env.Revolut.APIKey, a.env.Revolut.Sandbox, a.env.Revolut.Timeout),
		Tx:          intdb.NewTxManager(a.db),
		Notifier: notifications.Notifier{
			Mailer: notifications.NewMailer(a.env.SMTP),
			From:   notifications.FromHeader(a.env.SMTP.FromName, a.env.SMTP.FromAddress),
		},
		SiteURL:   a.env.SiteURL,
		RequestID: "cli",
	}
}

func (a *app) reconcileCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "reconcile [booking-id...]",
		Short: "Recompute payment_status from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return errors.New("pass booking ids or --all")
			}
			svc := a.paymentService()
			if all {
				results, err := svc.ReconcileAll(cmd.Context())
				if printErr := printJSON(cmd, results); printErr != nil {
					return printErr
				}
				return err
			}
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			var errs []error
			for _, id := range ids {
				res, err := svc.ReconcileBooking(cmd.Context(), id)
				if err != nil {
					errs = append(errs, fmt.Errorf("booking %d: %w", id, err))
					continue
				}
				if err := printJSON(cmd, res); err != nil {
					return err
				}
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "reconcile every booking that is not cancelled")
	return cmd
}

func (a *app) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-order <payment-id>",
		Short: "Fetch a gateway order and apply its state to the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			res, err := a.paymentService().SyncGatewayOrder(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			existing := map[string]bool{}
			for _, table := range intdb.Tables {
				existing[table] = intdb.HasTable(ctx, a.db, table)
			}
			if err := intdb.EnsureSchema(ctx, a.db); err != nil {
				return err
			}
			for _, table := range intdb.Tables {
				state := "created"
				if existing[table] {
					state = "exists"
				}
				cmd.Printf("%-20s %s\n", table, state)
			}
			return nil
		},
	}
}

func (a *app) createAdminCmd() *cobra.Command {
	var name, password string
	cmd := &cobra.Command{
		Use:   "create-admin <email>",
		Short: "Seed a back-office admin user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("ADMIN_PASSWORD")
			}
			hash, err := services.HashPassword(password)
			if err != nil {
				return err
			}
			id, err := repositories.AdminRepository{DB: a.db}.Create(cmd.Context(), models.AdminUser{
				Email:        strings.ToLower(strings.TrimSpace(args[0])),
				Name:         name,
				PasswordHash: hash,
				Role:         services.RoleAdmin,
				Active:       true,
			})
			if err != nil {
				return err
			}
			cmd.Printf("admin %d created\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "Admin", "display name")
	cmd.Flags().StringVar(&password, "password", "", "password (defaults to $ADMIN_PASSWORD)")
	return cmd
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, raw := range args {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", raw)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
