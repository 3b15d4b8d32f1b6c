package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "hmsctl",
		Short:        "Clinic scheduling administration",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(slotsCmd())
	rootCmd.AddCommand(billingCmd())
	rootCmd.AddCommand(prescriptionsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withApp loads config, opens the stores and runs fn against them.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Env, cfg.LogLevel)

	a, err := app.Open(ctx, cfg, logger)
	defer a.Close()
	if err != nil {
		return err
	}
	return fn(a)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the postgres tables used by the postgres storage backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.PostgresDSN == "" {
				return fmt.Errorf("POSTGRES_DSN is required")
			}

			ctx := cmd.Context()
			pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.PostgresPool())
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("Schema is up to date.")
			return nil
		},
	}
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Report inconsistencies between slots, appointments, outcomes and billing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				found, err := a.Service.Reconcile(cmd.Context())
				if err != nil {
					return err
				}
				if len(found) == 0 {
					fmt.Println("No discrepancies.")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "KIND\tSUBJECT\tDETAIL")
				for _, d := range found {
					fmt.Fprintf(w, "%s\t%s\t%s\n", d.Kind, d.Subject, d.Detail)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				return fmt.Errorf("%d discrepancies found", len(found))
			})
		},
	}
}

func slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Inspect and declare availability",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List open slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctor, _ := cmd.Flags().GetString("doctor")
			return withApp(cmd.Context(), func(a *app.App) error {
				slots, err := a.Service.ListSlots(cmd.Context())
				if doctor != "" {
					slots, err = a.Service.ListSlotsByDoctor(cmd.Context(), doctor)
				}
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tDOCTOR\tDATE\tSTART\tEND")
				for _, s := range slots {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, s.DoctorID, s.Date, s.StartTime, s.EndTime)
				}
				return w.Flush()
			})
		},
	}
	listCmd.Flags().String("doctor", "", "Only show slots for this doctor id")
	cmd.AddCommand(listCmd)

	declareCmd := &cobra.Command{
		Use:   "declare",
		Short: "Declare a new open slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctor, _ := cmd.Flags().GetString("doctor")
			date, _ := cmd.Flags().GetString("date")
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			return withApp(cmd.Context(), func(a *app.App) error {
				s, err := a.Service.DeclareSlot(cmd.Context(), doctor, date, start, end)
				if err != nil {
					return err
				}
				fmt.Printf("Declared %s for %s on %s %s-%s\n", s.ID, s.DoctorID, s.Date, s.StartTime, s.EndTime)
				return nil
			})
		},
	}
	declareCmd.Flags().String("doctor", "", "Doctor id")
	declareCmd.Flags().String("date", "", "Date (YYYY-MM-DD or DD-MM-YYYY)")
	declareCmd.Flags().String("start", "", "Start time (HH:MM)")
	declareCmd.Flags().String("end", "", "End time (HH:MM)")
	for _, f := range []string{"doctor", "date", "start", "end"} {
		_ = declareCmd.MarkFlagRequired(f)
	}
	cmd.AddCommand(declareCmd)

	return cmd
}

func billingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "billing",
		Short: "Inspect and settle patient balances",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "due <patient-id>",
		Short: "Show the amount a patient owes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				e, err := a.Service.BillingEntry(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Printf("%s: unpaid=%d paid=%d due=%d\n", e.PatientID, e.Unpaid, e.Paid, e.AmountDue())
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "settle <patient-id>",
		Short: "Mark every unpaid visit of a patient as paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				settled, err := a.Service.Settle(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !settled {
					fmt.Printf("%s has nothing to settle.\n", args[0])
					return nil
				}
				fmt.Printf("%s settled.\n", args[0])
				return nil
			})
		},
	})

	return cmd
}

func prescriptionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prescriptions",
		Short: "List outcomes with medication awaiting dispensing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				pending, err := a.Service.PendingPrescriptions(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "OUTCOME\tAPPOINTMENT\tDATE\tMEDICATIONS")
				for _, o := range pending {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.ID, o.AppointmentID, o.Date, strings.Join(o.Medications, ", "))
				}
				return w.Flush()
			})
		},
	}
}
