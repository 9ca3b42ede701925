package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/leave-ledger/api"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
)

var (
	accrueMonth  string
	tokenRole    string
	tokenCompany string
	tokenTTL     time.Duration
)

var backfillCmd = &cobra.Command{
	Use:   "backfill [company-id] [csv-file]",
	Short: "Import historical leave from a CSV file",
	Long: `Each CSV row becomes a leave request. Rows with approve=true are funded
immediately; a row whose leave type cannot cover it fails unless it names a
fallback_type. Failing rows are reported and the rest of the file is processed.

Header:
  employee_ref,type,fallback_type,start_date,end_date,reason,approve`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		rows, err := parseBackfillCSV(f)
		if err != nil {
			return fmt.Errorf("%s: %w", args[1], err)
		}

		svc, _, closeFn, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		res, err := svc.Backfill(cmd.Context(), args[0], adminActor(args[0]), rows)
		if err != nil {
			return err
		}
		printBackfill(cmd, res)
		if res.Failed > 0 {
			return fmt.Errorf("%d of %d rows failed", res.Failed, res.Processed)
		}
		return nil
	},
}

var accrueCmd = &cobra.Command{
	Use:   "accrue [company-id]",
	Short: "Credit monthly accrual to every employee not yet accrued for the month",
	Long: `Runs the monthly accrual once. Employees already credited for the month are
skipped, so repeated runs are safe. With no company ID every company is processed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		month := generic.Today().YearMonth()
		if accrueMonth != "" {
			m, err := generic.ParseYearMonth(accrueMonth)
			if err != nil {
				return err
			}
			month = m
		}
		companyID := ""
		if len(args) == 1 {
			companyID = args[0]
		}

		svc, _, closeFn, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		rep, err := svc.RunAccrual(cmd.Context(), companyID, month)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "accrual %s: checked %d, credited %d, failed %d\n",
			rep.Month, rep.Checked, rep.Credited, rep.Failed)
		if rep.Failed > 0 {
			return fmt.Errorf("%d employees failed to accrue", rep.Failed)
		}
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token [actor-id] --company [company-id]",
	Short: "Issue an API bearer token signed with JWT_SECRET",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role := leave.Role(tokenRole)
		if role != leave.RoleAdmin && role != leave.RoleEmployee {
			return fmt.Errorf("role must be %s or %s", leave.RoleAdmin, leave.RoleEmployee)
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.JWT.Secret == "" {
			return fmt.Errorf("JWT_SECRET is not set")
		}
		tok, err := api.IssueToken(api.NewTokenAuth(cfg.JWT.Secret), leave.Actor{ID: args[0], Role: role, CompanyID: tokenCompany}, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	accrueCmd.Flags().StringVar(&accrueMonth, "month", "", "month to accrue as YYYY-MM (default: current month)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(leave.RoleEmployee), "token role (admin, employee)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	tokenCmd.Flags().StringVar(&tokenCompany, "company", "", "company the token is scoped to")
	_ = tokenCmd.MarkFlagRequired("company")
	rootCmd.AddCommand(backfillCmd, accrueCmd, tokenCmd)
}

func printBackfill(cmd *cobra.Command, res leave.BackfillResult) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROW\tEMPLOYEE\tSTATUS\tDAYS\tREQUEST\tERROR")
	for _, r := range res.Rows {
		errMsg := ""
		if r.Err != nil {
			errMsg = r.Err.Error()
		}
		// Index is zero-based; +2 skips the header to match the file line.
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", r.Index+2, r.EmployeeRef, r.Status, r.ChargeableDays, r.RequestID, errMsg)
	}
	w.Flush()
	fmt.Fprintf(cmd.OutOrStdout(), "\nprocessed %d, succeeded %d, failed %d\n", res.Processed, res.Succeeded, res.Failed)
}
