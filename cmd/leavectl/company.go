package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/warp/leave-ledger/factory"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/leave"
)

var chargeableJSON bool

var chargeableCmd = &cobra.Command{
	Use:   "chargeable [company-file] [from] [to]",
	Short: "Preview chargeable days for a range using a company file",
	Long: `Resolve each day of the range against the company file's bank holidays and
overrides, apply the sandwich rule and print the per-day breakdown. No database
is touched.

Examples:
  leavectl chargeable acme.yaml 2025-05-02 2025-05-07
  leavectl chargeable acme.json 2025-12-24 2025-12-26 --json`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		setup, err := factory.LoadCompanyFile(args[0])
		if err != nil {
			return err
		}
		p, err := parseRange(args[1], args[2])
		if err != nil {
			return err
		}
		ch, err := leave.ChargeableForPeriod(setup.Calendar(), p, setup.Company.Policy.Sandwich)
		if err != nil {
			return err
		}
		if chargeableJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(ch)
		}
		printChargeable(cmd, ch)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import [company-file]",
	Short: "Create or update a company, its overrides and employees from a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setup, err := factory.LoadCompanyFile(args[0])
		if err != nil {
			return err
		}
		svc, _, closeFn, err := openService(cmd.Context())
		if err != nil {
			return err
		}
		defer closeFn()

		rep, err := factory.Import(cmd.Context(), svc, setup, adminActor(setup.Company.ID))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "company %s: %d overrides, %d employees\n", rep.CompanyID, rep.Overrides, rep.Employees)
		return nil
	},
}

func init() {
	chargeableCmd.Flags().BoolVar(&chargeableJSON, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(chargeableCmd, importCmd)
}

func parseRange(from, to string) (generic.Period, error) {
	start, err := generic.ParseDate(from)
	if err != nil {
		return generic.Period{}, err
	}
	end, err := generic.ParseDate(to)
	if err != nil {
		return generic.Period{}, err
	}
	return generic.NewPeriod(start, end)
}

func printChargeable(cmd *cobra.Command, ch leave.Chargeable) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tDAY\tEXCLUDED\tHALF\tCHARGE")
	for _, d := range ch.Breakdown {
		fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%s\n", d.Date, d.Date.Weekday().String()[:3], d.Excluded, d.HalfDay, d.Charge)
	}
	w.Flush()
	fmt.Fprintf(cmd.OutOrStdout(), "\nchargeable: %s of %d days", ch.Days, ch.RangeLength)
	if ch.SandwichApplied {
		fmt.Fprint(cmd.OutOrStdout(), " (sandwich applied)")
	}
	fmt.Fprintln(cmd.OutOrStdout())
}
