// Command referral-batch runs the referral discount batch once and prints the report as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"salon-billing/internal/application"
	"salon-billing/internal/config"
	"salon-billing/internal/domain/model"
	"salon-billing/internal/infra/logging"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	emails := flag.String("emails", "", "comma-separated tenant emails; empty processes every eligible tenant")
	forceUpdated := flag.Bool("force-updated", false, "include tenants already discounted this month")
	ignoreCap := flag.Bool("ignore-cap", false, "ignore the total referral count cap")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	report, err := run(ctx, *cfgPath, *devMode, model.DiscountOptions{
		Emails:       splitEmails(*emails),
		ForceUpdated: *forceUpdated,
		IgnoreMaxCap: *ignoreCap,
	}, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "referral-batch: %v\n", err)
	}
	os.Exit(exitCode(report, err))
}

// run executes one batch and writes the report to out; logs go to logOut.
func run(ctx context.Context, cfgPath string, dev bool, opts model.DiscountOptions, out, logOut io.Writer) (*model.DiscountReport, error) {
	cfg, err := config.LoadConfig(cfgPath, dev)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger := logging.NewTo(logOut, cfg.Log, cfg.Runtime.Dev)

	svc, err := application.Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer svc.Close()

	report, err := svc.Discounts.Run(ctx, opts)
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return report, fmt.Errorf("write report: %w", err)
	}
	return report, nil
}

// exitCode is 0 when every tenant was applied or skipped, 2 when some failed and 1 when
// the batch could not run at all.
func exitCode(report *model.DiscountReport, err error) int {
	switch {
	case err != nil || report == nil:
		return 1
	case report.FailureCount > 0:
		return 2
	default:
		return 0
	}
}

func splitEmails(s string) []string {
	var out []string
	for _, e := range strings.Split(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}
