package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/khanhnv2901/certscope/internal/analysis"
	"github.com/khanhnv2901/certscope/internal/domain/report"
	"github.com/khanhnv2901/certscope/internal/metrics"
	"github.com/khanhnv2901/certscope/internal/target"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <domain>",
	Short: "Grade a domain's TLS setup and search certificate transparency logs",
	Long: `Run a full analysis of one domain: the SSL Labs grade of every endpoint
and the certificates logged for the domain and its subdomains. Both lookups
run concurrently; a failing lookup is reported without hiding the other.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		showProgress, _ := cmd.Flags().GetBool("progress")

		domain := target.ExtractHost(args[0])
		analyzer := newAnalyzer(appConfig, metrics.New())

		requestID := uuid.NewString()
		req := analysis.Request{
			Domain:    domain,
			RequestID: requestID,
			Logger:    logger.With(zap.String("request_id", requestID)),
		}

		var progress *progressPrinter
		if showProgress && !asJSON {
			progress = newProgressPrinter(cmd.ErrOrStderr(), domain)
			req.Progress = progress.Update
			progress.Start()
		}

		res, err := analyzer.Analyze(cmd.Context(), req)
		if progress != nil {
			progress.Stop()
		}
		if err != nil {
			return &AnalysisFailedError{Domain: domain, Err: err}
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		printResult(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().Bool("json", false, "Print the full result as JSON")
	analyzeCmd.Flags().Bool("progress", true, "Show a progress line while the analysis runs")
}

func printResult(out io.Writer, res *report.AnalysisResult) {
	fmt.Fprintf(out, "%s %s (%s)\n", colorBold("Domain:"), res.Domain, res.AnalysisTime)
	fmt.Fprintf(out, "%s %s\n", colorBold("Overall grade:"), formatGradeWithColor(res.Summary.OverallGrade))
	fmt.Fprintf(out, "%s %s\n", colorBold("Certificate status:"), formatStatusWithColor(res.Summary.CertificateStatus))

	if grade := res.Data.SSLSecurity; grade.Failure != nil {
		fmt.Fprintf(out, "%s grading %s: %s\n", colorWarn("!"), formatStatusWithColor(grade.Failure.Status), grade.Failure.Error)
	} else if grade.Report != nil {
		for _, ep := range grade.Report.Endpoints {
			fmt.Fprintf(out, "  %s %-40s %s\n", colorInfo("→"), ep.IPAddress, formatGradeWithColor(ep.Grade))
		}
	}

	if ct := res.Data.CertificateTransparency; ct.Failure != nil {
		fmt.Fprintf(out, "%s transparency %s: %s\n", colorWarn("!"), formatStatusWithColor(ct.Failure.Status), ct.Failure.Error)
	} else if ct.Report != nil {
		sum := ct.Report.Summary
		fmt.Fprintf(out, "%s %d (%d active, %d expired, %d recent)\n", colorBold("Logged certificates:"),
			sum.TotalCertificates, sum.ActiveCertificates, sum.ExpiredCertificates, sum.RecentCertificates)
		fmt.Fprintf(out, "%s %d\n", colorBold("Discovered subdomains:"), sum.DiscoveredSubdomains)
	}

	printList(out, "Security issues", res.Summary.SecurityIssues, colorError)
	printList(out, "Recommendations", res.Summary.Recommendations, colorWarn)
}

func printList(out io.Writer, title string, items []string, paint func(a ...interface{}) string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%s\n", colorBold(title+":"))
	for _, item := range items {
		fmt.Fprintf(out, "  %s %s\n", paint("•"), strings.TrimSpace(item))
	}
}
