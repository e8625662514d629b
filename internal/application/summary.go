package application

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ahrav/go-concord/internal/domain"
)

// RenderSummary writes a plain-text table with the headline numbers of each
// criterion followed by the assessment notes. Statistics that were not
// computed are shown as "-".
func RenderSummary(w io.Writer, report *domain.Report) error {
	if report == nil {
		return fmt.Errorf("%w: nil report", domain.ErrInvalidConfiguration)
	}
	title := cases.Title(language.English)

	if _, err := fmt.Fprintf(w, "Report %s (%s)\nGenerated %s\n\n",
		report.Name, report.ID, report.GeneratedAt.Format(time.RFC3339)); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CRITERION\tITEMS\tFLEISS\tALPHA\tMIN ICC\tMAX MAE\tAGREEMENT\tCONSISTENCY\tACCURACY\tOVERALL")
	for _, c := range report.Criteria {
		fleiss, alpha := math.NaN(), math.NaN()
		if c.Agreement.Fleiss != nil {
			fleiss = c.Agreement.Fleiss.Kappa.Value
		}
		if c.Agreement.Krippendorff != nil {
			alpha = c.Agreement.Krippendorff.Alpha.Value
		}

		icc := math.NaN()
		for _, r := range c.Consistency {
			if r.ICC.Form != "" && (math.IsNaN(icc) || r.ICC.ICC.Value < icc) {
				icc = r.ICC.ICC.Value
			}
		}
		mae := math.NaN()
		for _, r := range c.Accuracy {
			if math.IsNaN(mae) || r.Error.MAE.Value > mae {
				mae = r.Error.MAE.Value
			}
		}

		a := c.Assessment
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Criterion, c.Items,
			number(fleiss), number(alpha), number(icc), number(mae),
			title.String(string(a.Agreement)),
			title.String(string(a.Consistency)),
			title.String(string(a.Accuracy)),
			title.String(string(a.Overall)),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, c := range report.Criteria {
		for _, note := range c.Assessment.Notes {
			if _, err := fmt.Fprintf(w, "%s: %s\n", c.Criterion, note); err != nil {
				return err
			}
		}
	}
	return nil
}

func number(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}
