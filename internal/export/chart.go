package export

import (
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// maxChartTests caps the bars of the failure rate chart.
const maxChartTests = 30

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// WriteChart renders a page with the failure rate and count of the failing
// tests, highest rates first.
func WriteChart(w io.Writer, doc *Document) error {
	page := components.NewPage()
	page.PageTitle = "Test Report Failure Rates"
	page.AddCharts(failureRateBar(doc))
	return page.Render(w)
}

func failureRateBar(doc *Document) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Failure rate by test",
			Subtitle: "failures across the analyzed reports (%)",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: true, Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: true}),
	)

	names := []string{}
	rates := []opts.BarData{}
	counts := []opts.BarData{}
	for _, st := range doc.Analysis.TestStats.ByFailureRate {
		if st.FailureCount == 0 {
			continue
		}
		if len(names) == maxChartTests {
			break
		}
		names = append(names, st.Name)
		rates = append(rates, opts.BarData{Value: st.FailureRate})
		counts = append(counts, opts.BarData{Value: st.FailureCount})
	}

	bar.SetXAxis(names).
		AddSeries("Failure rate (%)", rates).
		AddSeries("Failures", counts)
	return bar
}
