package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/grafana/grafana-foundation-sdk/go/common"
	"github.com/grafana/grafana-foundation-sdk/go/dashboard"
	"github.com/grafana/grafana-foundation-sdk/go/prometheus"
	"github.com/grafana/grafana-foundation-sdk/go/timeseries"
)

func query(expr, legend string) *prometheus.DataqueryBuilder {
	return prometheus.NewDataqueryBuilder().Expr(expr).LegendFormat(legend)
}

func buildDashboard() (dashboard.Dashboard, error) {
	builder := dashboard.NewDashboardBuilder("Plex to Discord").
		Uid("plex-2-discord").
		Tags([]string{"plex", "discord", "prometheus"}).
		Refresh("1m").
		Time("now-24h", "now").
		Timezone(common.TimeZoneBrowser)

	builder = builder.WithRow(dashboard.NewRowBuilder("Library relay"))
	builder = builder.WithPanel(
		timeseries.NewPanelBuilder().
			Title("Webhooks").
			WithTarget(query(`sum(rate(plex2discord_webhooks_total{result="relayed"}[5m]))`, "relayed")).
			WithTarget(query(`sum(rate(plex2discord_webhooks_total{result="ignored"}[5m]))`, "ignored")).
			WithTarget(query(`sum(rate(plex2discord_webhooks_total{result="invalid"}[5m]))`, "invalid")),
	)
	builder = builder.WithPanel(
		timeseries.NewPanelBuilder().
			Title("Discord notifications").
			WithTarget(query(`sum by (kind, result) (rate(plex2discord_notifications_total[5m]))`, "{{kind}} {{result}}")),
	)
	builder = builder.WithPanel(
		timeseries.NewPanelBuilder().
			Title("Discord call duration avg").
			WithTarget(query(`sum(rate(plex2discord_notification_duration_seconds_sum[5m])) / sum(rate(plex2discord_notification_duration_seconds_count[5m]))`, "avg")),
	)

	builder = builder.WithRow(dashboard.NewRowBuilder("Availability"))
	builder = builder.WithPanel(
		timeseries.NewPanelBuilder().
			Title("Server state (-1 unknown, 0 offline, 1 online)").
			WithTarget(query(`max(plex2discord_server_online)`, "state")),
	)
	builder = builder.WithPanel(
		timeseries.NewPanelBuilder().
			Title("Consecutive failed probes").
			WithTarget(query(`max(plex2discord_consecutive_failures)`, "failures")),
	)
	builder = builder.WithPanel(
		timeseries.NewPanelBuilder().
			Title("Probes").
			WithTarget(query(`sum by (result) (rate(plex2discord_probes_total[5m]))`, "{{result}}")).
			WithTarget(query(`sum(rate(plex2discord_probe_duration_seconds_sum[5m])) / sum(rate(plex2discord_probe_duration_seconds_count[5m]))`, "avg duration")),
	)
	builder = builder.WithPanel(
		timeseries.NewPanelBuilder().
			Title("Announced transitions").
			WithTarget(query(`sum by (to) (increase(plex2discord_transitions_total[1h]))`, "{{to}}")),
	)

	return builder.Build()
}

func main() {
	dashboardJSON, err := buildDashboard()
	if err != nil {
		panic(err)
	}

	outputPath := os.Getenv("DASHBOARD_OUT")
	if outputPath == "" {
		outputPath = "dashboard.json"
	}

	payload, err := json.MarshalIndent(dashboardJSON, "", "  ")
	if err != nil {
		panic(err)
	}

	if err := os.WriteFile(outputPath, payload, 0o600); err != nil {
		panic(err)
	}

	fmt.Printf("dashboard written to %s\n", outputPath)
}
