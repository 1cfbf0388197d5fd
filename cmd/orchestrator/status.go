package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/david-vos/myloadbalancer/pkg/admin"
	"github.com/david-vos/myloadbalancer/pkg/cliformat"
)

// newStatusCommand queries a running orchestrator's admin endpoint and
// renders the result, defaulting to a human-readable pod table.
func newStatusCommand() *cobra.Command {
	var addr, output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a running orchestrator's deployment status",
		RunE: func(c *cobra.Command, args []string) error {
			report, err := fetchStatus(addr)
			if err != nil {
				return err
			}
			formatter := cliformat.NewFormatter(output)
			rendered, err := formatter.Render(report, humanizeStatus)
			if err != nil {
				return err
			}
			fmt.Println(rendered)
			return nil
		},
	}

	flag := cmd.Flags()
	flag.StringVar(&addr, "addr", "http://127.0.0.1:8080", "Address of the orchestrator's admin endpoint")
	flag.StringVar(&output, "output", "human", "Output format: human, json, jsonpp, or raw")

	return cmd
}

func fetchStatus(addr string) (admin.StatusReport, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(addr + "/health")
	if err != nil {
		return admin.StatusReport{}, fmt.Errorf("status: contacting %s: %w", addr, err)
	}
	defer resp.Body.Close()

	var report admin.StatusReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return admin.StatusReport{}, fmt.Errorf("status: decoding response: %w", err)
	}
	return report, nil
}

func humanizeStatus(input interface{}) string {
	report, ok := input.(admin.StatusReport)
	if !ok {
		return fmt.Sprintf("%v", input)
	}

	text := fmt.Sprintf("STATUS %s\n", report.Status)
	if len(report.RollingUpdates) > 0 {
		text += fmt.Sprintf("ROLLING-UPDATES %v\n", report.RollingUpdates)
	}

	table := "DEPLOYMENT POD VERSION STATUS\n"
	for deployment, pods := range report.Pods {
		for _, pod := range pods {
			table += fmt.Sprintf("%s %s %s %s\n", deployment, pod.Name, pod.Version, pod.Status)
		}
	}

	return text + cliformat.Columnize(table)
}
