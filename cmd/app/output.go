package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atvirokodosprendimai/flowboard/internal/domain"
)

func printJSON(v any) error {
	b, err := jsonMarshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("no results")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func formatMaybeUint(v *uint) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatUint(uint64(*v), 10)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printChartMetas(items []domain.ChartMeta) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(item.ID), 10),
			item.Name,
			orDash(item.Category),
			orDash(item.EndDate),
			formatTime(item.UpdatedAt),
		})
	}
	printTable([]string{"ID", "NAME", "CATEGORY", "END_DATE", "UPDATED_AT"}, rows)
}

func printChart(item domain.Flowchart) {
	printKV([][2]string{
		{"id", strconv.FormatUint(uint64(item.ID), 10)},
		{"name", item.Name},
		{"category", orDash(item.Category)},
		{"end_date", orDash(item.EndDate)},
		{"nodes", strconv.Itoa(len(item.Nodes))},
		{"edges", strconv.Itoa(len(item.Edges))},
		{"updated_at", formatTime(item.UpdatedAt)},
	})
}

func printNode(item domain.Node) {
	printKV([][2]string{
		{"id", item.ID},
		{"label", item.Data.Label},
		{"status", string(item.Data.Status)},
		{"assigned_to", orDash(strings.Join(item.Data.AssignedTo, ","))},
		{"position", fmt.Sprintf("%.0f,%.0f", item.Position.X, item.Position.Y)},
	})
}

func printEdge(item domain.Edge) {
	printKV([][2]string{
		{"id", item.ID},
		{"source", item.Source},
		{"target", item.Target},
		{"type", item.Type},
	})
}

func printShares(items []domain.StatusShare) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			string(item.Status),
			strconv.Itoa(item.Count),
			fmt.Sprintf("%.1f%%", item.Percent),
		})
	}
	printTable([]string{"STATUS", "COUNT", "SHARE"}, rows)
}

func printTraceHops(hops []domain.TraceHop) {
	rows := make([][]string, 0, len(hops))
	for _, hop := range hops {
		rows = append(rows, []string{
			strconv.Itoa(hop.Depth),
			hop.FromLabel,
			hop.ToLabel,
			hop.EdgeID,
		})
	}
	printTable([]string{"DEPTH", "FROM", "TO", "EDGE"}, rows)
}

func printUsers(items []domain.User) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(item.ID), 10),
			item.Name,
			item.Email,
			string(item.Role),
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "NAME", "EMAIL", "ROLE", "CREATED_AT"}, rows)
}

func printAuditRecords(items []domain.AuditRecord) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(item.ID), 10),
			item.Action,
			item.TargetType,
			formatMaybeUint(item.TargetID),
			item.ActorUserEmail,
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "ACTION", "TARGET_TYPE", "TARGET_ID", "ACTOR", "AT"}, rows)
}

func printNotifications(items []domain.Notification) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		result := item.MessageID
		if item.SendError != "" {
			result = "error: " + item.SendError
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(item.ID), 10),
			item.TaskName,
			item.ChartName,
			item.Recipients,
			orDash(result),
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "TASK", "CHART", "RECIPIENTS", "RESULT", "AT"}, rows)
}
