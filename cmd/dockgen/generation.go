package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fentz26/dockgen/internal/store"
	"github.com/spf13/cobra"
)

var (
	historyPage  int
	historyLimit int
	historyLocal bool
	pushMessage  string
	statusShowDF bool
)

var statusCmd = &cobra.Command{
	Use:   "status <generation-id>",
	Short: "Show the status of a generation",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past generations",
	RunE:  runHistory,
}

var pushCmd = &cobra.Command{
	Use:   "push <generation-id>",
	Short: "Push a generated Dockerfile to its repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runPush,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the generation API is reachable",
	RunE:  runHealth,
}

func init() {
	statusCmd.Flags().BoolVar(&statusShowDF, "dockerfile", false, "Print the Dockerfile when available")

	historyCmd.Flags().IntVar(&historyPage, "page", 1, "Page number")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Generations per page")
	historyCmd.Flags().BoolVar(&historyLocal, "local", false, "List sessions recorded on this machine")

	pushCmd.Flags().StringVarP(&pushMessage, "message", "m", "", "Commit message")
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := newClient(logger).FetchStatus(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("ID:         %s\n", st.ID)
	fmt.Printf("Repository: %s\n", st.RepoURL)
	fmt.Printf("Status:     %s\n", st.Stage)
	if len(st.TechStack) > 0 {
		fmt.Printf("Tech stack: %s\n", strings.Join(st.TechStack, ", "))
	}
	if st.Error != "" {
		fmt.Printf("Error:      %s\n", st.Error)
	}
	if !st.UpdatedAt.IsZero() {
		fmt.Printf("Updated:    %s\n", st.UpdatedAt.Local().Format(time.RFC3339))
	}
	if statusShowDF && st.HasArtifact() {
		fmt.Println()
		fmt.Print(st.Dockerfile)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyLocal {
		return printLocalHistory()
	}

	page, err := newClient(logger).History(cmd.Context(), historyPage, historyLimit)
	if err != nil {
		return err
	}
	if len(page.Generations) == 0 {
		fmt.Println("No generations found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREPOSITORY\tSTATUS\tTECH STACK\tCREATED")
	for _, g := range page.Generations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			g.ID, truncate(g.RepoURL, 50), g.Stage, strings.Join(g.TechStack, ", "), formatTime(g.CreatedAt))
	}
	w.Flush()
	fmt.Printf("\nPage %d, %d of %d generations\n", page.Page, len(page.Generations), page.Total)
	return nil
}

func printLocalHistory() error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	limit := historyLimit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	sessions, err := s.ListSessions(limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GENERATION\tREPOSITORY\tREASON\tSTAGE\tCHECKS\tSTOPPED")
	for _, rec := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			rec.JobID, truncate(rec.RepoURL, 50), rec.StopReason, rec.Stage, rec.Attempts, formatTime(rec.StoppedAt))
	}
	w.Flush()
	return nil
}

func runPush(cmd *cobra.Command, args []string) error {
	msg := pushMessage
	if msg == "" {
		msg = cfg.CommitMessage
	}
	res, err := newClient(logger).PushArtifact(cmd.Context(), args[0], msg)
	if err != nil {
		return err
	}
	printPush(os.Stdout, res)
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	if !newClient(logger).CheckHealth(cmd.Context()) {
		return fmt.Errorf("generation API at %s is not reachable", cfg.APIURL)
	}
	fmt.Printf("✓ Generation API at %s is healthy\n", cfg.APIURL)
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
