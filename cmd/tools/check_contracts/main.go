package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/theodi/contract-radar/internal/db"
)

// Prints the most recently published contracts with their AI ratings.
func main() {
	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, `
		SELECT item_id, title, organisation_name, ai_score, ai_relevance, published_date, deadline_date
		FROM contracts
		ORDER BY published_date DESC NULLS LAST
		LIMIT 20
	`)
	if err != nil {
		log.Fatal(err)
	}
	defer rows.Close()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Item ID", "Title", "Buyer", "Score", "Relevance", "Published", "Deadline"})

	for rows.Next() {
		var itemID, title, orgName string
		var score *float64
		var relevance *string
		var published, deadline *time.Time

		if err := rows.Scan(&itemID, &title, &orgName, &score, &relevance, &published, &deadline); err != nil {
			log.Printf("Scan error: %v", err)
			continue
		}

		if len(title) > 60 {
			title = title[:57] + "..."
		}

		t.AppendRow(table.Row{itemID, title, orgName, formatScore(score), deref(relevance), formatDate(published), formatDate(deadline)})
	}
	t.Render()
}

func formatScore(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}
