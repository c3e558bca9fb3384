// Package main provides a CLI that queries a CSV catalog without running the service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/edtech-engine/backend/internal/catalog"
	"github.com/edtech-engine/backend/internal/search"
)

var (
	catalogPath string
	catalogURL  string
	topN        int
	asJSON      bool
)

var rootCmd = &cobra.Command{
	Use:   "recommend [query]",
	Short: "Recommend learning resources for a free-text query",
	Long: `Loads a CSV catalog (title, description, subject, url, difficulty),
builds the TF-IDF index and prints the resources closest to the query.

Environment variables:
  CATALOG_PATH   catalog file used when --catalog is not given
  CATALOG_URL    catalog URL used when neither --catalog nor --url is given`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecommend,
}

func init() {
	rootCmd.Flags().StringVarP(&catalogPath, "catalog", "c", "", "path to the CSV catalog")
	rootCmd.Flags().StringVar(&catalogURL, "url", "", "URL of the CSV catalog")
	rootCmd.Flags().IntVarP(&topN, "top", "n", 5, "number of results")
	rootCmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runRecommend(cmd *cobra.Command, args []string) error {
	items, err := loadCatalog(cmd.Context())
	if err != nil {
		return err
	}

	idx, err := search.BuildIndex(items)
	if err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}

	results, err := idx.Rank(strings.Join(args, " "), topN)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for i, r := range results {
		fmt.Fprintf(out, "%d. %s [%s, %s] %.3f\n", i+1, r.Item.Title, r.Item.Subject, r.Item.Difficulty, r.Score)
		if r.Item.URL != "" {
			fmt.Fprintf(out, "   %s\n", r.Item.URL)
		}
	}
	return nil
}

func loadCatalog(ctx context.Context) ([]search.Item, error) {
	if catalogPath == "" && catalogURL == "" {
		catalogPath = os.Getenv("CATALOG_PATH")
		catalogURL = os.Getenv("CATALOG_URL")
	}
	switch {
	case catalogPath != "":
		return catalog.LoadFile(catalogPath)
	case catalogURL != "":
		if ctx == nil {
			ctx = context.Background()
		}
		return catalog.NewFetcher(30*time.Second, time.Minute).Fetch(ctx, catalogURL)
	}
	return nil, fmt.Errorf("no catalog given: use --catalog, --url or CATALOG_PATH")
}
