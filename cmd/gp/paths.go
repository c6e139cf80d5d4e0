package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// pathEntry mirrors the registry's listing record.
type pathEntry struct {
	Namespace   string   `json:"namespace"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Downloads   int64    `json:"download_count"`
	UpdatedAt   string   `json:"updated_at"`
}

func (e pathEntry) ref() string {
	return e.Namespace + "/" + e.Name
}

var publishCmd = func() *cobra.Command {
	var name, version, description, tags string

	cmd := &cobra.Command{
		Use:   "publish <file.md>",
		Short: "Publish a golden path version",
		Long: `Publish uploads a markdown document as a new version. The namespace is
always the one owned by the API key; the version must be an exact semantic
version and can never be overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]string{
				"name":        name,
				"version":     version,
				"description": description,
				"tags":        tags,
			}

			var result struct {
				Path     string `json:"path"`
				Location string `json:"location"`
			}
			if err := newClient().uploadFile("/api/v1/golden-paths", args[0], fields, &result); err != nil {
				return err
			}

			if outputFmt == "json" || outputFmt == "yaml" {
				return printOutput(result)
			}
			fmt.Printf("Published %s\n", result.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Golden path name (required)")
	cmd.Flags().StringVar(&version, "version", "", "Semantic version (default 0.0.1)")
	cmd.Flags().StringVar(&description, "description", "", "Short description")
	cmd.Flags().StringVar(&tags, "tags", "", "Comma-separated tags")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}()

var getCmd = &cobra.Command{
	Use:   "get <@namespace/name[:version]>",
	Short: "Fetch a golden path document",
	Long:  "Get prints the document body to stdout. Without a version the latest one is fetched.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		namespace, name, version, err := parseRef(args[0])
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/api/v1/golden-paths/%s/%s", url.PathEscape(namespace), url.PathEscape(name))
		if version != "" {
			path += "?version=" + url.QueryEscape(version)
		}

		var result struct {
			Namespace string `json:"namespace"`
			Name      string `json:"name"`
			Version   string `json:"version"`
			Content   string `json:"content"`
		}
		if err := newClient().getJSON(path, &result); err != nil {
			return err
		}

		if outputFmt == "json" || outputFmt == "yaml" {
			return printOutput(result)
		}
		fmt.Print(result.Content)
		return nil
	},
}

var listCmd = func() *cobra.Command {
	var namespace, name, sortBy string
	var page, perPage int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List golden paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			if namespace != "" {
				params.Set("namespace", namespace)
			}
			if name != "" {
				params.Set("name", name)
			}
			if sortBy != "" {
				params.Set("sort_by", sortBy)
			}
			if page > 0 {
				params.Set("page", strconv.Itoa(page))
			}
			if perPage > 0 {
				params.Set("per_page", strconv.Itoa(perPage))
			}

			path := "/api/v1/golden-paths"
			if len(params) > 0 {
				path += "?" + params.Encode()
			}

			var result struct {
				Paths      []pathEntry `json:"paths"`
				TotalCount int64       `json:"total_count"`
				Page       int         `json:"page"`
				TotalPages int         `json:"total_pages"`
			}
			if err := newClient().getJSON(path, &result); err != nil {
				return err
			}

			if outputFmt == "json" || outputFmt == "yaml" {
				return printOutput(result)
			}

			rows := make([][]string, 0, len(result.Paths))
			for _, p := range result.Paths {
				rows = append(rows, []string{
					p.ref(),
					p.Version,
					strconv.FormatInt(p.Downloads, 10),
					truncate(p.Description, 50),
				})
			}
			printTable([]string{"path", "version", "downloads", "description"}, rows)
			fmt.Printf("\nPage %d of %d (%d total)\n", result.Page, result.TotalPages, result.TotalCount)
			return nil
		},
	}

	cmd.Flags().StringVar(&namespace, "namespace", "", "Filter by exact namespace")
	cmd.Flags().StringVar(&name, "name", "", "Filter by name prefix")
	cmd.Flags().StringVar(&sortBy, "sort-by", "", "Sort field: name, namespace, version, last_modified")
	cmd.Flags().IntVar(&page, "page", 0, "Page number")
	cmd.Flags().IntVar(&perPage, "per-page", 0, "Results per page")

	return cmd
}()

var searchCmd = func() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search golden paths",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := url.Values{}
			params.Set("q", strings.Join(args, " "))
			if limit > 0 {
				params.Set("limit", strconv.Itoa(limit))
			}

			var result struct {
				Results []pathEntry `json:"results"`
			}
			if err := newClient().getJSON("/api/v1/search?"+params.Encode(), &result); err != nil {
				return err
			}

			if outputFmt == "json" || outputFmt == "yaml" {
				return printOutput(result)
			}

			rows := make([][]string, 0, len(result.Results))
			for _, p := range result.Results {
				rows = append(rows, []string{
					p.ref(),
					p.Version,
					truncate(strings.Join(p.Tags, ","), 30),
					truncate(p.Description, 50),
				})
			}
			printTable([]string{"path", "version", "tags", "description"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}()

var deleteCmd = func() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "delete <@namespace/name[:version]>",
		Short: "Delete a golden path version, or all versions with --all",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, name, version, err := parseRef(args[0])
			if err != nil {
				return err
			}
			if version == "" && !all {
				return fmt.Errorf("no version given: use %s:<version> or --all to delete every version", args[0])
			}
			if version != "" && all {
				return fmt.Errorf("--all cannot be combined with an explicit version")
			}

			path := fmt.Sprintf("/api/v1/golden-paths/%s/%s", url.PathEscape(namespace), url.PathEscape(name))
			if version != "" {
				path += "?version=" + url.QueryEscape(version)
			}

			var result struct {
				Deleted []string          `json:"deleted"`
				Failed  map[string]string `json:"failed"`
				Message string            `json:"message"`
			}
			if err := newClient().deleteJSON(path, &result); err != nil {
				return err
			}

			if outputFmt == "json" || outputFmt == "yaml" {
				return printOutput(result)
			}
			fmt.Println(result.Message)
			for v, reason := range result.Failed {
				fmt.Printf("  failed %s: %s\n", v, reason)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Delete every version")

	return cmd
}()

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check registry server health",
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Status string `json:"status"`
		}
		if err := newClient().getJSON("/health", &result); err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", resolvedServer(), result.Status)
		return nil
	},
}
