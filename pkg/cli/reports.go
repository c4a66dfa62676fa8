package cli

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type parameterInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     string `json:"default"`
	Required    bool   `json:"required"`
	InputHint   string `json:"input_hint"`
}

type templateInfo struct {
	Key         string          `json:"key"`
	FileName    string          `json:"file_name"`
	DisplayName string          `json:"display_name"`
	Origin      string          `json:"origin"`
	Parameters  []parameterInfo `json:"parameters"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available report templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		var templates []templateInfo
		if err := apiCall("GET", "/reports", nil, "", &templates); err != nil {
			return err
		}
		if jsonOutput {
			return nil
		}

		if len(templates) == 0 {
			fmt.Println("No templates found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tNAME\tORIGIN\tPARAMETERS")
		for _, t := range templates {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", t.Key, t.DisplayName, t.Origin, len(t.Parameters))
		}
		return w.Flush()
	},
}

var showCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Show a template and its parameter contract",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var t templateInfo
		if err := apiCall("GET", "/reports/"+url.PathEscape(args[0]), nil, "", &t); err != nil {
			return err
		}
		if jsonOutput {
			return nil
		}

		fmt.Printf("Key:    %s\n", t.Key)
		fmt.Printf("Name:   %s\n", t.DisplayName)
		fmt.Printf("File:   %s\n", t.FileName)
		fmt.Printf("Origin: %s\n", t.Origin)

		if len(t.Parameters) == 0 {
			fmt.Println("No prompted parameters.")
			return nil
		}

		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PARAMETER\tTYPE\tREQUIRED\tDEFAULT\tDESCRIPTION")
		for _, p := range t.Parameters {
			fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\n", p.Name, p.Type, p.Required, p.Default, p.Description)
		}
		return w.Flush()
	},
}

var (
	generateDataSource string
	generateFormat     string
	generateParams     []string
	generateOutput     string
)

var generateCmd = &cobra.Command{
	Use:   "generate <key>",
	Short: "Generate a report and write it to a file or stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := url.Values{}
		if generateDataSource != "" {
			query.Set("dataSource", generateDataSource)
		}
		if generateFormat != "" {
			query.Set("format", generateFormat)
		}
		for _, pair := range generateParams {
			name, value, found := strings.Cut(pair, "=")
			if !found {
				return fmt.Errorf("invalid parameter %q, expected name=value", pair)
			}
			query.Set(name, value)
		}

		// generation returns the rendered document, not an envelope
		target := serverAddr + "/api/v1/reports/" + url.PathEscape(args[0]) + "/generate"
		if encoded := query.Encode(); encoded != "" {
			target += "?" + encoded
		}

		out, err := fetchDocument(target)
		if err != nil {
			return err
		}

		if generateOutput == "" || generateOutput == "-" {
			_, err = os.Stdout.Write(out)
			return err
		}
		if err := os.WriteFile(generateOutput, out, 0644); err != nil {
			return err
		}
		fmt.Printf("Wrote %d bytes to %s\n", len(out), generateOutput)
		return nil
	},
}

var rescanCmd = &cobra.Command{
	Use:   "rescan",
	Short: "Trigger a template directory rescan",
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Templates int `json:"templates"`
		}
		if err := apiCall("POST", "/reports/rescan", nil, "", &result); err != nil {
			return err
		}
		if jsonOutput {
			return nil
		}

		fmt.Printf("Catalog holds %d templates.\n", result.Templates)
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <file.jrxml>",
	Short: "Upload a template definition to the writable directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		var body bytes.Buffer
		form := multipart.NewWriter(&body)
		part, err := form.CreateFormFile("file", filepath.Base(args[0]))
		if err != nil {
			return err
		}
		if _, err := part.Write(content); err != nil {
			return err
		}
		if err := form.Close(); err != nil {
			return err
		}

		var result struct {
			Key string `json:"key"`
		}
		if err := apiCall("POST", "/reports", &body, form.FormDataContentType(), &result); err != nil {
			return err
		}
		if jsonOutput {
			return nil
		}

		fmt.Printf("Uploaded as %s\n", result.Key)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a template from the writable directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Deleted string `json:"deleted"`
		}
		if err := apiCall("DELETE", "/reports/"+url.PathEscape(args[0]), nil, "", &result); err != nil {
			return err
		}
		if jsonOutput {
			return nil
		}

		fmt.Printf("Deleted %s\n", result.Deleted)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateDataSource, "datasource", "", "Data source name (default: server default)")
	generateCmd.Flags().StringVar(&generateFormat, "format", "", "Export format (csv or html)")
	generateCmd.Flags().StringArrayVarP(&generateParams, "param", "p", nil, "Report parameter as name=value (repeatable)")
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "Output file, - for stdout")
}
