package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

var datasourceCmd = &cobra.Command{
	Use:   "datasource",
	Short: "Inspect configured data sources",
}

var datasourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured data source names",
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Names   []string `json:"names"`
			Default string   `json:"default"`
		}
		if err := apiCall("GET", "/datasources", nil, "", &result); err != nil {
			return err
		}
		if jsonOutput {
			return nil
		}

		if len(result.Names) == 0 {
			fmt.Println("No data sources configured.")
			return nil
		}
		for _, name := range result.Names {
			if name == result.Default {
				fmt.Printf("%s (default)\n", name)
			} else {
				fmt.Println(name)
			}
		}
		return nil
	},
}

var datasourceTestCmd = &cobra.Command{
	Use:   "test <name>",
	Short: "Test connectivity to a data source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var result struct {
			Name string `json:"name"`
			OK   bool   `json:"ok"`
		}
		if err := apiCall("GET", "/datasources/"+url.PathEscape(args[0])+"/test", nil, "", &result); err != nil {
			return err
		}
		if jsonOutput {
			return nil
		}

		if result.OK {
			fmt.Printf("%s: ok\n", result.Name)
			return nil
		}
		return fmt.Errorf("%s: connection failed", result.Name)
	},
}

func init() {
	datasourceCmd.AddCommand(datasourceListCmd)
	datasourceCmd.AddCommand(datasourceTestCmd)
}
