package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// apiClient talks to a running daemon's local HTTP API. Commands that need
// live clipboard access (copy) have to go through the daemon; there is no
// offline fallback.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(v *viper.Viper) *apiClient {
	return &apiClient{
		base: fmt.Sprintf("http://localhost:%d", v.GetInt("port")),
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *apiClient) post(path string) (*http.Response, error) {
	resp, err := c.http.Post(c.base+path, "application/json", nil)
	if err != nil {
		return nil, fmt.Errorf("no daemon reachable at %s (is \"clipvault run\" active?): %w", c.base, err)
	}
	return resp, nil
}

func newCopyCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "copy <id>",
		Short: "Copy a history item back to the system clipboard",
		Long: `Asks the running daemon to place a stored item on the system clipboard.
The daemon suppresses re-capture of the copied content, so copying does not
create a duplicate history entry.`,
		Args:    cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid item id %q", args[0])
			}

			client := newAPIClient(v)
			resp, err := client.post(fmt.Sprintf("/api/items/%d/copy", id))
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			switch resp.StatusCode {
			case http.StatusOK:
				fmt.Printf("copied item %d to clipboard\n", id)
				return nil
			case http.StatusNotFound:
				return fmt.Errorf("no item with id %d", id)
			default:
				return fmt.Errorf("daemon returned %s", resp.Status)
			}
		},
	}

	addCommonFlags(cmd)
	cmd.Flags().Int("port", defaultPort, "daemon HTTP API port")
	return cmd
}

func newStatusCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show daemon status",
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE: func(_ *cobra.Command, _ []string) error {
			client := newAPIClient(v)

			resp, err := client.http.Get(client.base + "/status")
			if err != nil {
				fmt.Println("daemon: not running")
				return nil
			}
			defer resp.Body.Close()

			var status struct {
				Status     string `json:"status"`
				Monitoring bool   `json:"monitoring"`
				Addr       string `json:"addr"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				return fmt.Errorf("decoding status: %w", err)
			}

			fmt.Printf("daemon:     %s (%s)\n", status.Status, status.Addr)
			fmt.Printf("monitoring: %v\n", status.Monitoring)

			countResp, err := client.http.Get(client.base + "/api/items/count")
			if err == nil {
				defer countResp.Body.Close()
				var body map[string]int64
				if json.NewDecoder(countResp.Body).Decode(&body) == nil {
					fmt.Printf("items:      %d\n", body["count"])
				}
			}
			return nil
		},
	}

	addCommonFlags(cmd)
	cmd.Flags().Int("port", defaultPort, "daemon HTTP API port")
	return cmd
}
