package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/infinitybuddha29/caller/internal/cliconfig"
	"github.com/infinitybuddha29/caller/internal/signaling"
	"github.com/infinitybuddha29/caller/internal/ui"
)

var flagRoomsFormat string

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List the rooms on a signaling server",
	Long: `List the rooms currently held by a signaling server, with their participants.

The server must run with debug endpoints enabled.`,
	Example: `  caller rooms
  caller rooms --server wss://signal.example.com/ws --format markdown`,
	Args: cobra.NoArgs,
	RunE: runRooms,
}

func runRooms(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cliconfig.Options{})
	if err != nil {
		return err
	}

	rooms, err := fetchRooms(cmd.Context(), cfg.HTTPBaseURL())
	if err != nil {
		return err
	}
	return ui.RenderRooms(cmd.OutOrStdout(), rooms, flagRoomsFormat)
}

type roomsResponse struct {
	Rooms []signaling.RoomInfo `json:"rooms"`
}

var roomsHTTPClient = &http.Client{Timeout: 10 * time.Second}

// fetchRooms reads the room listing from the server's debug endpoint.
func fetchRooms(ctx context.Context, baseURL string) ([]signaling.RoomInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(baseURL, "/")+"/debug/rooms", nil)
	if err != nil {
		return nil, err
	}
	resp, err := roomsHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("list rooms: debug endpoints are disabled on %s", baseURL)
	default:
		return nil, fmt.Errorf("list rooms: unexpected status %s", resp.Status)
	}

	var body roomsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("list rooms: decode: %w", err)
	}
	return body.Rooms, nil
}

func init() {
	rootCmd.AddCommand(roomsCmd)

	roomsCmd.Flags().StringVarP(&flagRoomsFormat, "format", "f", ui.FormatTable, "Output format: table, plain, markdown or csv")
}
