package boxcat

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/mmcdole/boxcat/internal/domain"
)

// GetStatus fetches the service status and per-title event
// announcements. The call is unconditional: no digest, no build id.
//
// Optional fields are decoded permissively; absent or wrongly typed
// values become empty. The top-level online field is required, and a
// body that is not a JSON object or carries a non-boolean online value
// is a parse error.
func (c *Client) GetStatus() (domain.StatusResult, *string, map[string]domain.EventStatus) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+pathEvents, nil)
	if err != nil {
		c.logger.Error("failed to build status request", "error", err)
		return domain.StatusOffline, nil, nil
	}
	req.Header.Set(headerClientVersion, clientVersion)
	req.Header.Set(headerClientType, clientType)

	resp, err := c.dataClient.Do(req)
	if err != nil {
		c.logger.Error("status request failed", "error", err)
		return domain.StatusOffline, nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == statusBadClientVersion {
		return domain.StatusBadClientVersion, nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("failed to read status body", "error", err)
		return domain.StatusOffline, nil, nil
	}

	return decodeStatus(body)
}

func decodeStatus(body []byte) (domain.StatusResult, *string, map[string]domain.EventStatus) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.StatusParseError, nil, nil
	}

	var online bool
	if err := json.Unmarshal(payload["online"], &online); err != nil {
		return domain.StatusParseError, nil, nil
	}
	if !online {
		return domain.StatusOffline, nil, nil
	}

	global := decodeOptionalString(payload["global"])

	games := make(map[string]domain.EventStatus)
	var rawGames []json.RawMessage
	// A non-array games field is treated as empty.
	json.Unmarshal(payload["games"], &rawGames)
	for _, rawGame := range rawGames {
		var game map[string]json.RawMessage
		if err := json.Unmarshal(rawGame, &game); err != nil {
			continue
		}
		var name string
		if err := json.Unmarshal(game["name"], &name); err != nil {
			continue
		}

		detail := domain.EventStatus{
			Header: decodeOptionalString(game["header"]),
			Footer: decodeOptionalString(game["footer"]),
		}

		var rawEvents []json.RawMessage
		json.Unmarshal(game["events"], &rawEvents)
		for _, rawEvent := range rawEvents {
			var event string
			if err := json.Unmarshal(rawEvent, &event); err != nil {
				// Non-string entries are skipped.
				continue
			}
			detail.Events = append(detail.Events, event)
		}

		games[name] = detail
	}

	return domain.StatusSuccess, global, games
}

func decodeOptionalString(raw json.RawMessage) *string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}
