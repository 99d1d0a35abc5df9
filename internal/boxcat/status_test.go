package boxcat

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmcdole/boxcat/internal/domain"
)

func TestGetStatusSuccess(t *testing.T) {
	body := `{
		"online": true,
		"global": "Welcome back!",
		"games": [
			{"name": "Alpha", "header": "News", "footer": null,
			 "events": ["first", 42, "second"]},
			{"name": "Beta", "events": []},
			{"header": "no name, skipped"},
			"not an object"
		]
	}`

	var gotVersion, gotType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/boxcat/events", r.URL.Path)
		gotVersion = r.Header.Get(headerClientVersion)
		gotType = r.Header.Get(headerClientType)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	result, global, games := client.GetStatus()

	require.Equal(t, domain.StatusSuccess, result)
	require.Equal(t, clientVersion, gotVersion)
	require.Equal(t, clientType, gotType)

	require.NotNil(t, global)
	require.Equal(t, "Welcome back!", *global)

	require.Len(t, games, 2)
	alpha := games["Alpha"]
	require.NotNil(t, alpha.Header)
	require.Equal(t, "News", *alpha.Header)
	require.Nil(t, alpha.Footer)
	// Server order kept, non-string entry skipped.
	require.Equal(t, []string{"first", "second"}, alpha.Events)

	beta := games["Beta"]
	require.Nil(t, beta.Header)
	require.Nil(t, beta.Footer)
	require.Empty(t, beta.Events)
}

func TestGetStatusOffline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"online": false, "global": "ignored", "games": [{"name": "X"}]}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	result, global, games := client.GetStatus()
	require.Equal(t, domain.StatusOffline, result)
	require.Nil(t, global)
	require.Nil(t, games)
}

func TestGetStatusUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := testClient(t, server.URL)
	result, _, _ := client.GetStatus()
	require.Equal(t, domain.StatusOffline, result)
}

func TestGetStatusBadClientVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMovedPermanently)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	result, _, _ := client.GetStatus()
	require.Equal(t, domain.StatusBadClientVersion, result)
}

func TestDecodeStatus(t *testing.T) {
	cases := []struct {
		name string
		body string
		want domain.StatusResult
	}{
		{"invalid json", `{"online": tru`, domain.StatusParseError},
		{"not an object", `[1, 2, 3]`, domain.StatusParseError},
		{"missing online", `{"global": "hi"}`, domain.StatusParseError},
		{"non-boolean online", `{"online": "yes"}`, domain.StatusParseError},
		{"offline", `{"online": false}`, domain.StatusOffline},
		{"minimal success", `{"online": true, "global": null, "games": []}`, domain.StatusSuccess},
		{"non-array games", `{"online": true, "games": {"oops": true}}`, domain.StatusSuccess},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, global, games := decodeStatus([]byte(tc.body))
			require.Equal(t, tc.want, result)
			if tc.want == domain.StatusSuccess {
				require.Nil(t, global)
				require.Empty(t, games)
			}
		})
	}
}
