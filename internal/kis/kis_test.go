package kis_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"stockwatch/internal/event"
	"stockwatch/internal/httpx"
	"stockwatch/internal/kis"
	"stockwatch/internal/symdir"
)

func newClient(t *testing.T, serverURL string, tokens *kis.TokenStore, events chan event.Event) *kis.Client {
	t.Helper()
	dir := symdir.New(nil)
	dir.AddOrUpdate("005930", "삼성전자")
	return kis.New("app-key", "app-secret", tokens, events, dir, nil,
		kis.WithBaseURL(serverURL),
		kis.WithLogoBaseURL(serverURL),
		kis.WithHTTPClient(httpx.New(2*time.Second)),
	)
}

func saveValidToken(t *testing.T, tokens *kis.TokenStore) {
	t.Helper()
	require.NoError(t, tokens.Save(kis.Token{Access: "valid-token", Expiry: time.Now().Add(time.Hour)}))
}

func TestQuote_ParsesNumericStringsAndDerivesPrevClose(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/uapi/domestic-stock/v1/quotations/inquire-price", r.URL.Path)
		require.Equal(t, "J", r.URL.Query().Get("fid_cond_mrkt_div_code"))
		require.Equal(t, "005930", r.URL.Query().Get("fid_input_iscd"))
		require.Equal(t, "Bearer valid-token", r.Header.Get("Authorization"))
		require.Equal(t, "app-key", r.Header.Get("appkey"))
		require.Equal(t, "app-secret", r.Header.Get("appsecret"))
		require.Equal(t, "FHKST01010100", r.Header.Get("tr_id"))

		json.NewEncoder(w).Encode(map[string]any{
			"output": map[string]string{
				"stck_prpr": "74500",
				"stck_hgpr": "75100",
				"stck_lwpr": "73900",
				"stck_oprc": "74100",
				"prdy_vrss": "500",
			},
		})
	}))
	defer srv.Close()

	tokens := kis.NewTokenStore(newSettings(t))
	saveValidToken(t, tokens)
	client := newClient(t, srv.URL, tokens, nil)
	require.NoError(t, client.EnsureToken(context.Background()))

	q, err := client.Quote(context.Background(), "005930")
	require.NoError(t, err)
	require.Equal(t, "삼성전자", q.Name)
	require.Equal(t, 74500.0, q.Current)
	require.Equal(t, 75100.0, q.High)
	require.Equal(t, 73900.0, q.Low)
	require.Equal(t, 74100.0, q.Open)
	// Previous close is not in the payload; it is current minus day change.
	require.Equal(t, 74000.0, q.PrevClose)
}

func TestQuote_EmptyOutputIsMalformed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rt_cd":"1","msg1":"no data"}`))
	}))
	defer srv.Close()

	tokens := kis.NewTokenStore(newSettings(t))
	saveValidToken(t, tokens)
	client := newClient(t, srv.URL, tokens, nil)
	require.NoError(t, client.EnsureToken(context.Background()))

	_, err := client.Quote(context.Background(), "005930")
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty output")
}

func TestFetchQuote_RefusedBeforeAuthentication(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	events := make(chan event.Event, 4)
	client := newClient(t, srv.URL, kis.NewTokenStore(newSettings(t)), events)

	client.FetchQuote(context.Background(), "005930")

	// Refusal happens before any network I/O and emits nothing.
	time.Sleep(100 * time.Millisecond)
	require.Zero(t, hits.Load())
	require.Empty(t, events)
}

func TestEnsureToken_RequestsAndPersists(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/oauth2/tokenP", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "client_credentials", body["grant_type"])
		require.Equal(t, "app-key", body["appkey"])
		require.Equal(t, "app-secret", body["appsecret"])

		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fresh-token",
			"expires_in":   86400,
		})
	}))
	defer srv.Close()

	tokens := kis.NewTokenStore(newSettings(t))
	client := newClient(t, srv.URL, tokens, nil)

	require.NoError(t, client.EnsureToken(context.Background()))

	got, ok := tokens.Load(time.Now())
	require.True(t, ok, "token must be persisted immediately")
	require.Equal(t, "fresh-token", got.Access)
	require.WithinDuration(t, time.Now().Add(86400*time.Second), got.Expiry, time.Minute)
}

func TestAuthenticate_AdoptsPersistedToken(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	tokens := kis.NewTokenStore(newSettings(t))
	saveValidToken(t, tokens)
	events := make(chan event.Event, 4)
	client := newClient(t, srv.URL, tokens, events)

	client.Authenticate(context.Background())

	select {
	case ev := <-events:
		auth, ok := ev.(event.Authenticated)
		require.True(t, ok, "expected Authenticated, got %T", ev)
		require.Equal(t, "kis", auth.Source)
	case <-time.After(time.Second):
		t.Fatal("no Authenticated event")
	}
	// Server never contacted: the persisted token was adopted.
	require.Zero(t, hits.Load())
}

func TestFetchQuote_EmitsTaggedEvent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"output": map[string]string{
				"stck_prpr": "74500",
				"stck_hgpr": "75100",
				"stck_lwpr": "73900",
				"stck_oprc": "74100",
				"prdy_vrss": "500",
			},
		})
	}))
	defer srv.Close()

	tokens := kis.NewTokenStore(newSettings(t))
	saveValidToken(t, tokens)
	events := make(chan event.Event, 4)
	client := newClient(t, srv.URL, tokens, events)
	require.NoError(t, client.EnsureToken(context.Background()))

	client.FetchQuote(context.Background(), "005930")

	select {
	case ev := <-events:
		qr, ok := ev.(event.QuoteReceived)
		require.True(t, ok, "expected QuoteReceived, got %T", ev)
		require.Equal(t, "005930", qr.Quote.Symbol)
		require.Equal(t, 74500.0, qr.Quote.Current)
	case <-time.After(2 * time.Second):
		t.Fatal("no event emitted")
	}
}

func TestFetchQuote_HungTransportIsAbortedAndEmitsNothing(t *testing.T) {
	t.Parallel()

	aborted := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Never respond; only honor the abort.
		<-r.Context().Done()
		close(aborted)
	}))
	defer srv.Close()

	tokens := kis.NewTokenStore(newSettings(t))
	saveValidToken(t, tokens)
	events := make(chan event.Event, 4)
	client := newClient(t, srv.URL, tokens, events)
	require.NoError(t, client.EnsureToken(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	client.FetchQuote(ctx, "005930")
	cancel()

	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatal("hung request was never aborted")
	}
	select {
	case ev := <-events:
		t.Fatalf("dropped fetch emitted %T", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestFetchLogo_UndecodableImageEmitsNothing(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/media/images/stock_logo/kr/005930.png", r.URL.Path)
		hits.Add(1)
		w.Write([]byte("this is not an image"))
	}))
	defer srv.Close()

	events := make(chan event.Event, 4)
	client := newClient(t, srv.URL, kis.NewTokenStore(newSettings(t)), events)

	client.FetchLogo(context.Background(), "005930")

	require.Eventually(t, func() bool { return hits.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	// Decode failure drops the logo; no LogoReceived may surface.
	select {
	case ev := <-events:
		t.Fatalf("undecodable logo emitted %T", ev)
	case <-time.After(200 * time.Millisecond):
	}
}
