package rchttp_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gordian-engine/gcircle/rc/rcaccept"
	"github.com/gordian-engine/gcircle/rc/rccodec"
	"github.com/gordian-engine/gcircle/rc/rchttp"
	"github.com/gordian-engine/gcircle/rc/rcledger"
	"github.com/gordian-engine/gcircle/rc/rcledger/rcmemledger"
	"github.com/gordian-engine/gcircle/rc/rcstate/rcstatetest"
	"github.com/neilotoole/slogt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	fx  *rcstatetest.Fixture
	srv *httptest.Server
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()

	log := slogt.New(t)
	l := rcmemledger.New(log, rcaccept.Full{})
	reg := prometheus.NewRegistry()

	cfg := rcledger.DefaultClientConfig(l)
	cfg.Metrics = rcledger.NewMetrics(reg)

	h := rchttp.NewHandler(log, rchttp.ServerConfig{
		Client:    rcledger.NewClient(log, cfg),
		Historian: l,
		Gatherer:  reg,
		Now:       func() time.Time { return time.Unix(1_700_000_500, 0) },
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return &fixture{fx: rcstatetest.NewFixture(capacity), srv: srv}
}

func (f *fixture) do(t *testing.T, method, path string, body any, out any) *http.Response {
	t.Helper()

	var r *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	} else {
		r = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.srv.URL+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (f *fixture) create(t *testing.T) string {
	t.Helper()

	var out map[string]any
	resp := f.do(t, "POST", "/circles", map[string]any{
		"circle_id":              hex.EncodeToString(f.fx.CircleID[:]),
		"contribution_per_round": f.fx.ContributionPerRound,
		"round_duration":         f.fx.RoundDuration,
		"member_capacity":        f.fx.Capacity(),
		"founder":                f.fx.PubKey(0).String(),
		"created_at":             f.fx.CreatedAt,
	}, &out)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get(rchttp.RequestIDHeader))
	return out["circle_id"].(string)
}

func TestServer_fullCircle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 3)
	id := f.create(t)
	require.Equal(t, hex.EncodeToString(f.fx.CircleID[:]), id)

	for i := 1; i < 3; i++ {
		resp := f.do(t, "POST", "/circles/"+id+"/members", map[string]any{
			"pubkey":       f.fx.PubKey(i).String(),
			"payout_round": i,
		}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	var view rchttp.CircleView
	resp := f.do(t, "GET", "/circles/"+id, nil, &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "open", view.Phase)
	require.Len(t, view.Members, 3)
	require.Equal(t, f.fx.PubKey(0).String(), view.Payee)
	require.Equal(t, []string{f.fx.PubKey(1).String(), f.fx.PubKey(2).String()}, view.Outstanding)

	// Joined-at defaults to the server clock.
	require.Equal(t, uint64(1_700_000_500), view.Members[1].JoinedAt)

	payouts := 0
	for round := uint32(0); round < 3; round++ {
		resp := f.do(t, "GET", "/circles/"+id, nil, &view)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		for _, pub := range view.Outstanding {
			idx := -1
			for i := range 3 {
				if f.fx.PubKey(i).String() == pub {
					idx = i
				}
			}
			ref := f.fx.TxRef(idx, round)

			var out struct {
				Payout *struct {
					Round  uint32 `json:"round"`
					Amount uint64 `json:"amount"`
				} `json:"payout"`
			}
			resp := f.do(t, "POST", "/circles/"+id+"/contributions", map[string]any{
				"pubkey": pub,
				"amount": f.fx.ContributionPerRound,
				"tx_ref": hex.EncodeToString(ref[:]),
			}, &out)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			if out.Payout != nil {
				require.Equal(t, round, out.Payout.Round)
				payouts++
			}
		}
	}
	require.Equal(t, 3, payouts)

	view = rchttp.CircleView{}
	resp = f.do(t, "GET", "/circles/"+id, nil, &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "complete", view.Phase)
	require.Empty(t, view.Payee)
	require.Empty(t, view.Outstanding)

	var hist struct {
		States []string `json:"states"`
	}
	resp = f.do(t, "GET", "/circles/"+id+"/history", nil, &hist)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, hist.States, 1+2+6)

	var state struct {
		State string `json:"state"`
	}
	resp = f.do(t, "GET", "/circles/"+id+"/state", nil, &state)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s, err := rccodec.UnmarshalStateHex(state.State)
	require.NoError(t, err)
	require.True(t, s.IsComplete)

	resp = f.do(t, "GET", "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 3)
	id := f.create(t)

	for _, tc := range []struct {
		name   string
		method string
		path   string
		body   any
		status int
		kind   string
	}{
		{
			name:   "unknown circle",
			method: "GET",
			path:   "/circles/" + hex.EncodeToString(make([]byte, 32)),
			status: http.StatusNotFound,
			kind:   "not_found",
		},
		{
			name:   "malformed circle id",
			method: "GET",
			path:   "/circles/xyz",
			status: http.StatusUnprocessableEntity,
			kind:   "invalid_parameter",
		},
		{
			name:   "duplicate circle",
			method: "POST",
			path:   "/circles",
			body: map[string]any{
				"circle_id":              id,
				"contribution_per_round": 1,
				"round_duration":         1,
				"member_capacity":        2,
				"founder":                f.fx.PubKey(0).String(),
			},
			status: http.StatusConflict,
			kind:   "stale reference",
		},
		{
			name:   "missing field",
			method: "POST",
			path:   "/circles/" + id + "/members",
			body:   map[string]any{"pubkey": f.fx.PubKey(1).String()},
			status: http.StatusUnprocessableEntity,
			kind:   "invalid_parameter",
		},
		{
			name:   "duplicate payout round",
			method: "POST",
			path:   "/circles/" + id + "/members",
			body:   map[string]any{"pubkey": f.fx.PubKey(1).String(), "payout_round": 0},
			status: http.StatusUnprocessableEntity,
			kind:   "duplicate payout round",
		},
		{
			name:   "wrong amount",
			method: "POST",
			path:   "/circles/" + id + "/contributions",
			body: map[string]any{
				"pubkey": f.fx.PubKey(0).String(),
				"amount": 99_999,
				"tx_ref": hex.EncodeToString(make([]byte, 32)),
			},
			status: http.StatusUnprocessableEntity,
			kind:   "wrong amount",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var out rchttp.ErrorResponse
			resp := f.do(t, tc.method, tc.path, tc.body, &out)
			require.Equal(t, tc.status, resp.StatusCode, out.Error)
			require.Equal(t, tc.kind, out.Kind)
		})
	}
}

func TestServer_lifecycle(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := slogt.New(t)
	l := rcmemledger.New(log, rcaccept.Minimal{})
	s := rchttp.NewServer(ctx, log, rchttp.ServerConfig{
		Listener: ln,
		Client:   rcledger.NewClient(log, rcledger.DefaultClientConfig(l)),

		ShutdownTimeout: time.Second,
	})

	resp, err := http.Get("http://" + ln.Addr().String() + "/circles/" + hex.EncodeToString(make([]byte, 32)))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	s.Wait()

	_, err = net.Dial("tcp", ln.Addr().String())
	require.Error(t, err)
}
