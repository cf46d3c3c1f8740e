package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/carlo-colombo/cashsplitter/internal/auth"
	"github.com/carlo-colombo/cashsplitter/internal/metrics"
)

const whoAmIProcedure = "/cashsplitter.test.v1.TestService/WhoAmI"

// setupTestServer serves a procedure that echoes the authenticated replica,
// failing with NotFound when the request asks for "missing".
func setupTestServer(t *testing.T, opts ...connect.HandlerOption) *connect.Client[wrapperspb.StringValue, wrapperspb.StringValue] {
	t.Helper()

	handler := connect.NewUnaryHandler(whoAmIProcedure,
		func(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.StringValue], error) {
			if req.Msg.GetValue() == "missing" {
				return nil, connect.NewError(connect.CodeNotFound, errors.New("missing"))
			}
			return connect.NewResponse(wrapperspb.String(GetReplica(ctx))), nil
		}, opts...)

	mux := http.NewServeMux()
	mux.Handle(whoAmIProcedure, handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return connect.NewClient[wrapperspb.StringValue, wrapperspb.StringValue](http.DefaultClient, server.URL+whoAmIProcedure)
}

func TestRequireAuth_PutsReplicaInContext(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	client := setupTestServer(t, connect.WithInterceptors(RequireAuth(jwtManager)))
	ctx := context.Background()

	token, err := jwtManager.Generate("bob-laptop")
	require.NoError(t, err)

	req := connect.NewRequest(wrapperspb.String(""))
	req.Header().Set("Authorization", "Bearer "+token)
	resp, err := client.CallUnary(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "bob-laptop", resp.Msg.GetValue())

	tests := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic " + token,
		"empty token":    "Bearer ",
		"garbage":        "Bearer not-a-jwt",
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			req := connect.NewRequest(wrapperspb.String(""))
			if header != "" {
				req.Header().Set("Authorization", header)
			}
			_, err := client.CallUnary(ctx, req)
			assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
		})
	}
}

func TestMetricsInterceptor_CountsByCode(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	client := setupTestServer(t, connect.WithInterceptors(MetricsInterceptor(m), LoggingInterceptor()))
	ctx := context.Background()

	_, err := client.CallUnary(ctx, connect.NewRequest(wrapperspb.String("")))
	require.NoError(t, err)
	_, err = client.CallUnary(ctx, connect.NewRequest(wrapperspb.String("missing")))
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCs.WithLabelValues(whoAmIProcedure, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCs.WithLabelValues(whoAmIProcedure, connect.CodeNotFound.String())))
}

func TestBearerToken_SetsHeader(t *testing.T) {
	token, err := auth.NewJWTManager("test-secret", time.Hour).Generate("carol-tablet")
	require.NoError(t, err)

	handler := connect.NewUnaryHandler(whoAmIProcedure,
		func(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.StringValue], error) {
			return connect.NewResponse(wrapperspb.String(req.Header().Get("Authorization"))), nil
		})
	mux := http.NewServeMux()
	mux.Handle(whoAmIProcedure, handler)
	echo := httptest.NewServer(mux)
	defer echo.Close()

	client := connect.NewClient[wrapperspb.StringValue, wrapperspb.StringValue](
		http.DefaultClient, echo.URL+whoAmIProcedure, connect.WithInterceptors(BearerToken(token)))
	resp, err := client.CallUnary(context.Background(), connect.NewRequest(wrapperspb.String("")))
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+token, resp.Msg.GetValue())
}

func TestRateLimit_PerReplica(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	client := setupTestServer(t, connect.WithInterceptors(RequireAuth(jwtManager), RateLimit(0.001, 2)))
	ctx := context.Background()

	call := func(replica string) error {
		token, err := jwtManager.Generate(replica)
		require.NoError(t, err)
		req := connect.NewRequest(wrapperspb.String(""))
		req.Header().Set("Authorization", "Bearer "+token)
		_, err = client.CallUnary(ctx, req)
		return err
	}

	require.NoError(t, call("alice-phone"))
	require.NoError(t, call("alice-phone"))
	err := call("alice-phone")
	assert.Equal(t, connect.CodeResourceExhausted, connect.CodeOf(err))

	// Other replicas have their own budget.
	assert.NoError(t, call("bob-laptop"))
}
