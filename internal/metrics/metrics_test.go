package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ExposesCounters(t *testing.T) {
	before := testutil.ToFloat64(RelationshipWrites.WithLabelValues("link", "changed"))
	RelationshipWrites.WithLabelValues("link", "changed").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(RelationshipWrites.WithLabelValues("link", "changed")))

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "coachshare_relationship_writes_total")
	assert.Contains(t, string(body), "go_goroutines")
}
