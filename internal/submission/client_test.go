package submission

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/medsupply-orders/pkg/apperr"
	"github.com/dmehra2102/medsupply-orders/pkg/logging"
)

func TestClientSubmitCreatesThenReplays(t *testing.T) {
	srv := newOrderServer(t)
	c := NewClient(logging.Discard(), srv.URL, time.Second)

	first := c.Submit(context.Background(), "key-1", validRequest())
	require.NoError(t, first.Err)
	assert.Equal(t, OutcomeSubmitted, first.Outcome)
	assert.Equal(t, http.StatusCreated, first.StatusCode)
	assert.False(t, first.Replayed)
	require.NotNil(t, first.Order)
	assert.Equal(t, "12300.00", first.Order.TotalAmount.StringFixed(2))

	again := c.Submit(context.Background(), "key-1", validRequest())
	require.NoError(t, again.Err)
	assert.Equal(t, OutcomeSubmitted, again.Outcome)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Order.ID, again.Order.ID)
	assert.Equal(t, 1, srv.orders())
}

func TestClientSubmitTimeoutIsRetryable(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)

	res := NewClient(logging.Discard(), slow.URL, 20*time.Millisecond).Submit(context.Background(), "k", validRequest())
	assert.Equal(t, OutcomeRetryable, res.Outcome)
	assert.Zero(t, res.StatusCode)
	assert.True(t, apperr.IsTransient(res.Err))
}

func TestClientSubmitUnreachableIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := NewClient(logging.Discard(), url, time.Second).Submit(context.Background(), "k", validRequest())
	assert.Equal(t, OutcomeRetryable, res.Outcome)
	assert.True(t, apperr.IsTransient(res.Err))
}

func TestClientProductsAndHealth(t *testing.T) {
	srv := newOrderServer(t)
	c := NewClient(logging.Discard(), srv.URL, time.Second)

	products, err := c.Products(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Opsite (Piece)", products[0].Name)
	assert.NoError(t, c.Health(context.Background()))

	srv.failWith.Store(http.StatusServiceUnavailable)
	err = c.Health(context.Background())
	assert.True(t, apperr.IsTransient(err))
}
