package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rename2pc/internal/rename2pc"
)

func TestPostSucceedsOnFirstAttempt(t *testing.T) {
	var received rename2pc.Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decodeInto(t, r, &received)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := New()
	err := tr.Post(context.Background(), srv.Listener.Addr().String(), "/txn/lock/0", rename2pc.Message{
		Kind: rename2pc.LockReq, Store: 0, TxnId: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, rename2pc.LockReq, received.Kind)
	assert.Equal(t, rename2pc.TxnId(1), received.TxnId)
}

func TestPostRetriesOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := New()
	err := tr.Post(context.Background(), srv.Listener.Addr().String(), "/txn/lock/0", rename2pc.Message{
		Kind: rename2pc.LockReq, Store: 0, TxnId: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestPostFailsAfterExhaustingRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := New()
	err := tr.Post(context.Background(), srv.Listener.Addr().String(), "/txn/lock/0", rename2pc.Message{
		Kind: rename2pc.LockReq, Store: 0, TxnId: 1,
	})
	assert.Error(t, err)
}

func decodeInto(t *testing.T, r *http.Request, out *rename2pc.Message) {
	t.Helper()
	require.NoError(t, json.NewDecoder(r.Body).Decode(out))
}
