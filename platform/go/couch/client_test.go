package couch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{BaseURL: srv.URL, AdminUser: "admin", AdminPassword: "secret"})
	require.NoError(t, err)
	return client
}

func TestNewRequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}

func TestCreateDatabase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		wantState CreateState
		wantErr   bool
	}{
		{name: "created", status: http.StatusCreated, wantState: StateCreated},
		{name: "already exists", status: http.StatusPreconditionFailed, wantState: StateAlreadyExists},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, http.MethodPut, r.Method)
				require.Equal(t, "/acme_corp", r.URL.Path)

				user, pass, ok := r.BasicAuth()
				require.True(t, ok)
				require.Equal(t, "admin", user)
				require.Equal(t, "secret", pass)

				w.WriteHeader(tc.status)
			})

			state, err := client.CreateDatabase(context.Background(), "acme_corp")
			if tc.wantErr {
				var opErr *OpError
				require.ErrorAs(t, err, &opErr)
				require.Equal(t, "create_database", opErr.Op)
				require.Equal(t, "acme_corp", opErr.Target)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantState, state)
		})
	}
}

func TestSetSecurityPolicyBody(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/acme_corp/_security", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var policy SecurityPolicy
		require.NoError(t, json.Unmarshal(body, &policy))
		require.Equal(t, []string{"acme_corp_user"}, policy.Admins.Names)
		require.Equal(t, []string{"acme_corp_user"}, policy.Members.Names)
		require.Empty(t, policy.Admins.Roles)

		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.SetSecurityPolicy(context.Background(), "acme_corp", "acme_corp_user"))
}

func TestCreateUserIdempotent(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusCreated, http.StatusConflict} {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/_users", r.URL.Path)

			var doc map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
			require.Equal(t, "org.couchdb.user:acme_corp_user", doc["_id"])
			require.Equal(t, "user", doc["type"])

			w.WriteHeader(status)
		})

		require.NoError(t, client.CreateUser(context.Background(), "acme_corp_user", "pw"))
	}
}

func TestCreateUserUnexpectedStatus(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
	})

	err := client.CreateUser(context.Background(), "acme_corp_user", "pw")
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, http.StatusForbidden, opErr.StatusCode)
	require.Contains(t, opErr.Body, "forbidden")
}

func TestDeleteDatabaseIdempotent(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusOK, http.StatusNotFound} {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodDelete, r.Method)
			w.WriteHeader(status)
		})

		require.NoError(t, client.DeleteDatabase(context.Background(), "acme_corp"))
	}
}

func TestListDatabases(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/_all_dbs", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]string{"_users", "acme_corp"})
	})

	names, err := client.ListDatabases(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"_users", "acme_corp"}, names)
}

func TestFetchAllDocuments(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/acme_corp/_all_docs", r.URL.Path)
		require.Equal(t, "true", r.URL.Query().Get("include_docs"))
		_, _ = w.Write([]byte(`{"total_rows":1,"offset":0,"rows":[{"id":"a","key":"a","value":{"rev":"1-x"},"doc":{"_id":"a","_rev":"1-x","name":"first"}}]}`))
	})

	docs, err := client.FetchAllDocuments(context.Background(), "acme_corp")
	require.NoError(t, err)
	require.Equal(t, 1, docs.TotalRows)
	require.Len(t, docs.Rows, 1)
	require.Equal(t, "a", docs.Rows[0].ID)
	require.JSONEq(t, `{"_id":"a","_rev":"1-x","name":"first"}`, string(docs.Rows[0].Doc))
}

func TestBulkInsert(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/acme_corp/_bulk_docs", r.URL.Path)

		var payload struct {
			Docs []json.RawMessage `json:"docs"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.Docs, 2)

		w.WriteHeader(http.StatusCreated)
	})

	docs := []json.RawMessage{
		json.RawMessage(`{"_id":"a"}`),
		json.RawMessage(`{"_id":"b"}`),
	}
	require.NoError(t, client.BulkInsert(context.Background(), "acme_corp", docs))
}

func TestTransportErrorIsNotOpError(t *testing.T) {
	t.Parallel()

	client, err := New(Config{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = client.ListDatabases(context.Background())
	require.Error(t, err)

	var opErr *OpError
	require.False(t, errors.As(err, &opErr))
}
