package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhouse/eventflow/pkg/compat"
	"github.com/streamhouse/eventflow/pkg/schema"
)

var testDef = schema.MustParse([]byte(`{
	"type": "record", "name": "UserEvent",
	"fields": [
		{"name": "user_id", "type": "long"},
		{"name": "action", "type": "string"}
	]
}`))

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{
		URL:   server.URL,
		Retry: RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
	})
	require.NoError(t, err)
	return client, server
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeRegistryError(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, map[string]any{"error_code": code, "message": message})
}

func TestRegisterReturnsID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/subjects/user_events-value/versions", r.URL.Path)

		var payload struct {
			Schema string `json:"schema"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		parsed, err := schema.Parse([]byte(payload.Schema))
		require.NoError(t, err)
		require.Equal(t, testDef.Fingerprint(), parsed.Fingerprint())

		writeJSON(w, http.StatusOK, map[string]int{"id": 7})
	}))

	id, err := client.Register(context.Background(), "user_events-value", testDef)
	require.NoError(t, err)
	assert.Equal(t, 7, id)
}

func TestRegisterIncompatible(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeRegistryError(w, http.StatusConflict, 409, "schema being registered is incompatible with an earlier schema")
	}))

	_, err := client.Register(context.Background(), "user_events-value", testDef)
	require.ErrorIs(t, err, ErrIncompatibleSchema)
	assert.False(t, IsRetryable(err))
}

func TestRegisterInvalidSchemaNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeRegistryError(w, http.StatusUnprocessableEntity, 42201, "Invalid schema")
	}))

	_, err := client.Register(context.Background(), "user_events-value", testDef)
	require.ErrorIs(t, err, ErrInvalidSchema)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetByIDUnknown(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeRegistryError(w, http.StatusNotFound, 40403, "Schema not found")
	}))

	_, err := client.GetByID(context.Background(), 999)
	require.ErrorIs(t, err, ErrUnknownSchemaID)
}

func TestGetBySubjectVersion(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/subjects/user_events-value/versions/latest":
			writeJSON(w, http.StatusOK, map[string]any{
				"id": 7, "version": 2, "subject": "user_events-value", "schema": testDef.Document(),
			})
		case "/subjects/missing-value/versions/latest":
			writeRegistryError(w, http.StatusNotFound, 40401, "Subject not found")
		case "/subjects/user_events-value/versions/9":
			writeRegistryError(w, http.StatusNotFound, 40402, "Version not found")
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	meta, err := client.GetBySubjectVersion(context.Background(), "user_events-value", VersionLatest)
	require.NoError(t, err)
	assert.Equal(t, 7, meta.ID)
	assert.Equal(t, 2, meta.Version)
	assert.Equal(t, testDef.Fingerprint(), meta.Definition.Fingerprint())

	_, err = client.GetBySubjectVersion(context.Background(), "missing-value", VersionLatest)
	require.ErrorIs(t, err, ErrUnknownSubject)

	_, err = client.GetBySubjectVersion(context.Background(), "user_events-value", 9)
	require.ErrorIs(t, err, ErrUnknownVersion)
}

func TestListSubjectsAndVersions(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/subjects":
			writeJSON(w, http.StatusOK, []string{"user_events-value", "orders-value"})
		case "/subjects/user_events-value/versions":
			writeJSON(w, http.StatusOK, []int{1, 2, 3})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	subjects, err := client.ListSubjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"user_events-value", "orders-value"}, subjects)

	versions, err := client.ListVersions(context.Background(), "user_events-value")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, versions)
}

func TestCheckCompatibility(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/compatibility/subjects/user_events-value/versions/latest", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"is_compatible": false,
			"messages":      []string{"field action removed without default"},
		})
	}))

	ok, messages, err := client.CheckCompatibility(context.Background(), "user_events-value", testDef)
	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "action")
}

func TestConfigRoundTrip(t *testing.T) {
	var stored string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/config/user_events-value":
			var payload struct {
				Compatibility string `json:"compatibility"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			stored = payload.Compatibility
			writeJSON(w, http.StatusOK, map[string]string{"compatibility": stored})
		case r.Method == http.MethodGet && r.URL.Path == "/config":
			writeJSON(w, http.StatusOK, map[string]string{"compatibilityLevel": "BACKWARD"})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	require.NoError(t, client.SetConfig(context.Background(), "user_events-value", compat.Full))
	assert.Equal(t, "FULL", stored)

	mode, err := client.GetConfig(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, compat.Backward, mode)
}

func TestTransientFailuresRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeRegistryError(w, http.StatusInternalServerError, 50001, "store is down")
			return
		}
		writeJSON(w, http.StatusOK, []string{})
	}))

	_, err := client.ListSubjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetriesExhaustedSurfaceUnavailable(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeRegistryError(w, http.StatusServiceUnavailable, 50301, "backend unavailable")
	}))

	_, err := client.ListSubjects(context.Background())
	require.ErrorIs(t, err, ErrRegistryUnavailable)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestContextTimeoutSurfacesUnavailable(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeJSON(w, http.StatusOK, []string{})
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.ListSubjects(ctx)
	require.ErrorIs(t, err, ErrRegistryUnavailable)
}

func TestDeleteSubjectAndVersion(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		switch r.URL.Path {
		case "/subjects/user_events-value":
			writeJSON(w, http.StatusOK, []int{1, 2})
		case "/subjects/user_events-value/versions/2":
			writeJSON(w, http.StatusOK, 2)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	versions, err := client.DeleteSubject(context.Background(), "user_events-value")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, versions)

	deleted, err := client.DeleteVersion(context.Background(), "user_events-value", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestBasicAuthForwarded(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "svc", user)
		assert.Equal(t, "secret", pass)
		writeJSON(w, http.StatusOK, []string{})
	}))
	client.username = "svc"
	client.password = "secret"

	_, err := client.ListSubjects(context.Background())
	require.NoError(t, err)
}

func TestVersionPath(t *testing.T) {
	assert.Equal(t, "latest", versionPath(VersionLatest))
	assert.Equal(t, "3", versionPath(3))
	assert.Equal(t, "/config", configPath(""))
	assert.Equal(t, fmt.Sprintf("/config/%s", "s-value"), configPath("s-value"))
}
