package conductor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateAofSendsExpectedQuery(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		json.NewEncoder(w).Encode(GeneralReply{Op: "create_aof", RetCode: 0})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	reply, err := c.CreateAof(context.Background(), "vol-1", 0, 3)
	require.NoError(t, err)
	require.Equal(t, "create_aof", reply.Op)

	require.Equal(t, "create_aof", gotQuery.Get("op"))
	require.Equal(t, "vol-1", gotQuery.Get("volume_name"))
	require.Equal(t, "137438953472", gotQuery.Get("size")) // 128 GiB default
	require.Equal(t, "3", gotQuery.Get("rep_cnt"))
}

func TestCreateAofHonorsExplicitSize(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		json.NewEncoder(w).Encode(GeneralReply{Op: "create_aof", RetCode: 0})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.CreateAof(context.Background(), "vol-2", 4096, 1)
	require.NoError(t, err)
	require.Equal(t, "4096", gotQuery.Get("size"))
}

func TestCheckVolumeExistsSurfacesRetCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(GeneralReply{Op: "check_volume_exists", RetCode: -2, Reason: "not found"})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.CheckVolumeExists(context.Background(), "missing")
	require.Error(t, err)

	var cErr *Error
	require.ErrorAs(t, err, &cErr)
	require.Equal(t, -2, cErr.RetCode)
	require.Equal(t, "not found", cErr.Reason)
}
