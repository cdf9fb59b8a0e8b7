package auth

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rmiah209/mamba-password-manager/internal/errs"
)

func sha1Parts(pw string) (prefix, suffix string) {
	sum := sha1.Sum([]byte(pw))
	h := strings.ToUpper(hex.EncodeToString(sum[:]))
	return h[:5], h[5:]
}

func TestLeakCountFindsMatch(t *testing.T) {
	const pw = "Passw0rd1"
	wantPrefix, suffix := sha1Parts(pw)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/"+wantPrefix, r.URL.Path)
		fmt.Fprintf(w, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA:3\r\n%s:42\r\nBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB:1\r\n", suffix)
	}))
	defer srv.Close()

	adv := NewBreachAdvisorWithClient(srv.URL+"/", srv.Client())
	count, err := adv.LeakCount(context.Background(), pw)
	require.NoError(t, err)
	require.Equal(t, 42, count)
}

func TestLeakCountMatchesSuffixCaseInsensitively(t *testing.T) {
	const pw = "hunter2"
	_, suffix := sha1Parts(pw)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "%s:7\r\n", strings.ToLower(suffix))
	}))
	defer srv.Close()

	adv := NewBreachAdvisorWithClient(srv.URL+"/", srv.Client())
	count, err := adv.LeakCount(context.Background(), pw)
	require.NoError(t, err)
	require.Equal(t, 7, count)
}

func TestLeakCountNoMatchReturnsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA:3\r\n")
	}))
	defer srv.Close()

	adv := NewBreachAdvisorWithClient(srv.URL+"/", srv.Client())
	count, err := adv.LeakCount(context.Background(), "unbreached password")
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestLeakCountNonSuccessIsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	adv := NewBreachAdvisorWithClient(srv.URL+"/", srv.Client())
	_, err := adv.LeakCount(context.Background(), "anything")
	require.True(t, errors.Is(err, errs.ErrService))
}

func TestLeakCountUnreachableIsServiceError(t *testing.T) {
	adv := NewBreachAdvisorWithClient("http://127.0.0.1:1/", nil)
	_, err := adv.LeakCount(context.Background(), "anything")
	require.True(t, errors.Is(err, errs.ErrService))
}
