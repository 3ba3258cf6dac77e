package opsauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestIssuer_IssueThenVerify_RoundTrips(t *testing.T) {
	issuer := NewIssuer([]byte("super-secret"), "loanserve-ops", time.Hour)
	token, err := issuer.Issue("alice")
	require.NoError(t, err)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.Username)
	require.Equal(t, "alice", claims.Subject)
}

func TestIssuer_Verify_RejectsWrongSecret(t *testing.T) {
	issuer := NewIssuer([]byte("super-secret"), "loanserve-ops", time.Hour)
	token, err := issuer.Issue("alice")
	require.NoError(t, err)

	other := NewIssuer([]byte("different-secret"), "loanserve-ops", time.Hour)
	_, err = other.Verify(token)
	require.Error(t, err)
}

func TestIssuer_Verify_RejectsExpiredToken(t *testing.T) {
	issuer := NewIssuer([]byte("super-secret"), "loanserve-ops", -time.Minute)
	token, err := issuer.Issue("alice")
	require.NoError(t, err)

	_, err = issuer.Verify(token)
	require.Error(t, err)
}

func TestCredential_Authenticate(t *testing.T) {
	hashed, err := HashPassword("correct-horse-battery-staple")
	require.NoError(t, err)
	cred := Credential{Username: "opadmin", HashedPassword: hashed}

	require.True(t, cred.Authenticate("opadmin", "correct-horse-battery-staple"))
	require.False(t, cred.Authenticate("opadmin", "wrong"))
	require.False(t, cred.Authenticate("someone-else", "correct-horse-battery-staple"))
}

func TestRequireBearerToken_RejectsMissingAndAcceptsValid(t *testing.T) {
	gin.SetMode(gin.TestMode)
	issuer := NewIssuer([]byte("super-secret"), "loanserve-ops", time.Hour)

	router := gin.New()
	router.GET("/protected", RequireBearerToken(issuer), func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"username": claims.Username})
	})

	reqNoAuth := httptest.NewRequest(http.MethodGet, "/protected", nil)
	recNoAuth := httptest.NewRecorder()
	router.ServeHTTP(recNoAuth, reqNoAuth)
	require.Equal(t, http.StatusUnauthorized, recNoAuth.Code)

	token, err := issuer.Issue("alice")
	require.NoError(t, err)
	reqAuth := httptest.NewRequest(http.MethodGet, "/protected", nil)
	reqAuth.Header.Set("Authorization", "Bearer "+token)
	recAuth := httptest.NewRecorder()
	router.ServeHTTP(recAuth, reqAuth)
	require.Equal(t, http.StatusOK, recAuth.Code)
}
