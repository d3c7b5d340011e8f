//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwheel/pressroom/internal/testutil"
)

func TestAuth_Login_Flow(t *testing.T) {
	client := newTestClient(t)

	resp, err := client.POST("/api/v1/auth/login", map[string]string{
		"email":    adminEmail,
		"password": adminPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Token    string `json:"token"`
			Operator struct {
				Email string `json:"email"`
				Role  string `json:"role"`
			} `json:"operator"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.NotEmpty(t, result.Data.Token)
	assert.Equal(t, adminEmail, result.Data.Operator.Email)
	assert.Equal(t, "admin", result.Data.Operator.Role)
}

func TestAuth_Login_InvalidCredentials(t *testing.T) {
	client := newTestClient(t)

	resp, err := client.POST("/api/v1/auth/login", map[string]string{
		"email":    adminEmail,
		"password": "wrongpassword",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestAuth_ProtectedRoutes_RequireToken(t *testing.T) {
	client := newTestClientWithoutValidation()

	resp, err := client.GET("/api/v1/items")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	client.Token = "not-a-real-token"
	resp, err = client.GET("/api/v1/items")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestAuth_OperatorCannotManageOperators(t *testing.T) {
	client := newTestClient(t)
	client.LoginAs(t, operatorEmail, operatorPassword)

	resp, err := client.WithoutValidation().GET("/api/v1/operators")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestAuth_AdminCreatesOperator(t *testing.T) {
	admin := newTestClient(t)
	admin.LoginAs(t, adminEmail, adminPassword)

	email := testutil.RandomEmail()
	resp, err := admin.POST("/api/v1/operators", map[string]string{
		"email":    email,
		"name":     "New Reviewer",
		"password": "longenoughpw",
		"role":     "operator",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Data struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &created)
	assert.Equal(t, email, created.Data.Email)
	assert.Equal(t, "operator", created.Data.Role)
	assert.NotEmpty(t, created.Data.ID)

	// Duplicate email is rejected.
	resp, err = admin.WithoutValidation().POST("/api/v1/operators", map[string]string{
		"email":    email,
		"name":     "Duplicate",
		"password": "longenoughpw",
		"role":     "operator",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// The new account can log in and reach operator routes.
	operator := newTestClient(t)
	operator.LoginAs(t, email, "longenoughpw")
	resp, err = operator.GET("/api/v1/items")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// And shows up in the listing.
	resp, err = admin.GET("/api/v1/operators")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Data []struct {
			Email string `json:"email"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &listing)

	found := false
	for _, op := range listing.Data {
		if op.Email == email {
			found = true
		}
	}
	assert.True(t, found, "created operator should appear in listing")
}

func TestAuth_ValidationErrors(t *testing.T) {
	admin := newTestClient(t)
	admin.LoginAs(t, adminEmail, adminPassword)

	resp, err := admin.WithoutValidation().POST("/api/v1/operators", map[string]string{
		"email":    "not-an-email",
		"name":     "Broken",
		"password": "short",
		"role":     "operator",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
