//go:build integration

package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwheel/pressroom/internal/testutil"
)

func TestQueue_PublishLifecycle(t *testing.T) {
	client := newTestClient(t)
	client.LoginAs(t, operatorEmail, operatorPassword)

	item := createTestItem(t, client, "bluesky", "post", "a calm observation about tooling")
	assert.Equal(t, "draft", item.State)
	assert.False(t, item.AssetComplete)

	// Ready is blocked until the asset step is confirmed.
	resp, err := client.WithoutValidation().POST("/api/v1/items/"+item.ID+"/ready", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp, err = client.PATCH("/api/v1/items/"+item.ID, map[string]interface{}{
		"asset_complete": true,
		"text":           "a calmer observation about tooling",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = client.POST("/api/v1/items/"+item.ID+"/ready", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = client.POST("/api/v1/items/"+item.ID+"/publish", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var published struct {
		Data itemView `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &published)
	assert.Equal(t, "posted", published.Data.State)
	require.NotNil(t, published.Data.PostURL)
	assert.Contains(t, *published.Data.PostURL, "bluesky.example")
	assert.NotNil(t, published.Data.PostedAt)

	// Posted is terminal: no second publish, no delete.
	resp, err = client.WithoutValidation().POST("/api/v1/items/"+item.ID+"/publish", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp, err = client.WithoutValidation().DELETE("/api/v1/items/" + item.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// The latest-posted lookup finds it.
	resp, err = client.GET("/api/v1/items/latest?platform=bluesky&kind=post")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var latest struct {
		Data itemView `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &latest)
	assert.Equal(t, item.ID, latest.Data.ID)
}

func TestQueue_GatewayFailureThenRetry(t *testing.T) {
	client := newTestClient(t)
	client.LoginAs(t, operatorEmail, operatorPassword)

	item := createReadyItem(t, client, "bluesky", "post", "this text will "+failureMarker)

	resp, err := client.WithoutValidation().POST("/api/v1/items/"+item.ID+"/publish", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body := testutil.ReadBody(t, resp)
	assert.Contains(t, body, "session expired, re-authenticate")

	// The failure is recorded verbatim and the item stays retryable.
	failed := getItem(t, client, item.ID)
	assert.Equal(t, "failed", failed.State)
	require.NotNil(t, failed.LastError)
	assert.Contains(t, *failed.LastError, "session expired, re-authenticate")

	// Fix the content and retry from failed.
	resp, err = client.PATCH("/api/v1/items/"+item.ID, map[string]interface{}{
		"text": "repaired text that will go through",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = client.POST("/api/v1/items/"+item.ID+"/publish", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var published struct {
		Data itemView `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &published)
	assert.Equal(t, "posted", published.Data.State)
	// The posted transition wipes the stale gateway error.
	assert.Nil(t, published.Data.LastError)
}

func TestQueue_MarkReadyValidation(t *testing.T) {
	client := newTestClient(t)
	client.LoginAs(t, operatorEmail, operatorPassword)

	t.Run("unselected options", func(t *testing.T) {
		resp, err := client.POST("/api/v1/items", map[string]interface{}{
			"platform": "bluesky",
			"kind":     "post",
			"payload": map[string]interface{}{
				"options": []map[string]string{
					{"text": "variant a"},
					{"text": "variant b"},
				},
			},
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var created struct {
			Data itemView `json:"data"`
		}
		testutil.DecodeJSON(t, resp, &created)
		id := created.Data.ID
		t.Cleanup(func() { deleteItem(t, client, id) })

		resp, err = client.PATCH("/api/v1/items/"+id, map[string]interface{}{"asset_complete": true})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp, err = client.WithoutValidation().POST("/api/v1/items/"+id+"/ready", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()

		// Out-of-range selection is rejected outright.
		resp, err = client.WithoutValidation().PATCH("/api/v1/items/"+id, map[string]interface{}{
			"selected_option": 5,
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()

		// A valid selection unblocks the transition.
		resp, err = client.PATCH("/api/v1/items/"+id, map[string]interface{}{
			"selected_option": 1,
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp, err = client.POST("/api/v1/items/"+id+"/ready", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("char limit", func(t *testing.T) {
		item := createTestItem(t, client, "bluesky", "post", strings.Repeat("a", 301))
		t.Cleanup(func() { deleteItem(t, client, item.ID) })

		resp, err := client.PATCH("/api/v1/items/"+item.ID, map[string]interface{}{"asset_complete": true})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp, err = client.WithoutValidation().POST("/api/v1/items/"+item.ID+"/ready", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := testutil.ReadBody(t, resp)
		assert.Contains(t, body, "character limit")
	})
}

func TestQueue_ManualPlatformFlow(t *testing.T) {
	client := newTestClient(t)
	client.LoginAs(t, operatorEmail, operatorPassword)

	item := createReadyItem(t, client, "instagram", "post", "caption-first content")

	// Automatic publish is refused on a manual-mode platform.
	resp, err := client.WithoutValidation().POST("/api/v1/items/"+item.ID+"/publish", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// The operator posts out of band and confirms with the URL.
	resp, err = client.POST("/api/v1/items/"+item.ID+"/mark-posted", map[string]string{
		"post_url": "https://instagram.com/p/abc123",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var posted struct {
		Data itemView `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &posted)
	assert.Equal(t, "posted", posted.Data.State)
	require.NotNil(t, posted.Data.PostURL)
	assert.Equal(t, "https://instagram.com/p/abc123", *posted.Data.PostURL)

	// The reverse holds on auto platforms.
	auto := createReadyItem(t, client, "bluesky", "post", "auto mode content")
	t.Cleanup(func() { deleteItem(t, client, auto.ID) })

	resp, err = client.WithoutValidation().POST("/api/v1/items/"+auto.ID+"/mark-posted", map[string]string{
		"post_url": "https://bsky.app/post/manual",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestQueue_DeleteDraft(t *testing.T) {
	client := newTestClient(t)
	client.LoginAs(t, operatorEmail, operatorPassword)

	item := createTestItem(t, client, "bluesky", "post", "short lived")

	resp, err := client.DELETE("/api/v1/items/" + item.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp, err = client.WithoutValidation().GET("/api/v1/items/" + item.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestQueue_ListFilters(t *testing.T) {
	client := newTestClient(t)
	client.LoginAs(t, operatorEmail, operatorPassword)

	item := createTestItem(t, client, "threads", "reply", "filterable reply")
	t.Cleanup(func() { deleteItem(t, client, item.ID) })

	resp, err := client.GET("/api/v1/items?platform=threads&state=draft&kind=reply")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Data []itemView `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &listing)

	found := false
	for _, listed := range listing.Data {
		require.Equal(t, "threads", listed.Platform)
		require.Equal(t, "draft", listed.State)
		if listed.ID == item.ID {
			found = true
		}
	}
	assert.True(t, found)

	resp, err = client.WithoutValidation().GET("/api/v1/items?state=shredded")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestQueue_VoiceCheck(t *testing.T) {
	client := newTestClient(t)
	client.LoginAs(t, operatorEmail, operatorPassword)

	item := createTestItem(t, client, "bluesky", "post", "check my voice please")
	t.Cleanup(func() { deleteItem(t, client, item.ID) })

	resp, err := client.POST("/api/v1/items/"+item.ID+"/check", map[string]string{
		"voice_profile": "house",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data struct {
			Score       float64  `json:"score"`
			Verdict     string   `json:"verdict"`
			Suggestions []string `json:"suggestions"`
		} `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	assert.Equal(t, "on-voice", result.Data.Verdict)
	assert.InDelta(t, 0.87, result.Data.Score, 0.001)
	assert.NotEmpty(t, result.Data.Suggestions)
}
