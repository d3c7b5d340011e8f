//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/inkwheel/pressroom/internal/testutil"
)

// itemView mirrors the queue item API shape used across tests.
type itemView struct {
	ID       string `json:"id"`
	Platform string `json:"platform"`
	Kind     string `json:"kind"`
	State    string `json:"state"`
	Payload  struct {
		Text    string `json:"text"`
		Title   string `json:"title"`
		Caption string `json:"caption"`
		Options []struct {
			Text     string `json:"text"`
			VoiceTag string `json:"voice_tag"`
		} `json:"options"`
	} `json:"payload"`
	SelectedOption *int    `json:"selected_option"`
	AssetComplete  bool    `json:"asset_complete"`
	Format         *string `json:"format"`
	TrialID        *string `json:"trial_id"`
	PostURL        *string `json:"post_url"`
	LastError      *string `json:"last_error"`
	PostedAt       *string `json:"posted_at"`
}

// trialView mirrors the trial API shape.
type trialView struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Kind           string   `json:"kind"`
	Schedule       []string `json:"schedule"`
	CurrentStep    int      `json:"current_step"`
	StandardFormat *string  `json:"standard_format"`
}

// overviewView mirrors the trial overview API shape.
type overviewView struct {
	Trial trialView `json:"trial"`
	Stats []struct {
		Format         string             `json:"format"`
		Count          int                `json:"count"`
		ShareRate      float64            `json:"share_rate"`
		DimensionMeans map[string]float64 `json:"dimension_means"`
		OverallMean    *float64           `json:"overall_mean"`
	} `json:"stats"`
	PendingItemID *string `json:"pending_item_id"`
	Leader        *string `json:"leader"`
}

// bankEntryView mirrors the content bank API shape.
type bankEntryView struct {
	ID             string `json:"id"`
	OriginItemID   string `json:"origin_item_id"`
	Topic          string `json:"topic"`
	Kind           string `json:"kind"`
	Decision       string `json:"decision"`
	Reason         string `json:"reason"`
	UsableParts    struct {
		GoodLines []string `json:"good_lines"`
	} `json:"usable_parts"`
	MarkedForReuse bool `json:"marked_for_reuse"`
}

// createTestItem creates a draft item and returns it.
func createTestItem(t *testing.T, client *testutil.Client, platform, kind, text string) itemView {
	t.Helper()

	resp, err := client.POST("/api/v1/items", map[string]interface{}{
		"platform": platform,
		"kind":     kind,
		"payload":  map[string]string{"text": text},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data itemView `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

// createReadyItem creates an item, completes its asset step and marks it
// ready, returning the ready item.
func createReadyItem(t *testing.T, client *testutil.Client, platform, kind, text string) itemView {
	t.Helper()

	item := createTestItem(t, client, platform, kind, text)

	resp, err := client.PATCH("/api/v1/items/"+item.ID, map[string]interface{}{
		"asset_complete": true,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = client.POST("/api/v1/items/"+item.ID+"/ready", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data itemView `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	require.Equal(t, "ready", result.Data.State)
	return result.Data
}

// getItem fetches an item by ID.
func getItem(t *testing.T, client *testutil.Client, id string) itemView {
	t.Helper()

	resp, err := client.GET("/api/v1/items/" + id)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data itemView `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

// deleteItem removes an item; used for cleanup, tolerates conflicts.
func deleteItem(t *testing.T, client *testutil.Client, id string) {
	t.Helper()
	resp, err := client.WithoutValidation().DELETE("/api/v1/items/" + id)
	if err != nil {
		t.Logf("cleanup warning (item %s): %v", id, err)
		return
	}
	resp.Body.Close()
}

// createTestTrial creates a trial and returns it.
func createTestTrial(t *testing.T, client *testutil.Client, name, kind string, schedule []string) trialView {
	t.Helper()

	resp, err := client.POST("/api/v1/trials", map[string]interface{}{
		"name":     name,
		"kind":     kind,
		"schedule": schedule,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result struct {
		Data trialView `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

// getTrialOverview fetches a trial's overview.
func getTrialOverview(t *testing.T, client *testutil.Client, trialID string) overviewView {
	t.Helper()

	resp, err := client.GET("/api/v1/trials/" + trialID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Data overviewView `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}

// awaitCandidate waits until the background scheduler has generated a
// pending-review candidate for the trial and returns it.
func awaitCandidate(t *testing.T, client *testutil.Client, trialID string) itemView {
	t.Helper()

	var candidate itemView
	require.Eventually(t, func() bool {
		resp, err := client.WithoutValidation().GET(
			fmt.Sprintf("/api/v1/items?trial_id=%s&state=pending_review", trialID))
		if err != nil || resp.StatusCode != http.StatusOK {
			if resp != nil {
				resp.Body.Close()
			}
			return false
		}
		var result struct {
			Data []itemView `json:"data"`
		}
		testutil.DecodeJSON(t, resp, &result)
		if len(result.Data) == 0 {
			return false
		}
		candidate = result.Data[0]
		return true
	}, 5*time.Second, 50*time.Millisecond, "no candidate generated for trial %s", trialID)

	return candidate
}

// fullScores rates every dimension with the given value.
func fullScores(v int) map[string]int {
	return map[string]int{
		"naturalness": v,
		"energy":      v,
		"clarity":     v,
		"hook":        v,
		"pacing":      v,
	}
}

// reviewOption tweaks a review payload before submission.
type reviewOption func(map[string]interface{})

func withTopic(topic string) reviewOption {
	return func(m map[string]interface{}) { m["topic"] = topic }
}

func withGoodLines(lines ...string) reviewOption {
	return func(m map[string]interface{}) { m["good_lines"] = lines }
}

func withScores(scores map[string]int) reviewOption {
	return func(m map[string]interface{}) { m["scores"] = scores }
}

func withWouldShare() reviewOption {
	return func(m map[string]interface{}) { m["would_share"] = true }
}

// submitReview rates a pending candidate and applies a decision.
func submitReview(t *testing.T, client *testutil.Client, itemID, decision string, opts ...reviewOption) {
	t.Helper()

	payload := map[string]interface{}{
		"scores":          fullScores(4),
		"decision":        decision,
		"decision_reason": "integration verdict",
	}
	for _, opt := range opts {
		opt(payload)
	}

	resp, err := client.POST("/api/v1/items/"+itemID+"/review", payload)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}
