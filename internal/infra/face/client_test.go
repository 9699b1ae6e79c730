package face

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFaceServer(t *testing.T, detect, verify gin.HandlerFunc) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if detect != nil {
		r.POST("/api/v1/detection/detect", detect)
	}
	if verify != nil {
		r.POST("/api/v1/verification/verify", verify)
	}
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{BaseURL: srv.URL + "/", DetectKey: "detect-key", VerifyKey: "verify-key"})
	require.NoError(t, err)
	return c
}

func TestDetectSingleFace(t *testing.T) {
	c := newFaceServer(t, func(ctx *gin.Context) {
		assert.Equal(t, "detect-key", ctx.GetHeader("x-api-key"))
		var body map[string]string
		assert.NoError(t, ctx.ShouldBindJSON(&body))
		assert.Equal(t, "aGVsbG8=", body["file"])
		ctx.JSON(http.StatusOK, gin.H{"result": []gin.H{{"box": gin.H{"probability": 0.97}}}})
	}, nil)

	p, err := c.Detect(context.Background(), "data:image/jpeg;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.InDelta(t, 0.97, p, 1e-9)
}

func TestDetectFaceCount(t *testing.T) {
	var faces atomic.Int32
	c := newFaceServer(t, func(ctx *gin.Context) {
		n := int(faces.Load())
		result := make([]gin.H, 0, n)
		for range n {
			result = append(result, gin.H{"box": gin.H{"probability": 0.9}})
		}
		ctx.JSON(http.StatusOK, gin.H{"result": result})
	}, nil)

	_, err := c.Detect(context.Background(), "x")
	require.ErrorIs(t, err, ErrNoFace)

	faces.Store(2)
	_, err = c.Detect(context.Background(), "x")
	require.ErrorIs(t, err, ErrMultipleFaces)
}

func TestDetectNoFaceErrorCode(t *testing.T) {
	c := newFaceServer(t, func(ctx *gin.Context) {
		ctx.JSON(http.StatusBadRequest, gin.H{"code": 28, "message": "No face is found in the given image"})
	}, nil)

	_, err := c.Detect(context.Background(), "x")
	require.ErrorIs(t, err, ErrNoFace)
}

func TestVerifyReturnsBestSimilarity(t *testing.T) {
	c := newFaceServer(t, nil, func(ctx *gin.Context) {
		assert.Equal(t, "verify-key", ctx.GetHeader("x-api-key"))
		var body map[string]string
		assert.NoError(t, ctx.ShouldBindJSON(&body))
		assert.Equal(t, "doc", body["source_image"])
		assert.Equal(t, "selfie", body["target_image"])
		ctx.JSON(http.StatusOK, gin.H{"result": []gin.H{{
			"face_matches": []gin.H{{"similarity": 0.61}, {"similarity": 0.93}},
		}}})
	})

	s, err := c.Verify(context.Background(), "doc", "selfie")
	require.NoError(t, err)
	assert.InDelta(t, 0.93, s, 1e-9)
}

func TestVerifyServerError(t *testing.T) {
	c := newFaceServer(t, nil, func(ctx *gin.Context) {
		ctx.JSON(http.StatusInternalServerError, gin.H{"message": "down"})
	})
	_, err := c.Verify(context.Background(), "doc", "selfie")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
}

func TestVerifyWithoutMatches(t *testing.T) {
	c := newFaceServer(t, nil, func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"result": []gin.H{}})
	})
	_, err := c.Verify(context.Background(), "doc", "selfie")
	require.ErrorIs(t, err, ErrNoMatch)
}
