package ginserver

import (
	"context"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"
)

// FaceChecks runs the selfie and document comparisons of registration.
type FaceChecks interface {
	CheckSelfie(ctx context.Context, imageBase64 string) (float64, error)
	VerifyIdentity(ctx context.Context, documentBase64, selfieBase64 string) (float64, error)
}

type IdentityHandler struct {
	Faces  FaceChecks
	Logger *slog.Logger
}

type selfieRequest struct {
	Image string `json:"image" binding:"required"`
}

type verifyRequest struct {
	Document string `json:"document" binding:"required"`
	Selfie   string `json:"selfie" binding:"required"`
}

func (h IdentityHandler) CheckSelfie(c *gin.Context) {
	if h.Faces == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "face check unavailable"})
		return
	}
	var req selfieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	probability, err := h.Faces.CheckSelfie(c.Request.Context(), req.Image)
	if err != nil {
		respondError(c, h.Logger, err, "check selfie")
		return
	}
	c.JSON(http.StatusOK, gin.H{"probability": probability})
}

func (h IdentityHandler) Verify(c *gin.Context) {
	if h.Faces == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "face check unavailable"})
		return
	}
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	similarity, err := h.Faces.VerifyIdentity(c.Request.Context(), req.Document, req.Selfie)
	if err != nil {
		respondError(c, h.Logger, err, "verify identity")
		return
	}
	c.JSON(http.StatusOK, gin.H{"similarity": similarity})
}

var _ IdentityHTTP = IdentityHandler{}
