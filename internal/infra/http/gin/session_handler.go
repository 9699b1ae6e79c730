package ginserver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"noe/internal/app/agent"
	"noe/internal/domain/user"
	"noe/internal/infra/api"
)

const maxUploadBytes = 10 << 20

var registrationFiles = []string{"document_front", "document_back", "cnh_image", "vehicle_doc", "selfie"}

var registrationFields = []string{"vehicleType", "vehiclePlate"}

// SessionAgent signs users in and out. *agent.Agent satisfies it.
type SessionAgent interface {
	Login(ctx context.Context, email, password string) (*agent.Workspace, error)
	Register(ctx context.Context, params api.RegisterParams) (*agent.Workspace, error)
	Logout(ctx context.Context) error
}

// Profiles is the slice of the auth service the profile endpoints use.
type Profiles interface {
	Current() (*user.Session, bool)
	RefreshProfile(ctx context.Context) (user.User, error)
	CompleteRegistration(ctx context.Context, params api.CompleteRegistrationParams) (user.User, error)
}

type SessionHandler struct {
	Agent    SessionAgent
	Profiles Profiles
	Logger   *slog.Logger
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Email       string    `json:"email" binding:"required,email"`
	Password    string    `json:"password" binding:"required,min=6"`
	Name        string    `json:"name" binding:"required"`
	CPF         string    `json:"cpf"`
	CNPJ        string    `json:"cnpj"`
	CNH         string    `json:"cnh"`
	Role        user.Role `json:"role"`
	VehicleInfo string    `json:"vehicleInfo"`
}

type sessionResponse struct {
	User      user.User  `json:"user"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func (h SessionHandler) Login(c *gin.Context) {
	if h.Agent == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session service unavailable"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	ws, err := h.Agent.Login(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		respondError(c, h.Logger, err, "login")
		return
	}
	c.JSON(http.StatusOK, h.sessionBody(ws.User))
}

func (h SessionHandler) Register(c *gin.Context) {
	if h.Agent == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session service unavailable"})
		return
	}
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.Role == "" {
		req.Role = user.RoleTutor
	}
	if !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}
	ws, err := h.Agent.Register(c.Request.Context(), api.RegisterParams{
		Email:       strings.TrimSpace(req.Email),
		Password:    req.Password,
		Name:        strings.TrimSpace(req.Name),
		CPF:         req.CPF,
		CNPJ:        req.CNPJ,
		CNH:         req.CNH,
		Role:        req.Role,
		VehicleInfo: req.VehicleInfo,
	})
	if err != nil {
		respondError(c, h.Logger, err, "register")
		return
	}
	c.JSON(http.StatusCreated, h.sessionBody(ws.User))
}

func (h SessionHandler) Logout(c *gin.Context) {
	if h.Agent == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session service unavailable"})
		return
	}
	if err := h.Agent.Logout(c.Request.Context()); err != nil {
		respondError(c, h.Logger, err, "logout")
		return
	}
	c.Status(http.StatusNoContent)
}

// Me reports the stored session without calling the backend.
func (h SessionHandler) Me(c *gin.Context) {
	if h.Profiles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session service unavailable"})
		return
	}
	sess, ok := h.Profiles.Current()
	if !ok {
		respondError(c, h.Logger, user.ErrNotAuthenticated, "me")
		return
	}
	c.JSON(http.StatusOK, h.sessionBody(sess.User))
}

func (h SessionHandler) Profile(c *gin.Context) {
	if h.Profiles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session service unavailable"})
		return
	}
	u, err := h.Profiles.RefreshProfile(c.Request.Context())
	if err != nil {
		respondError(c, h.Logger, err, "profile")
		return
	}
	c.JSON(http.StatusOK, u)
}

// CompleteRegistration forwards the identity documents as multipart.
func (h SessionHandler) CompleteRegistration(c *gin.Context) {
	if h.Profiles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session service unavailable"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 4*maxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}
	params := api.CompleteRegistrationParams{Fields: map[string]string{}}
	for _, field := range registrationFiles {
		headers := form.File[field]
		if len(headers) == 0 {
			continue
		}
		data, err := readUpload(headers[0])
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		params.Files = append(params.Files, api.Upload{Field: field, FileName: headers[0].Filename, Data: data})
	}
	for _, field := range registrationFields {
		if v := strings.TrimSpace(c.PostForm(field)); v != "" {
			params.Fields[field] = v
		}
	}
	if len(params.Files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one document is required"})
		return
	}
	u, err := h.Profiles.CompleteRegistration(c.Request.Context(), params)
	if err != nil {
		respondError(c, h.Logger, err, "complete registration")
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h SessionHandler) sessionBody(u user.User) sessionResponse {
	resp := sessionResponse{User: u}
	if h.Profiles == nil {
		return resp
	}
	if sess, ok := h.Profiles.Current(); ok && !sess.ExpiresAt.IsZero() {
		at := sess.ExpiresAt
		resp.ExpiresAt = &at
	}
	return resp
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > maxUploadBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", fh.Filename, maxUploadBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, maxUploadBytes))
}

var _ SessionHTTP = SessionHandler{}
