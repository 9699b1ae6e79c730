package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"sort"

	"noe/internal/domain/user"
)

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

type RegisterParams struct {
	Email       string    `json:"email"`
	Password    string    `json:"password"`
	Name        string    `json:"name"`
	CPF         string    `json:"cpf,omitempty"`
	CNPJ        string    `json:"cnpj,omitempty"`
	CNH         string    `json:"cnh,omitempty"`
	Role        user.Role `json:"role,omitempty"`
	VehicleInfo string    `json:"vehicleInfo,omitempty"`
}

type LoginParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Upload is one file part of the complete-registration form.
type Upload struct {
	Field    string
	FileName string
	Data     []byte
}

// CompleteRegistrationParams carries identity documents and selfie. Tutors send
// document_front, document_back and selfie; transporters send cnh_image,
// vehicle_doc and selfie plus vehicleType and vehiclePlate fields.
type CompleteRegistrationParams struct {
	Files  []Upload
	Fields map[string]string
}

func (c *Client) Register(ctx context.Context, params RegisterParams) (AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, request{op: "register", method: http.MethodPost, path: "/auth/register", body: params, want: http.StatusCreated}, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, params LoginParams) (AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, request{op: "login", method: http.MethodPost, path: "/auth/login", body: params, want: http.StatusCreated}, &out)
	return out, err
}

func (c *Client) CompleteRegistration(ctx context.Context, params CompleteRegistrationParams) (user.User, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(params.Fields))
	for k := range params.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := form.WriteField(k, params.Fields[k]); err != nil {
			return user.User{}, fmt.Errorf("api: complete registration: %w", err)
		}
	}
	for _, f := range params.Files {
		part, err := form.CreateFormFile(f.Field, f.FileName)
		if err != nil {
			return user.User{}, fmt.Errorf("api: complete registration: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return user.User{}, fmt.Errorf("api: complete registration: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return user.User{}, fmt.Errorf("api: complete registration: %w", err)
	}

	var out user.User
	err := c.do(ctx, request{
		op:          "complete registration",
		method:      http.MethodPost,
		path:        "/auth/complete-registration",
		rawBody:     &buf,
		contentType: form.FormDataContentType(),
		want:        http.StatusCreated,
	}, &out)
	return out, err
}

func (c *Client) Profile(ctx context.Context) (user.User, error) {
	var out user.User
	err := c.do(ctx, request{op: "profile", method: http.MethodGet, path: "/profile", want: http.StatusOK}, &out)
	return out, err
}
