package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noe/internal/domain/chat"
	"noe/internal/domain/routes"
	"noe/internal/domain/user"
	"noe/internal/infra/obs"
)

func newBackend(t *testing.T, register func(r *gin.Engine)) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL + "/", Timeout: time.Second}, StaticToken("tok-123"), obs.Discard())
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{}, nil, nil)
	assert.Error(t, err)
}

func TestRequestsCarryBearerAndRequestID(t *testing.T) {
	var auth, reqID string
	client := newBackend(t, func(r *gin.Engine) {
		r.GET("/chats", func(c *gin.Context) {
			auth = c.GetHeader("Authorization")
			reqID = c.GetHeader(obs.HeaderRequestID)
			c.JSON(http.StatusOK, []gin.H{{"id": "c1", "unreadCount": 2, "otherUser": gin.H{"id": "u2", "name": "Bruna"}}})
		})
	})

	ctx := obs.WithRequestID(context.Background(), "req-77")
	chats, err := client.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, 2, chats[0].UnreadCount)
	assert.Equal(t, "Bruna", chats[0].OtherUser.Name)
	assert.Equal(t, "Bearer tok-123", auth)
	assert.Equal(t, "req-77", reqID)
}

func TestAnonymousRequestOmitsAuthorization(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var hadAuth bool
	r := gin.New()
	r.POST("/auth/login", func(c *gin.Context) {
		_, hadAuth = c.Request.Header["Authorization"]
		c.JSON(http.StatusCreated, gin.H{"token": "t", "user": gin.H{"id": "u1", "role": "NORMAL"}})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL}, nil, nil)
	require.NoError(t, err)
	resp, err := client.Login(context.Background(), LoginParams{Email: "a@b.c", Password: "x"})
	require.NoError(t, err)
	assert.False(t, hadAuth)
	assert.Equal(t, user.RoleTutor, resp.User.Role)
}

func TestUnexpectedStatusBecomesError(t *testing.T) {
	client := newBackend(t, func(r *gin.Engine) {
		r.POST("/chats/:id/read", func(c *gin.Context) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized", "statusCode": 401})
		})
		r.POST("/proposals/:id/accept", func(c *gin.Context) {
			c.JSON(http.StatusBadRequest, gin.H{"message": []string{"proposal already answered"}})
		})
		r.GET("/profile", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"id": "u1"})
		})
	})

	err := client.MarkRead(context.Background(), "c1")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Unauthorized", apiErr.Message)
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = client.AcceptProposal(context.Background(), "p1")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "proposal already answered", apiErr.Message)
	assert.False(t, errors.Is(err, ErrUnauthorized))

	_, err = client.Profile(context.Background())
	assert.NoError(t, err)
}

func TestRequestTimeoutIsNotRetried(t *testing.T) {
	gin.SetMode(gin.TestMode)
	calls := 0
	r := gin.New()
	r.GET("/routes/mine", func(c *gin.Context) {
		calls++
		time.Sleep(200 * time.Millisecond)
		c.JSON(http.StatusOK, []gin.H{})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client, err := NewClient(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, nil, nil)
	require.NoError(t, err)

	_, err = client.MyRoutes(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestListRoutesEncodesFilter(t *testing.T) {
	var query map[string]string
	client := newBackend(t, func(r *gin.Engine) {
		r.GET("/routes", func(c *gin.Context) {
			query = map[string]string{}
			for k, v := range c.Request.URL.Query() {
				query[k] = v[0]
			}
			c.JSON(http.StatusOK, []gin.H{{"id": "r1", "origin": "Curitiba", "availableSlots": 2}})
		})
	})

	list, err := client.ListRoutes(context.Background(), routes.SearchFilter{Origin: "Curitiba", Size: "médio"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, map[string]string{"origin": "Curitiba", "size": "médio"}, query)
}

func TestCreateRouteValidatesBeforeSending(t *testing.T) {
	calls := 0
	client := newBackend(t, func(r *gin.Engine) {
		r.POST("/routes", func(c *gin.Context) {
			calls++
			c.JSON(http.StatusCreated, gin.H{"id": "r1"})
		})
	})
	_, err := client.CreateRoute(context.Background(), routes.RouteParams{Origin: "x"})
	assert.ErrorIs(t, err, routes.ErrInvalidRoute)
	assert.Zero(t, calls)
}

func TestSendMessageReturnsServerMessage(t *testing.T) {
	var body struct {
		Text string `json:"text"`
	}
	client := newBackend(t, func(r *gin.Engine) {
		r.POST("/chats/:id/messages", func(c *gin.Context) {
			assert.NoError(t, c.ShouldBindJSON(&body))
			c.JSON(http.StatusCreated, gin.H{
				"id":        "srv-1",
				"text":      body.Text,
				"sender":    gin.H{"id": "u1", "name": "Ana"},
				"createdAt": "2025-03-10T12:00:00Z",
			})
		})
	})

	m, err := client.SendMessage(context.Background(), "c1", "Olá")
	require.NoError(t, err)
	assert.Equal(t, "Olá", body.Text)
	assert.Equal(t, chat.MessageID("srv-1"), m.ID)
	assert.Equal(t, chat.ConversationID("c1"), m.ChatID)
}

func TestStartChatUnwrapsConversation(t *testing.T) {
	client := newBackend(t, func(r *gin.Engine) {
		r.POST("/chats/start", func(c *gin.Context) {
			var req startChatRequest
			assert.NoError(t, c.ShouldBindJSON(&req))
			c.JSON(http.StatusCreated, gin.H{"chat": gin.H{"id": "c9", "route": gin.H{"id": req.RouteID}, "otherUser": gin.H{"id": req.UserID}}})
		})
	})
	conv, err := client.StartChat(context.Background(), "t1", "r7")
	require.NoError(t, err)
	assert.Equal(t, chat.ConversationID("c9"), conv.ID)
	assert.Equal(t, "r7", conv.Route.ID)
	assert.Equal(t, user.ID("t1"), conv.OtherUser.ID)
}

func TestCreateProposalSendsDecimalPrice(t *testing.T) {
	var raw string
	client := newBackend(t, func(r *gin.Engine) {
		r.POST("/proposals", func(c *gin.Context) {
			data, _ := io.ReadAll(c.Request.Body)
			raw = string(data)
			c.JSON(http.StatusCreated, gin.H{"id": "p1", "price": "150.00", "status": "pending", "transportador": gin.H{"id": "t1", "name": "Tiago"}})
		})
	})
	resp, err := client.CreateProposal(context.Background(), CreateProposalParams{
		Price: decimal.RequireFromString("150"), RouteID: "r1", UserID: "u1", Message: "ok", ChatID: "c1",
	})
	require.NoError(t, err)
	assert.Contains(t, raw, `"price":"150"`)
	assert.Contains(t, raw, `"chatId":"c1"`)
	assert.Equal(t, chat.ProposalPending, resp.Proposal().Status)
	assert.Equal(t, "Tiago", resp.Transporter.Name)
}

func TestCreatePaymentSessionAcceptsOKAndCreated(t *testing.T) {
	status := http.StatusCreated
	calls := 0
	client := newBackend(t, func(r *gin.Engine) {
		r.POST("/payments/create", func(c *gin.Context) {
			calls++
			c.JSON(status, gin.H{"sessionId": "cs_test_1"})
		})
	})
	s, err := client.CreatePaymentSession(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", s.SessionID)

	status = http.StatusOK
	_, err = client.CreatePaymentSession(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCompleteRegistrationSendsMultipart(t *testing.T) {
	var fields map[string]string
	var files map[string]string
	client := newBackend(t, func(r *gin.Engine) {
		r.POST("/auth/complete-registration", func(c *gin.Context) {
			form, err := c.MultipartForm()
			if !assert.NoError(t, err) {
				return
			}
			fields = map[string]string{}
			for k, v := range form.Value {
				fields[k] = v[0]
			}
			files = map[string]string{}
			for k, v := range form.File {
				f, _ := v[0].Open()
				data, _ := io.ReadAll(f)
				_ = f.Close()
				files[k] = string(data)
			}
			c.JSON(http.StatusCreated, gin.H{"id": "t1", "role": "TRANSPORTER", "isVerified": true})
		})
	})

	u, err := client.CompleteRegistration(context.Background(), CompleteRegistrationParams{
		Fields: map[string]string{"vehicleType": "van", "vehiclePlate": "ABC1D23"},
		Files: []Upload{
			{Field: "cnh_image", FileName: "cnh.jpg", Data: []byte("cnh")},
			{Field: "selfie", FileName: "selfie.jpg", Data: []byte("face")},
		},
	})
	require.NoError(t, err)
	assert.True(t, u.IsVerified)
	assert.Equal(t, "ABC1D23", fields["vehiclePlate"])
	assert.Equal(t, "face", files["selfie"])
	assert.Equal(t, "cnh", files["cnh_image"])
}

func TestOrders(t *testing.T) {
	client := newBackend(t, func(r *gin.Engine) {
		r.GET("/payments", func(c *gin.Context) {
			c.JSON(http.StatusOK, []gin.H{{"id": "o1", "status": "pendente", "pickupCode": "RT-1"}})
		})
		r.GET("/payments/:id", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "status": "entregue"})
		})
	})
	list, err := client.ListOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "RT-1", list[0].PickupCode)

	o, err := client.GetOrder(context.Background(), "o2")
	require.NoError(t, err)
	assert.Equal(t, "Entregue", o.Status.Label())
}
