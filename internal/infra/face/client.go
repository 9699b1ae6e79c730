package face

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrNoFace        = errors.New("face: nenhum rosto detectado na imagem")
	ErrMultipleFaces = errors.New("face: múltiplos rostos detectados, envie uma foto apenas sua")
	ErrNoMatch       = errors.New("face: no match returned")
)

// CompreFace answers 400 with this code when an image holds no face.
const codeNoFaceFound = 28

type Config struct {
	BaseURL   string
	DetectKey string
	VerifyKey string
	Timeout   time.Duration
}

// Client talks to the CompreFace detection and verification services.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, errors.New("face: base url required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}, nil
}

type detectResponse struct {
	Result []struct {
		Box struct {
			Probability float64 `json:"probability"`
		} `json:"box"`
	} `json:"result"`
}

// Detect returns the detection probability of the single face in the image.
func (c *Client) Detect(ctx context.Context, imageBase64 string) (float64, error) {
	var out detectResponse
	body := map[string]string{"file": stripDataURL(imageBase64)}
	if err := c.post(ctx, "/api/v1/detection/detect", c.cfg.DetectKey, body, &out); err != nil {
		return 0, err
	}
	switch len(out.Result) {
	case 0:
		return 0, ErrNoFace
	case 1:
		return out.Result[0].Box.Probability, nil
	default:
		return 0, ErrMultipleFaces
	}
}

type verifyResponse struct {
	Result []struct {
		FaceMatches []struct {
			Similarity float64 `json:"similarity"`
		} `json:"face_matches"`
	} `json:"result"`
}

// Verify compares the document photo against the selfie and returns the
// similarity of the best match.
func (c *Client) Verify(ctx context.Context, documentBase64, selfieBase64 string) (float64, error) {
	var out verifyResponse
	body := map[string]string{
		"source_image": stripDataURL(documentBase64),
		"target_image": stripDataURL(selfieBase64),
	}
	if err := c.post(ctx, "/api/v1/verification/verify", c.cfg.VerifyKey, body, &out); err != nil {
		return 0, err
	}
	if len(out.Result) == 0 || len(out.Result[0].FaceMatches) == 0 {
		return 0, ErrNoMatch
	}
	best := out.Result[0].FaceMatches[0].Similarity
	for _, m := range out.Result[0].FaceMatches[1:] {
		best = max(best, m.Similarity)
	}
	return best, nil
}

func (c *Client) post(ctx context.Context, path, key string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("face: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("face: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", key)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("face: %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("face: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &apiErr)
		if apiErr.Code == codeNoFaceFound {
			return ErrNoFace
		}
		return fmt.Errorf("face: %s: status %d: %s", path, resp.StatusCode, apiErr.Message)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("face: decode response: %w", err)
	}
	return nil
}

// stripDataURL drops a "data:image/...;base64," prefix from captured images.
func stripDataURL(s string) string {
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		return s[i+len(";base64,"):]
	}
	return s
}
