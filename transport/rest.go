package transport

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"cryptobridge/models"
)

const (
	ordersPath = "/orders"

	headerAccessKey        = "CB-ACCESS-KEY"
	headerAccessSign       = "CB-ACCESS-SIGN"
	headerAccessTimestamp  = "CB-ACCESS-TIMESTAMP"
	headerAccessPassphrase = "CB-ACCESS-PASSPHRASE"
)

// RESTClient submits signed order entry requests.
type RESTClient struct {
	client *resty.Client
	creds  Credentials
	secret []byte
	now    func() time.Time
}

// NewRESTClient builds an authenticated client for baseURL. The API secret
// must be base64 encoded.
func NewRESTClient(baseURL string, creds Credentials, timeout time.Duration) (*RESTClient, error) {
	secret, err := base64.StdEncoding.DecodeString(creds.Secret)
	if err != nil {
		return nil, fmt.Errorf("%w: api secret is not base64: %v", models.ErrCredential, err)
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return &RESTClient{
		client: client,
		creds:  creds,
		secret: secret,
		now:    time.Now,
	}, nil
}

// SubmitOrder posts params as a new order and returns the raw response body.
func (c *RESTClient) SubmitOrder(ctx context.Context, params map[string]string) (json.RawMessage, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeaders(map[string]string{
			headerAccessKey:        c.creds.Key,
			headerAccessSign:       c.sign(timestamp, http.MethodPost, ordersPath, body),
			headerAccessTimestamp:  timestamp,
			headerAccessPassphrase: c.creds.Passphrase,
		}).
		SetBody(body).
		Post(ordersPath)
	if err != nil {
		return nil, fmt.Errorf("%w: post order: %v", models.ErrConnection, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("order rejected [status %d]: %s", resp.StatusCode(), resp.String())
	}
	return json.RawMessage(resp.Body()), nil
}

// sign returns base64(HMAC-SHA256(secret, timestamp+method+path+body)).
func (c *RESTClient) sign(timestamp, method, path string, body []byte) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(timestamp + method + path))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
