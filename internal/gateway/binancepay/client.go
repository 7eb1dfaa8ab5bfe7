// Package binancepay implements the Gateway interface against the Binance
// Pay merchant API. No SDK is used; requests are signed per the v3 header
// scheme (HMAC-SHA512 over timestamp, nonce and body).
package binancepay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const successCode = "000000"

// client is a minimal signed HTTP client for the Binance Pay openapi.
type client struct {
	baseURL    string
	apiKey     string
	secretKey  string
	httpClient *http.Client
}

func newClient(baseURL, apiKey, secretKey string) *client {
	return &client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// apiResponse is the envelope every Binance Pay endpoint answers with.
type apiResponse struct {
	Status       string          `json:"status"`
	Code         string          `json:"code"`
	Data         json.RawMessage `json:"data"`
	ErrorMessage string          `json:"errorMessage"`
}

// post signs and sends one API call, decoding data into out on success.
func (c *client) post(ctx context.Context, path string, body any, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	timestamp := fmt.Sprintf("%d", time.Now().UnixMilli())
	nonce := strings.ReplaceAll(uuid.New().String(), "-", "")
	signature := c.sign(timestamp, nonce, string(jsonBody))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("BinancePay-Timestamp", timestamp)
	req.Header.Set("BinancePay-Nonce", nonce)
	req.Header.Set("BinancePay-Certificate-SN", c.apiKey)
	req.Header.Set("BinancePay-Signature", signature)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if envelope.Code != successCode {
		return fmt.Errorf("Binance Pay returned code %s: %s", envelope.Code, envelope.ErrorMessage)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

// sign computes the uppercase hex HMAC-SHA512 of the v3 signing payload.
func (c *client) sign(timestamp, nonce, body string) string {
	payload := timestamp + "\n" + nonce + "\n" + body + "\n"
	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write([]byte(payload))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

type createOrderRequest struct {
	Env             orderEnv `json:"env"`
	MerchantTradeNo string   `json:"merchantTradeNo"`
	OrderAmount     string   `json:"orderAmount"`
	Currency        string   `json:"currency"`
	Description     string   `json:"description"`
	ReturnURL       string   `json:"returnUrl"`
	CancelURL       string   `json:"cancelUrl"`
	WebhookURL      string   `json:"webhookUrl"`
}

type orderEnv struct {
	TerminalType string `json:"terminalType"`
}

type createOrderResponse struct {
	PrepayID    string `json:"prepayId"`
	CheckoutURL string `json:"checkoutUrl"`
	QRCodeLink  string `json:"qrcodeLink"`
	ExpireTime  int64  `json:"expireTime"`
}

// createOrder starts a Binance Pay checkout session.
func (c *client) createOrder(ctx context.Context, req createOrderRequest) (*createOrderResponse, error) {
	var data createOrderResponse
	if err := c.post(ctx, "/binancepay/openapi/v3/order", req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
