// LoginChat - AWS Lambda serverless handler
// Relays chat messages received through API Gateway to the configured model
// and answers synchronously.
//
// Environment variables:
//   LOGINCHAT_CONFIG_JSON      - Full config JSON (alternative to config file)
//   LOGINCHAT_CONFIG_PATH      - Config file path (default: config.json)
//   LOGINCHAT_LAMBDA_SECRET    - Optional shared secret expected in X-LoginChat-Secret

package main

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/vortexlabs/loginchat/pkg/chat"
	"github.com/vortexlabs/loginchat/pkg/config"
	"github.com/vortexlabs/loginchat/pkg/logger"
	"github.com/vortexlabs/loginchat/pkg/providers"
	"github.com/vortexlabs/loginchat/pkg/render"
)

const secretHeader = "x-loginchat-secret"

var (
	current  *relay
	initOnce sync.Once
	initErr  error
)

type relayRequest struct {
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
	File    *struct {
		Name    string `json:"name"`
		Content string `json:"content"`
	} `json:"file,omitempty"`
}

type relayResponse struct {
	MessageID string `json:"message_id"`
	Reply     string `json:"reply"`
	HTML      string `json:"html"`
}

// relay answers one message per invocation; Lambda keeps no transcript.
type relay struct {
	provider providers.LLMProvider
	opts     chat.Options
	secret   string
}

func initialize() error {
	initOnce.Do(func() {
		current, initErr = newRelay()
	})
	return initErr
}

func newRelay() (*relay, error) {
	cfg, err := loadLambdaConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logger.Init(cfg.Log.Level, true)

	provider, err := providers.CreateProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}

	logger.InfoCF("lambda", "Lambda initialized", map[string]interface{}{
		"provider": cfg.Chat.Provider,
		"model":    cfg.Chat.Model,
	})
	return &relay{
		provider: provider,
		opts: chat.Options{
			Model:       cfg.Chat.Model,
			Temperature: cfg.Chat.Temperature,
			MaxTokens:   cfg.Chat.MaxTokens,
		},
		secret: os.Getenv("LOGINCHAT_LAMBDA_SECRET"),
	}, nil
}

func loadLambdaConfig() (*config.Config, error) {
	configPath := os.Getenv("LOGINCHAT_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}
	// LoadConfig prefers LOGINCHAT_CONFIG_JSON when it is set.
	return config.LoadConfig(configPath)
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func jsonResponse(status int, v interface{}) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(v)
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func (r *relay) handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if r.secret != "" {
		got := headerValue(request.Headers, secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(r.secret)) != 1 {
			return jsonResponse(http.StatusUnauthorized, map[string]string{"error": "unauthorized"}), nil
		}
	}

	if request.HTTPMethod != "" && request.HTTPMethod != http.MethodPost {
		return jsonResponse(http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"}), nil
	}

	raw := request.Body
	if request.IsBase64Encoded {
		b, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return jsonResponse(http.StatusBadRequest, map[string]string{"error": "bad request"}), nil
		}
		raw = string(b)
	}

	var req relayRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		logger.WarnCF("lambda", "Failed to parse request", map[string]interface{}{"error": err.Error()})
		return jsonResponse(http.StatusBadRequest, map[string]string{"error": "bad request"}), nil
	}

	var att *chat.Attachment
	if req.File != nil && req.File.Name != "" {
		data, err := base64.StdEncoding.DecodeString(req.File.Content)
		if err != nil {
			return jsonResponse(http.StatusBadRequest, map[string]string{"error": "file is not valid base64"}), nil
		}
		att = &chat.Attachment{Name: req.File.Name, Data: data}
	}

	session := chat.NewSession(req.ChatID, r.provider, r.opts)
	reply, err := session.Send(ctx, req.Message, att)
	if errors.Is(err, chat.ErrEmptyInput) {
		return jsonResponse(http.StatusBadRequest, map[string]string{"error": "message is empty"}), nil
	}
	if err != nil {
		return jsonResponse(http.StatusInternalServerError, map[string]string{"error": err.Error()}), nil
	}

	return jsonResponse(http.StatusOK, relayResponse{
		MessageID: reply.ID,
		Reply:     reply.Content,
		HTML:      render.MarkdownToHTML(reply.Content),
	}), nil
}

func handler(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if err := initialize(); err != nil {
		logger.ErrorCF("lambda", "Init error", map[string]interface{}{"error": err.Error()})
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, nil
	}
	return current.handle(ctx, request)
}

func main() {
	lambda.Start(handler)
}
