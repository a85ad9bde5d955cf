package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortexlabs/loginchat/pkg/chat"
	"github.com/vortexlabs/loginchat/pkg/providers"
)

type cannedProvider struct {
	reply string
	got   []providers.Message
}

func (p *cannedProvider) Chat(_ context.Context, messages []providers.Message, _ string, _ map[string]interface{}) (*providers.LLMResponse, error) {
	p.got = messages
	return &providers.LLMResponse{Content: p.reply}, nil
}

func (p *cannedProvider) GetDefaultModel() string { return "canned" }

func TestRelayReplies(t *testing.T) {
	p := &cannedProvider{reply: "*hi*"}
	r := &relay{provider: p}

	resp, err := r.handle(context.Background(), events.APIGatewayProxyRequest{
		HTTPMethod: http.MethodPost,
		Body:       `{"message":"hello"}`,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out relayResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &out))
	assert.Equal(t, "*hi*", out.Reply)
	assert.Contains(t, out.HTML, "<em>hi</em>")
	assert.Equal(t, "hello", p.got[0].Content)
}

func TestRelayBase64Body(t *testing.T) {
	r := &relay{provider: &cannedProvider{reply: ""}}
	body := base64.StdEncoding.EncodeToString([]byte(`{"message":"x"}`))

	resp, err := r.handle(context.Background(), events.APIGatewayProxyRequest{Body: body, IsBase64Encoded: true})
	require.NoError(t, err)
	var out relayResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &out))
	assert.Equal(t, chat.EmptyReply, out.Reply)
}

func TestRelaySecret(t *testing.T) {
	r := &relay{provider: &cannedProvider{reply: "ok"}, secret: "s3"}

	resp, _ := r.handle(context.Background(), events.APIGatewayProxyRequest{Body: `{"message":"x"}`})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = r.handle(context.Background(), events.APIGatewayProxyRequest{
		Headers: map[string]string{"X-LoginChat-Secret": "s3"},
		Body:    `{"message":"x"}`,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRelayBadRequests(t *testing.T) {
	r := &relay{provider: &cannedProvider{reply: "ok"}}

	for name, req := range map[string]events.APIGatewayProxyRequest{
		"not json":     {Body: "nope"},
		"empty":        {Body: `{"message":""}`},
		"bad file":     {Body: `{"message":"x","file":{"name":"a","content":"%%"}}`},
		"wrong method": {HTTPMethod: http.MethodGet},
	} {
		resp, err := r.handle(context.Background(), req)
		require.NoError(t, err, name)
		assert.GreaterOrEqual(t, resp.StatusCode, 400, name)
	}
}
