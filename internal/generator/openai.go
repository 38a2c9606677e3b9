package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client 调用 OpenAI 兼容的 chat completions 接口
type Client struct {
	baseURL string
	apiKey  string
	model   string
	httpCli *http.Client
}

func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpCli: &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) GenerateScenario(ctx context.Context, sc SessionContext) (*Scenario, error) {
	content, err := c.complete(ctx, scenarioSystemPrompt, buildScenarioPrompt(sc))
	if err != nil {
		return nil, err
	}

	var scenario Scenario

	if err := json.Unmarshal([]byte(content), &scenario); err != nil {
		return nil, fmt.Errorf("剧本不是合法 JSON: %w", err)
	}

	if err := ValidateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("剧本校验失败: %w", err)
	}

	return &scenario, nil
}

func (c *Client) GenerateOutcome(
	ctx context.Context,
	sc SessionContext,
	winning Option,
	totals map[string]float64,
) (*Outcome, error) {
	content, err := c.complete(ctx, outcomeSystemPrompt, buildOutcomePrompt(sc, winning, totals))
	if err != nil {
		return nil, err
	}

	var outcome Outcome

	if err := json.Unmarshal([]byte(content), &outcome); err != nil {
		return nil, fmt.Errorf("结算不是合法 JSON: %w", err)
	}

	if err := ValidateOutcome(&outcome); err != nil {
		return nil, fmt.Errorf("结算校验失败: %w", err)
	}

	return &outcome, nil
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.8,
	}
	reqBody.ResponseFormat.Type = "json_object"

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/chat/completions",
		bytes.NewReader(payload),
	)
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return "", fmt.Errorf("生成服务请求失败: %w", err)
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		zap.L().Warn(
			"生成服务返回非 200",
			zap.Int("status", resp.StatusCode),
		)

		return "", fmt.Errorf("生成服务返回状态码 %d", resp.StatusCode)
	}

	var chat chatResponse

	if err := json.Unmarshal(body, &chat); err != nil {
		return "", fmt.Errorf("生成服务响应解析失败: %w", err)
	}

	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("生成服务返回空内容")
	}

	return chat.Choices[0].Message.Content, nil
}
