// Package advisory generates short cost and pricing commentary for a product
// by calling a hosted language model. The analysis is strictly best-effort:
// any failure yields a fixed fallback text instead of an error, so callers
// never have to branch on availability.
package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/daoyee/daoyee-quote/internal/catalog"
	"github.com/daoyee/daoyee-quote/internal/pricing"
)

// Fallback texts shown when the model is unreachable or returns nothing.
const (
	fallbackUnavailable = "AI 分析服务暂时不可用，请检查网络或 API Key 设置。"
	fallbackEmpty       = "无法生成分析结果。"
)

// Client wraps interactions with the generative language API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient constructs a new client. An empty apiKey disables remote calls;
// Analyze then always returns the fallback text.
func NewClient(baseURL, apiKey, model string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Analyze produces commentary on the product's cost structure and quote.
// It never returns an error; failures degrade to a fallback text.
func (c *Client) Analyze(ctx context.Context, p catalog.Product) string {
	if !c.Enabled() {
		return fallbackUnavailable
	}
	text, err := c.generate(ctx, buildPrompt(p))
	if err != nil {
		c.logger.Error("advisory request failed", slog.Any("error", err))
		return fallbackUnavailable
	}
	if text == "" {
		return fallbackEmpty
	}
	return text
}

func buildPrompt(p catalog.Product) string {
	quote := pricing.ForProduct(p)
	category := p.Category
	if category == "" {
		category = "通用"
	}

	var b strings.Builder
	b.WriteString("作为一个拖鞋制造行业的资深成本会计和营销专家，请分析以下产品数据（DAOYEE品牌）：\n\n")
	fmt.Fprintf(&b, "产品名称: %s\n", p.Name)
	fmt.Fprintf(&b, "产品编号: %s\n", p.Code)
	fmt.Fprintf(&b, "产品分类: %s\n\n", category)
	b.WriteString("成本构成 (RMB):\n")
	for _, cost := range p.Costs {
		fmt.Fprintf(&b, "- %s: ¥%.2f\n", cost.Name, cost.Amount)
	}
	b.WriteString("\n财务数据:\n")
	fmt.Fprintf(&b, "- 总成本: ¥%.2f\n", quote.TotalCost)
	fmt.Fprintf(&b, "- 设定利润率: %g%%\n", p.ProfitMargin)
	fmt.Fprintf(&b, "- 税率: %g%%\n", p.TaxRate)
	fmt.Fprintf(&b, "- 不含税出厂价: ¥%.2f\n", quote.ExWorksPrice)
	fmt.Fprintf(&b, "- 含税报价: ¥%.2f\n\n", quote.PriceWithTax)
	b.WriteString("请提供一段简短的分析（300字以内），包含以下内容：\n")
	b.WriteString("1. 成本结构分析：指出占比最大的成本项。\n")
	b.WriteString("2. 报价评估：含税价格是否具有市场竞争力。\n")
	fmt.Fprintf(&b, "3. 营销建议：针对该品类（%s）的一句营销文案。\n\n", category)
	b.WriteString("请用中文回答，语气专业、科技感、有建设性。")
	return b.String()
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("advisory service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode advisory response: %w", err)
	}

	var b strings.Builder
	for _, cand := range decoded.Candidates {
		for _, p := range cand.Content.Parts {
			b.WriteString(p.Text)
		}
		break
	}
	return strings.TrimSpace(b.String()), nil
}
