package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultModel       = "llama-3.3-70b-versatile"
	DefaultTemperature = 0.1
	DefaultTimeout     = 120 * time.Second
)

var ErrGenerationFailure = errors.New("project generation failed")

const systemPrompt = `You are a senior full-stack engineer generating complete, runnable projects.
Reply with exactly one JSON object and nothing else: no markdown, no code fences, no commentary.

The object must have this shape:
{
  "projectName": "string",
  "description": "short summary of the project",
  "files": [
    {"path": "relative/path/to/file.ext", "content": "complete file content"}
  ]
}

Requirements:
- Every "path" is relative to the project root, for example "src/App.jsx" or "index.html".
- Every "content" is the full, working source of that file with newlines encoded as \n.
- Include every file needed to install and run the project, such as package.json and build config.
- Prefer React for user interfaces unless the request says otherwise.
- The output must be valid JSON with all strings properly escaped.`

// File 生成结果中的单个文件，路径不可信，写入前必须经过工作区路径校验
type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type Project struct {
	ProjectName string `json:"projectName"`
	Description string `json:"description"`
	Files       []File `json:"files"`
}

// Generator 根据自然语言描述生成项目文件
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Project, error)
}

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client 基于 OpenAI 兼容接口（默认 Groq）的 Generator 实现
type Client struct {
	client      openai.Client
	model       string
	temperature float64
	timeout     time.Duration
	configured  bool
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	temperature := cfg.Temperature
	if temperature < 0 {
		temperature = DefaultTemperature
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(1),
		),
		model:       model,
		temperature: temperature,
		timeout:     timeout,
		configured:  strings.TrimSpace(cfg.APIKey) != "",
	}
}

func (c *Client) Generate(ctx context.Context, prompt string) (*Project, error) {
	if !c.configured {
		return nil, fmt.Errorf("%w: api key is not configured", ErrGenerationFailure)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(c.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationFailure, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in completion", ErrGenerationFailure)
	}

	project, err := ParseProject(completion.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Project generated",
		zap.String("model", c.model),
		zap.String("project", project.ProjectName),
		zap.Int("files", len(project.Files)),
		zap.Duration("latency", time.Since(start)),
	)
	return project, nil
}

// ParseProject 解析模型返回的 JSON，容忍模型偶尔附带的 ``` 代码块包裹
func ParseProject(content string) (*Project, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty completion content", ErrGenerationFailure)
	}
	content = stripCodeFence(content)

	var project Project
	if err := json.Unmarshal([]byte(content), &project); err != nil {
		return nil, fmt.Errorf("%w: decode completion: %w", ErrGenerationFailure, err)
	}
	for i, f := range project.Files {
		if strings.TrimSpace(f.Path) == "" {
			return nil, fmt.Errorf("%w: file %d has empty path", ErrGenerationFailure, i)
		}
	}
	if project.Files == nil {
		project.Files = []File{}
	}
	return &project, nil
}

func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		content = content[idx+1:]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
