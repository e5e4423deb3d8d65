package moderation

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"notika/backend/internal/cache"
	"notika/backend/internal/domain"
)

// 审核结果分类（用于日志与指标）
const (
	OutcomeToxic       = "toxic"
	OutcomeClean       = "clean"
	OutcomeSkipped     = "skipped"
	OutcomeUnavailable = "unavailable"
	OutcomeUnknown     = "unknown_labels"
)

// 内部错误，不向调用方暴露
var (
	errModelLoading  = errors.New("model is loading")
	errBadStatus     = errors.New("unexpected status")
	errUnknownLabels = errors.New("no known label in response")
)

// harmlessLabel 表示"无害"的标签
const harmlessLabel = "nothate"

// knownLabels 已知标签及其可读名称，其他标签一律忽略
var knownLabels = map[string]string{
	"toxic":         "Zararlı İçerik",
	"severe_toxic":  "Ağır Zararlı İçerik",
	"insult":        "Hakaret",
	"threat":        "Tehdit",
	"obscene":       "Müstehcen İçerik",
	"identity_hate": "Kimlik Temelli Nefret",
	"hate":          "Nefret Söylemi",
	"nothate":       "Zararsız İçerik",
}

// 翻译方向
const (
	DirectionTurkishToEnglish = "tr-en"
	DirectionEnglishToTurkish = "en-tr"
)

const turkishLetters = "çğıöşüÇĞİÖŞÜ"

// Options 审核客户端配置
type Options struct {
	APIKey             string
	BaseURL            string
	ToxicityModel      string
	Threshold          float64
	TranslateENTRModel string
	TranslateTRENModel string
	Timeout            time.Duration
	MaxAttempts        int
	RetryBackoff       time.Duration
	RatePerSecond      float64
	Burst              int
	TranslationTTL     time.Duration
}

// DefaultOptions 默认配置
func DefaultOptions() Options {
	return Options{
		BaseURL:            "https://router.huggingface.co/hf-inference/models",
		ToxicityModel:      "unitary/toxic-bert",
		Threshold:          0.5,
		TranslateENTRModel: "Helsinki-NLP/opus-mt-en-tr",
		TranslateTRENModel: "Helsinki-NLP/opus-mt-tr-en",
		Timeout:            15 * time.Second,
		MaxAttempts:        3,
		RetryBackoff:       2 * time.Second,
		RatePerSecond:      5,
		Burst:              5,
		TranslationTTL:     30 * time.Minute,
	}
}

// Observer 接收每次审核调用的结果（指标上报）
type Observer interface {
	ObserveModeration(outcome string, duration time.Duration)
}

// Client 调用 HuggingFace 推理接口进行毒性分类与翻译。
//
// 任何外部失败都降级为 nil 结果，不会向调用方返回错误。
type Client struct {
	opts     Options
	http     *http.Client
	limiter  *rate.Limiter
	cache    *cache.LocalCache[string]
	log      *zap.Logger
	observer Observer
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option 客户端可选项
type Option func(*Client)

// WithHTTPClient 替换底层 HTTP 客户端
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithObserver 设置结果观察者
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithSleep 替换重试等待函数
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithTranslationCache 替换翻译缓存
func WithTranslationCache(tc *cache.LocalCache[string]) Option {
	return func(c *Client) { c.cache = tc }
}

// NewClient 创建审核客户端
func NewClient(opts Options, log *zap.Logger, options ...Option) *Client {
	defaults := DefaultOptions()
	if opts.BaseURL == "" {
		opts.BaseURL = defaults.BaseURL
	}
	if opts.ToxicityModel == "" {
		opts.ToxicityModel = defaults.ToxicityModel
	}
	if opts.Threshold <= 0 {
		opts.Threshold = defaults.Threshold
	}
	if opts.TranslateENTRModel == "" {
		opts.TranslateENTRModel = defaults.TranslateENTRModel
	}
	if opts.TranslateTRENModel == "" {
		opts.TranslateTRENModel = defaults.TranslateTRENModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaults.MaxAttempts
	}
	if opts.RetryBackoff < 0 {
		opts.RetryBackoff = defaults.RetryBackoff
	}
	if opts.TranslationTTL <= 0 {
		opts.TranslationTTL = defaults.TranslationTTL
	}
	if log == nil {
		log = zap.NewNop()
	}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		opts:    opts,
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		log:     log.Named("moderation"),
		sleep:   sleepContext,
	}
	for _, apply := range options {
		apply(c)
	}
	if c.cache == nil {
		c.cache = cache.NewLocalCache[string](1000, opts.TranslationTTL)
	}
	return c
}

// Enabled 是否配置了 API 凭证
func (c *Client) Enabled() bool {
	return strings.TrimSpace(c.opts.APIKey) != ""
}

// AnalyzeToxicity 对文本做毒性分类
//
// 以下情况返回 nil（表示"未知"，而不是"无害"）：文本为空、未配置凭证、
// 重试后仍无可用结果、响应中没有任何已知标签。
func (c *Client) AnalyzeToxicity(ctx context.Context, text string) *domain.ToxicityVerdict {
	start := time.Now()

	if strings.TrimSpace(text) == "" || !c.Enabled() {
		c.observe(OutcomeSkipped, start)
		return nil
	}

	verdict, err := c.classify(ctx, text)
	if err != nil {
		outcome := OutcomeUnavailable
		if errors.Is(err, errUnknownLabels) {
			outcome = OutcomeUnknown
		}
		c.log.Warn("toxicity analysis degraded to unknown",
			zap.String("model", c.opts.ToxicityModel),
			zap.String("outcome", outcome),
			zap.Error(err))
		c.observe(outcome, start)
		return nil
	}

	if verdict.IsToxic {
		c.observe(OutcomeToxic, start)
	} else {
		c.observe(OutcomeClean, start)
	}
	c.log.Debug("toxicity analysed",
		zap.String("label", verdict.RawName),
		zap.Float64("score", verdict.Score),
		zap.Bool("toxic", verdict.IsToxic))
	return verdict
}

// classify 最多尝试 MaxAttempts 次；模型加载中时等待固定时间后重试，
// 非 2xx 状态立即放弃。
func (c *Client) classify(ctx context.Context, text string) (*domain.ToxicityVerdict, error) {
	var lastErr error

	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		payload, err := c.post(ctx, c.opts.ToxicityModel, text)
		if errors.Is(err, errModelLoading) {
			lastErr = err
			c.log.Info("toxicity model is loading, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", c.opts.RetryBackoff))
			if attempt == c.opts.MaxAttempts {
				break
			}
			if err := c.sleep(ctx, c.opts.RetryBackoff); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		scores, err := parseLabelScores(payload)
		if err != nil {
			return nil, err
		}
		return c.pickVerdict(scores)
	}

	return nil, fmt.Errorf("gave up after %d attempts: %w", c.opts.MaxAttempts, lastErr)
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// parseLabelScores 解析 [[{label,score}...]]，兼容单层数组
func parseLabelScores(payload []byte) ([]labelScore, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(payload, &nested); err == nil {
		if len(nested) == 0 {
			return nil, errUnknownLabels
		}
		return nested[0], nil
	}

	var flat []labelScore
	if err := json.Unmarshal(payload, &flat); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}
	return flat, nil
}

func (c *Client) pickVerdict(scores []labelScore) (*domain.ToxicityVerdict, error) {
	var best *labelScore
	for i := range scores {
		key := strings.ToLower(strings.TrimSpace(scores[i].Label))
		if _, ok := knownLabels[key]; !ok {
			continue
		}
		if best == nil || scores[i].Score > best.Score {
			best = &labelScore{Label: key, Score: scores[i].Score}
		}
	}
	if best == nil {
		return nil, errUnknownLabels
	}

	score := clamp01(best.Score)
	return &domain.ToxicityVerdict{
		Label:   knownLabels[best.Label],
		RawName: best.Label,
		Score:   score,
		IsToxic: best.Label != harmlessLabel && score >= c.opts.Threshold,
	}, nil
}

// Translate 翻译评论文本，方向根据是否包含土耳其语字母自动判断。
// 结果缓存一段时间；失败时返回 nil。
func (c *Client) Translate(ctx context.Context, text string) *domain.Translation {
	if strings.TrimSpace(text) == "" || !c.Enabled() {
		return nil
	}

	direction, model := DirectionEnglishToTurkish, c.opts.TranslateENTRModel
	if strings.ContainsAny(text, turkishLetters) {
		direction, model = DirectionTurkishToEnglish, c.opts.TranslateTRENModel
	}

	key := translationKey(direction, text)
	if cached, ok := c.cache.Get(key); ok {
		return &domain.Translation{Direction: direction, Text: cached}
	}

	payload, err := c.post(ctx, model, text)
	if err != nil {
		c.log.Warn("translation failed", zap.String("model", model), zap.Error(err))
		return nil
	}

	var out []struct {
		TranslationText string `json:"translation_text"`
	}
	if err := json.Unmarshal(payload, &out); err != nil || len(out) == 0 || out[0].TranslationText == "" {
		c.log.Warn("translation response not usable", zap.String("model", model))
		return nil
	}

	c.cache.Set(key, out[0].TranslationText, c.opts.TranslationTTL)
	return &domain.Translation{Direction: direction, Text: out[0].TranslationText}
}

func translationKey(direction, text string) string {
	sum := sha256.Sum256([]byte(direction + "|" + text))
	return "hf:tr:" + hex.EncodeToString(sum[:])
}

// post 发送推理请求并返回原始响应体
func (c *Client) post(ctx context.Context, model, text string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	url := strings.TrimRight(c.opts.BaseURL, "/") + "/" + model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// 非 2xx 一律不重试，加载中标记只在成功响应里判断
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w %s", errBadStatus, resp.Status)
	}
	if bytes.Contains(payload, []byte(`"estimated_time"`)) {
		return nil, errModelLoading
	}
	return payload, nil
}

func (c *Client) observe(outcome string, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveModeration(outcome, time.Since(start))
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
