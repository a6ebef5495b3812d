package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LouYuanbo1/listingwatch/internal/domain/model"
	"github.com/LouYuanbo1/listingwatch/internal/logger"
	"github.com/tidwall/gjson"
)

const DefaultAPIBase = "https://api.telegram.org"

type TelegramOptions struct {
	Token   string
	ChatID  string
	BaseURL string
	// SkipItems suppresses per-record messages; Announce still goes out.
	SkipItems bool
	APIBase   string
	Timeout   time.Duration
}

// Telegram posts records and notices through the Bot API sendMessage method.
type Telegram struct {
	opts   TelegramOptions
	client *http.Client
	log    logger.Logger
}

func NewTelegram(opts TelegramOptions, log logger.Logger) *Telegram {
	if opts.APIBase == "" {
		opts.APIBase = DefaultAPIBase
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Telegram{opts: opts, client: &http.Client{Timeout: opts.Timeout}, log: log}
}

func (t *Telegram) Notify(ctx context.Context, items []model.Item) error {
	if t.opts.SkipItems {
		return nil
	}
	var errs []error
	for i := range items {
		if err := t.send(ctx, FormatItem(&items[i], t.opts.BaseURL)); err != nil {
			t.log.Warn("发送商品通知失败", logger.String("id", items[i].ID.String()), logger.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Telegram) Announce(ctx context.Context, msg string) error {
	return t.send(ctx, msg)
}

// FormatItem renders one record as a plain-text message.
func FormatItem(it *model.Item, baseURL string) string {
	var b strings.Builder
	if it.IsPromotion {
		b.WriteString("[Продвинуто] ")
	}
	b.WriteString(it.Title)
	b.WriteString("\n")
	if it.PriceDetailed != nil {
		price := it.PriceDetailed.String
		if price == "" {
			price = fmt.Sprintf("%d", it.PriceDetailed.Value)
		}
		b.WriteString(price)
		b.WriteString("\n")
	}
	if addr := it.Address(); addr != "" {
		b.WriteString(addr)
		b.WriteString("\n")
	}
	if it.SellerID != "" {
		b.WriteString("Продавец: ")
		b.WriteString(it.SellerID)
		b.WriteString("\n")
	}
	if it.TotalViews != nil {
		fmt.Fprintf(&b, "Просмотры: %d", *it.TotalViews)
		if it.TodayViews != nil {
			fmt.Fprintf(&b, " (+%d)", *it.TodayViews)
		}
		b.WriteString("\n")
	}
	b.WriteString(it.DetailURL(baseURL))
	return b.String()
}

func (t *Telegram) send(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]any{
		"chat_id":                  t.opts.ChatID,
		"text":                     text,
		"disable_web_page_preview": true,
	})
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(t.opts.APIBase, "/"), t.opts.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// the URL carries the token
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return fmt.Errorf("telegram请求失败: %w", uerr.Err)
		}
		return fmt.Errorf("telegram请求失败")
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK || !gjson.GetBytes(body, "ok").Bool() {
		return fmt.Errorf("telegram返回错误 %d: %s", resp.StatusCode, gjson.GetBytes(body, "description").String())
	}
	return nil
}
