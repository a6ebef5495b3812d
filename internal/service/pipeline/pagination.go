package pipeline

import (
	"fmt"
	"net/url"
	"strconv"
)

// NextPageURL increments the "p" query parameter; a missing one counts as page 1.
func NextPageURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("解析URL失败: %w", err)
	}
	q := u.Query()
	page := 1
	if v := q.Get("p"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil {
			return "", fmt.Errorf("页码无效 %q: %w", v, err)
		}
	}
	q.Set("p", strconv.Itoa(page+1))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
