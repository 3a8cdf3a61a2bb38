package browser

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/pharmascout/internal/common"
	"github.com/ternarybob/pharmascout/internal/interfaces"
)

func TestRequestFilter_Blocked(t *testing.T) {
	filter := NewRequestFilter([]string{"Image", " font ", ""}, []string{"google-analytics", "HOTJAR"})

	tests := []struct {
		name         string
		resourceType string
		url          string
		want         bool
	}{
		{"image by type", "image", "https://cdn.test/logo.png", true},
		{"cdp casing", "Font", "https://cdn.test/a.woff2", true},
		{"host substring", "script", "https://www.google-analytics.com/analytics.js", true},
		{"host case", "xhr", "https://static.hotjar.com/c.js", true},
		{"document never blocked", "document", "https://www.google-analytics.com/", false},
		{"allowed script", "script", "https://synapse.test/app.js", false},
		{"allowed xhr", "xhr", "https://synapse.test/api/search", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, filter.Blocked(tt.resourceType, tt.url))
		})
	}
}

func TestRequestFilter_Empty(t *testing.T) {
	var nilFilter *RequestFilter
	assert.True(t, nilFilter.Empty())
	assert.False(t, nilFilter.Blocked("image", "https://x"))

	empty := NewRequestFilter(nil, []string{" "})
	assert.True(t, empty.Empty())
	assert.False(t, NewRequestFilter([]string{"media"}, nil).Empty())
}

func TestNewLauncher(t *testing.T) {
	logger := arbor.NewLogger()

	launcher, err := NewLauncher(common.BrowserConfig{}, logger)
	require.NoError(t, err)
	assert.IsType(t, &ChromeLauncher{}, launcher)

	launcher, err = NewLauncher(common.BrowserConfig{Driver: "Playwright"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &PlaywrightLauncher{}, launcher)

	_, err = NewLauncher(common.BrowserConfig{Driver: "selenium"}, logger)
	assert.Error(t, err)
}

func TestSelectorScript(t *testing.T) {
	script := selectorScript(jsCount, interfaces.XPath(`//a[normalize-space(.)="Acme \"Bio\""]`))

	quoted, err := json.Marshal(`//a[normalize-space(.)="Acme \"Bio\""]`)
	require.NoError(t, err)
	assert.Contains(t, script, string(quoted)+", true)")

	css := selectorScript(jsVisible, interfaces.CSS(`input[type="search"]`))
	assert.Contains(t, css, `"input[type=\"search\"]", false)`)
}

func TestTimeoutMs(t *testing.T) {
	assert.Equal(t, float64(defaultActionTimeout.Milliseconds()), *timeoutMs(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ms := *timeoutMs(ctx)
	assert.Greater(t, ms, float64(1000))
	assert.LessOrEqual(t, ms, float64(2000))

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	assert.Equal(t, float64(1), *timeoutMs(expired))
}
