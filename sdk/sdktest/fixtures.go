package sdktest

import (
	"time"
)

// SessionResponse builds a /v1/session answer.
func SessionResponse(token string, bufferMin int, rotationSeconds float64) map[string]interface{} {
	return map[string]interface{}{
		"session_token":     token,
		"buffer_limits":     map[string]int{"min": bufferMin},
		"rotation_interval": rotationSeconds,
	}
}

// ErrorEnvelope builds an error answer.
func ErrorEnvelope(code string) map[string]interface{} {
	return map[string]interface{}{"error": code}
}

// RateLimitEnvelope builds an err_rate_limited answer asking to wait.
func RateLimitEnvelope(waitSeconds float64) map[string]interface{} {
	return map[string]interface{}{"error": "err_rate_limited", "wait": waitSeconds}
}

// ContentItem builds one entry of a /v1/content result.
func ContentItem(orientation, adType string, expiresAt time.Time) map[string]interface{} {
	width, height := 320, 50
	if adType == "interstitial" {
		width, height = 1080, 1920
	}
	if orientation == "landscape" && adType == "interstitial" {
		width, height = height, width
	}
	return map[string]interface{}{
		"ad": map[string]interface{}{
			"orientation": orientation,
			"type":        adType,
			"width":       width,
			"height":      height,
		},
		"url":        "https://cdn.example.com/" + orientation + "/" + adType + ".html",
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
	}
}

// ContentResponse builds a /v1/content answer with one creative per combination.
func ContentResponse(combinations map[string][]string, expiresAt time.Time) map[string]interface{} {
	result := make([]map[string]interface{}, 0)
	for orientation, types := range combinations {
		for _, t := range types {
			result = append(result, ContentItem(orientation, t, expiresAt))
		}
	}
	return map[string]interface{}{"result": result}
}
