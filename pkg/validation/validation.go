package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Broadcast metadata limits enforced by the platform. Validating locally
// avoids burning API quota on requests that are guaranteed to be rejected.
const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 5000
	MaxSceneNameLength   = 256
)

var visibilities = map[string]bool{
	"public":   true,
	"unlisted": true,
	"private":  true,
}

// ValidateTitle checks broadcast title constraints.
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return fmt.Errorf("title is too long (max %d characters)", MaxTitleLength)
	}
	if strings.ContainsAny(title, "<>") {
		return fmt.Errorf("title must not contain angle brackets")
	}
	return nil
}

// ValidateDescription checks broadcast description constraints.
func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return fmt.Errorf("description is too long (max %d characters)", MaxDescriptionLength)
	}
	if strings.ContainsAny(description, "<>") {
		return fmt.Errorf("description must not contain angle brackets")
	}
	return nil
}

// ValidateVisibility checks the privacy status value.
func ValidateVisibility(visibility string) error {
	if !visibilities[visibility] {
		return fmt.Errorf("visibility must be public, unlisted or private, got %q", visibility)
	}
	return nil
}

// ValidateSceneName checks an encoder scene name.
func ValidateSceneName(scene string) error {
	if scene == "" {
		return nil // optional
	}
	if utf8.RuneCountInString(scene) > MaxSceneNameLength {
		return fmt.Errorf("scene name is too long (max %d characters)", MaxSceneNameLength)
	}
	return nil
}

// ValidateIngestionURL checks that a transport endpoint address is a
// plausible RTMP(S) URL.
func ValidateIngestionURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("ingestion address is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid ingestion address: %w", err)
	}
	if u.Scheme != "rtmp" && u.Scheme != "rtmps" {
		return fmt.Errorf("ingestion address must use rtmp or rtmps, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("ingestion address has no host")
	}
	return nil
}
