// geo.go — разбор гео-подсказок из заголовков запроса.
package service

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/bigkaa/feedgate/internal/domain/model"
)

// Location — гео-поля события аудита.
type Location struct {
	Country string
	City    string
	Region  string
}

// geoHint — структурированная подсказка CDN: JSON, обычно в base64.
type geoHint struct {
	City    string `json:"city"`
	Country struct {
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"country"`
	Subdivision struct {
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"subdivision"`
}

// ResolveLocation определяет гео-поля: из структурированной подсказки, если
// она разбирается; иначе из заголовка страны; иначе Unknown.
func ResolveLocation(hint, countryHeader string) Location {
	if h, ok := decodeGeoHint(hint); ok {
		return Location{
			Country: orUnknown(firstNonEmpty(h.Country.Name, h.Country.Code)),
			City:    orUnknown(h.City),
			Region:  orUnknown(firstNonEmpty(h.Subdivision.Name, h.Subdivision.Code)),
		}
	}
	return Location{
		Country: orUnknown(strings.TrimSpace(countryHeader)),
		City:    model.Unknown,
		Region:  model.Unknown,
	}
}

// decodeGeoHint разбирает подсказку как base64(JSON) или как JSON.
// Подсказка без единого известного поля считается отсутствующей.
func decodeGeoHint(raw string) (geoHint, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return geoHint{}, false
	}

	payload := []byte(raw)
	if !strings.HasPrefix(raw, "{") {
		decoded, ok := decodeBase64(raw)
		if !ok {
			return geoHint{}, false
		}
		payload = decoded
	}

	var h geoHint
	if err := json.Unmarshal(payload, &h); err != nil {
		return geoHint{}, false
	}
	if h.City == "" && h.Country.Code == "" && h.Country.Name == "" &&
		h.Subdivision.Code == "" && h.Subdivision.Name == "" {
		return geoHint{}, false
	}
	return h, true
}

// decodeBase64 пробует стандартный и URL-safe алфавиты, с паддингом и без.
func decodeBase64(s string) ([]byte, bool) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding,
		base64.URLEncoding, base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, true
		}
	}
	return nil, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func orUnknown(s string) string {
	if s == "" {
		return model.Unknown
	}
	return s
}
