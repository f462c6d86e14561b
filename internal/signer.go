package internal

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	SignatureParam = "Signature"
	signMethod     = "GET"
)

// Params holds the flat request parameters of one API call. Values are
// scalars: strings, integers, floats, bools or nil.
type Params map[string]any

// Signer produces authenticated request URLs for a fixed API endpoint.
type Signer struct {
	endpoint *url.URL
}

func NewSigner(endpoint string) (*Signer, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse API endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("failed to parse API endpoint: %q is not absolute", endpoint)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return &Signer{endpoint: u}, nil
}

// Endpoint returns the endpoint URL without query.
func (s *Signer) Endpoint() string {
	return s.endpoint.String()
}

// Sign returns the endpoint URL carrying params plus their Signature. params
// is not modified; a Signature already present in params is replaced.
func (s *Signer) Sign(params Params, secret string) string {
	signature := Signature(s.StringToSign(params), secret)

	values := make(url.Values, len(params)+1)
	for k, v := range params {
		if k == SignatureParam {
			continue
		}
		values.Set(k, formatScalar(v))
	}
	values.Set(SignatureParam, signature)

	u := *s.endpoint
	u.RawQuery = values.Encode()
	return u.String()
}

// StringToSign returns METHOD + host + path + "?" + canonical query.
func (s *Signer) StringToSign(params Params) string {
	return signMethod + s.endpoint.Host + s.endpoint.Path + "?" + CanonicalQuery(params)
}

// CanonicalQuery joins key=value pairs in byte order of the keys. Values are
// not escaped. Signature is never part of the canonical form.
func CanonicalQuery(params Params) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == SignatureParam {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(canonicalKey(k))
		b.WriteByte('=')
		b.WriteString(formatScalar(params[k]))
	}
	return b.String()
}

// canonicalKey maps legacy underscore keys (input_bucket) to their dotted
// form. Keys starting with an underscore are left untouched.
func canonicalKey(k string) string {
	if strings.HasPrefix(k, "_") {
		return k
	}
	return strings.ReplaceAll(k, "_", ".")
}

// Signature is the base64 HMAC-SHA1 of str keyed by secret. An empty secret
// is a valid (empty) key.
func Signature(str, secret string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(str))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func formatScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int8:
		return strconv.FormatInt(int64(t), 10)
	case int16:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint8:
		return strconv.FormatUint(uint64(t), 10)
	case uint16:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return formatFloat(float64(t), 32)
	case float64:
		return formatFloat(t, 64)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// formatFloat writes NaN as "" and infinities as Infinity / -Infinity, the
// forms the API signs them with.
func formatFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return ""
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, bitSize)
}
