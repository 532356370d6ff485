package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	sigv4Algorithm = "AWS4-HMAC-SHA256"
	sigv4Terminal  = "aws4_request"
	amzDateLayout  = "20060102T150405Z"
	dateLayout     = "20060102"
)

// sha256 de corpo vazio.
const emptyPayloadHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// sigv4Signer assina requisições com AWS Signature V4 em cabeçalho.
type sigv4Signer struct {
	accessKey string
	secretKey string
	region    string
	service   string
}

func payloadHash(body []byte) string {
	if len(body) == 0 {
		return emptyPayloadHash
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// sign define x-amz-date, x-amz-content-sha256 e Authorization. Todos os
// cabeçalhos presentes no momento da chamada entram na assinatura.
func (s sigv4Signer) sign(req *http.Request, hash string, now time.Time) {
	now = now.UTC()
	date := now.Format(dateLayout)

	req.Header.Set("x-amz-date", now.Format(amzDateLayout))
	req.Header.Set("x-amz-content-sha256", hash)

	host := req.Host
	if host == "" {
		host = req.URL.Host
	}
	names, block := canonicalHeaders(req.Header, host)

	canonical := strings.Join([]string{
		req.Method,
		canonicalPath(req.URL.Path),
		canonicalQuery(req.URL.Query()),
		block,
		names,
		hash,
	}, "\n")
	digest := sha256.Sum256([]byte(canonical))

	scope := date + "/" + s.region + "/" + s.service + "/" + sigv4Terminal
	toSign := sigv4Algorithm + "\n" + now.Format(amzDateLayout) + "\n" + scope + "\n" + hex.EncodeToString(digest[:])

	key := hmacSHA256([]byte("AWS4"+s.secretKey), date)
	for _, part := range []string{s.region, s.service, sigv4Terminal} {
		key = hmacSHA256(key, part)
	}

	req.Header.Set("Authorization", sigv4Algorithm+
		" Credential="+s.accessKey+"/"+scope+
		", SignedHeaders="+names+
		", Signature="+hex.EncodeToString(hmacSHA256(key, toSign)))
}

// canonicalHeaders devolve a lista de nomes assinados e o bloco "nome:valor\n".
func canonicalHeaders(h http.Header, host string) (string, string) {
	values := map[string]string{"host": host}
	for k, vs := range h {
		name := strings.ToLower(k)
		if name == "authorization" || name == "host" {
			continue
		}
		trimmed := make([]string, len(vs))
		for i, v := range vs {
			trimmed[i] = strings.Join(strings.Fields(v), " ")
		}
		values[name] = strings.Join(trimmed, ",")
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var block strings.Builder
	for _, name := range names {
		block.WriteString(name)
		block.WriteByte(':')
		block.WriteString(values[name])
		block.WriteByte('\n')
	}
	return strings.Join(names, ";"), block.String()
}

func canonicalPath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return awsEscape(p, false)
}

func canonicalQuery(q url.Values) string {
	pairs := make([]string, 0, len(q))
	for k, vs := range q {
		for _, v := range vs {
			pairs = append(pairs, awsEscape(k, true)+"="+awsEscape(v, true))
		}
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "&")
}

// awsEscape aplica o percent-encoding do SigV4: apenas A-Z a-z 0-9 - _ . ~ passam.
func awsEscape(s string, slash bool) string {
	const hexDigits = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		case c == '/' && !slash:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hexDigits[c>>4])
			b.WriteByte(hexDigits[c&0x0F])
		}
	}
	return b.String()
}

func hmacSHA256(key []byte, data string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}
