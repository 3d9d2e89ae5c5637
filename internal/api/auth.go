package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	headerCaller    = "X-Caller"
	headerSignature = "X-Signature"
	headerTimestamp = "X-Timestamp"

	callerKey = "caller"
)

// SigningPayload is the byte string a client signs to authenticate a request.
func SigningPayload(method, path, timestamp string, body []byte) []byte {
	payload := make([]byte, 0, len(method)+len(path)+len(timestamp)+len(body)+3)
	payload = append(payload, method...)
	payload = append(payload, '|')
	payload = append(payload, path...)
	payload = append(payload, '|')
	payload = append(payload, timestamp...)
	payload = append(payload, '|')
	payload = append(payload, body...)
	return payload
}

// authenticate resolves the caller address and stores it on the context.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			caller common.Address
			err    error
		)
		if s.cfg.RequireSignatures {
			caller, err = s.recoverCaller(c)
		} else {
			caller, err = headerAddress(c.GetHeader(headerCaller))
		}
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "Unauthenticated", err.Error(), nil)
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

func headerAddress(value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, fmt.Errorf("missing %s header", headerCaller)
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s header: %s", headerCaller, value)
	}
	return common.HexToAddress(value), nil
}

func (s *Server) recoverCaller(c *gin.Context) (common.Address, error) {
	sigHex := c.GetHeader(headerSignature)
	if sigHex == "" {
		return common.Address{}, fmt.Errorf("missing %s header", headerSignature)
	}
	tsRaw := c.GetHeader(headerTimestamp)
	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid %s header: %w", headerTimestamp, err)
	}
	skew := s.now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > s.cfg.SignatureMaxSkew {
		return common.Address{}, fmt.Errorf("request timestamp outside allowed skew")
	}

	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes", crypto.SignatureLength)
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	var body []byte
	if c.Request.Body != nil {
		body, err = io.ReadAll(c.Request.Body)
		if err != nil {
			return common.Address{}, fmt.Errorf("read body: %w", err)
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
	}

	digest := crypto.Keccak256Hash(SigningPayload(c.Request.Method, c.Request.URL.Path, tsRaw, body))
	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func callerFrom(c *gin.Context) common.Address {
	v, _ := c.Get(callerKey)
	caller, _ := v.(common.Address)
	return caller
}

const defaultMaxLimiters = 10000

// limiterSet hands out one token bucket per key. When the set is full,
// buckets that have refilled completely are dropped, since a full bucket
// behaves like a new one. Keys that still find no room share one overflow
// bucket.
type limiterSet struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	maxSize  int
	limiters map[string]*rate.Limiter
	overflow *rate.Limiter
}

func newLimiterSet(limit rate.Limit, burst, maxSize int) *limiterSet {
	if maxSize <= 0 {
		maxSize = defaultMaxLimiters
	}
	return &limiterSet{
		limit:    limit,
		burst:    burst,
		maxSize:  maxSize,
		limiters: make(map[string]*rate.Limiter),
		overflow: rate.NewLimiter(limit, burst),
	}
}

func (l *limiterSet) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[key]; ok {
		return lim
	}
	if len(l.limiters) >= l.maxSize {
		l.evictIdle()
	}
	if len(l.limiters) >= l.maxSize {
		return l.overflow
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.limiters[key] = lim
	return lim
}

func (l *limiterSet) evictIdle() {
	for key, lim := range l.limiters {
		if lim.Tokens() >= float64(l.burst) {
			delete(l.limiters, key)
		}
	}
}

func (l *limiterSet) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// rateLimit keys on the authenticated caller when authenticate ran before
// it, and on the client address otherwise. Unverified headers never pick
// the bucket.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}
		key := "ip:" + c.ClientIP()
		if _, ok := c.Get(callerKey); ok {
			key = "caller:" + callerFrom(c).Hex()
		}
		if !s.limiter.get(key).Allow() {
			abortWithError(c, http.StatusTooManyRequests, "RateLimited", "too many requests", nil)
			return
		}
		c.Next()
	}
}
