package benchmarks

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/randalmurphal/inspector/pkg/inspector/ecies"
	"github.com/randalmurphal/inspector/pkg/inspector/spec"
	"github.com/randalmurphal/inspector/pkg/inspector/validate"
)

// BenchmarkValidateEvent measures a full validation of a checkout event.
func BenchmarkValidateEvent(b *testing.B) {
	resp, err := spec.ParseResponse([]byte(wireResponse))
	if err != nil {
		b.Fatal(err)
	}
	v := validate.New()
	props := map[string]any{
		"method":   "card",
		"currency": "USD",
		"coupon":   "ABCD1234",
		"total":    59.90,
		"items": []any{
			map[string]any{"sku": "SKU-1", "qty": 2},
			map[string]any{"sku": "SKU-22", "qty": 1},
		},
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = v.ValidateEvent(ctx, props, resp)
	}
}

// BenchmarkValidateEvent_Pinned measures pinned checks across many properties.
func BenchmarkValidateEvent_Pinned(b *testing.B) {
	resp := createResponse(50)
	props := make(map[string]any, 50)
	for name := range resp.Events[0].Props {
		props[name] = "value"
	}
	v := validate.New()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = v.ValidateEvent(ctx, props, resp)
	}
}

// BenchmarkValidateEvent_CatastrophicRegex measures the bounded cost of a
// pattern that backtracks exponentially.
func BenchmarkValidateEvent_CatastrophicRegex(b *testing.B) {
	resp := &spec.Response{Events: []*spec.Entry{{
		BaseEventID: "e1",
		Props: map[string]*spec.Constraints{
			"name": {RegexPatterns: map[string][]string{"^(a+)+$": {"e1"}}},
		},
	}}}
	props := map[string]any{"name": strings.Repeat("a", 32) + "!"}
	v := validate.New(validate.WithRegexTimeout(5 * time.Millisecond))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = v.ValidateEvent(ctx, props, resp)
	}
}

// BenchmarkIsPatternPotentiallyDangerous measures the pattern heuristic.
func BenchmarkIsPatternPotentiallyDangerous(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = validate.IsPatternPotentiallyDangerous(`^([a-zA-Z0-9_\.\-])+\@(([a-zA-Z0-9\-])+\.)+([a-zA-Z0-9]{2,4})+$`)
	}
}

// BenchmarkEncrypt measures one ECIES encryption.
func BenchmarkEncrypt(b *testing.B) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		b.Fatal(err)
	}
	pubHex := hex.EncodeToString(priv.PublicKey().Bytes())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ecies.Encrypt("user@example.com", pubHex)
	}
}
