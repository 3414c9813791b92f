package tracer

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopTracer(t *testing.T) {
	ctx := context.Background()
	newCtx, span := NewNoop().Start(ctx, SpanUnlock, String(AttrConnectionID, "c1"))
	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)

	span.SetAttributes(Bool(AttrCompleted, true))
	span.AddEvent("bonus", Uint64(AttrAmount, 8))
	span.End(errors.New("boom"))
}

func TestOTelTracerWithGlobalProvider(t *testing.T) {
	_, span := NewOTel().Start(context.Background(), SpanMintDaily, Int64("n", 1))
	require.NotNil(t, span)
	span.End(nil)
}

func TestToKeyValue(t *testing.T) {
	assert.Equal(t, attribute.Int64("a", 24), toKeyValue(Uint64("a", 24)))
	assert.Equal(t, attribute.String("a", "18446744073709551615"), toKeyValue(Uint64("a", math.MaxUint64)))
	assert.Equal(t, attribute.Bool("b", true), toKeyValue(Bool("b", true)))
	assert.Equal(t, attribute.String("x", "unsupported"), toKeyValue(Attribute{Key: "x", Value: 1.5}))
}
