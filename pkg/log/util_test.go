package log

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestToFields(t *testing.T) {
	now := time.Now()
	err := errors.New("boom")

	tests := []struct {
		name     string
		input    []any
		wantKeys []string
	}{
		{"empty input", []any{}, nil},
		{"string-int-bool", []any{"runID", "r1", "attempt", 2, "retryable", true}, []string{"runID", "attempt", "retryable"}},
		{"time type", []any{"t", now}, []string{"t"}},
		{"error only", []any{err}, []string{"error"}},
		{"mixed field types", []any{"phase", "DOWNLOAD", zap.String("x", "y"), "status", 503}, []string{"phase", "x", "status"}},
		{"odd number of args", []any{"key1", "val1", "key2"}, []string{"key1", "arg#2"}},
		{"non-string key", []any{123, "value"}, []string{"invalid_key_1"}},
		{"run log slice", []any{"runLog", []string{"DOWNLOAD START"}}, []string{"runLog"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := toFields(tt.input...)
			require.Len(t, fields, len(tt.wantKeys))
			for i, f := range fields {
				assert.Equal(t, tt.wantKeys[i], f.Key)
			}
		})
	}
}

func TestTypedField(t *testing.T) {
	assert.Equal(t, zapcore.StringType, typedField("k", "v").Type)
	assert.Equal(t, zapcore.Int64Type, typedField("k", 3).Type)
	assert.Equal(t, zapcore.DurationType, typedField("k", time.Second).Type)
	assert.Equal(t, zapcore.ErrorType, typedField("k", errors.New("x")).Type)
}

func TestFromContext(t *testing.T) {
	assert.Equal(t, Std(), FromContext(context.Background()))

	l := NewNopLogger().WithValues("runID", "r1")
	ctx := IntoContext(context.Background(), l)
	assert.Equal(t, l, FromContext(ctx))
}

func TestOptionsValidate(t *testing.T) {
	o := NewOptions()
	assert.Empty(t, o.Validate())

	o.Format = "xml"
	o.Level = "trace"
	assert.Len(t, o.Validate(), 2)
}
